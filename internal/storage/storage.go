// Package storage is the object store gateway. Adapters exist for S3
// compatible stores (AWS, MinIO), Aliyun OSS, Tencent COS and Qiniu Kodo.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/weiwangfds/filevault/config"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported storage provider")
	// ErrObjectNotFound is returned by Get for a missing key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrAccessDenied marks credential and permission failures.
	ErrAccessDenied = errors.New("object store access denied")
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// Put streams size bytes from r under key. Writing an existing key replaces it.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get opens the object for reading; the caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error)
	// EnsureBucket verifies the bucket is reachable, creating it where the
	// provider allows.
	EnsureBucket(ctx context.Context) error
}

// ObjectInfo 对象信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
}

// NewObjectStorage 根据配置创建对象存储实例
func NewObjectStorage(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Provider {
	case "s3", "minio", "":
		return NewS3Storage(ctx, cfg)
	case "aliyun":
		return NewAliyunStorage(cfg)
	case "tencent":
		return NewTencentStorage(cfg)
	case "qiniu":
		return NewQiniuStorage(cfg)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}
