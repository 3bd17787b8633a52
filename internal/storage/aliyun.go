package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/logger"
)

// AliyunStorage 阿里云OSS存储实现
type AliyunStorage struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
}

// NewAliyunStorage 创建阿里云OSS存储实例
func NewAliyunStorage(cfg config.StorageConfig) (*AliyunStorage, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunStorage{client: client, bucket: bucket, bucketName: cfg.Bucket}, nil
}

func (a *AliyunStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := []oss.Option{oss.WithContext(ctx), oss.ContentLength(size)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := a.bucket.PutObject(key, r, opts...); err != nil {
		return fmt.Errorf("failed to upload %s to aliyun oss: %w", key, classifyAliyun(err))
	}
	return nil
}

func (a *AliyunStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := a.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from aliyun oss: %w", key, classifyAliyun(err))
	}
	return body, nil
}

func (a *AliyunStorage) Delete(ctx context.Context, key string) error {
	if err := a.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete %s from aliyun oss: %w", key, classifyAliyun(err))
	}
	return nil
}

func (a *AliyunStorage) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := a.bucket.IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check %s in aliyun oss: %w", key, classifyAliyun(err))
	}
	return exists, nil
}

func (a *AliyunStorage) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	res, err := a.bucket.ListObjects(oss.WithContext(ctx), oss.Prefix(prefix), oss.MaxKeys(maxKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to list aliyun oss objects: %w", classifyAliyun(err))
	}

	objects := make([]ObjectInfo, 0, len(res.Objects))
	for _, obj := range res.Objects {
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         strings.Trim(obj.ETag, `"`),
			ContentType:  obj.Type,
		})
	}
	return objects, nil
}

func (a *AliyunStorage) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.IsBucketExist(a.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check aliyun bucket %s: %w", a.bucketName, classifyAliyun(err))
	}
	if exists {
		return nil
	}
	if err := a.client.CreateBucket(a.bucketName, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to create aliyun bucket %s: %w", a.bucketName, classifyAliyun(err))
	}
	logger.WithField("bucket", a.bucketName).Info("created aliyun bucket")
	return nil
}

func classifyAliyun(err error) error {
	var svcErr oss.ServiceError
	if !errors.As(err, &svcErr) {
		return err
	}
	switch {
	case svcErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	case svcErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return err
}
