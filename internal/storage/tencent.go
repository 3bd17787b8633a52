package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/logger"
)

// TencentStorage 腾讯云COS存储实现
type TencentStorage struct {
	client *cos.Client
}

// NewTencentStorage 创建腾讯云COS存储实例
func NewTencentStorage(cfg config.StorageConfig) (*TencentStorage, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})
	return &TencentStorage{client: client}, nil
}

func (t *TencentStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	}
	if _, err := t.client.Object.Put(ctx, key, r, opts); err != nil {
		return fmt.Errorf("failed to upload %s to tencent cos: %w", key, classifyCOS(err))
	}
	return nil
}

func (t *TencentStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := t.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from tencent cos: %w", key, classifyCOS(err))
	}
	return resp.Body, nil
}

func (t *TencentStorage) Delete(ctx context.Context, key string) error {
	if _, err := t.client.Object.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s from tencent cos: %w", key, classifyCOS(err))
	}
	return nil
}

func (t *TencentStorage) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := t.client.Object.Head(ctx, key, nil); err != nil {
		if cos.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s in tencent cos: %w", key, classifyCOS(err))
	}
	return true, nil
}

func (t *TencentStorage) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	result, _, err := t.client.Bucket.Get(ctx, &cos.BucketGetOptions{Prefix: prefix, MaxKeys: maxKeys})
	if err != nil {
		return nil, fmt.Errorf("failed to list tencent cos objects: %w", classifyCOS(err))
	}

	objects := make([]ObjectInfo, 0, len(result.Contents))
	for _, obj := range result.Contents {
		modified, _ := time.Parse(time.RFC3339, obj.LastModified)
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         int64(obj.Size),
			LastModified: modified,
			ETag:         strings.Trim(obj.ETag, `"`),
		})
	}
	return objects, nil
}

func (t *TencentStorage) EnsureBucket(ctx context.Context) error {
	exists, err := t.client.Bucket.IsExist(ctx)
	if err != nil {
		return fmt.Errorf("failed to check tencent bucket: %w", classifyCOS(err))
	}
	if exists {
		return nil
	}
	if _, err := t.client.Bucket.Put(ctx, nil); err != nil {
		return fmt.Errorf("failed to create tencent bucket: %w", classifyCOS(err))
	}
	logger.WithField("bucket", t.client.BaseURL.BucketURL.Host).Info("created tencent bucket")
	return nil
}

func classifyCOS(err error) error {
	if cos.IsNotFoundError(err) {
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	if e, ok := cos.IsCOSError(err); ok && e.Response != nil && e.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return err
}
