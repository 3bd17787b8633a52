package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	qiniustorage "github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/filevault/config"
)

// QiniuStorage 七牛云Kodo存储实现
// Downloads go through signed private URLs on the bucket's download domain,
// which is what storage.endpoint names for this provider.
type QiniuStorage struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	useHTTPS     bool
	manager      *qiniustorage.BucketManager
	region       *qiniustorage.Region
	httpClient   *http.Client
}

// NewQiniuStorage 创建七牛云Kodo存储实例
func NewQiniuStorage(cfg config.StorageConfig) (*QiniuStorage, error) {
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	region, err := qiniustorage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	domain := cfg.Endpoint
	if domain == "" {
		domain = fmt.Sprintf("%s.%s", cfg.Bucket, region.RsHost)
	}
	if !strings.Contains(domain, "://") {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		domain = scheme + domain
	}

	return &QiniuStorage{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: domain,
		useHTTPS:     cfg.UseSSL,
		manager:      qiniustorage.NewBucketManager(mac, &qiniustorage.Config{Region: region, UseHTTPS: cfg.UseSSL}),
		region:       region,
		httpClient:   &http.Client{},
	}, nil
}

func (q *QiniuStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	putPolicy := qiniustorage.PutPolicy{Scope: fmt.Sprintf("%s:%s", q.bucketName, key)}
	upToken := putPolicy.UploadToken(q.mac)

	uploader := qiniustorage.NewFormUploader(&qiniustorage.Config{Region: q.region, UseHTTPS: q.useHTTPS})
	extra := qiniustorage.PutExtra{MimeType: contentType}
	ret := qiniustorage.PutRet{}

	if err := uploader.Put(ctx, &ret, upToken, key, r, size, &extra); err != nil {
		return fmt.Errorf("failed to upload %s to qiniu kodo: %w", key, classifyQiniu(err))
	}
	return nil
}

func (q *QiniuStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	deadline := time.Now().Add(time.Hour).Unix()
	privateURL := qiniustorage.MakePrivateURL(q.mac, q.bucketDomain, key, deadline)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from qiniu kodo: %w", key, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s from qiniu kodo: %w", key, ErrObjectNotFound)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s from qiniu kodo, status: %s", key, resp.Status)
	}
}

func (q *QiniuStorage) Delete(_ context.Context, key string) error {
	if err := q.manager.Delete(q.bucketName, key); err != nil {
		if isQiniuNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete %s from qiniu kodo: %w", key, classifyQiniu(err))
	}
	return nil
}

func (q *QiniuStorage) Exists(_ context.Context, key string) (bool, error) {
	if _, err := q.manager.Stat(q.bucketName, key); err != nil {
		if isQiniuNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s in qiniu kodo: %w", key, classifyQiniu(err))
	}
	return true, nil
}

func (q *QiniuStorage) List(_ context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	entries, _, _, _, err := q.manager.ListFiles(q.bucketName, prefix, "", "", maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to list qiniu kodo objects: %w", classifyQiniu(err))
	}

	objects := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		objects = append(objects, ObjectInfo{
			Key:  e.Key,
			Size: e.Fsize,
			// PutTime is in units of 100ns
			LastModified: time.Unix(0, e.PutTime*100),
			ETag:         e.Hash,
			ContentType:  e.MimeType,
		})
	}
	return objects, nil
}

// EnsureBucket only verifies access; Kodo buckets are created from the console.
func (q *QiniuStorage) EnsureBucket(_ context.Context) error {
	if _, _, _, _, err := q.manager.ListFiles(q.bucketName, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to reach qiniu bucket %s: %w", q.bucketName, classifyQiniu(err))
	}
	return nil
}

func isQiniuNotFound(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func classifyQiniu(err error) error {
	msg := err.Error()
	switch {
	case isQiniuNotFound(err):
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	case strings.Contains(msg, "bad token") || strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return err
}
