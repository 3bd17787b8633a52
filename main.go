// Command filevault runs the file storage HTTP service.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/database"
	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/mongodb"
	"github.com/weiwangfds/filevault/internal/repository"
	"github.com/weiwangfds/filevault/internal/router"
	"github.com/weiwangfds/filevault/internal/storage"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// storageProbeKey is looked up by the readiness check; it need not exist.
const storageProbeKey = ".filevault-ready"

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(&cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	// 初始化元数据存储
	meta, err := openMetadata(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize metadata store: %v", err)
	}

	// 初始化对象存储
	store, err := storage.NewObjectStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize object storage: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Fatalf("Failed to prepare bucket %q: %v", cfg.Storage.Bucket, err)
	}

	// 初始化路由
	r := router.NewRouter(cfg, router.Dependencies{
		Files:   meta.files,
		Tags:    meta.tags,
		Storage: store,
		Checks: map[string]repository.Pinger{
			"metadata": meta.pinger,
			"storage": repository.PingFunc(func(ctx context.Context) error {
				_, err := store.Exists(ctx, storageProbeKey)
				return err
			}),
		},
	})

	srv, err := newServer(cfg.Server, r.GetEngine())
	if err != nil {
		logger.Fatalf("Failed to configure server: %v", err)
	}

	go func() {
		logger.Infof("服务器启动在 %s (HTTPS: %v, HTTP/2: %v)", srv.Addr, cfg.Server.EnableHTTPS, cfg.Server.EnableHTTP2)
		var err error
		if cfg.Server.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("服务器强制关闭: %v", err)
	}
	if err := meta.close(shutdownCtx); err != nil {
		logger.Errorf("关闭元数据存储失败: %v", err)
	}

	logger.Info("服务器已退出")
}

// metadataBackend bundles the repositories of one configured driver.
type metadataBackend struct {
	files  repository.FileRepository
	tags   repository.TagRepository
	pinger repository.Pinger
	close  func(ctx context.Context) error
}

func openMetadata(ctx context.Context, cfg config.DatabaseConfig) (*metadataBackend, error) {
	switch cfg.Driver {
	case "", "mongodb":
		client, db, err := mongodb.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &metadataBackend{
			files:  mongodb.NewFileRepository(db),
			tags:   mongodb.NewTagRepository(db),
			pinger: mongodb.Pinger(client),
			close:  client.Disconnect,
		}, nil
	case "sqlite", "postgres":
		db, err := database.Init(cfg)
		if err != nil {
			return nil, err
		}
		return &metadataBackend{
			files:  database.NewFileRepository(db),
			tags:   database.NewTagRepository(db),
			pinger: database.Pinger(db),
			close:  func(context.Context) error { return database.Close(db) },
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// newServer builds the HTTP server. With HTTPS, HTTP/2 is negotiated over
// TLS; without it, HTTP/2 is offered as cleartext h2c when enabled.
func newServer(cfg config.ServerConfig, handler http.Handler) (*http.Server, error) {
	srv := &http.Server{
		ReadTimeout:       config.Seconds(cfg.ReadTimeout),
		ReadHeaderTimeout: config.Seconds(cfg.ReadHeaderTimeout),
		WriteTimeout:      config.Seconds(cfg.WriteTimeout),
		IdleTimeout:       config.Seconds(cfg.IdleTimeout),
	}

	if cfg.EnableHTTPS {
		srv.Addr = ":" + strconv.Itoa(cfg.HTTPSPort)
		srv.Handler = handler
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"h2", "http/1.1"},
		}
		if cfg.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				return nil, fmt.Errorf("configure http2: %w", err)
			}
		}
		return srv, nil
	}

	srv.Addr = ":" + strconv.Itoa(cfg.Port)
	srv.Handler = handler
	if cfg.EnableHTTP2 {
		srv.Handler = h2c.NewHandler(handler, &http2.Server{})
	}
	return srv, nil
}
