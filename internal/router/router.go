package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/handler"
	"github.com/weiwangfds/filevault/internal/i18n"
	"github.com/weiwangfds/filevault/internal/middleware"
	"github.com/weiwangfds/filevault/internal/repository"
	fileservice "github.com/weiwangfds/filevault/internal/service/file"
	tagservice "github.com/weiwangfds/filevault/internal/service/tag"
	"github.com/weiwangfds/filevault/internal/storage"
)

// Dependencies 路由所需的外部依赖
type Dependencies struct {
	Files   repository.FileRepository
	Tags    repository.TagRepository
	Storage storage.ObjectStorage
	// Checks backs /ready, keyed by component name.
	Checks map[string]repository.Pinger
}

// Router 路由配置
type Router struct {
	engine *gin.Engine
}

// NewRouter 创建路由实例
func NewRouter(cfg *config.Config, deps Dependencies) *Router {
	// 设置Gin模式
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	engine := gin.New()
	if cfg.Upload.MultipartMemory > 0 {
		engine.MaxMultipartMemory = cfg.Upload.MultipartMemory
	}

	// 校验错误翻译
	i18n.GetInstance()

	// 初始化服务
	fileService := fileservice.NewFileService(deps.Files, deps.Storage, fileservice.Config{
		TempDir: cfg.Upload.TempDir,
		Domain:  cfg.App.Domain,
	})
	tagService := tagservice.NewTagService(deps.Tags)

	// 初始化处理器
	fileHandler := handler.NewFileHandler(fileService, tagService, cfg.Upload.MaxSize)
	tagHandler := handler.NewTagHandler(tagService)
	healthHandler := handler.NewHealthHandler(deps.Checks)

	// 使用中间件
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Metrics())
	engine.Use(middleware.RequestLogger(nil))

	// 配置CORS
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Accept-Language", "X-Request-ID"},
		ExposeHeaders:   []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		MaxAge:          86400,
	}))

	// 健康检查与监控
	engine.GET("/health", healthHandler.Live)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API路由组
	api := engine.Group("/api/v1")
	{
		// 文件管理接口
		files := api.Group("/files")
		{
			files.POST("/upload", fileHandler.UploadFile)
			files.GET("/public", fileHandler.ListPublicFiles)
			files.GET("/users/:userId", fileHandler.ListUserFiles)
			files.GET("/:fileId/users/:userId", fileHandler.DownloadFile)
			files.PUT("/:fileId/rename", fileHandler.RenameFile)
			files.DELETE("/:fileId/users/:userId", fileHandler.DeleteFile)
		}

		// 标签接口
		api.GET("/tags", tagHandler.SearchTags)
	}

	return &Router{
		engine: engine,
	}
}

// GetEngine 获取gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
