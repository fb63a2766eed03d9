package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/app"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/middleware"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/handler"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/storage"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := app.InitLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting cmg construction control service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 初始化数据库
	db, err := app.InitDatabase(cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(entity.All()...); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// 初始化 Redis
	rdb := app.InitRedis(cfg.Redis)
	if err := rdb.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}

	// 附件存储
	blobs, err := storage.New(ctx, cfg.Storage, cfg.Server.PublicURL)
	if err != nil {
		zapLogger.Fatal("Failed to init blob storage", zap.Error(err))
	}
	zapLogger.Info("Blob storage ready", zap.String("driver", cfg.Storage.Driver))

	// 变更总线: every instance relays through Redis
	bus := sse.NewRedisBus(rdb, cfg.Redis.ChangeChannel, zapLogger)
	go func() {
		if err := bus.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("Change bus stopped", zap.Error(err))
		}
	}()

	var google service.GoogleIdentity
	if cfg.Google.Enabled() {
		google = service.NewGoogleOAuth(cfg.Google)
	} else {
		zapLogger.Info("Google sign-in disabled")
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(service.Deps{
		Stores:   service.StoresFrom(repos),
		Bus:      bus,
		Logger:   zapLogger,
		Location: cfg.Location(),
	}, rdb, cfg, blobs, google, service.NewLogMailer(zapLogger))

	hub := sse.NewHub(zapLogger)
	go services.Notification.Run(ctx, hub)

	handlers := handler.NewHandlers(services, hub)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	// SSE frames must not sit in a gzip buffer
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/sse"})))

	registerSystemRoutes(router, db, rdb, blobs)
	handler.RegisterRoutes(router, handlers, cfg.JWT.Secret)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout, // 0 keeps SSE connections open
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		zapLogger.Warn("Redis close", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	zapLogger.Info("Server exited")
}

func registerSystemRoutes(r *gin.Engine, db *gorm.DB, rdb *redis.Client, blobs storage.BlobStore) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// 本地附件目录
	if local, ok := blobs.(*storage.LocalStore); ok {
		r.Static(storage.LocalURLPrefix, local.Root())
	}
}
