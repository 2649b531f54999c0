package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-eam/internal/config"
	"github.com/bitfantasy/nimo-eam/internal/eam/entity"
	"github.com/bitfantasy/nimo-eam/internal/eam/handler"
	"github.com/bitfantasy/nimo-eam/internal/eam/repository"
	"github.com/bitfantasy/nimo-eam/internal/eam/service"
	"github.com/bitfantasy/nimo-eam/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-eam service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := migrate(db); err != nil {
		zapLogger.Fatal("Database migration failed", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis not reachable, token refresh disabled", zap.Error(err))
	}

	// 仓库、服务、处理器
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg)
	handlers := handler.NewHandlers(services, cfg)

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
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg, db)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Role{},
		&entity.UserRole{},
		&entity.RoomType{},
		&entity.Room{},
		&entity.Brand{},
		&entity.ItemModel{},
		&entity.Provider{},
		&entity.Item{},
		&entity.ItemTransfer{},
		&entity.ItemInclusion{},
		&entity.Assignment{},
		&entity.Maintenance{},
		&entity.TypicalStep{},
		&entity.MaintenanceStep{},
		&entity.ExternalMaintenanceRecord{},
		&entity.MaintenanceAttachment{},
		&entity.ItemRequest{},
		&entity.ProvisionOrder{},
	); err != nil {
		return err
	}

	// 编号序列（AutoMigrate不管理序列）
	migrationSQL := []string{
		"CREATE SEQUENCE IF NOT EXISTS maintenance_code_seq START 1",
		"CREATE SEQUENCE IF NOT EXISTS provision_order_code_seq START 1",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			return err
		}
	}
	return nil
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config, db *gorm.DB) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.POST("/auth/password", h.Auth.ChangePassword)

			// 用户
			users := authorized.Group("/users")
			{
				users.GET("", h.User.List)
				users.GET("/search", h.User.Search)
				users.GET("/:id", h.User.Get)
			}

			// 台账
			items := authorized.Group("/items")
			{
				items.GET("", h.Item.List)
				items.GET("/:id", h.Item.Get)
				items.POST("/:id/transfer", h.Item.Transfer)
				items.POST("/:id/assign", h.Item.Assign)
				items.POST("/:id/unassign", h.Item.Unassign)
				items.GET("/:id/transfers", h.Item.ListTransfers)
				items.GET("/:id/assignments", h.Item.ListAssignments)
				items.GET("/:id/inclusions", h.Item.ListInclusions)
			}
			authorized.GET("/transfers/export", h.Item.ExportTransfers)

			// 维修
			maintenances := authorized.Group("/maintenances")
			{
				maintenances.GET("", h.Maintenance.List)
				maintenances.POST("", h.Maintenance.Create)
				maintenances.GET("/:id", h.Maintenance.Get)
				maintenances.POST("/:id/close", h.Maintenance.Close)
				maintenances.POST("/:id/external", h.Maintenance.SendExternal)
				maintenances.GET("/:id/steps", h.Maintenance.ListSteps)
				maintenances.POST("/:id/steps", h.Maintenance.AddStep)
				maintenances.GET("/:id/attachments", h.Attachment.List)
				maintenances.POST("/:id/attachments", h.Attachment.Upload)
			}
			steps := authorized.Group("/steps")
			{
				steps.POST("/:id/complete", h.Maintenance.CompleteStep)
				steps.POST("/:id/reassign", h.Maintenance.ReassignStep)
			}
			authorized.GET("/typical-steps", h.Maintenance.ListTypicalSteps)
			authorized.POST("/typical-steps", h.Maintenance.CreateTypicalStep)

			// 外修交接
			handoffs := authorized.Group("/handoffs")
			{
				handoffs.GET("/:id", h.Handoff.Get)
				handoffs.POST("/:id/send", h.Handoff.SendToProvider)
				handoffs.POST("/:id/provider-received", h.Handoff.ConfirmReceivedByProvider)
				handoffs.POST("/:id/provider-sent", h.Handoff.ConfirmSentToCompany)
				handoffs.POST("/:id/receive", h.Handoff.ConfirmReceivedByCompany)
			}

			// 附件下载
			attachments := authorized.Group("/attachments")
			{
				attachments.GET("/:id/download", h.Attachment.Download)
				attachments.GET("/:id/url", h.Attachment.PresignedURL)
			}

			// 备件申请
			requests := authorized.Group("/requests")
			{
				requests.GET("", h.Request.List)
				requests.POST("", h.Request.Create)
				requests.GET("/:id", h.Request.Get)
				requests.GET("/:id/eligible", h.Request.ListEligible)
				requests.GET("/:id/random", h.Request.SelectRandom)
				requests.POST("/:id/fulfill", h.Request.Fulfill)
				requests.POST("/:id/reject", h.Request.Reject)
			}

			// 采购入库
			orders := authorized.Group("/orders")
			{
				orders.GET("", h.Provisioning.List)
				orders.POST("", h.Provisioning.CommitBatch)
				orders.GET("/:id", h.Provisioning.Get)
				orders.GET("/:id/inclusions", h.Provisioning.ListIncludedItems)
			}

			// 基础数据
			authorized.GET("/rooms", h.RefData.ListRooms)
			authorized.GET("/room-types", h.RefData.ListRoomTypes)
			authorized.GET("/models", h.RefData.ListModels)
			authorized.GET("/brands", h.RefData.ListBrands)
			authorized.GET("/providers", h.RefData.ListProviders)
		}
	}
}
