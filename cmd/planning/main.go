package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hexafab/forge/internal/config"
	"github.com/hexafab/forge/internal/middleware"
	"github.com/hexafab/forge/internal/planning/entity"
	planningHandler "github.com/hexafab/forge/internal/planning/handler"
	planningRepo "github.com/hexafab/forge/internal/planning/repository"
	planningService "github.com/hexafab/forge/internal/planning/service"
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

	zapLogger.Info("Starting forge-planning service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to auto-migrate planning tables", zap.Error(err))
	}
	zapLogger.Info("Planning database migration completed")

	// Redis，当前BOM版本缓存使用。连不上只降级不阻塞启动。
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, BOM cache disabled", zap.Error(err))
		rdb = nil
	}

	// 初始化依赖
	repos := planningRepo.NewRepositories(db)
	services := planningService.NewServices(db, repos, rdb, zapLogger)
	handlers := planningHandler.NewHandlers(services)

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

	// 健康检查
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "forge-planning"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "forge-planning"})
	})

	// 版本信息
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":    "forge-planning",
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// Planning API v1
	v1 := router.Group("/api/v1/planning")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	writePerm := middleware.RequirePermission("planning:write")
	{
		// 产品主数据
		products := v1.Group("/products")
		{
			products.GET("", handlers.MasterData.ListProducts)
			products.POST("", writePerm, handlers.MasterData.CreateProduct)
			products.GET("/:id/boms", handlers.BOM.Revisions)
			products.GET("/:id/boms/current", handlers.BOM.Current)
			products.GET("/:id/engineering-changes", handlers.ECN.History)
		}

		// 物料主数据与库存
		items := v1.Group("/inventory-items")
		{
			items.GET("", handlers.MasterData.ListInventoryItems)
			items.POST("", writePerm, handlers.MasterData.CreateInventoryItem)
			items.GET("/:id", handlers.MasterData.GetInventoryItem)
			items.GET("/:id/transactions", handlers.MasterData.ListStockTransactions)
		}

		// 工作中心与工序
		workCenters := v1.Group("/work-centers")
		{
			workCenters.GET("", handlers.MasterData.ListWorkCenters)
			workCenters.POST("", writePerm, handlers.MasterData.CreateWorkCenter)
		}
		operations := v1.Group("/operations")
		{
			operations.GET("", handlers.MasterData.ListOperations)
			operations.POST("", writePerm, handlers.MasterData.CreateOperation)
			operations.GET("/:id", handlers.MasterData.GetOperation)
		}

		// BOM
		boms := v1.Group("/boms")
		{
			boms.POST("", writePerm, handlers.BOM.Create)
			boms.GET("/:id", handlers.BOM.Get)
			boms.POST("/:id/approve", writePerm, handlers.BOM.Approve)
			boms.GET("/:id/cost", handlers.BOM.Cost)
			boms.GET("/:id/delivery-estimate", handlers.Order.EstimateDelivery)
			boms.GET("/:id/routing-plan", handlers.Order.CalculateRouting)
		}

		// 产能日历
		capacity := v1.Group("/capacity-schedules")
		{
			capacity.POST("", writePerm, handlers.Capacity.Upsert)
			capacity.GET("/utilization", handlers.Capacity.Utilization)
			capacity.GET("/utilization/export", handlers.Capacity.ExportUtilization)
		}

		// 生产订单
		orders := v1.Group("/production-orders")
		{
			orders.GET("", handlers.Order.List)
			orders.POST("", writePerm, handlers.Order.Create)
			orders.GET("/:id", handlers.Order.Get)
			orders.POST("/:id/reschedule", writePerm, handlers.Order.Reschedule)
			orders.PUT("/:id/status", writePerm, handlers.Order.UpdateStatus)
			orders.GET("/:id/gantt", handlers.Order.Gantt)
			orders.POST("/:id/consumptions", writePerm, handlers.Material.RecordConsumption)
			orders.GET("/:id/consumptions", handlers.Material.ListConsumptions)
			orders.POST("/:id/scrap", writePerm, handlers.Material.RecordScrap)
			orders.GET("/:id/scrap", handlers.Material.ListScrap)
		}

		// 工程变更
		changes := v1.Group("/engineering-changes")
		{
			changes.GET("", handlers.ECN.List)
			changes.POST("", writePerm, handlers.ECN.Create)
			changes.GET("/:id", handlers.ECN.Get)
			changes.POST("/:id/propagate", writePerm, handlers.ECN.Propagate)
		}
	}

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Planning server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down planning server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Planning server exited")
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
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
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
