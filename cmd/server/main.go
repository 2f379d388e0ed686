package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/taksh05/Assignment-Portal/config"
	"github.com/taksh05/Assignment-Portal/internal/api/handler"
	"github.com/taksh05/Assignment-Portal/internal/api/middleware"
	"github.com/taksh05/Assignment-Portal/internal/api/router"
	"github.com/taksh05/Assignment-Portal/internal/policy"
	"github.com/taksh05/Assignment-Portal/internal/repository"
	"github.com/taksh05/Assignment-Portal/internal/scheduler"
	"github.com/taksh05/Assignment-Portal/internal/service"
	"github.com/taksh05/Assignment-Portal/pkg/database"
	"github.com/taksh05/Assignment-Portal/pkg/jwt"
	applogger "github.com/taksh05/Assignment-Portal/pkg/logger"
	"github.com/taksh05/Assignment-Portal/pkg/metrics"
	"github.com/taksh05/Assignment-Portal/pkg/redis"
	"github.com/taksh05/Assignment-Portal/pkg/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("PORTAL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("require_enrollment", cfg.Policy.RequireEnrollment),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，登出黑名单与限流不可用）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与限流将不可用", zap.Error(err))
		rdb = nil
	}
	var blacklist service.TokenBlacklist
	if rdb != nil {
		blacklist = rdb
	}

	// 5. JWT、授权策略与指标
	jwtMgr := jwt.NewManager(&cfg.Auth)

	pol, err := policy.New(cfg.Policy.RequireEnrollment)
	if err != nil {
		logger.Fatal("初始化授权策略失败", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// 6. 文件存储
	store, err := storage.New(cfg.Storage.Dir, cfg.Storage.URLPrefix, logger, m)
	if err != nil {
		logger.Fatal("初始化文件存储失败", zap.Error(err))
	}

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, blacklist, pol, store, logger)
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	if err := middleware.RegisterValidators(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}
	engine := router.Setup(router.Deps{
		Config:          cfg,
		Handler:         h,
		JWT:             jwtMgr,
		Users:           repo.User,
		Redis:           rdb,
		Metrics:         m,
		Gatherer:        registry,
		UploadDir:       store.Dir(),
		UploadURLPrefix: store.URLPrefix(),
		Logger:          logger,
	})

	// 9. 孤儿文件清理任务
	sweeper := scheduler.NewSweeper(store, cfg.Storage.SweepMinAge, logger, repo.Assignment, repo.Submission)
	if cfg.Storage.SweepCron != "" {
		if err := sweeper.Start(cfg.Storage.SweepCron); err != nil {
			logger.Fatal("启动孤儿文件清理任务失败", zap.Error(err))
		}
	}

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute, // 上传接口请求体较大
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	sweeper.Stop()
	// 等待异步文件删除结束
	store.Wait()

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
