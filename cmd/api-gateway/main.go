// Package main 优惠券平台 HTTP 服务
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/cache"
	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/common/database"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/tracing"
	"github.com/dumeirei/coupon-platform-backend/internal/common/validation"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/scheduler"
)

// version 构建时通过 -ldflags 注入
var version = "dev"

// @title Coupon Platform API
// @version 1.0
// @description 优惠券发放与核销平台
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("CONFIG_PATH"), "配置文件路径，为空时只用默认值与环境变量")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger.GetLogger())
	stop()
	if err != nil {
		logger.Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func ginMode(cfg *config.Config) string {
	switch {
	case cfg.IsProduction():
		return gin.ReleaseMode
	case cfg.Server.Mode == config.ModeTest:
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// run 阻塞到 ctx 取消，随后按启动的逆序释放资源
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting coupon platform", zap.String("version", version), zap.String("mode", cfg.Server.Mode))

	tracer, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, cfg.Database.Driver, models.All()...); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info("database ready", zap.String("driver", cfg.Database.Driver))

	// Redis 未启用时统计缓存、限流与 Redis 通知队列都会关闭
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		if redisClient, err = cache.Init(&cfg.Redis); err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info("redis ready", zap.String("addr", cfg.Redis.Addr()))
	} else {
		log.Warn("redis disabled")
	}

	validation.Register()
	gin.SetMode(ginMode(cfg))

	dispatcher, closeNotifier, err := setupNotifier(cfg, log, redisClient)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	defer closeNotifier()

	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()
	dispatcher.Start(bgCtx)

	engine := gin.New()
	couponSvc := setupRouter(engine, cfg, log, db, redisClient, dispatcher)

	sched := scheduler.NewScheduler(log)
	sched.Every(scheduler.JobCouponSweep, cfg.Marketing.SweepInterval, scheduler.SweepJob(couponSvc, log))
	sched.Start(bgCtx)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}

	// 先停巡检，再让分发器把队列中的通知投递完
	sched.Stop()
	stopBackground()
	dispatcher.Stop()

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}
