// Package main 旧系统优惠券数据导入工具
//
// 用法：coupon-import --file coupons.json [--dry-run] [--config configs/config.yaml]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/common/database"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/models"
	"github.com/dumeirei/coupon-platform-backend/internal/repository"
	marketingService "github.com/dumeirei/coupon-platform-backend/internal/service/marketing"
)

func main() {
	var (
		configPath string
		filePath   string
		dryRun     bool
	)
	pflag.StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "配置文件路径")
	pflag.StringVarP(&filePath, "file", "f", "", "旧系统导出的 JSON 文件")
	pflag.BoolVar(&dryRun, "dry-run", false, "只解析不写库")
	pflag.Parse()

	if filePath == "" {
		fmt.Fprintln(os.Stderr, "missing --file")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open import file", zap.String("file", filePath), zap.Error(err))
	}
	coupons, err := marketingService.DecodeLegacyCoupons(f)
	f.Close()
	if err != nil {
		log.Fatal("Failed to decode import file", zap.Error(err))
	}
	log.Info("Import file decoded", zap.Int("coupons", len(coupons)))
	if dryRun {
		return
	}

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, cfg.Database.Driver, models.All()...); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	defer func() { _ = database.Close(db) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 导入不发送通知，也不使用统计缓存
	svc := marketingService.NewCouponService(
		db,
		repository.NewCouponRepository(db),
		repository.NewCouponUsageRepository(db),
		repository.NewUserRepository(db),
		nil,
		nil,
	)
	result, err := svc.ImportLegacy(ctx, coupons)
	if err != nil {
		log.Fatal("Import failed", zap.Error(err))
	}

	for _, msg := range result.Messages {
		log.Warn("Coupon skipped", zap.String("detail", msg))
	}
	log.Info("Import finished",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
}
