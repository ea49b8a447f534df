// Package database gorm 连接，支持 postgres 与 sqlite
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
)

// 支持的驱动
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const pingTimeout = 5 * time.Second

// Open 建立连接、设置连接池并探活。
// 唯一索引冲突统一转换为 gorm.ErrDuplicatedKey，仓储层据此识别重复核销
func Open(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(cfg, log),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              cfg.Driver != DriverSQLite,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Driver == DriverSQLite {
		// sqlite 单写，多连接会出现 database is locked
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return conn, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return postgres.Open(cfg.DSN()), nil
	case DriverSQLite:
		return sqlite.Open(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// zapWriter 把 gorm 日志转到 zap
type zapWriter struct {
	sugar *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.sugar.Infof(format, args...)
}

func newGormLogger(cfg *config.DatabaseConfig, log *zap.Logger) gormlogger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	level := gormlogger.Warn
	if cfg.LogMode {
		level = gormlogger.Info
	}
	return gormlogger.New(zapWriter{sugar: log.Named("gorm").Sugar()}, gormlogger.Config{
		SlowThreshold:             cfg.SlowThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Close 关闭底层连接池
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
