package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	applog "github.com/dumeirei/coupon-platform-backend/internal/common/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate 同步表结构：postgres 执行版本化 SQL 迁移，sqlite 用于本地与测试，直接 AutoMigrate
func Migrate(conn *gorm.DB, driver string, models ...interface{}) error {
	if driver == DriverSQLite {
		return conn.AutoMigrate(models...)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return RunMigrations(sqlDB)
}

// RunMigrations 执行数据库迁移
// 自动检测当前版本并应用所有未执行的迁移
func RunMigrations(sqlDB *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, dirty, _ := m.Version()
	if dirty {
		applog.Warn("数据库迁移处于 dirty 状态", zap.Uint("version", version))
	} else {
		applog.Info("数据库迁移完成", zap.Uint("version", version))
	}
	return nil
}
