package database

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
)

func sqliteConfig(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	return &config.DatabaseConfig{
		Driver:       DriverSQLite,
		Name:         filepath.Join(t.TempDir(), "coupon.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 4,
	}
}

func openSQLite(t *testing.T, cfg *config.DatabaseConfig, log *zap.Logger) *gorm.DB {
	t.Helper()
	conn, err := Open(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(conn) })
	return conn
}

func TestOpen_SQLite(t *testing.T) {
	conn := openSQLite(t, sqliteConfig(t), nil)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"}, nil)
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

func TestOpen_TranslatesDuplicateKey(t *testing.T) {
	conn := openSQLite(t, sqliteConfig(t), nil)

	type redemption struct {
		ID       int64
		CouponID int64 `gorm:"uniqueIndex:idx_redemption"`
		UserID   int64 `gorm:"uniqueIndex:idx_redemption"`
	}
	require.NoError(t, Migrate(conn, DriverSQLite, &redemption{}))

	require.NoError(t, conn.Create(&redemption{CouponID: 1, UserID: 2}).Error)
	assert.ErrorIs(t, conn.Create(&redemption{CouponID: 1, UserID: 2}).Error, gorm.ErrDuplicatedKey)
	assert.NoError(t, conn.Create(&redemption{CouponID: 1, UserID: 3}).Error)
}

func TestOpen_LogsThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := sqliteConfig(t)
	cfg.LogMode = true
	conn := openSQLite(t, cfg, zap.New(core))

	require.NoError(t, conn.Exec("SELECT 1").Error)

	require.NotZero(t, logs.Len())
	entry := logs.All()[logs.Len()-1]
	assert.Equal(t, "gorm", entry.LoggerName)
	assert.Contains(t, entry.Message, "SELECT 1")
}

func TestOpen_SlowQueryOnlyWhenQuiet(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := sqliteConfig(t)
	cfg.SlowThreshold = time.Hour
	conn := openSQLite(t, cfg, zap.New(core))

	require.NoError(t, conn.Exec("SELECT 1").Error)
	assert.Zero(t, logs.Len())
}

func TestClose(t *testing.T) {
	conn, err := Open(sqliteConfig(t), nil)
	require.NoError(t, err)
	require.NoError(t, Close(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var ups, downs int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)

	content, err := fs.ReadFile(migrationsFS, "migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	schema := string(content)
	assert.Contains(t, schema, "usage_count >= 0 AND usage_count <= max_uses")
	assert.Contains(t, schema, "idx_coupons_name ON coupons (name)")
	assert.Contains(t, schema, "idx_coupon_usages_coupon_user ON coupon_usages (coupon_id, user_id)")
}
