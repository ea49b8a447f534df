//go:build integration

package integration

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/coupon-platform-backend/internal/common/cache"
	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/common/database"
)

const (
	postgresImage = "postgres:16-alpine"
	redisImage    = "redis:7-alpine"
)

// hostPort 容器对外映射的地址
func hostPort(t *testing.T, ctr testcontainers.Container, port string) (string, int) {
	t.Helper()
	ctx := context.Background()

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	mapped, err := ctr.MappedPort(ctx, port)
	require.NoError(t, err)
	n, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)
	return host, n
}

// startPostgres 启动容器并走与线上一致的 Open 与版本化迁移
func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:        database.DriverPostgres,
		User:          "coupon",
		Password:      "coupon_password",
		Name:          "coupon_platform_it",
		SSLMode:       "disable",
		Timezone:      "UTC",
		MaxIdleConns:  5,
		MaxOpenConns:  30,
		SlowThreshold: time.Second,
	}

	ctr, err := tcpostgres.Run(context.Background(), postgresImage,
		tcpostgres.WithDatabase(cfg.Name),
		tcpostgres.WithUsername(cfg.User),
		tcpostgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	cfg.Host, cfg.Port = hostPort(t, ctr, "5432/tcp")

	db, err := database.Open(&cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.Migrate(db, cfg.Driver))
	return db
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctr, err := tcredis.Run(context.Background(), redisImage)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	cfg := config.RedisConfig{Enabled: true, PoolSize: 20, DialTimeout: 5 * time.Second}
	cfg.Host, cfg.Port = hostPort(t, ctr, "6379/tcp")

	client, err := cache.Init(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
