package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"gorm.io/gorm"
)

const readyTimeout = 3 * time.Second

// 依赖检查结果
const (
	checkOK       = "ok"
	checkDisabled = "disabled"
)

// HealthResponse /health 与 /ready 的响应体
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// probe 返回 nil 表示依赖可用
type probe func(ctx context.Context) error

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now().Unix()})
}

func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// readyHandler 并行探测数据库与 Redis，redisClient 为 nil 时 Redis 记为 disabled
func readyHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	probes := map[string]probe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		checks := runProbes(ctx, probes)
		if redisClient == nil {
			checks["redis"] = checkDisabled
		}

		resp := HealthResponse{Status: "ready", Timestamp: time.Now().Unix(), Checks: checks}
		for _, result := range checks {
			if result != checkOK && result != checkDisabled {
				resp.Status = "not ready"
				c.JSON(http.StatusServiceUnavailable, resp)
				return
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func runProbes(ctx context.Context, probes map[string]probe) map[string]string {
	var (
		mu      sync.Mutex
		wg      conc.WaitGroup
		results = make(map[string]string, len(probes)+1)
	)
	for name, p := range probes {
		wg.Go(func() {
			result := checkOK
			if err := p(ctx); err != nil {
				result = "error: " + err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		})
	}
	wg.Wait()
	return results
}
