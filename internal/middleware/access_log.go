package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
)

// 探活与监控接口不记访问日志
var defaultSkipPaths = []string{"/health", "/ping", "/ready", "/metrics"}

// AccessLogConfig 访问日志配置
type AccessLogConfig struct {
	Logger    *zap.Logger
	SkipPaths []string
	// SlowThreshold 超过该耗时的请求至少以 Warn 级别记录，0 表示不判断
	SlowThreshold time.Duration
}

// AccessLogWithConfig 按状态码与耗时分级记录每个请求
func AccessLogWithConfig(cfg AccessLogConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		// 路由模板便于聚合，/coupons/:id 不会因 ID 不同而分散
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			logger.RequestID(GetRequestID(c)),
			logger.Method(c.Request.Method),
			logger.Path(c.Request.URL.Path),
			zap.String("route", route),
			logger.StatusCode(status),
			logger.Latency(latency),
			logger.IP(c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if userID := GetUserID(c); userID > 0 {
			fields = append(fields, logger.UserID(userID))
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, zap.Strings("errors", errs.Errors()))
		}

		slow := cfg.SlowThreshold > 0 && latency >= cfg.SlowThreshold
		switch {
		case status >= 500:
			cfg.Logger.Error("request", fields...)
		case status >= 400 || slow:
			cfg.Logger.Warn("request", append(fields, zap.Bool("slow", slow))...)
		default:
			cfg.Logger.Info("request", fields...)
		}
	}
}

// AccessLog 使用默认跳过路径与 1 秒慢请求阈值
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return AccessLogWithConfig(AccessLogConfig{
		Logger:        log,
		SkipPaths:     defaultSkipPaths,
		SlowThreshold: time.Second,
	})
}
