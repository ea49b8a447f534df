package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
)

// 首次计数时设置过期，计数与过期在同一脚本内执行
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// fixedWindow 按键计数的固定窗口限流
type fixedWindow struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	key     func(*gin.Context) string
	message string
}

// hit 返回窗口内的计数与剩余时间
func (w *fixedWindow) hit(c *gin.Context) (int64, time.Duration, error) {
	res, err := fixedWindowScript.Run(c.Request.Context(), w.client,
		[]string{w.key(c)}, w.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

func (w *fixedWindow) handle(c *gin.Context) {
	count, ttl, err := w.hit(c)
	if err != nil {
		// Redis 故障时放行
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(w.limit))
	remaining := int64(w.limit) - count
	if remaining < 0 {
		secs := int(ttl.Round(time.Second) / time.Second)
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
		response.TooManyRequests(c, w.message)
		c.Abort()
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	c.Next()
}

func newLimiter(client *redis.Client, perMinute int, key func(*gin.Context) string, message string) gin.HandlerFunc {
	if client == nil || perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	w := &fixedWindow{client: client, limit: perMinute, window: time.Minute, key: key, message: message}
	return w.handle
}

// LoginRateLimit 按客户端 IP 计数，client 为 nil 或 perMinute 不为正时不限流
func LoginRateLimit(client *redis.Client, perMinute int) gin.HandlerFunc {
	return newLimiter(client, perMinute, func(c *gin.Context) string {
		return "ratelimit:login:" + c.ClientIP()
	}, "登录尝试过于频繁，请稍后再试")
}

// RedeemRateLimit 已登录时按用户计数，否则退回 IP，应挂在 UserAuth 之后
func RedeemRateLimit(client *redis.Client, perMinute int) gin.HandlerFunc {
	return newLimiter(client, perMinute, func(c *gin.Context) string {
		if id := GetUserID(c); id > 0 {
			return "ratelimit:redeem:user:" + strconv.FormatInt(id, 10)
		}
		return "ratelimit:redeem:ip:" + c.ClientIP()
	}, "核销过于频繁，请稍后再试")
}
