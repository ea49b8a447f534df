package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
)

const (
	// ContextKeyRequestID 请求 ID 在 gin 上下文中的键
	ContextKeyRequestID = "request_id"

	headerRequestID    = "X-Request-ID"
	maxRequestIDLength = 64
)

// RequestID 透传调用方的 X-Request-ID，缺失或不合法时生成新的 UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// validRequestID 只接受长度受限的可见 ASCII，避免日志注入
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetRequestID 获取请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// SecureHeaders 写入安全响应头，优惠券与用户数据不允许被中间代理缓存
func SecureHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}

// RequestSizeLimiter 拒绝声明长度超限的请求，并限制实际读取的字节数
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.BadRequest(c, fmt.Sprintf("请求体过大，最大允许 %d 字节", maxBytes))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
