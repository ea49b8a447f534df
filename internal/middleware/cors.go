package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
)

// corsPolicy 启动时预先拼好的响应头
type corsPolicy struct {
	wildcard    bool
	origins     []string
	credentials bool
	headers     map[string]string
}

func newCORSPolicy(cfg *config.CORSConfig) *corsPolicy {
	p := &corsPolicy{
		wildcard:    slices.Contains(cfg.AllowedOrigins, "*"),
		origins:     cfg.AllowedOrigins,
		credentials: cfg.AllowCredentials,
		headers: map[string]string{
			"Access-Control-Allow-Methods": strings.Join(cfg.AllowedMethods, ", "),
			"Access-Control-Allow-Headers": strings.Join(cfg.AllowedHeaders, ", "),
		},
	}
	if len(cfg.ExposedHeaders) > 0 {
		p.headers["Access-Control-Expose-Headers"] = strings.Join(cfg.ExposedHeaders, ", ")
	}
	if cfg.AllowCredentials {
		p.headers["Access-Control-Allow-Credentials"] = "true"
	}
	if cfg.MaxAge > 0 {
		p.headers["Access-Control-Max-Age"] = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

// allowOrigin 返回应写入的 Allow-Origin，空串表示不放行
// 携带凭证时浏览器不接受 *，需回显具体来源
func (p *corsPolicy) allowOrigin(origin string) string {
	switch {
	case p.wildcard && p.credentials && origin != "":
		return origin
	case p.wildcard:
		return "*"
	case origin != "" && slices.Contains(p.origins, origin):
		return origin
	default:
		return ""
	}
}

// CORS 管理后台跨域访问，预检请求直接返回 204
func CORS(cfg *config.CORSConfig) gin.HandlerFunc {
	policy := newCORSPolicy(cfg)

	return func(c *gin.Context) {
		if origin := policy.allowOrigin(c.GetHeader("Origin")); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			for k, v := range policy.headers {
				c.Header(k, v)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
