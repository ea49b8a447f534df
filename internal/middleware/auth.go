// Package middleware 提供 gin 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	"github.com/dumeirei/coupon-platform-backend/internal/common/jwt"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
)

// 上下文键
const (
	ContextKeyUserID = "user_id"
	ContextKeyClaims = "claims"
)

const (
	bearerPrefix    = "bearer "
	tokenCookieName = "token"
)

// requireToken 校验访问令牌并写入上下文，roles 为空时任意角色均可
func requireToken(manager *jwt.Manager, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			response.Unauthorized(c, "")
			c.Abort()
			return
		}

		claims, err := manager.ParseAccessToken(raw)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			response.Fail(c, apperrors.ErrTokenExpired)
			c.Abort()
			return
		case err != nil:
			response.Fail(c, apperrors.ErrTokenInvalid)
			c.Abort()
			return
		}

		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			response.Forbidden(c, "")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// UserAuth 任意已登录用户，管理员也可访问
func UserAuth(manager *jwt.Manager) gin.HandlerFunc {
	return requireToken(manager)
}

// AdminAuth 仅管理员
func AdminAuth(manager *jwt.Manager) gin.HandlerFunc {
	return requireToken(manager, jwt.RoleAdmin)
}

// bearerToken 优先取 Authorization 头，其次取名为 token 的 Cookie
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
			return strings.TrimSpace(h[len(bearerPrefix):])
		}
		return ""
	}
	raw, _ := c.Cookie(tokenCookieName)
	return raw
}

// GetUserID 未登录时返回 0
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ContextKeyUserID)
}

// CurrentClaims 未经过认证中间件时返回 nil
func CurrentClaims(c *gin.Context) *jwt.Claims {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*jwt.Claims)
	return claims
}
