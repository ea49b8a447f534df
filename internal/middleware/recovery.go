package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
)

// Recovery 捕获 panic，记录堆栈后返回统一的内部错误
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := []zap.Field{
				logger.RequestID(GetRequestID(c)),
				logger.Method(c.Request.Method),
				logger.Path(c.Request.URL.Path),
				logger.IP(c.ClientIP()),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			}
			if userID := GetUserID(c); userID > 0 {
				fields = append(fields, logger.UserID(userID))
			}
			log.Error("panic recovered", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Fail(c, apperrors.ErrInternalServer)
			c.Abort()
		}()

		c.Next()
	}
}
