// Package handler gin 处理函数共用的错误输出与参数解析
package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/errors"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/response"
	"github.com/dumeirei/coupon-platform-backend/internal/common/utils"
	"github.com/dumeirei/coupon-platform-backend/internal/common/validation"
	"github.com/dumeirei/coupon-platform-backend/internal/middleware"
)

// HandleError 写出错误响应并返回 true，err 为 nil 时什么也不做
//
//	if handler.HandleError(c, err) {
//	    return
//	}
//
// 非 AppError 一律按内部错误输出，原始错误只进日志
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	appErr := errors.From(err)
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		logger.Error("handler failed",
			logger.Method(c.Request.Method),
			logger.Path(c.FullPath()),
			logger.RequestID(middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}
	response.Fail(c, appErr)
	return true
}

// MustSucceed err 为 nil 时输出 data
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if !HandleError(c, err) {
		response.Success(c, data)
	}
}

// MustSucceedWithMessage 同 MustSucceed，成功提示自定义
func MustSucceedWithMessage(c *gin.Context, err error, message string, data interface{}) {
	if !HandleError(c, err) {
		response.SuccessWithMessage(c, message, data)
	}
}

// MustSucceedPage 分页版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, page, pageSize int) {
	if !HandleError(c, err) {
		response.SuccessPage(c, list, total, page, pageSize)
	}
}

// RequireUserID 未登录时已写出 401
func RequireUserID(c *gin.Context) (int64, bool) {
	if id := middleware.GetUserID(c); id > 0 {
		return id, true
	}
	response.Unauthorized(c, "")
	return 0, false
}

// ParseID 解析路径参数 :id，resource 用于拼接提示，如 "优惠券"
func ParseID(c *gin.Context, resource string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, errors.ErrInvalidID.WithMessage(fmt.Sprintf("无效的%sID", resource)))
		return 0, false
	}
	return id, true
}

// ParseQueryBool 参数缺省时返回 nil，格式错误时已写出 400
func ParseQueryBool(c *gin.Context, name string) (*bool, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("参数 %s 必须是布尔值", name))
		return nil, false
	}
	return &v, true
}

// BindJSON 绑定失败时已写出 400，提示只包含第一个失败字段
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.BadRequest(c, validation.Describe(err))
		return false
	}
	return true
}

// BindPagination 读取 page、page_size，无法解析的值按缺省处理
func BindPagination(c *gin.Context) utils.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return utils.NewPagination(page, size)
}
