// Package response 统一的 JSON 响应格式 {code, message, data}
// code 为 0 表示成功，其余取自 errors 包中的业务错误码
package response

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	apperrors "github.com/dumeirei/coupon-platform-backend/internal/common/errors"
)

// CodeOK 成功响应的业务码
const CodeOK = 0

// Response API 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, CodeOK, "success", data)
}

// SuccessWithMessage 成功响应，自定义提示
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, CodeOK, message, data)
}

// Created 资源创建成功
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, CodeOK, "created", data)
}

// SuccessPage 分页响应，list 为 nil 时输出空数组
func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	if list == nil {
		list = []struct{}{}
	}
	write(c, http.StatusOK, CodeOK, "success", PageData{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Fail 按应用错误输出，HTTP 状态与业务码都取自错误本身
func Fail(c *gin.Context, appErr *apperrors.AppError) {
	write(c, appErr.HTTPStatus(), appErr.Code, appErr.Message, nil)
}

// shorthand 绑定登记的错误码，message 为空时沿用默认提示
func shorthand(base *apperrors.AppError) func(*gin.Context, string) {
	return func(c *gin.Context, message string) {
		if message == "" {
			Fail(c, base)
			return
		}
		Fail(c, base.WithMessage(message))
	}
}

// 常用错误的快捷写法，message 传空串时使用默认提示
var (
	BadRequest      = shorthand(apperrors.ErrInvalidParams)
	Unauthorized    = shorthand(apperrors.ErrUnauthorized)
	Forbidden       = shorthand(apperrors.ErrPermissionDenied)
	NotFound        = shorthand(apperrors.ErrNotFound)
	TooManyRequests = shorthand(apperrors.ErrRateLimitExceed)
)

// Attachment 文件下载，文件名按 RFC 6266 同时给出 ASCII 与 UTF-8 形式
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s",
		filename, url.PathEscape(filename)))
	c.Data(http.StatusOK, contentType, data)
}
