// Package errors 业务错误码登记表，响应中的 code 与 HTTP 状态均取自这里
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError 携带业务码的错误，登记表中的实例只读，定制时先复制
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is 只比较业务码，派生出的副本仍能与登记表中的实例匹配
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// HTTPStatus 未设置状态时按 500 处理
func (e *AppError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// New 登记一个错误码
func New(code, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

func (e *AppError) clone() *AppError {
	c := *e
	return &c
}

// WithMessage 返回替换了提示语的副本
func (e *AppError) WithMessage(message string) *AppError {
	c := e.clone()
	c.Message = message
	return c
}

// WithError 返回附带原始错误的副本，原始错误只用于日志
func (e *AppError) WithError(err error) *AppError {
	c := e.clone()
	c.Err = err
	return c
}

// From 取出错误链中的 AppError，取不到时归为内部错误
func From(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithError(err)
}

// 通用错误码 (1000-1999)
var (
	ErrInvalidParams   = New(1001, http.StatusBadRequest, "参数错误")
	ErrInternalServer  = New(1002, http.StatusInternalServerError, "服务器内部错误")
	ErrNotFound        = New(1003, http.StatusNotFound, "资源不存在")
	ErrDatabaseError   = New(1005, http.StatusInternalServerError, "数据库错误")
	ErrRateLimitExceed = New(1007, http.StatusTooManyRequests, "请求过于频繁")
	ErrInvalidID       = New(1008, http.StatusBadRequest, "无效的ID")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, http.StatusUnauthorized, "未登录")
	ErrTokenExpired     = New(2001, http.StatusUnauthorized, "登录已过期")
	ErrTokenInvalid     = New(2002, http.StatusUnauthorized, "无效的令牌")
	ErrTokenRefreshFail = New(2003, http.StatusUnauthorized, "刷新令牌失败")
	ErrPermissionDenied = New(2004, http.StatusForbidden, "权限不足")
	ErrAccountDisabled  = New(2005, http.StatusForbidden, "账号已禁用")
	ErrPasswordError    = New(2006, http.StatusUnauthorized, "邮箱或密码错误")
)

// 用户错误码 (3000-3999)
var (
	ErrUserNotFound      = New(3001, http.StatusNotFound, "用户不存在")
	ErrEmailExists       = New(3002, http.StatusConflict, "邮箱已被使用")
	ErrCannotDeleteAdmin = New(3003, http.StatusForbidden, "管理员账号不可删除")
	ErrCannotDisableSelf = New(3004, http.StatusBadRequest, "不能禁用当前登录账号")
)

// 优惠券错误码 (9000-9999)
var (
	ErrCouponNotFound       = New(9001, http.StatusNotFound, "优惠券不存在")
	ErrCouponExpired        = New(9002, http.StatusGone, "优惠券已过期")
	ErrCouponLimitReached   = New(9003, http.StatusConflict, "优惠券使用次数已达上限")
	ErrCouponAlreadyUsed    = New(9004, http.StatusConflict, "您已使用过该优惠券")
	ErrCouponDuplicateName  = New(9010, http.StatusConflict, "优惠券名称已存在")
	ErrCouponUnknownUser    = New(9011, http.StatusBadRequest, "指定的用户不存在")
	ErrCouponInvalidExpiry  = New(9012, http.StatusBadRequest, "过期时间必须晚于当前时间")
	ErrCouponInvalidMaxUses = New(9013, http.StatusBadRequest, "最大使用次数必须大于等于1")
	ErrCouponInactive       = New(9014, http.StatusConflict, "优惠券未启用")
	ErrCouponUnauthorized   = New(9015, http.StatusForbidden, "您无权使用该优惠券")
	ErrCouponConflict       = New(9016, http.StatusConflict, "优惠券状态已变化，请刷新后重试")
)
