// Package marketing 提供优惠券发放与核销服务
package marketing

import "errors"

// 优惠券模块错误定义
var (
	// 创建
	ErrValidation     = errors.New("参数校验失败")
	ErrDuplicateName  = errors.New("优惠券名称已存在")
	ErrInvalidExpiry  = errors.New("过期时间必须晚于当前时间")
	ErrUnknownUser    = errors.New("指定的用户不存在")
	ErrInvalidMaxUses = errors.New("最大使用次数超出允许范围")

	// 查询
	ErrCouponNotFound = errors.New("优惠券不存在")
	ErrUserNotFound   = errors.New("用户不存在")

	// 核销
	ErrCouponInactive     = errors.New("优惠券未启用")
	ErrCouponExpired      = errors.New("优惠券已过期")
	ErrCouponUnauthorized = errors.New("无权使用该优惠券")
	ErrCouponLimitReached = errors.New("优惠券使用次数已达上限")
	ErrCouponAlreadyUsed  = errors.New("已使用过该优惠券")
	ErrConflict           = errors.New("优惠券状态已变化")
	ErrUserDisabled       = errors.New("账号已被禁用")
)
