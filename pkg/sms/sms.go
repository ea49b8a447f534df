// Package sms 按模板键发送短信，模板键到服务商模板编号的映射由配置决定
package sms

import "context"

// 模板键
const (
	TemplateCouponAssigned = "coupon_assigned"
	TemplateCouponRedeemed = "coupon_redeemed"
)

// Sender 短信发送
type Sender interface {
	Send(ctx context.Context, phone, templateKey string, params map[string]string) error
}
