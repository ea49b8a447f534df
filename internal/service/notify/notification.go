// Package notify 提供优惠券通知的异步投递
package notify

import (
	"fmt"
	"html"
	"time"
)

// 通知事件
const (
	EventCouponAssigned = "coupon.assigned"
	EventCouponRedeemed = "coupon.redeemed"
)

// CouponInfo 通知中携带的优惠券快照
type CouponInfo struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	UsageCount int       `json:"usage_count"`
	MaxUses    int       `json:"max_uses"`
	IsActive   bool      `json:"is_active"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// Notification 一条待投递的通知
type Notification struct {
	ID        string     `json:"id"`
	Event     string     `json:"event"`
	UserID    int64      `json:"user_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Coupon    CouponInfo `json:"coupon"`
	CreatedAt time.Time  `json:"created_at"`
}

// Subject 邮件标题
func (n *Notification) Subject() string {
	switch n.Event {
	case EventCouponAssigned:
		return fmt.Sprintf("您获得了一张优惠券：%s", n.Coupon.Name)
	case EventCouponRedeemed:
		return fmt.Sprintf("优惠券 %s 已使用", n.Coupon.Name)
	default:
		return "优惠券通知"
	}
}

// HTML 邮件正文
func (n *Notification) HTML() string {
	name := html.EscapeString(n.Name)
	coupon := html.EscapeString(n.Coupon.Name)
	expiry := n.Coupon.ExpiryDate.Format("2006-01-02 15:04")

	switch n.Event {
	case EventCouponAssigned:
		return fmt.Sprintf("<p>%s，您好：</p><p>管理员为您分配了优惠券 <b>%s</b>，有效期至 %s。</p>", name, coupon, expiry)
	case EventCouponRedeemed:
		return fmt.Sprintf("<p>%s，您好：</p><p>您已成功使用优惠券 <b>%s</b>。</p>", name, coupon)
	default:
		return fmt.Sprintf("<p>%s，您好：</p><p>优惠券 <b>%s</b> 状态有更新。</p>", name, coupon)
	}
}
