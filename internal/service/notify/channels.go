package notify

import (
	"context"

	"github.com/dumeirei/coupon-platform-backend/pkg/mailer"
	"github.com/dumeirei/coupon-platform-backend/pkg/mqtt"
	"github.com/dumeirei/coupon-platform-backend/pkg/sms"
)

// Channel 投递渠道
type Channel interface {
	Name() string
	Accepts(n *Notification) bool
	Deliver(ctx context.Context, n *Notification) error
}

// EmailChannel 邮件渠道
type EmailChannel struct {
	sender mailer.Sender
}

// NewEmailChannel 创建邮件渠道
func NewEmailChannel(sender mailer.Sender) *EmailChannel {
	return &EmailChannel{sender: sender}
}

// Name 渠道名
func (c *EmailChannel) Name() string { return "email" }

// Accepts 有邮箱才投递
func (c *EmailChannel) Accepts(n *Notification) bool { return n.Email != "" }

// Deliver 发送邮件
func (c *EmailChannel) Deliver(ctx context.Context, n *Notification) error {
	return c.sender.Send(ctx, &mailer.Message{
		To:      n.Email,
		ToName:  n.Name,
		Subject: n.Subject(),
		HTML:    n.HTML(),
	})
}

// SMSChannel 短信渠道
type SMSChannel struct {
	sender sms.Sender
}

// NewSMSChannel 创建短信渠道
func NewSMSChannel(sender sms.Sender) *SMSChannel {
	return &SMSChannel{sender: sender}
}

// Name 渠道名
func (c *SMSChannel) Name() string { return "sms" }

// Accepts 有手机号才投递
func (c *SMSChannel) Accepts(n *Notification) bool { return n.Phone != "" }

// Deliver 发送短信
func (c *SMSChannel) Deliver(ctx context.Context, n *Notification) error {
	template := sms.TemplateCouponAssigned
	if n.Event == EventCouponRedeemed {
		template = sms.TemplateCouponRedeemed
	}
	return c.sender.Send(ctx, n.Phone, template, map[string]string{
		"name":   n.Name,
		"coupon": n.Coupon.Name,
		"expiry": n.Coupon.ExpiryDate.Format("2006-01-02"),
	})
}

// EventPublisher 事件发布接口
type EventPublisher interface {
	PublishCouponEvent(ctx context.Context, event *mqtt.CouponEvent) error
}

// EventChannel MQTT 事件渠道，所有通知都会转为事件发布
type EventChannel struct {
	publisher EventPublisher
}

// NewEventChannel 创建事件渠道
func NewEventChannel(publisher EventPublisher) *EventChannel {
	return &EventChannel{publisher: publisher}
}

// Name 渠道名
func (c *EventChannel) Name() string { return "mqtt" }

// Accepts 始终投递
func (c *EventChannel) Accepts(*Notification) bool { return true }

// Deliver 发布优惠券事件
func (c *EventChannel) Deliver(ctx context.Context, n *Notification) error {
	return c.publisher.PublishCouponEvent(ctx, &mqtt.CouponEvent{
		EventID:    n.ID,
		Event:      n.Event,
		CouponID:   n.Coupon.ID,
		CouponName: n.Coupon.Name,
		CouponKind: n.Coupon.Kind,
		UserID:     n.UserID,
		OccurredAt: n.CreatedAt,
	})
}
