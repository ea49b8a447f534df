package mqtt

import (
	"context"
	"strings"
	"time"
)

// 优惠券事件类型
const (
	EventCouponAssigned = "coupon.assigned"
	EventCouponRedeemed = "coupon.redeemed"
)

// CouponEvent 优惠券事件，供下游（测评报告生成等）订阅
type CouponEvent struct {
	EventID    string    `json:"event_id"`
	Event      string    `json:"event"`
	CouponID   int64     `json:"coupon_id"`
	CouponName string    `json:"coupon_name"`
	CouponKind string    `json:"coupon_kind"`
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 消息发布接口
type Publisher interface {
	PublishWithContext(ctx context.Context, topic string, payload interface{}) error
}

// EventPublisher 优惠券事件发布器
type EventPublisher struct {
	publisher   Publisher
	topicPrefix string
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(publisher Publisher, topicPrefix string) *EventPublisher {
	return &EventPublisher{publisher: publisher, topicPrefix: topicPrefix}
}

// Topic 事件对应的主题，例如 coupon-platform/coupon/redeemed
func (p *EventPublisher) Topic(event string) string {
	prefix := strings.TrimSuffix(p.topicPrefix, "/")
	name := strings.ReplaceAll(event, ".", "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// PublishCouponEvent 发布优惠券事件
func (p *EventPublisher) PublishCouponEvent(ctx context.Context, event *CouponEvent) error {
	return p.publisher.PublishWithContext(ctx, p.Topic(event.Event), event)
}
