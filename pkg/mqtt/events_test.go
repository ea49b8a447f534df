package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topic   string
	payload interface{}
	err     error
}

func (p *recordingPublisher) PublishWithContext(_ context.Context, topic string, payload interface{}) error {
	p.topic = topic
	p.payload = payload
	return p.err
}

func TestEventPublisher_Topic(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		event  string
		want   string
	}{
		{"带斜杠前缀", "coupon-platform/", EventCouponRedeemed, "coupon-platform/coupon/redeemed"},
		{"不带斜杠前缀", "coupon-platform", EventCouponAssigned, "coupon-platform/coupon/assigned"},
		{"无前缀", "", EventCouponRedeemed, "coupon/redeemed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEventPublisher(&recordingPublisher{}, tt.prefix)
			assert.Equal(t, tt.want, p.Topic(tt.event))
		})
	}
}

func TestEventPublisher_PublishCouponEvent(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewEventPublisher(rec, "coupon-platform/")

	event := &CouponEvent{
		EventID:    "evt-1",
		Event:      EventCouponRedeemed,
		CouponID:   7,
		CouponName: "SAVE10",
		CouponKind: "general",
		UserID:     42,
		OccurredAt: time.Now(),
	}
	require.NoError(t, p.PublishCouponEvent(context.Background(), event))
	assert.Equal(t, "coupon-platform/coupon/redeemed", rec.topic)
	assert.Same(t, event, rec.payload)

	rec.err = errors.New("broker down")
	assert.Error(t, p.PublishCouponEvent(context.Background(), event))
}

func TestEncodePayload(t *testing.T) {
	data, err := encodePayload("plain")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), data)

	data, err = encodePayload([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	data, err = encodePayload(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	_, err = encodePayload(make(chan int))
	assert.Error(t, err)
}

func TestClient_Options(t *testing.T) {
	c := NewClient(&Config{
		Broker:         "tcp://broker:1883",
		ClientID:       "coupon-platform-1",
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 5 * time.Second,
		QoS:            1,
		StatusTopic:    "coupon-platform/status",
	}, nil)

	opts := c.options()
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.Equal(t, "coupon-platform-1", opts.ClientID)
	assert.Equal(t, int64(30), opts.KeepAlive)
	assert.Equal(t, 5*time.Second, opts.ConnectTimeout)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "coupon-platform/status", opts.WillTopic)
	assert.Equal(t, []byte("offline"), opts.WillPayload)
	assert.True(t, opts.WillRetained)
	assert.Equal(t, 5*time.Second, c.connectWait())

	assert.Equal(t, 30*time.Second, NewClient(&Config{}, nil).connectWait())
}

func TestClient_PublishNotConnected(t *testing.T) {
	c := NewClient(&Config{Broker: "tcp://localhost:1883"}, nil)
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.PublishWithContext(context.Background(), "t", "x"), ErrNotConnected)
	c.Disconnect()
}
