package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/coupon-platform-backend/pkg/mailer"
	"github.com/dumeirei/coupon-platform-backend/pkg/mqtt"
	"github.com/dumeirei/coupon-platform-backend/pkg/sms"
)

// fakeChannel 可控失败次数的测试渠道
type fakeChannel struct {
	name     string
	failures int32
	accept   func(n *Notification) bool

	calls int32
	mu    sync.Mutex
	got   []*Notification
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Accepts(n *Notification) bool {
	if c.accept == nil {
		return true
	}
	return c.accept(n)
}

func (c *fakeChannel) Deliver(_ context.Context, n *Notification) error {
	call := atomic.AddInt32(&c.calls, 1)
	if call <= atomic.LoadInt32(&c.failures) {
		return errors.New("temporary failure")
	}
	c.mu.Lock()
	c.got = append(c.got, n)
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func testOptions() Options {
	return Options{
		Workers:      2,
		QueueSize:    16,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}
}

func sampleNotification(event string) *Notification {
	return &Notification{
		Event:  event,
		UserID: 1,
		Name:   "Alice",
		Email:  "alice@example.com",
		Coupon: CouponInfo{ID: 10, Name: "SAVE10", Kind: "general", MaxUses: 2, ExpiryDate: time.Now().Add(time.Hour)},
	}
}

func TestDispatcher_Deliver(t *testing.T) {
	ch := &fakeChannel{name: "fake"}
	d := NewDispatcher(testOptions(), ch)
	d.Start(context.Background())
	defer d.Stop()

	n := sampleNotification(EventCouponRedeemed)
	d.Notify(n)

	assert.Eventually(t, func() bool { return ch.delivered() == 1 }, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestDispatcher_Retry(t *testing.T) {
	t.Run("失败后重试成功", func(t *testing.T) {
		ch := &fakeChannel{name: "flaky", failures: 2}
		d := NewDispatcher(testOptions(), ch)
		d.Start(context.Background())
		d.Notify(sampleNotification(EventCouponAssigned))
		d.Stop()

		assert.Equal(t, 1, ch.delivered())
		assert.Equal(t, int32(3), atomic.LoadInt32(&ch.calls))
	})

	t.Run("超过重试次数后放弃", func(t *testing.T) {
		ch := &fakeChannel{name: "broken", failures: 100}
		d := NewDispatcher(testOptions(), ch)
		d.Start(context.Background())
		d.Notify(sampleNotification(EventCouponAssigned))
		d.Stop()

		assert.Equal(t, 0, ch.delivered())
		// 首次 + 3 次重试
		assert.Equal(t, int32(4), atomic.LoadInt32(&ch.calls))
	})
}

func TestDispatcher_ChannelFilter(t *testing.T) {
	emailOnly := &fakeChannel{name: "email", accept: func(n *Notification) bool { return n.Email != "" }}
	phoneOnly := &fakeChannel{name: "sms", accept: func(n *Notification) bool { return n.Phone != "" }}

	d := NewDispatcher(testOptions(), emailOnly, phoneOnly)
	d.Start(context.Background())
	d.Notify(sampleNotification(EventCouponRedeemed))
	d.Stop()

	assert.Equal(t, 1, emailOnly.delivered())
	assert.Equal(t, 0, phoneOnly.delivered())
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	ch := &fakeChannel{name: "fake"}
	d := NewDispatcher(testOptions(), ch)

	// 未启动时入队，启动后立即停止仍应投递完毕
	for i := 0; i < 5; i++ {
		d.Notify(sampleNotification(EventCouponAssigned))
	}
	d.Start(context.Background())
	d.Stop()

	assert.Equal(t, 5, ch.delivered())
}

func TestDispatcher_QueueFull(t *testing.T) {
	ch := &fakeChannel{name: "fake"}
	opts := testOptions()
	opts.QueueSize = 1
	d := NewDispatcher(opts, ch)

	assert.NotPanics(t, func() {
		d.Notify(sampleNotification(EventCouponAssigned))
		d.Notify(sampleNotification(EventCouponAssigned))
		d.Notify(nil)
	})

	d.Start(context.Background())
	d.Stop()
	assert.Equal(t, 1, ch.delivered())
}

func TestDispatcher_StartStopIdempotent(t *testing.T) {
	d := NewDispatcher(testOptions())
	d.Stop()
	d.Start(context.Background())
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}

func TestDispatcher_RedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ch := &fakeChannel{name: "fake"}
	opts := testOptions()
	opts.Redis = client
	opts.RedisQueue = "notify:test"

	d := NewDispatcher(opts, ch)

	// 启动前只进内存队列，不访问 Redis
	d.Notify(sampleNotification(EventCouponRedeemed))
	assert.False(t, mr.Exists("notify:test"))

	d.Start(context.Background())
	assert.Eventually(t, func() bool { return ch.delivered() == 1 }, 3*time.Second, 10*time.Millisecond)
	d.Stop()

	got := ch.got[0]
	assert.Equal(t, "SAVE10", got.Coupon.Name)
	assert.Equal(t, EventCouponRedeemed, got.Event)
	length, err := client.LLen(context.Background(), "notify:test").Result()
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestDispatcher_RedisQueue_ConsumesExisting(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	// 其他实例写入的通知
	payload, err := json.Marshal(sampleNotification(EventCouponAssigned))
	require.NoError(t, err)
	_, err = mr.Lpush("notify:test", string(payload))
	require.NoError(t, err)

	ch := &fakeChannel{name: "fake"}
	opts := testOptions()
	opts.Redis = client
	opts.RedisQueue = "notify:test"
	d := NewDispatcher(opts, ch)
	d.Start(context.Background())
	defer d.Stop()

	assert.Eventually(t, func() bool { return ch.delivered() == 1 }, 3*time.Second, 10*time.Millisecond)
}

// silentRedis 接受连接但从不应答
func silentRedis(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestDispatcher_UnresponsiveRedisDoesNotBlockNotify(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:                  silentRedis(t),
		MaxRetries:            -1,
		DialTimeout:           100 * time.Millisecond,
		ReadTimeout:           100 * time.Millisecond,
		WriteTimeout:          100 * time.Millisecond,
		ContextTimeoutEnabled: true,
	})
	defer client.Close()

	ch := &fakeChannel{name: "fake"}
	opts := testOptions()
	opts.Redis = client
	opts.EnqueueTimeout = 50 * time.Millisecond
	d := NewDispatcher(opts, ch)
	d.Start(context.Background())

	start := time.Now()
	for range 3 {
		d.Notify(sampleNotification(EventCouponAssigned))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "Notify 不应等待 Redis")

	// 写入 Redis 失败后在本进程投递
	assert.Eventually(t, func() bool { return ch.delivered() == 3 }, 3*time.Second, 10*time.Millisecond)
	d.Stop()
}

// ==================== 渠道测试 ====================

func TestEmailChannel(t *testing.T) {
	sender := mailer.NewMockSender()
	ch := NewEmailChannel(sender)

	n := sampleNotification(EventCouponAssigned)
	assert.True(t, ch.Accepts(n))
	assert.False(t, ch.Accepts(&Notification{}))

	require.NoError(t, ch.Deliver(context.Background(), n))
	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, "SAVE10")
	assert.Contains(t, sent[0].HTML, "Alice")
}

func TestSMSChannel(t *testing.T) {
	sender := sms.NewMockSender()
	ch := NewSMSChannel(sender)

	n := sampleNotification(EventCouponRedeemed)
	assert.False(t, ch.Accepts(n))

	n.Phone = "+8613800138000"
	assert.True(t, ch.Accepts(n))
	require.NoError(t, ch.Deliver(context.Background(), n))

	msg := sender.GetLastMessage()
	require.NotNil(t, msg)
	assert.Equal(t, sms.TemplateCouponRedeemed, msg.TemplateKey)
	assert.Equal(t, "SAVE10", msg.Params["coupon"])
}

type fakePublisher struct {
	events []*mqtt.CouponEvent
}

func (p *fakePublisher) PublishCouponEvent(_ context.Context, e *mqtt.CouponEvent) error {
	p.events = append(p.events, e)
	return nil
}

func TestEventChannel(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewEventChannel(pub)

	n := sampleNotification(EventCouponRedeemed)
	n.ID = "n-1"
	assert.True(t, ch.Accepts(&Notification{}))
	require.NoError(t, ch.Deliver(context.Background(), n))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "n-1", pub.events[0].EventID)
	assert.Equal(t, mqtt.EventCouponRedeemed, pub.events[0].Event)
	assert.Equal(t, int64(10), pub.events[0].CouponID)
}

func TestNotification_Text(t *testing.T) {
	n := sampleNotification(EventCouponAssigned)
	n.Name = "<script>"
	assert.Contains(t, n.Subject(), "SAVE10")
	assert.NotContains(t, n.HTML(), "<script>")

	n.Event = "other"
	assert.Equal(t, "优惠券通知", n.Subject())
}

func TestMaskedRecipient(t *testing.T) {
	n := &Notification{Email: "alice@example.com", Phone: "13812345678"}

	assert.Equal(t, "a***@example.com", maskedRecipient("email", n))
	assert.Equal(t, "138****5678", maskedRecipient("sms", n))
	assert.Empty(t, maskedRecipient("mqtt", n))
}
