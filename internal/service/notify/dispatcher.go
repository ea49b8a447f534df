package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/crypto"
	"github.com/dumeirei/coupon-platform-backend/internal/common/logger"
	"github.com/dumeirei/coupon-platform-backend/internal/common/metrics"
)

// Options 调度器参数
type Options struct {
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	// Redis 非空时使用 Redis 列表作为持久化队列
	Redis      *redis.Client
	RedisQueue string
	// EnqueueTimeout 单次写入 Redis 的上限，超时后改为本地投递
	EnqueueTimeout time.Duration
	// AttemptTimeout 单次投递超时
	AttemptTimeout time.Duration
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.RedisQueue == "" {
		o.RedisQueue = "notify:queue"
	}
	if o.EnqueueTimeout <= 0 {
		o.EnqueueTimeout = time.Second
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
}

// Dispatcher 通知调度器
// Notify 只负责内存入队；启用 Redis 时由后台转发到 Redis 列表再取出投递，失败只记录日志
type Dispatcher struct {
	opts     Options
	channels []Channel
	queue    chan *Notification
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher 创建通知调度器
func NewDispatcher(opts Options, channels ...Channel) *Dispatcher {
	opts.normalize()
	return &Dispatcher{
		opts:     opts,
		channels: channels,
		queue:    make(chan *Notification, opts.QueueSize),
		log:      logger.Named("notify"),
	}
}

// Start 启动后台投递
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.run(ctx)
	d.log.Info("notification dispatcher started",
		zap.Int("workers", d.opts.Workers),
		zap.Bool("redis_queue", d.opts.Redis != nil),
	)
}

// Stop 停止接收并等待已出队的通知投递完成
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done
	d.log.Info("notification dispatcher stopped")
}

// Notify 只做一次非阻塞的内存入队，Redis 写入由后台转发完成
func (d *Dispatcher) Notify(n *Notification) {
	if n == nil {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	select {
	case d.queue <- n:
	default:
		metrics.Notification("queue", "dropped")
		d.log.Error("notification queue full, dropped",
			logger.NotificationID(n.ID),
			zap.String("event", n.Event),
			logger.UserID(n.UserID),
		)
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	p := pool.New().WithMaxGoroutines(d.opts.Workers)
	defer p.Wait()

	// 停止后仍需完成投递
	deliverCtx := context.WithoutCancel(ctx)
	submit := func(n *Notification) {
		p.Go(func() { d.deliver(deliverCtx, n) })
	}

	if d.opts.Redis == nil {
		d.consumeMemory(ctx, submit)
		return
	}

	var wg conc.WaitGroup
	wg.Go(func() { d.forward(ctx, submit) })
	wg.Go(func() { d.consumeRedis(ctx, submit) })
	wg.Wait()
}

// consumeMemory 停止后排空内存队列再返回
func (d *Dispatcher) consumeMemory(ctx context.Context, submit func(*Notification)) {
	for {
		select {
		case n := <-d.queue:
			submit(n)
		case <-ctx.Done():
			d.drain(submit)
			return
		}
	}
}

// forward 把内存队列搬到 Redis，写入失败的通知在本进程投递
func (d *Dispatcher) forward(ctx context.Context, submit func(*Notification)) {
	for {
		select {
		case n := <-d.queue:
			if err := d.pushRedis(ctx, n); err != nil {
				d.log.Warn("redis enqueue failed, delivering locally",
					logger.NotificationID(n.ID), zap.Error(err))
				submit(n)
			}
		case <-ctx.Done():
			d.drain(submit)
			return
		}
	}
}

func (d *Dispatcher) drain(submit func(*Notification)) {
	for {
		select {
		case n := <-d.queue:
			submit(n)
		default:
			return
		}
	}
}

func (d *Dispatcher) pushRedis(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.EnqueueTimeout)
	defer cancel()
	return d.opts.Redis.LPush(ctx, d.opts.RedisQueue, data).Err()
}

func (d *Dispatcher) consumeRedis(ctx context.Context, submit func(*Notification)) {
	for ctx.Err() == nil {
		n, err := d.popRedis(ctx)
		switch {
		case err == nil:
			submit(n)
		case errors.Is(err, redis.Nil) || ctx.Err() != nil:
		default:
			d.log.Warn("redis dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (d *Dispatcher) popRedis(ctx context.Context) (*Notification, error) {
	res, err := d.opts.Redis.BRPop(ctx, time.Second, d.opts.RedisQueue).Result()
	if err != nil {
		return nil, err
	}
	// res[0] 为队列名
	var n Notification
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		d.log.Error("invalid notification payload", zap.Error(err))
		return nil, redis.Nil
	}
	return &n, nil
}

// deliver 向所有适用渠道投递，每个渠道独立重试
func (d *Dispatcher) deliver(ctx context.Context, n *Notification) {
	for _, ch := range d.channels {
		if !ch.Accepts(n) {
			continue
		}

		attempts := 0
		start := time.Now()
		err := backoff.Retry(func() error {
			attempts++
			attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
			defer cancel()
			return ch.Deliver(attemptCtx, n)
		}, d.newBackOff(ctx))

		fields := []zap.Field{
			logger.NotificationID(n.ID),
			logger.Channel(ch.Name()),
			zap.String("event", n.Event),
			logger.UserID(n.UserID),
			logger.CouponID(n.Coupon.ID),
			zap.Int("attempts", attempts),
			logger.Latency(time.Since(start)),
		}
		if to := maskedRecipient(ch.Name(), n); to != "" {
			fields = append(fields, zap.String("to", to))
		}
		if err != nil {
			metrics.Notification(ch.Name(), "failed")
			d.log.Warn("notification delivery failed", append(fields, zap.Error(err))...)
			continue
		}
		metrics.Notification(ch.Name(), "sent")
		d.log.Info("notification delivered", fields...)
	}
}

// maskedRecipient 日志里只出现脱敏后的收件地址
func maskedRecipient(channel string, n *Notification) string {
	switch channel {
	case "email":
		return crypto.MaskEmail(n.Email)
	case "sms":
		return crypto.MaskPhone(n.Phone)
	default:
		return ""
	}
}

func (d *Dispatcher) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.opts.RetryBackoff
	eb.MaxInterval = 10 * d.opts.RetryBackoff
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(d.opts.MaxRetries)), ctx)
}
