// Package scheduler 进程内的周期任务，用于优惠券状态巡检
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/metrics"
)

// DefaultJobTimeout 单次执行的上限
const DefaultJobTimeout = 5 * time.Minute

// Job 周期执行的函数，ctx 在单次超时或调度器停止时取消
type Job func(ctx context.Context) error

type entry struct {
	name  string
	every time.Duration
	job   Job
}

// Scheduler 每个任务一个 goroutine，启动时先执行一次
type Scheduler struct {
	log     *zap.Logger
	timeout time.Duration
	entries []entry

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// Option 调度器选项
type Option func(*Scheduler)

// WithJobTimeout 覆盖 DefaultJobTimeout
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler log 可以为 nil
func NewScheduler(log *zap.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{log: log.Named("scheduler"), timeout: DefaultJobTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every 注册任务，every 不为正时视为关闭
func (s *Scheduler) Every(name string, every time.Duration, job Job) {
	if every <= 0 {
		s.log.Info("job disabled", zap.String("job", name))
		return
	}
	s.entries = append(s.entries, entry{name: name, every: every, job: job})
}

// Jobs 已注册任务的名称
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// Start 重复调用无效
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.log.Info("started", zap.Strings("jobs", s.Jobs()))
	for _, e := range s.entries {
		s.wg.Go(func() { s.loop(ctx, e) })
	}
}

// Stop 取消所有任务并等待正在执行的一次结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("stopped")
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	ticker := time.NewTicker(e.every)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, e)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce 任务 panic 只记录日志，不影响后续轮次
func (s *Scheduler) runOnce(ctx context.Context, e entry) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = e.job(ctx) })

	elapsed := time.Since(start)
	outcome := "ok"
	switch r := pc.Recovered(); {
	case r != nil:
		outcome = "panic"
		s.log.Error("job panicked", zap.String("job", e.name), zap.Error(r.AsError()), zap.ByteString("stack", r.Stack))
	case err != nil:
		outcome = "error"
		s.log.Error("job failed", zap.String("job", e.name), zap.Error(err))
	default:
		s.log.Debug("job done", zap.String("job", e.name), zap.Duration("latency", elapsed))
	}
	metrics.Job(e.name, outcome, elapsed.Seconds())
}
