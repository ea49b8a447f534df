// Package metrics Prometheus 指标，业务代码通过包级函数上报，未初始化时为空操作
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "coupon_platform"

// 缓存查询结果标签
const (
	CacheResultHit  = "hit"
	CacheResultMiss = "miss"
)

// Metrics 全部业务与 HTTP 指标
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge

	redemptions   *prometheus.CounterVec
	created       *prometheus.CounterVec
	deactivated   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec

	jobRuns    *prometheus.CounterVec
	jobLatency *prometheus.HistogramVec
}

// New 在 reg 上注册，测试中传入独立的 Registry
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	return &Metrics{
		requests: counter("http_requests_total", "HTTP requests by route and status.", "method", "route", "status"),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 9),
		}, []string{"method", "route"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),

		redemptions:   counter("coupon_redemptions_total", "Redemption attempts by coupon kind and outcome.", "kind", "outcome"),
		created:       counter("coupons_created_total", "Coupons created by kind.", "kind"),
		deactivated:   counter("coupon_deactivations_total", "Coupons deactivated by the sweeper, by reason.", "reason"),
		notifications: counter("notifications_total", "Notification deliveries by channel and status.", "channel", "status"),
		cacheLookups:  counter("cache_lookups_total", "Cache lookups by cache name and result.", "cache", "result"),

		jobRuns: counter("scheduler_job_runs_total", "Scheduled job executions by outcome.", "job", "outcome"),
		jobLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Scheduled job execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

var (
	global   atomic.Pointer[Metrics]
	initOnce sync.Once
)

// Init 在默认注册器上创建全局实例，只有第一次调用的 namespace 生效
func Init(namespace string) *Metrics {
	initOnce.Do(func() {
		global.Store(New(namespace, prometheus.DefaultRegisterer))
	})
	return global.Load()
}

// Default 未初始化时返回 nil
func Default() *Metrics {
	return global.Load()
}

func withDefault(fn func(*Metrics)) {
	if m := global.Load(); m != nil {
		fn(m)
	}
}

func (m *Metrics) RecordRedemption(kind, outcome string) {
	m.redemptions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordCouponCreated(kind string) {
	m.created.WithLabelValues(kind).Inc()
}

// RecordDeactivations n 为 0 时不产生序列
func (m *Metrics) RecordDeactivations(reason string, n int64) {
	if n > 0 {
		m.deactivated.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) RecordNotification(channel, status string) {
	m.notifications.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	result := CacheResultMiss
	if hit {
		result = CacheResultHit
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) RecordJob(job, outcome string, seconds float64) {
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobLatency.WithLabelValues(job).Observe(seconds)
}

func Redemption(kind, outcome string) {
	withDefault(func(m *Metrics) { m.RecordRedemption(kind, outcome) })
}

func CouponCreated(kind string) {
	withDefault(func(m *Metrics) { m.RecordCouponCreated(kind) })
}

func Deactivations(reason string, n int64) {
	withDefault(func(m *Metrics) { m.RecordDeactivations(reason, n) })
}

func Notification(channel, status string) {
	withDefault(func(m *Metrics) { m.RecordNotification(channel, status) })
}

func CacheHit(cache string) {
	withDefault(func(m *Metrics) { m.RecordCacheLookup(cache, true) })
}

func CacheMiss(cache string) {
	withDefault(func(m *Metrics) { m.RecordCacheLookup(cache, false) })
}

// Job outcome 取 ok、error 或 panic
func Job(job, outcome string, seconds float64) {
	withDefault(func(m *Metrics) { m.RecordJob(job, outcome, seconds) })
}
