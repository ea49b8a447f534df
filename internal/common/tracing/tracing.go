// Package tracing OpenTelemetry 链路追踪：全局 TracerProvider、业务 span 与 gin 中间件
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config 追踪配置，Endpoint 为空时导出到 stdout
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	SampleRate     float64
}

// Provider 持有 SDK TracerProvider，未启用时为空实现
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Init 启用时注册全局 TracerProvider 与 W3C 传播器；未启用时业务 span 全部是空操作
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{tp: tp}, nil
}

func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		exp, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		return exp, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", endpoint, err)
	}
	return exp, nil
}

// samplerFor 1 及以上全采，0 及以下不采，其余按 trace ID 比例
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Enabled 是否注册了 SDK
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Shutdown 导出剩余 span 并关闭
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// 业务属性键
const (
	AttrUserID     = attribute.Key("user.id")
	AttrCouponID   = attribute.Key("coupon.id")
	AttrCouponName = attribute.Key("coupon.name")
	AttrCouponKind = attribute.Key("coupon.kind")
	AttrOperation  = attribute.Key("operation")
)

func WithUserID(id int64) attribute.KeyValue        { return AttrUserID.Int64(id) }
func WithCouponID(id int64) attribute.KeyValue      { return AttrCouponID.Int64(id) }
func WithCouponName(name string) attribute.KeyValue { return AttrCouponName.String(name) }
func WithCouponKind(kind string) attribute.KeyValue { return AttrCouponKind.String(kind) }
func WithOperation(op string) attribute.KeyValue    { return AttrOperation.String(op) }
