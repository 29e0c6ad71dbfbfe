// internal/pkg/tracing/tracer.go
package tracing

import (
	"context"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Options 描述一个服务实例的追踪配置
type Options struct {
	ServiceName string
	InstanceID  string
	Endpoint    string
	// SampleRatio <= 0 或 >= 1 时全部采样
	SampleRatio float64
}

// Sampler 按比例采样，并尊重上游的采样决定
func (o Options) Sampler() sdktrace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
}

// InitTracerProvider 初始化 Jaeger TracerProvider，并注册为全局 provider 和 W3C 传播器。
func InitTracerProvider(opts Options) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)))
	if err != nil {
		return nil, errors.Wrapf(err, "create jaeger exporter for %s", opts.Endpoint)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceInstanceID(opts.InstanceID),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(opts.Sampler()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	zlog.Info().
		Str("endpoint", opts.Endpoint).
		Float64("sample_ratio", opts.SampleRatio).
		Msgf("Tracing initialized for service '%s'", opts.ServiceName)
	return tp, nil
}

// GetTraceIDFromContext 返回 ctx 中 span 的 trace id，没有有效 span 时返回空串。
func GetTraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}
