// internal/pkg/metrics/metrics.go
package metrics

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/pkg/domainevent"
)

const namespace = "storefront"

// Metrics 汇总所有业务指标。每个服务只用到其中一部分。
type Metrics struct {
	registry *prometheus.Registry

	CheckoutsTotal       *prometheus.CounterVec
	SagaStepDuration     *prometheus.HistogramVec
	CompensationsTotal   *prometheus.CounterVec
	ReservationsTotal    *prometheus.CounterVec
	ExpiredSweptTotal    prometheus.Counter
	LowStockAlertsTotal  prometheus.Counter
	EventsPublishedTotal *prometheus.CounterVec
	PricingRulesApplied  *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// New 创建并注册指标到独立的 registry。
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: registry,
		CheckoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkouts_total",
			Help:        "Checkout attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		SagaStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "saga_step_duration_seconds",
			Help:        "Duration of each checkout saga step.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"step", "status"}),
		CompensationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "saga_compensations_total",
			Help:        "Compensating actions executed, by result.",
			ConstLabels: constLabels,
		}, []string{"action", "result"}),
		ReservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_reservations_total",
			Help:        "Stock reservation operations by kind and result.",
			ConstLabels: constLabels,
		}, []string{"op", "result"}),
		ExpiredSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "expired_reservations_swept_total",
			Help:        "Expired reservations returned to stock by the sweeper.",
			ConstLabels: constLabels,
		}),
		LowStockAlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "low_stock_alerts_total",
			Help:        "Low stock alerts raised.",
			ConstLabels: constLabels,
		}),
		EventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "domain_events_published_total",
			Help:        "Domain events handed to the event sink.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		PricingRulesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pricing_rules_applied_total",
			Help:        "Pricing rules or cart promotions that changed a price.",
			ConstLabels: constLabels,
		}, []string{"rule"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"path", "code"}),
	}

	registry.MustRegister(
		m.CheckoutsTotal,
		m.SagaStepDuration,
		m.CompensationsTotal,
		m.ReservationsTotal,
		m.ExpiredSweptTotal,
		m.LowStockAlertsTotal,
		m.EventsPublishedTotal,
		m.PricingRulesApplied,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 暴露内部 registry，测试中通过 Gather 读取。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStep 记录一次 saga 步骤耗时。
func (m *Metrics) ObserveStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SagaStepDuration.WithLabelValues(step, status).Observe(time.Since(start).Seconds())
}

// CountEvent 可作为 eventbus 订阅者，按类型统计领域事件。
func (m *Metrics) CountEvent(_ context.Context, evt domainevent.Event) error {
	m.EventsPublishedTotal.WithLabelValues(evt.EventType()).Inc()
	if evt.EventType() == "inventory.low_stock_alert" {
		m.LowStockAlertsTotal.Inc()
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack 让 WebSocket 升级可以穿过中间件
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware 记录 HTTP 请求耗时。
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestDuration.WithLabelValues(r.URL.Path, strconv.Itoa(rec.code)).Observe(time.Since(start).Seconds())
	})
}
