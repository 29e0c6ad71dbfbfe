package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/tracing"
)

// Route 把路径前缀映射到下游服务名
type Route struct {
	Prefix  string
	Service string
}

// DefaultRoutes 是对外暴露的全部入口
var DefaultRoutes = []Route{
	{Prefix: "/cart", Service: "checkout-service"},
	{Prefix: "/checkout", Service: "checkout-service"},
	{Prefix: "/orders", Service: "order-service"},
	{Prefix: "/inventory", Service: "inventory-service"},
	{Prefix: "/pricing", Service: "pricing-service"},
	{Prefix: "/ws", Service: "push-gateway"},
}

const (
	readyTimeout = 2 * time.Second

	// HeaderTraceID 回传给调用方，便于按 trace 排查问题
	HeaderTraceID = "X-Trace-Id"
)

// Gateway 按前缀把请求反向代理到下游服务，并把追踪上下文透传下去。
type Gateway struct {
	routes    []Route
	resolver  httpclient.Resolver
	tracer    trace.Tracer
	transport http.RoundTripper
	client    *http.Client
}

func New(routes []Route, resolver httpclient.Resolver, tracer trace.Tracer) *Gateway {
	sorted := append([]Route(nil), routes...)
	// 最长前缀优先
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Prefix) > len(sorted[j].Prefix) })
	return &Gateway{
		routes:    sorted,
		resolver:  resolver,
		tracer:    tracer,
		transport: http.DefaultTransport,
		client:    &http.Client{Timeout: readyTimeout},
	}
}

func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /readyz", g.handleReady)
	mux.Handle("/", g)
}

func (g *Gateway) match(path string) (Route, bool) {
	for _, rt := range g.routes {
		if path == rt.Prefix || strings.HasPrefix(path, rt.Prefix+"/") {
			return rt, true
		}
	}
	return Route{}, false
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, ok := g.match(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
		return
	}

	ctx, span := g.tracer.Start(r.Context(), "gateway.Proxy", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.service", rt.Service),
		attribute.String("http.method", r.Method),
		attribute.String("http.path", r.URL.Path),
	)
	if traceID := tracing.GetTraceIDFromContext(ctx); traceID != "" {
		w.Header().Set(HeaderTraceID, traceID)
	}
	log := logger.Ctx(ctx).With().Str("service", rt.Service).Logger()

	base, err := g.resolver.Resolve(ctx, rt.Service)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		log.Error().Err(err).Msg("Failed to resolve downstream service")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	target, err := url.Parse(base)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadGateway, errors.Wrapf(err, "bad address for %s", rt.Service).Error())
		return
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			otel.GetTextMapPropagator().Inject(pr.Out.Context(), propagation.HeaderCarrier(pr.Out.Header))
		},
		Transport: g.transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "proxy failed")
			log.Error().Err(err).Msg("Downstream request failed")
			writeError(w, http.StatusBadGateway, "downstream "+rt.Service+" unavailable")
		},
	}
	proxy.ServeHTTP(w, r.WithContext(ctx))
}

// handleReady 检查所有下游服务的 /healthz
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	services := map[string]struct{}{}
	for _, rt := range g.routes {
		services[rt.Service] = struct{}{}
	}

	results := make(map[string]string, len(services))
	type result struct{ service, status string }
	ch := make(chan result, len(services))

	eg, ctx := errgroup.WithContext(r.Context())
	for svc := range services {
		svc := svc
		eg.Go(func() error {
			status := "ok"
			if err := g.checkHealth(ctx, svc); err != nil {
				status = err.Error()
			}
			ch <- result{svc, status}
			return nil
		})
	}
	_ = eg.Wait()
	close(ch)

	ready := true
	for res := range ch {
		results[res.service] = res.status
		if res.status != "ok" {
			ready = false
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(results)
}

func (g *Gateway) checkHealth(ctx context.Context, service string) error {
	base, err := g.resolver.Resolve(ctx, service)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("healthz returned %d", resp.StatusCode)
	}
	return nil
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
