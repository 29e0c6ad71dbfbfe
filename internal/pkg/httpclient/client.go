// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ErrCircuitOpen 下游熔断打开时返回。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Resolver 把服务名解析为 base URL（例如 http://10.0.0.3:8080）。
type Resolver interface {
	Resolve(ctx context.Context, serviceName string) (string, error)
}

// StaticResolver 使用固定地址表，用于本地开发和测试。
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, serviceName string) (string, error) {
	base, ok := r[serviceName]
	if !ok || base == "" {
		return "", fmt.Errorf("no address configured for service '%s'", serviceName)
	}
	return strings.TrimRight(base, "/"), nil
}

// StatusError 下游返回非 2xx。
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client 是一个可追踪、带熔断的 JSON HTTP 客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	resolver   Resolver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient 创建客户端。http.Client 不设置 Timeout，完全受控于每次请求的 context。
func NewClient(tracer trace.Tracer, resolver Resolver) *Client {
	return &Client{
		Tracer: tracer,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		resolver: resolver,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breaker(service string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[service]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			return counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zlog.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
	c.breakers[service] = cb
	return cb
}

// PostJSON 向 service 的 path 发送 JSON 请求体，并把响应解码到 out（可为 nil）。
func (c *Client) PostJSON(ctx context.Context, service, path string, in, out interface{}) error {
	return c.Do(ctx, http.MethodPost, service, path, nil, in, out)
}

// GetJSON 发送 GET 请求。
func (c *Client) GetJSON(ctx context.Context, service, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, service, path, query, nil, out)
}

// Do 解析服务地址，经熔断器发起请求。4xx 不计入熔断失败。
func (c *Client) Do(ctx context.Context, method, service, path string, query url.Values, in, out interface{}) error {
	ctx, span := c.Tracer.Start(ctx, "call-"+service, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	base, err := c.resolver.Resolve(ctx, service)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "resolve %s", service)
	}
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	span.SetAttributes(
		attribute.String("http.url", target),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	var clientErr *StatusError
	result, err := c.breaker(service).Execute(func() (interface{}, error) {
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, &StatusError{URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		if resp.StatusCode >= 300 {
			clientErr = &StatusError{URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
			return nil, nil
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = errors.Wrapf(ErrCircuitOpen, "%s: %v", service, err)
	}
	if err == nil && clientErr != nil {
		err = clientErr
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("http.response_size", len(result.([]byte))))
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result.([]byte), out); err != nil {
		return errors.Wrapf(err, "decode response from %s", target)
	}
	return nil
}
