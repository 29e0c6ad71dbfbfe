package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	cartdomain "storefront/internal/service/cart/domain"
	"storefront/internal/service/checkout/application/saga"
	"storefront/internal/service/checkout/domain/port"
)

const (
	outcomeSuccess  = "success"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

// CheckoutOrchestrator 把购物车转换为订单，协调库存、定价和订单三个服务。
type CheckoutOrchestrator struct {
	deps       *saga.Deps
	chain      saga.Handler
	validation saga.Handler
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	timeout    time.Duration
	guard      port.CheckoutGuard
	guardTTL   time.Duration
}

type Option func(*CheckoutOrchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *CheckoutOrchestrator) { o.deps.Now = now }
}

// WithTimeouts 设置整体超时和各端口调用的超时
func WithTimeouts(overall time.Duration, ports saga.Timeouts) Option {
	return func(o *CheckoutOrchestrator) {
		o.timeout = overall
		o.deps.Timeouts = ports
	}
}

// WithGuard 启用重复提交保护
func WithGuard(guard port.CheckoutGuard, ttl time.Duration) Option {
	return func(o *CheckoutOrchestrator) {
		o.guard = guard
		if ttl > 0 {
			o.guardTTL = ttl
		}
	}
}

func NewCheckoutOrchestrator(
	carts cartdomain.CartRepository,
	inventory port.InventoryService,
	pricing port.PricingService,
	orders port.OrderService,
	publisher domainevent.Publisher,
	tracer trace.Tracer,
	m *metrics.Metrics,
	opts ...Option,
) *CheckoutOrchestrator {
	o := &CheckoutOrchestrator{
		deps: &saga.Deps{
			Carts:     carts,
			Inventory: inventory,
			Pricing:   pricing,
			Orders:    orders,
			Publisher: publisher,
			Tracer:    tracer,
			Metrics:   m,
			Now:       func() time.Time { return time.Now().UTC() },
		},
		tracer:   tracer,
		metrics:  m,
		guardTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.chain = saga.NewCheckoutChain(o.deps)
	o.validation = saga.NewValidationChain(o.deps)
	return o
}

// Checkout 执行结账 saga。任何失败都转换为 Success=false 的结果，不返回 error。
func (o *CheckoutOrchestrator) Checkout(ctx context.Context, req *CheckoutRequest) *CheckoutResult {
	ctx, span := o.tracer.Start(ctx, "service.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", req.CustomerID))

	result, outcome := o.checkout(ctx, req)
	if o.metrics != nil {
		o.metrics.CheckoutsTotal.WithLabelValues(outcome).Inc()
	}
	if !result.Success {
		span.SetStatus(codes.Error, result.ErrorMessage)
		logger.Ctx(ctx).Warn().
			Str("customer_id", req.CustomerID).
			Str("outcome", outcome).
			Str("error", result.ErrorMessage).
			Msg("Checkout failed")
		return result
	}
	span.SetAttributes(attribute.String("order.id", result.OrderID))
	logger.Ctx(ctx).Info().
		Str("customer_id", req.CustomerID).
		Str("order_id", result.OrderID).
		Str("total", result.TotalAmount.String()).
		Msg("Checkout completed")
	return result
}

func (o *CheckoutOrchestrator) checkout(ctx context.Context, req *CheckoutRequest) (result *CheckoutResult, outcome string) {
	if req.CustomerID == "" {
		return failure("", "customer id is required"), outcomeRejected
	}

	if o.guard != nil {
		key := guardKey(req)
		token, err := o.guard.Acquire(ctx, key, o.guardTTL)
		switch {
		case errors.Is(err, port.ErrCheckoutInProgress):
			return failure(req.CustomerID, err.Error()), outcomeRejected
		case err != nil:
			// 保护存储不可用时放行，重复提交仍会因购物车版本冲突或空购物车失败
			logger.Ctx(ctx).Warn().Err(err).Str("customer_id", req.CustomerID).Msg("Checkout guard unavailable")
		default:
			defer func() {
				// 带幂等键的成功结账保留到过期，拒绝重复提交
				if req.IdempotencyKey != "" && result.Success {
					return
				}
				if err := o.guard.Release(context.WithoutCancel(ctx), key, token); err != nil {
					logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to release checkout guard")
				}
			}()
		}
	}

	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	cc := saga.NewCheckoutContext(ctx, saga.Request{
		CustomerID:      req.CustomerID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Metadata:        req.Metadata,
	})
	if err := o.chain.Handle(cc); err != nil {
		return failure(req.CustomerID, err.Error()), outcomeFailed
	}

	completedAt := cc.CompletedAt
	return &CheckoutResult{
		Success:             true,
		OrderID:             cc.OrderID,
		CustomerID:          req.CustomerID,
		TotalAmount:         cc.Pricing.Total,
		Currency:            cc.Cart.Currency,
		CheckoutCompletedAt: &completedAt,
	}, outcomeSuccess
}

// ValidateCartForCheckout 只读预检：购物车存在、非空且所有商品可用
func (o *CheckoutOrchestrator) ValidateCartForCheckout(ctx context.Context, customerID string) bool {
	ctx, span := o.tracer.Start(ctx, "service.ValidateCartForCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	if customerID == "" {
		return false
	}
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	cc := saga.NewCheckoutContext(ctx, saga.Request{CustomerID: customerID})
	if err := o.validation.Handle(cc); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("customer_id", customerID).Msg("Cart not ready for checkout")
		span.SetAttributes(attribute.Bool("cart.valid", false))
		return false
	}
	span.SetAttributes(attribute.Bool("cart.valid", true))
	return true
}

func guardKey(req *CheckoutRequest) string {
	key := "checkout:{" + req.CustomerID + "}"
	if req.IdempotencyKey != "" {
		key += ":" + req.IdempotencyKey
	}
	return key
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
