package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	cartdomain "storefront/internal/service/cart/domain"
	"storefront/internal/service/checkout/domain/port"
)

// Timeouts 是每类端口调用各自的超时，0 表示不额外限制
type Timeouts struct {
	Inventory    time.Duration
	Pricing      time.Duration
	Order        time.Duration
	Compensation time.Duration
}

// Deps 是所有处理器共享的协作者
type Deps struct {
	Carts     cartdomain.CartRepository
	Inventory port.InventoryService
	Pricing   port.PricingService
	Orders    port.OrderService
	Publisher domainevent.Publisher
	Tracer    trace.Tracer
	Metrics   *metrics.Metrics // 可为 nil
	Timeouts  Timeouts
	Now       func() time.Time
}

// Handler 定义了责任链中每个节点的接口
type Handler interface {
	// SetNext 设置链中的下一个处理器
	SetNext(handler Handler) Handler
	// Handle 执行当前节点的处理逻辑
	Handle(cc *CheckoutContext) error
}

// NextHandler 可以嵌入到具体的处理器中，以减少重复代码
type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(cc *CheckoutContext) error {
	if h.next != nil {
		return h.next.Handle(cc)
	}
	return nil
}

// NewCheckoutChain 按固定顺序组装结账链：
// 加载购物车 → 发起结账 → 可用性检查 → 预留库存 → 定价 → 创建订单 → 完成结账
func NewCheckoutChain(d *Deps) Handler {
	head := &TransactionHandler{deps: d}
	head.SetNext(&LoadCartHandler{deps: d}).
		SetNext(&InitiateCheckoutHandler{deps: d}).
		SetNext(&AvailabilityHandler{deps: d}).
		SetNext(&ReservationHandler{deps: d}).
		SetNext(&PricingHandler{deps: d}).
		SetNext(&CreateOrderHandler{deps: d}).
		SetNext(&CompleteCheckoutHandler{deps: d})
	return head
}

// NewValidationChain 只读预检：加载购物车 → 可用性检查
func NewValidationChain(d *Deps) Handler {
	head := &LoadCartHandler{deps: d}
	head.SetNext(&AvailabilityHandler{deps: d})
	return head
}

// step 为一个 saga 步骤开启 saga.<name> span 并记录耗时
func (d *Deps) step(cc *CheckoutContext, name string, fn func(ctx context.Context, span trace.Span) error) error {
	ctx, span := d.Tracer.Start(cc.Ctx, "saga."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx, span)
	if d.Metrics != nil {
		d.Metrics.ObserveStep(name, start, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// publish 在持久化成功后发布事件；发布失败只记录日志。
func (d *Deps) publish(ctx context.Context, events []domainevent.Event) {
	if len(events) == 0 || d.Publisher == nil {
		return
	}
	if err := d.Publisher.Publish(ctx, events...); err != nil {
		logger.Ctx(ctx).Error().Err(err).Strs("events", domainevent.Types(events)).Msg("Failed to publish checkout events")
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
