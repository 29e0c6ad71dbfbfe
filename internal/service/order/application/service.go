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
	"storefront/internal/service/order/domain"
)

// OrderService 负责订单的创建和生命周期推进。
type OrderService struct {
	repo      domain.OrderRepository
	publisher domainevent.Publisher
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*OrderService)

// WithClock 替换时间源，测试使用。
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func NewOrderService(repo domain.OrderRepository, publisher domainevent.Publisher, tracer trace.Tracer, opts ...Option) *OrderService {
	s := &OrderService{
		repo:      repo,
		publisher: publisher,
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *OrderService) publish(ctx context.Context, events []domainevent.Event) {
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Ctx(ctx).Error().Err(err).Strs("events", domainevent.Types(events)).Msg("Failed to publish order events")
	}
}

// CreateOrder 校验请求、创建订单并发布 OrderCreated
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.items", len(req.Items)),
	)

	if !req.TotalAmount.IsPositive() {
		return nil, fail(span, errors.Wrap(domain.ErrInvalidOrderOperation, "total amount must be greater than zero"))
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		currency := line.Currency
		if currency == "" {
			currency = req.Currency
		}
		item, err := domain.NewOrderItem(line.ProductID, line.ProductName, line.ProductSKU, line.Quantity, line.UnitPrice, currency)
		if err != nil {
			return nil, fail(span, err)
		}
		items = append(items, item)
	}

	order, events, err := domain.NewOrder(s.now(), req.CustomerID, items, req.Currency, domain.Details{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fail(span, errors.Wrap(err, "failed to save order"))
	}
	s.publish(ctx, events)

	span.SetAttributes(attribute.String("order.id", order.ID))
	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("customer_id", order.CustomerID).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("Order created")
	return toOrderDTO(order), nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

// ListByCustomer 返回顾客最近的订单
func (s *OrderService) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*OrderDTO, error) {
	orders, err := s.repo.FindByCustomerID(ctx, customerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	return out, nil
}

func (s *OrderService) Confirm(ctx context.Context, id string) (*OrderDTO, error) {
	return s.transition(ctx, "service.ConfirmOrder", id, func(o *domain.Order, at time.Time) ([]domainevent.Event, error) {
		return o.Confirm(at)
	})
}

func (s *OrderService) StartProcessing(ctx context.Context, id string) (*OrderDTO, error) {
	return s.transition(ctx, "service.StartProcessing", id, func(o *domain.Order, at time.Time) ([]domainevent.Event, error) {
		return o.StartProcessing(at)
	})
}

func (s *OrderService) Ship(ctx context.Context, id string) (*OrderDTO, error) {
	return s.transition(ctx, "service.ShipOrder", id, func(o *domain.Order, at time.Time) ([]domainevent.Event, error) {
		return o.MarkAsShipped(at)
	})
}

func (s *OrderService) Deliver(ctx context.Context, id string) (*OrderDTO, error) {
	return s.transition(ctx, "service.DeliverOrder", id, func(o *domain.Order, at time.Time) ([]domainevent.Event, error) {
		return o.MarkAsDelivered(at)
	})
}

func (s *OrderService) Cancel(ctx context.Context, id, reason string) (*OrderDTO, error) {
	return s.transition(ctx, "service.CancelOrder", id, func(o *domain.Order, at time.Time) ([]domainevent.Event, error) {
		return o.Cancel(at, reason)
	})
}

// transition 加载订单、执行迁移、保存并发布事件。
// 版本冲突直接返回 ErrConcurrentModification，由调用方决定是否重试。
func (s *OrderService) transition(ctx context.Context, spanName, id string, fn func(*domain.Order, time.Time) ([]domainevent.Event, error)) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	previous := order.Status
	events, err := fn(order, s.now())
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, fail(span, err)
	}
	s.publish(ctx, events)

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("from", string(previous)).
		Str("to", string(order.Status)).
		Msg("Order status changed")
	return toOrderDTO(order), nil
}
