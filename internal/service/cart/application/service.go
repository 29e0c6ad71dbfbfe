package application

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/domainevent"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/cart/domain"
)

// errNoChange 由变更函数返回，表示无需持久化。
var errNoChange = errors.New("no change")

// CartService 定义了购物车提供的所有业务用例
type CartService struct {
	repo       domain.CartRepository
	publisher  domainevent.Publisher
	stock      StockChecker
	prices     PriceQuoter
	tracer     trace.Tracer
	now        func() time.Time
	casRetries int
}

type Option func(*CartService)

// WithClock 替换时间源，测试使用。
func WithClock(now func() time.Time) Option {
	return func(s *CartService) { s.now = now }
}

func WithCASRetries(n int) Option {
	return func(s *CartService) {
		if n > 0 {
			s.casRetries = n
		}
	}
}

func NewCartService(repo domain.CartRepository, publisher domainevent.Publisher, stock StockChecker, prices PriceQuoter, tracer trace.Tracer, opts ...Option) *CartService {
	s := &CartService{
		repo:       repo,
		publisher:  publisher,
		stock:      stock,
		prices:     prices,
		tracer:     tracer,
		now:        func() time.Time { return time.Now().UTC() },
		casRetries: 3,
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

func (s *CartService) GetCart(ctx context.Context, customerID string) (*CartDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetCart")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	cart, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fail(span, err)
	}
	return ToCartDTO(cart), nil
}

// GetOrCreateCart 客户第一次访问时惰性创建购物车
func (s *CartService) GetOrCreateCart(ctx context.Context, customerID, currency string) (*CartDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetOrCreateCart")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	cart, err := s.mutate(ctx, customerID, currency, func(*domain.Cart, time.Time) ([]domainevent.Event, error) {
		return nil, errNoChange
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return ToCartDTO(cart), nil
}

// AddToCart 先确认库存，再以定价服务的当前价格加入购物车
func (s *CartService) AddToCart(ctx context.Context, req *AddToCartRequest) (*CartDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.AddToCart")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.String("product.id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	if req.Quantity <= 0 {
		return nil, fail(span, pkgerrors.Wrap(domain.ErrInvalidCartOperation, "quantity must be greater than zero"))
	}
	available, err := s.stock.IsAvailable(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, fail(span, pkgerrors.Wrap(err, "check availability"))
	}
	if !available {
		return nil, fail(span, pkgerrors.Wrapf(domain.ErrInvalidCartOperation,
			"product %s is not available in the requested quantity", req.ProductID))
	}

	name, price, err := s.resolvePrice(ctx, req)
	if err != nil {
		return nil, fail(span, err)
	}

	cart, err := s.mutate(ctx, req.CustomerID, req.Currency, func(c *domain.Cart, at time.Time) ([]domainevent.Event, error) {
		return c.AddProduct(at, req.ProductID, name, req.Quantity, price)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	logger.Ctx(ctx).Info().
		Str("customer_id", req.CustomerID).
		Str("product_id", req.ProductID).
		Int("quantity", req.Quantity).
		Str("unit_price", price.String()).
		Msg("Product added to cart")
	return ToCartDTO(cart), nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, customerID, productID string) (*CartDTO, error) {
	return s.update(ctx, "service.RemoveFromCart", customerID, func(c *domain.Cart, at time.Time) ([]domainevent.Event, error) {
		return c.RemoveProduct(at, productID)
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, req *UpdateQuantityRequest) (*CartDTO, error) {
	return s.update(ctx, "service.UpdateQuantity", req.CustomerID, func(c *domain.Cart, at time.Time) ([]domainevent.Event, error) {
		return c.UpdateProductQuantity(at, req.ProductID, req.Quantity)
	})
}

func (s *CartService) ClearCart(ctx context.Context, customerID string) (*CartDTO, error) {
	return s.update(ctx, "service.ClearCart", customerID, func(c *domain.Cart, at time.Time) ([]domainevent.Event, error) {
		if c.IsEmpty() {
			return nil, errNoChange
		}
		return c.Clear(at), nil
	})
}

// RefreshPrices 用定价服务的当前价格更新每一行，没有价格的商品保持原价
func (s *CartService) RefreshPrices(ctx context.Context, customerID string) (*CartDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.RefreshPrices")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	cart, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fail(span, err)
	}
	quotes := make(map[string]*PriceQuote, len(cart.Items))
	for _, item := range cart.Items {
		quote, err := s.prices.QuotePrice(ctx, customerID, item.ProductID, item.Quantity)
		if errors.Is(err, ErrPriceUnavailable) {
			continue
		}
		if err != nil {
			return nil, fail(span, pkgerrors.Wrapf(err, "quote %s", item.ProductID))
		}
		quotes[item.ProductID] = quote
	}

	cart, err = s.loadAndSave(ctx, customerID, "", false, func(c *domain.Cart, at time.Time) ([]domainevent.Event, error) {
		changed := false
		for _, item := range c.Items {
			quote, ok := quotes[item.ProductID]
			if !ok || quote.UnitPrice.Equal(item.UnitPrice) {
				continue
			}
			if err := c.UpdateProductPrice(at, item.ProductID, quote.UnitPrice); err != nil {
				return nil, err
			}
			changed = true
		}
		if !changed {
			return nil, errNoChange
		}
		return nil, nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return ToCartDTO(cart), nil
}

func (s *CartService) resolvePrice(ctx context.Context, req *AddToCartRequest) (string, decimal.Decimal, error) {
	name := req.ProductName
	quote, err := s.prices.QuotePrice(ctx, req.CustomerID, req.ProductID, req.Quantity)
	switch {
	case err == nil:
		if name == "" {
			name = quote.ProductName
		}
		return name, quote.UnitPrice, nil
	case errors.Is(err, ErrPriceUnavailable) && req.UnitPrice != nil:
		return name, *req.UnitPrice, nil
	case errors.Is(err, ErrPriceUnavailable):
		return "", decimal.Decimal{}, pkgerrors.Wrapf(domain.ErrInvalidCartOperation, "no price available for product %s", req.ProductID)
	default:
		return "", decimal.Decimal{}, pkgerrors.Wrap(err, "quote price")
	}
}

func (s *CartService) update(ctx context.Context, spanName, customerID string, fn func(*domain.Cart, time.Time) ([]domainevent.Event, error)) (*CartDTO, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	cart, err := s.loadAndSave(ctx, customerID, "", false, fn)
	if err != nil {
		return nil, fail(span, err)
	}
	return ToCartDTO(cart), nil
}

// mutate 购物车不存在时按 currency 创建
func (s *CartService) mutate(ctx context.Context, customerID, currency string, fn func(*domain.Cart, time.Time) ([]domainevent.Event, error)) (*domain.Cart, error) {
	return s.loadAndSave(ctx, customerID, currency, true, fn)
}

// loadAndSave 执行 加载-变更-保存 循环，遇到版本冲突时重新加载重试。
func (s *CartService) loadAndSave(ctx context.Context, customerID, currency string, create bool, fn func(*domain.Cart, time.Time) ([]domainevent.Event, error)) (*domain.Cart, error) {
	if customerID == "" {
		return nil, pkgerrors.Wrap(domain.ErrInvalidCartOperation, "customer id is required")
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	var lastErr error
	for attempt := 0; attempt <= s.casRetries; attempt++ {
		at := s.now()
		cart, err := s.repo.FindByCustomerID(ctx, customerID)
		fresh := false
		switch {
		case errors.Is(err, domain.ErrCartNotFound) && create:
			if cart, err = domain.NewCart(at, customerID, currency); err != nil {
				return nil, err
			}
			fresh = true
		case err != nil:
			return nil, err
		}

		events, err := fn(cart, at)
		if errors.Is(err, errNoChange) && !fresh {
			return cart, nil
		}
		if err != nil && !errors.Is(err, errNoChange) {
			return nil, err
		}

		err = s.repo.Save(ctx, cart)
		if errors.Is(err, domain.ErrConcurrentModification) {
			lastErr = err
			logger.Ctx(ctx).Warn().Str("customer_id", customerID).Int("attempt", attempt+1).Msg("Cart version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to save cart")
		}
		s.publish(ctx, events)
		return cart, nil
	}
	return nil, lastErr
}

// publish 在持久化成功后发布事件；发布失败不回滚已提交的状态。
func (s *CartService) publish(ctx context.Context, events []domainevent.Event) {
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Ctx(ctx).Error().Err(err).Strs("events", domainevent.Types(events)).Msg("Failed to publish cart events")
	}
}
