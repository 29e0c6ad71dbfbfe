package application

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/pricing/domain"
)

const (
	defaultCurrency = "USD"
	moneyScale      = 2
)

// PricingService 定义了定价服务提供的所有业务用例
type PricingService struct {
	rules   domain.RuleRepository
	catalog domain.ProductCatalog
	engine  *domain.Engine
	tracer  trace.Tracer
	metrics *metrics.Metrics
	policy  CartPolicy
	now     func() time.Time
}

type Option func(*PricingService)

func WithClock(now func() time.Time) Option {
	return func(s *PricingService) { s.now = now }
}

func WithCartPolicy(p CartPolicy) Option {
	return func(s *PricingService) { s.policy = p }
}

// NewPricingService 创建一个新的定价服务实例，metrics 可为 nil
func NewPricingService(rules domain.RuleRepository, catalog domain.ProductCatalog, engine *domain.Engine, tracer trace.Tracer, m *metrics.Metrics, opts ...Option) *PricingService {
	s := &PricingService{
		rules:   rules,
		catalog: catalog,
		engine:  engine,
		tracer:  tracer,
		metrics: m,
		policy:  DefaultCartPolicy(),
		now:     func() time.Time { return time.Now().UTC() },
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

// CalculateCartPricing 计算整车的权威价格。
// 基准价优先取目录价，目录中没有的商品沿用请求里的单价。
func (s *PricingService) CalculateCartPricing(ctx context.Context, req *CartPricingRequest) (*CartPricing, error) {
	ctx, span := s.tracer.Start(ctx, "service.CalculateCartPricing")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("cart.lines", len(req.Items)),
	)

	if err := validateCart(req); err != nil {
		return nil, fail(span, err)
	}
	rules, err := s.rules.ActiveRules(ctx, s.now())
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load pricing rules"))
	}

	type resolved struct {
		line     CartLine
		base     decimal.Decimal
		category string
	}
	lines := make([]resolved, 0, len(req.Items))
	orderAmount := decimal.Zero
	for _, item := range req.Items {
		r := resolved{line: item, base: item.UnitPrice}
		product, err := s.catalog.FindProduct(ctx, item.ProductID)
		switch {
		case err == nil:
			r.base, r.category = product.BasePrice, product.Category
		case errors.Is(err, domain.ErrProductNotFound):
		default:
			return nil, fail(span, errors.Wrapf(err, "lookup product %s", item.ProductID))
		}
		orderAmount = orderAmount.Add(r.base.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lines = append(lines, r)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	result := &CartPricing{
		CustomerID:        req.CustomerID,
		Currency:          currency,
		ItemPrices:        make(map[string]decimal.Decimal, len(lines)),
		Lines:             make([]LinePricing, 0, len(lines)),
		Subtotal:          decimal.Zero,
		Discount:          decimal.Zero,
		AppliedPromotions: []string{},
	}
	seen := make(map[string]bool)
	for _, r := range lines {
		price, err := s.engine.CalculatePrice(r.base, domain.Facts{
			ProductID:    r.line.ProductID,
			Category:     r.category,
			CustomerID:   req.CustomerID,
			CustomerType: req.CustomerType,
			Quantity:     r.line.Quantity,
			OrderAmount:  orderAmount,
		}, rules)
		if err != nil {
			return nil, fail(span, err)
		}
		unit := price.FinalPrice.Round(moneyScale)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(r.line.Quantity)))

		result.ItemPrices[r.line.ProductID] = unit
		result.Lines = append(result.Lines, LinePricing{
			ProductID:    r.line.ProductID,
			Quantity:     r.line.Quantity,
			BasePrice:    r.base,
			UnitPrice:    unit,
			LineTotal:    lineTotal,
			AppliedRules: price.AppliedRuleIDs,
		})
		result.Subtotal = result.Subtotal.Add(lineTotal)
		for _, id := range price.AppliedRuleIDs {
			if !seen[id] {
				seen[id] = true
				result.AppliedPromotions = append(result.AppliedPromotions, id)
			}
		}
	}

	if result.Subtotal.GreaterThan(s.policy.BulkThreshold) && s.policy.BulkRate.IsPositive() {
		result.Discount = result.Subtotal.Mul(s.policy.BulkRate).Round(moneyScale)
		result.AppliedPromotions = append(result.AppliedPromotions, s.policy.BulkCode)
	}
	taxable := result.Subtotal.Sub(result.Discount)
	result.Tax = taxable.Mul(s.policy.TaxRate).Round(moneyScale)
	result.Total = taxable.Add(result.Tax)

	s.countApplied(result.AppliedPromotions)
	span.SetAttributes(
		attribute.String("cart.total", result.Total.String()),
		attribute.StringSlice("cart.promotions", result.AppliedPromotions),
	)
	logger.Ctx(ctx).Info().
		Str("customer_id", req.CustomerID).
		Str("subtotal", result.Subtotal.String()).
		Str("discount", result.Discount.String()).
		Str("total", result.Total.String()).
		Strs("promotions", result.AppliedPromotions).
		Msg("Cart priced")
	return result, nil
}

// GetPrice 返回单个商品对某位客户的当前价格
func (s *PricingService) GetPrice(ctx context.Context, q PriceQuery) (*PriceQuote, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetPrice")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", q.ProductID))

	if q.ProductID == "" {
		return nil, fail(span, errors.Wrap(domain.ErrInvalidPricingRequest, "productId is required"))
	}
	if q.Quantity <= 0 {
		q.Quantity = 1
	}
	product, err := s.catalog.FindProduct(ctx, q.ProductID)
	if err != nil {
		return nil, fail(span, err)
	}
	rules, err := s.rules.ActiveRules(ctx, s.now())
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "load pricing rules"))
	}
	price, err := s.engine.CalculatePrice(product.BasePrice, domain.Facts{
		ProductID:    product.ID,
		Category:     product.Category,
		CustomerID:   q.CustomerID,
		CustomerType: q.CustomerType,
		Quantity:     q.Quantity,
		OrderAmount:  product.BasePrice.Mul(decimal.NewFromInt(int64(q.Quantity))),
	}, rules)
	if err != nil {
		return nil, fail(span, err)
	}
	return &PriceQuote{
		ProductID:    product.ID,
		Name:         product.Name,
		Category:     product.Category,
		Currency:     product.Currency,
		BasePrice:    product.BasePrice,
		FinalPrice:   price.FinalPrice.Round(moneyScale),
		AppliedRules: price.AppliedRuleIDs,
	}, nil
}

func (s *PricingService) countApplied(ids []string) {
	if s.metrics == nil {
		return
	}
	for _, id := range ids {
		s.metrics.PricingRulesApplied.WithLabelValues(id).Inc()
	}
}

func validateCart(req *CartPricingRequest) error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return errors.Wrap(domain.ErrInvalidPricingRequest, "customerId is required")
	}
	if len(req.Items) == 0 {
		return errors.Wrap(domain.ErrInvalidPricingRequest, "at least one item is required")
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return errors.Wrap(domain.ErrInvalidPricingRequest, "productId is required")
		}
		if item.Quantity <= 0 {
			return errors.Wrapf(domain.ErrInvalidPricingRequest, "product %s: quantity must be positive", item.ProductID)
		}
		if item.UnitPrice.IsNegative() {
			return errors.Wrapf(domain.ErrInvalidPricingRequest, "product %s: unit price cannot be negative", item.ProductID)
		}
	}
	return nil
}
