package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/service/checkout/domain/port"
)

// PricingHandler 向定价服务取得权威价格，这是唯一允许价格偏离购物车展示值的地方
type PricingHandler struct {
	NextHandler
	deps *Deps
}

func (h *PricingHandler) Handle(cc *CheckoutContext) error {
	err := h.deps.step(cc, "CalculatePricing", func(ctx context.Context, span trace.Span) error {
		lines := make([]port.PricingLine, 0, len(cc.Cart.Items))
		for _, item := range cc.Cart.Items {
			lines = append(lines, port.PricingLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
		}

		callCtx, cancel := withTimeout(ctx, h.deps.Timeouts.Pricing)
		defer cancel()
		pricing, err := h.deps.Pricing.CalculateCartPricing(callCtx, cc.Request.CustomerID, lines)
		if err != nil {
			return errors.Wrap(err, "calculate cart pricing")
		}
		cc.Pricing = pricing
		span.SetAttributes(
			attribute.String("pricing.total", pricing.Total.String()),
			attribute.StringSlice("pricing.promotions", pricing.AppliedPromotions),
		)
		return nil
	})
	if err != nil {
		return err
	}
	return h.executeNext(cc)
}
