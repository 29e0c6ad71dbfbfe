package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	cartdomain "storefront/internal/service/cart/domain"
)

type LoadCartHandler struct {
	NextHandler
	deps *Deps
}

func (h *LoadCartHandler) Handle(cc *CheckoutContext) error {
	err := h.deps.step(cc, "LoadCart", func(ctx context.Context, span trace.Span) error {
		cart, err := h.deps.Carts.FindByCustomerID(ctx, cc.Request.CustomerID)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String("cart.id", cart.ID), attribute.Int("cart.items", cart.ItemCount()))
		if cart.IsEmpty() {
			return errors.Wrap(cartdomain.ErrInvalidCartOperation, "cannot checkout an empty cart")
		}
		cc.Cart = cart
		return nil
	})
	if err != nil {
		return err
	}
	return h.executeNext(cc)
}

type InitiateCheckoutHandler struct {
	NextHandler
	deps *Deps
}

func (h *InitiateCheckoutHandler) Handle(cc *CheckoutContext) error {
	err := h.deps.step(cc, "InitiateCheckout", func(ctx context.Context, span trace.Span) error {
		events, err := cc.Cart.InitiateCheckout(h.deps.now())
		if err != nil {
			return err
		}
		cc.addEvents(events...)
		logger.Ctx(ctx).Info().
			Str("customer_id", cc.Request.CustomerID).
			Str("cart_id", cc.Cart.ID).
			Str("cart_total", cc.Cart.TotalAmount().String()).
			Msg("Checkout initiated")
		return nil
	})
	if err != nil {
		return err
	}
	return h.executeNext(cc)
}

// CompleteCheckoutHandler 清空购物车并持久化。订单已创建，此后的失败不再补偿。
type CompleteCheckoutHandler struct {
	NextHandler
	deps *Deps
}

func (h *CompleteCheckoutHandler) Handle(cc *CheckoutContext) error {
	err := h.deps.step(cc, "CompleteCheckout", func(ctx context.Context, span trace.Span) error {
		at := h.deps.now()
		events, err := cc.Cart.CompleteCheckout(at, cc.OrderID)
		if err != nil {
			return err
		}
		cc.addEvents(events...)
		if err := h.deps.Carts.Save(ctx, cc.Cart); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("customer_id", cc.Request.CustomerID).
				Str("order_id", cc.OrderID).
				Msg("Order created but cart could not be finalised")
			return errors.Wrapf(err, "order %s created but cart could not be saved", cc.OrderID)
		}
		cc.CompletedAt = at
		h.deps.publish(ctx, cc.drainEvents())
		return nil
	})
	if err != nil {
		return err
	}
	return h.executeNext(cc)
}
