package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	cartdomain "storefront/internal/service/cart/domain"
	"storefront/internal/service/checkout/domain/port"
)

// MetadataReservationID 订单元数据中记录库存预留 id，库存服务据此确认或释放预留
const MetadataReservationID = "reservationId"

// 订单金额按明细求和，不含折扣和税；定价结果原样记录在元数据中
const (
	MetadataPricedTotal = "pricedTotal"
	MetadataDiscount    = "pricingDiscount"
	MetadataTax         = "pricingTax"
)

type CreateOrderHandler struct {
	NextHandler
	deps *Deps
}

func (h *CreateOrderHandler) Handle(cc *CheckoutContext) error {
	err := h.deps.step(cc, "CreateOrder", func(ctx context.Context, span trace.Span) error {
		req := h.buildRequest(cc)
		callCtx, cancel := withTimeout(ctx, h.deps.Timeouts.Order)
		defer cancel()

		result, err := h.deps.Orders.CreateOrder(callCtx, req)
		switch {
		case err != nil:
			return errors.Wrapf(cartdomain.ErrInvalidCartOperation, "order creation failed: %v", err)
		case !result.Success:
			return errors.Wrapf(cartdomain.ErrInvalidCartOperation, "order creation failed: %s", result.Error)
		case result.OrderID == "":
			return errors.Wrap(cartdomain.ErrInvalidCartOperation, "order creation returned no order id")
		}

		cc.OrderID = result.OrderID
		span.SetAttributes(attribute.String("order.id", result.OrderID))
		// 预留此后由订单事件驱动确认或释放
		cc.Commit()
		logger.Ctx(ctx).Info().
			Str("customer_id", cc.Request.CustomerID).
			Str("order_id", result.OrderID).
			Str("reservation_id", cc.ReservationID).
			Msg("Order created for checkout")
		return nil
	})
	if err != nil {
		return err
	}
	return h.executeNext(cc)
}

// buildRequest 单价取定价结果，定价结果中缺失的商品沿用购物车价格
func (h *CreateOrderHandler) buildRequest(cc *CheckoutContext) *port.CreateOrderRequest {
	items := make([]port.OrderLine, 0, len(cc.Cart.Items))
	for _, item := range cc.Cart.Items {
		price := item.UnitPrice
		if p, ok := cc.Pricing.ItemPrices[item.ProductID]; ok {
			price = p
		}
		items = append(items, port.OrderLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   price,
			Currency:    cc.Cart.Currency,
		})
	}

	metadata := make(map[string]string, len(cc.Request.Metadata)+4)
	for k, v := range cc.Request.Metadata {
		metadata[k] = v
	}
	metadata[MetadataReservationID] = cc.ReservationID
	metadata[MetadataPricedTotal] = cc.Pricing.Total.StringFixed(2)
	metadata[MetadataDiscount] = cc.Pricing.Discount.StringFixed(2)
	metadata[MetadataTax] = cc.Pricing.Tax.StringFixed(2)

	return &port.CreateOrderRequest{
		CustomerID:      cc.Request.CustomerID,
		Items:           items,
		Currency:        cc.Cart.Currency,
		TotalAmount:     cc.Pricing.Total,
		ShippingAddress: cc.Request.ShippingAddress,
		PaymentMethod:   cc.Request.PaymentMethod,
		Metadata:        metadata,
	}
}
