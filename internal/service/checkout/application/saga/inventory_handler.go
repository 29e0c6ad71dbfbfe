package saga

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	cartdomain "storefront/internal/service/cart/domain"
	"storefront/internal/service/checkout/domain/port"
)

func stockLines(cart *cartdomain.Cart) []port.StockLine {
	lines := make([]port.StockLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, port.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// AvailabilityHandler 任一商品不可用即中止，此时不会尝试预留
type AvailabilityHandler struct {
	NextHandler
	deps *Deps
}

func (h *AvailabilityHandler) Handle(cc *CheckoutContext) error {
	err := h.deps.step(cc, "CheckAvailability", func(ctx context.Context, span trace.Span) error {
		lines := stockLines(cc.Cart)
		callCtx, cancel := withTimeout(ctx, h.deps.Timeouts.Inventory)
		defer cancel()

		availability, err := h.deps.Inventory.CheckAvailability(callCtx, lines)
		if err != nil {
			return errors.Wrap(err, "check availability")
		}
		var unavailable []string
		for _, line := range lines {
			if !availability[line.ProductID] {
				unavailable = append(unavailable, line.ProductID)
			}
		}
		cc.Unavailable = unavailable
		if len(unavailable) > 0 {
			span.SetAttributes(attribute.StringSlice("unavailable_products", unavailable))
			return errors.Wrapf(cartdomain.ErrInvalidCartOperation,
				"products not available: %s", strings.Join(unavailable, ", "))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return h.executeNext(cc)
}

// ReservationHandler 整车一次预留，成功后注册释放预留的补偿
type ReservationHandler struct {
	NextHandler
	deps *Deps
}

func (h *ReservationHandler) Handle(cc *CheckoutContext) error {
	err := h.deps.step(cc, "ReserveStock", func(ctx context.Context, span trace.Span) error {
		callCtx, cancel := withTimeout(ctx, h.deps.Timeouts.Inventory)
		defer cancel()

		result, err := h.deps.Inventory.Reserve(callCtx, cc.Request.CustomerID, stockLines(cc.Cart))
		if err != nil {
			return errors.Wrap(err, "reserve stock")
		}
		if !result.Success {
			span.SetAttributes(attribute.StringSlice("unavailable_products", result.UnavailableProducts))
			return errors.Wrapf(cartdomain.ErrInvalidCartOperation, "stock reservation failed: %s", result.Error)
		}
		if result.ReservationID == "" {
			return errors.Wrap(cartdomain.ErrInvalidCartOperation, "stock reservation returned no reservation id")
		}

		reservationID := result.ReservationID
		cc.ReservationID = reservationID
		span.SetAttributes(attribute.String("reservation.id", reservationID))

		cc.AddCompensation("release_reservation", func(ctx context.Context) error {
			ctx, span := h.deps.Tracer.Start(ctx, "compensation.ReleaseReservation")
			defer span.End()
			span.SetAttributes(attribute.String("reservation.id", reservationID))

			released, err := h.deps.Inventory.ReleaseReservation(ctx, reservationID)
			if err != nil {
				span.RecordError(err)
				return errors.Wrapf(err, "release reservation %s", reservationID)
			}
			log := logger.Ctx(ctx).With().Str("reservation_id", reservationID).Logger()
			if !released {
				log.Warn().Msg("Reservation already gone when compensating")
				return nil
			}
			log.Info().Msg("Reservation released by compensation")
			return nil
		})
		return nil
	})
	if err != nil {
		return err
	}
	return h.executeNext(cc)
}
