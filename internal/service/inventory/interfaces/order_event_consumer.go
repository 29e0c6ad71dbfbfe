package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
)

const (
	orderEventStatusChanged = "order.status_changed"
	orderEventCancelled     = "order.cancelled"
	orderStatusConfirmed    = "Confirmed"

	// ReasonOrderCancelled 是订单取消导致释放预留时记录的原因
	ReasonOrderCancelled = "Order cancelled"
)

// OrderEventsTopic 是订单服务发布领域事件的主题
var OrderEventsTopic = mq.TopicFor(orderEventStatusChanged)

// ReservationFinalizer 是订单事件驱动的预留收尾操作，由 InventoryService 实现。
type ReservationFinalizer interface {
	ConfirmBatch(ctx context.Context, batchID string) (int, error)
	ReleaseBatch(ctx context.Context, batchID, reason string) (int, error)
}

// orderEvent 只解析收尾需要的字段，不依赖订单服务的包
type orderEvent struct {
	AggregateID   string `json:"aggregateId"`
	NewStatus     string `json:"newStatus"`
	ReservationID string `json:"reservationId"`
}

// OrderEventHandler 订单确认时确认对应的库存预留，订单取消时释放。
type OrderEventHandler struct {
	finalizer ReservationFinalizer
}

func NewOrderEventHandler(finalizer ReservationFinalizer) *OrderEventHandler {
	return &OrderEventHandler{finalizer: finalizer}
}

// Handle 满足 mq.MessageHandler
func (h *OrderEventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg, mq.HeaderEventType)
	if eventType != orderEventStatusChanged && eventType != orderEventCancelled {
		return nil
	}

	var evt orderEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return errors.Wrapf(err, "decode %s", eventType)
	}
	if evt.ReservationID == "" {
		return nil
	}

	log := logger.Ctx(ctx).With().
		Str("order_id", evt.AggregateID).
		Str("reservation_id", evt.ReservationID).
		Logger()

	switch {
	case eventType == orderEventStatusChanged && evt.NewStatus == orderStatusConfirmed:
		n, err := h.finalizer.ConfirmBatch(ctx, evt.ReservationID)
		if err != nil {
			return errors.Wrap(err, "confirm reservation batch")
		}
		log.Info().Int("items", n).Msg("Reservation confirmed for order")
	case eventType == orderEventCancelled:
		n, err := h.finalizer.ReleaseBatch(ctx, evt.ReservationID, ReasonOrderCancelled)
		if err != nil {
			return errors.Wrap(err, "release reservation batch")
		}
		if n == 0 {
			// 预留已确认或已过期，库存不会自动回补
			log.Warn().Msg("No open reservation for cancelled order")
			return nil
		}
		log.Info().Int("items", n).Msg("Reservation released for cancelled order")
	}
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
