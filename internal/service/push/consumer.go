package push

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
)

// Topics 是推送给客户的事件来源
var Topics = []string{
	mq.TopicFor("cart.checkout_completed"),
	mq.TopicFor("order.created"),
}

// Notification 是写给客户端的消息
type Notification struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type customerEvent struct {
	CustomerID string `json:"customerId"`
}

// EventHandler 把带 customerId 的领域事件转发给该客户的所有连接
type EventHandler struct {
	hub *Hub
}

func NewEventHandler(hub *Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

// Handle 满足 mq.MessageHandler
func (h *EventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var evt customerEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return errors.Wrap(err, "decode event")
	}
	if evt.CustomerID == "" {
		return nil
	}

	eventType := ""
	for _, header := range msg.Headers {
		if header.Key == mq.HeaderEventType {
			eventType = string(header.Value)
		}
	}
	data, err := json.Marshal(Notification{Type: eventType, Payload: msg.Value})
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	n := h.hub.Deliver(evt.CustomerID, data)
	logger.Ctx(ctx).Debug().
		Str("customer_id", evt.CustomerID).
		Str("event_type", eventType).
		Int("connections", n).
		Msg("Event pushed")
	return nil
}
