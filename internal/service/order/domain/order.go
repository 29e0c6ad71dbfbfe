// internal/service/order/domain/order.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/domainevent"
)

// MetadataReservationID 是 Metadata 中记录库存预留批次的键，随订单事件带出。
const MetadataReservationID = "reservationId"

// Details 是下单时附带的配送与支付信息，除预留批次外订单不解释其内容。
type Details struct {
	ShippingAddress string
	PaymentMethod   string
	Metadata        map[string]string
}

// Order 是订单聚合的根实体。
// 订单行和总额在创建时确定，之后只有状态会变化。
type Order struct {
	ID                 string
	CustomerID         string
	Status             Status
	Items              []OrderItem
	TotalAmount        decimal.Decimal
	Currency           string
	Details            Details
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancellationReason string
	Version            int64
}

// NewOrder 用于创建一个新的订单实例，所有订单行必须与订单币种一致。
func NewOrder(at time.Time, customerID string, items []OrderItem, currency string, details Details) (*Order, []domainevent.Event, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	switch {
	case customerID == "":
		return nil, nil, invalid("customer id is required")
	case len(items) == 0:
		return nil, nil, invalid("order must contain at least one item")
	case currency == "":
		return nil, nil, invalid("currency is required")
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Currency != currency {
			return nil, nil, invalid("all order items must have the same currency")
		}
		total = total.Add(item.TotalPrice())
	}

	o := &Order{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		Status:      StatusPending,
		Items:       append([]OrderItem(nil), items...),
		TotalAmount: total,
		Currency:    currency,
		Details:     details,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	return o, []domainevent.Event{&OrderCreated{
		Base:          domainevent.NewBase(EventOrderCreated, o.ID, at),
		CustomerID:    o.CustomerID,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		ReservationID: o.ReservationID(),
		CreatedAt:     at,
	}}, nil
}

func (o *Order) Confirm(at time.Time) ([]domainevent.Event, error) {
	return o.changeStatus(at, StatusConfirmed)
}

func (o *Order) StartProcessing(at time.Time) ([]domainevent.Event, error) {
	return o.changeStatus(at, StatusProcessing)
}

func (o *Order) MarkAsShipped(at time.Time) ([]domainevent.Event, error) {
	return o.changeStatus(at, StatusShipped)
}

func (o *Order) MarkAsDelivered(at time.Time) ([]domainevent.Event, error) {
	return o.changeStatus(at, StatusDelivered)
}

// Cancel 需要非空原因，先发 OrderCancelled 再发 OrderStatusChanged。
func (o *Order) Cancel(at time.Time, reason string) ([]domainevent.Event, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("cancellation reason is required")
	}
	if err := o.validateTransition(StatusCancelled); err != nil {
		return nil, err
	}

	previous := o.Status
	o.Status = StatusCancelled
	o.CancellationReason = reason
	o.UpdatedAt = at

	return []domainevent.Event{
		&OrderCancelled{
			Base:          domainevent.NewBase(EventOrderCancelled, o.ID, at),
			CustomerID:    o.CustomerID,
			Reason:        reason,
			ReservationID: o.ReservationID(),
			CancelledAt:   at,
		},
		&OrderStatusChanged{
			Base:           domainevent.NewBase(EventOrderStatusChanged, o.ID, at),
			CustomerID:     o.CustomerID,
			PreviousStatus: previous,
			NewStatus:      StatusCancelled,
			Reason:         reason,
			ReservationID:  o.ReservationID(),
		},
	}, nil
}

// ReservationID 返回下单时关联的库存预留批次，没有时为空。
func (o *Order) ReservationID() string {
	return o.Details.Metadata[MetadataReservationID]
}

func (o *Order) CanBeCancelled() bool { return o.Status.CanTransitionTo(StatusCancelled) }

func (o *Order) IsTerminal() bool { return o.Status.IsTerminal() }

func (o *Order) IsActive() bool { return !o.Status.IsTerminal() }

func (o *Order) validateTransition(to Status) error {
	if !o.Status.CanTransitionTo(to) {
		return &InvalidStateTransitionError{From: o.Status, To: to}
	}
	return nil
}

func (o *Order) changeStatus(at time.Time, to Status) ([]domainevent.Event, error) {
	if err := o.validateTransition(to); err != nil {
		return nil, err
	}
	previous := o.Status
	o.Status = to
	o.UpdatedAt = at
	return []domainevent.Event{&OrderStatusChanged{
		Base:           domainevent.NewBase(EventOrderStatusChanged, o.ID, at),
		CustomerID:     o.CustomerID,
		PreviousStatus: previous,
		NewStatus:      to,
		ReservationID:  o.ReservationID(),
	}}, nil
}
