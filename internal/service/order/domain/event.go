// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/pkg/domainevent"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// OrderCreated 订单已创建
type OrderCreated struct {
	domainevent.Base
	CustomerID    string          `json:"customerId"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	ReservationID string          `json:"reservationId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// OrderStatusChanged 任意一次合法的状态迁移
type OrderStatusChanged struct {
	domainevent.Base
	CustomerID     string `json:"customerId"`
	PreviousStatus Status `json:"previousStatus"`
	NewStatus      Status `json:"newStatus"`
	Reason         string `json:"reason,omitempty"`
	ReservationID  string `json:"reservationId,omitempty"`
}

// OrderCancelled 订单被取消
type OrderCancelled struct {
	domainevent.Base
	CustomerID    string    `json:"customerId"`
	Reason        string    `json:"reason"`
	ReservationID string    `json:"reservationId,omitempty"`
	CancelledAt   time.Time `json:"cancelledAt"`
}
