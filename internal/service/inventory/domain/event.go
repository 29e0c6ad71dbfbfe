// internal/service/inventory/domain/event.go
package domain

import (
	"time"

	"storefront/internal/pkg/domainevent"
)

const (
	EventStockReserved       = "inventory.stock_reserved"
	EventReservationReleased = "inventory.reservation_released"
	EventInventoryUpdated    = "inventory.updated"
	EventLowStockAlert       = "inventory.low_stock_alert"
)

const (
	ReasonReservationExpired   = "Reservation expired"
	ReasonManualRelease        = "Manual release"
	ReasonReservationConfirmed = "Reservation confirmed"
)

// StockReserved 库存被预留
type StockReserved struct {
	domainevent.Base
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// StockReservationReleased 预留被释放（手动、补偿或过期）
type StockReservationReleased struct {
	domainevent.Base
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason"`
}

// InventoryUpdated 总库存发生变化
type InventoryUpdated struct {
	domainevent.Base
	ProductID        string `json:"productId"`
	NewQuantity      int    `json:"newQuantity"`
	PreviousQuantity int    `json:"previousQuantity"`
	Reason           string `json:"reason"`
}

// LowStockAlert 总库存不高于补货线
type LowStockAlert struct {
	domainevent.Base
	ProductID        string `json:"productId"`
	CurrentQuantity  int    `json:"currentQuantity"`
	ReorderLevel     int    `json:"reorderLevel"`
	SuggestedReorder int    `json:"suggestedReorder"`
}
