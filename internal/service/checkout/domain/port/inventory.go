package port

import (
	"context"
)

// StockLine 是一次库存查询或预留中的一行
type StockLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ReservationResult 是整单预留的结果。Success 为 false 时不会留下任何预留。
type ReservationResult struct {
	Success             bool
	ReservationID       string
	ReservedQuantities  map[string]int
	UnavailableProducts []string
	Error               string
}

// InventoryService 是库存服务的出站端口。
type InventoryService interface {
	IsAvailable(ctx context.Context, productID string, quantity int) (bool, error)

	// CheckAvailability 返回每个商品是否有足够的可用库存，未知商品视为不可用。
	CheckAvailability(ctx context.Context, items []StockLine) (map[string]bool, error)

	// Reserve 为整车商品做一次全有或全无的预留。
	Reserve(ctx context.Context, customerID string, items []StockLine) (*ReservationResult, error)

	// ReleaseReservation 是 Reserve 的补偿操作。
	ReleaseReservation(ctx context.Context, reservationID string) (bool, error)
}
