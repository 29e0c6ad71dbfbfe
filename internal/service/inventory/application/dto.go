package application

import (
	"time"

	"storefront/internal/service/inventory/domain"
)

// CreateItemRequest 是创建库存条目的请求体
type CreateItemRequest struct {
	ProductID       string `json:"productId"`
	InitialQuantity int    `json:"initialQuantity"`
	ReorderLevel    int    `json:"reorderLevel"`
	MaxStockLevel   int    `json:"maxStockLevel"`
}

type AdjustStockRequest struct {
	ProductID string `json:"productId"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

type UpdateLevelsRequest struct {
	ProductID     string `json:"productId"`
	ReorderLevel  int    `json:"reorderLevel"`
	MaxStockLevel int    `json:"maxStockLevel"`
}

// StockLine 是一个商品及其数量
type StockLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ReserveBatchRequest 对应结账时的一次整体预留
type ReserveBatchRequest struct {
	CustomerID string      `json:"customerId"`
	Items      []StockLine `json:"items"`
	TTLSeconds int         `json:"ttlSeconds,omitempty"` // 0 表示使用默认时长
}

// ReserveBatchResult 失败时 Success 为 false，UnavailableProducts 列出库存不足或不存在的商品
type ReserveBatchResult struct {
	Success             bool           `json:"success"`
	ReservationID       string         `json:"reservationId,omitempty"`
	ReservedQuantities  map[string]int `json:"reservedQuantities,omitempty"`
	UnavailableProducts []string       `json:"unavailableProducts,omitempty"`
	Error               string         `json:"error,omitempty"`
}

type ReservationDTO struct {
	ID        string    `json:"id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Reference string    `json:"reference,omitempty"`
	Expired   bool      `json:"expired"`
}

// ItemDTO 是库存条目的只读视图，数量均按查询时刻计算
type ItemDTO struct {
	ID                string           `json:"id"`
	ProductID         string           `json:"productId"`
	AvailableQuantity int              `json:"availableQuantity"`
	ReservedQuantity  int              `json:"reservedQuantity"`
	TotalQuantity     int              `json:"totalQuantity"`
	ReorderLevel      int              `json:"reorderLevel"`
	MaxStockLevel     int              `json:"maxStockLevel"`
	IsLowStock        bool             `json:"isLowStock"`
	LastUpdated       time.Time        `json:"lastUpdated"`
	Version           int64            `json:"version"`
	Reservations      []ReservationDTO `json:"reservations"`
}

func toItemDTO(item *domain.InventoryItem, at time.Time) *ItemDTO {
	dto := &ItemDTO{
		ID:                item.ID,
		ProductID:         item.ProductID,
		AvailableQuantity: item.AvailableQuantity,
		ReservedQuantity:  item.ReservedQuantity(at),
		TotalQuantity:     item.TotalQuantity(at),
		ReorderLevel:      item.ReorderLevel,
		MaxStockLevel:     item.MaxStockLevel,
		IsLowStock:        item.IsLowStock(at),
		LastUpdated:       item.LastUpdated,
		Version:           item.Version,
		Reservations:      make([]ReservationDTO, 0, len(item.Reservations)),
	}
	for _, r := range item.Reservations {
		dto.Reservations = append(dto.Reservations, toReservationDTO(r, at))
	}
	return dto
}

func toReservationDTO(r domain.StockReservation, at time.Time) ReservationDTO {
	return ReservationDTO{
		ID:        r.ID,
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
		Reference: r.Reference,
		Expired:   r.IsExpired(at),
	}
}
