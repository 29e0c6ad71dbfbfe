// internal/service/inventory/domain/item.go
package domain

import (
	"time"

	"github.com/google/uuid"

	"storefront/internal/pkg/domainevent"
)

// InventoryItem 是库存聚合根，每个商品一条，从不删除。
// 所有方法都显式接收当前时间 at，过期判断因此是确定的。
// 变更方法返回本次产生的有序事件，由应用层在持久化成功后发布。
type InventoryItem struct {
	ID                string
	ProductID         string
	AvailableQuantity int
	ReorderLevel      int
	MaxStockLevel     int
	Reservations      []StockReservation
	LastUpdated       time.Time
	Version           int64 // 乐观锁版本号，由仓储维护
}

// NewInventoryItem 创建库存条目。初始库存同样受 MaxStockLevel 约束。
func NewInventoryItem(at time.Time, productID string, initialQuantity, reorderLevel, maxStockLevel int) (*InventoryItem, []domainevent.Event, error) {
	if productID == "" {
		return nil, nil, invalid("product id is required")
	}
	if initialQuantity < 0 {
		return nil, nil, invalid("initial quantity cannot be negative")
	}
	if err := validateLevels(reorderLevel, maxStockLevel); err != nil {
		return nil, nil, err
	}
	if initialQuantity > maxStockLevel {
		return nil, nil, ErrCapacityExceeded
	}

	item := &InventoryItem{
		ID:                uuid.NewString(),
		ProductID:         productID,
		AvailableQuantity: initialQuantity,
		ReorderLevel:      reorderLevel,
		MaxStockLevel:     maxStockLevel,
		LastUpdated:       at,
	}
	return item, item.checkLowStock(at, nil), nil
}

func validateLevels(reorderLevel, maxStockLevel int) error {
	switch {
	case reorderLevel < 0:
		return invalid("reorder level cannot be negative")
	case maxStockLevel <= 0:
		return invalid("max stock level must be positive")
	case reorderLevel >= maxStockLevel:
		return invalid("reorder level must be less than max stock level")
	}
	return nil
}

// ReservedQuantity 只统计未过期的预留。
func (i *InventoryItem) ReservedQuantity(at time.Time) int {
	total := 0
	for _, r := range i.Reservations {
		if !r.IsExpired(at) {
			total += r.Quantity
		}
	}
	return total
}

func (i *InventoryItem) TotalQuantity(at time.Time) int {
	return i.AvailableQuantity + i.ReservedQuantity(at)
}

// IsLowStock 总库存不高于补货线。
func (i *InventoryItem) IsLowStock(at time.Time) bool {
	return i.TotalQuantity(at) <= i.ReorderLevel
}

// HasExpired 是否存在已过期但尚未清理的预留。
func (i *InventoryItem) HasExpired(at time.Time) bool {
	for _, r := range i.Reservations {
		if r.IsExpired(at) {
			return true
		}
	}
	return false
}

func (i *InventoryItem) indexOf(reservationID string) int {
	for idx, r := range i.Reservations {
		if r.ID == reservationID {
			return idx
		}
	}
	return -1
}

// Reservation 按 id 查找预留。
func (i *InventoryItem) Reservation(reservationID string) (StockReservation, bool) {
	if idx := i.indexOf(reservationID); idx >= 0 {
		return i.Reservations[idx], true
	}
	return StockReservation{}, false
}

// Reserve 先清理过期预留，再尝试占用库存。
// 库存不足时除了清理之外状态不变。
func (i *InventoryItem) Reserve(at time.Time, quantity int, duration time.Duration, reference string) (StockReservation, []domainevent.Event, error) {
	if quantity <= 0 {
		return StockReservation{}, nil, invalid("reservation quantity must be positive")
	}
	events := i.sweep(at)

	if i.AvailableQuantity < quantity {
		if len(events) > 0 {
			events = i.checkLowStock(at, events)
		}
		return StockReservation{}, events, &InsufficientStockError{ProductID: i.ProductID, Requested: quantity, Available: i.AvailableQuantity}
	}

	reservation, err := newStockReservation(at, quantity, duration, reference)
	if err != nil {
		if len(events) > 0 {
			events = i.checkLowStock(at, events)
		}
		return StockReservation{}, events, err
	}
	i.Reservations = append(i.Reservations, reservation)
	i.AvailableQuantity -= quantity
	i.LastUpdated = at

	events = append(events, StockReserved{
		Base:          domainevent.NewBase(EventStockReserved, i.ID, at),
		ProductID:     i.ProductID,
		Quantity:      quantity,
		ReservationID: reservation.ID,
		ExpiresAt:     reservation.ExpiresAt,
	})
	return reservation, i.checkLowStock(at, events), nil
}

// SweepExpired 把所有过期预留归还到可用库存，有归还时再检查补货线。
func (i *InventoryItem) SweepExpired(at time.Time) []domainevent.Event {
	events := i.sweep(at)
	if len(events) == 0 {
		return nil
	}
	return i.checkLowStock(at, events)
}

func (i *InventoryItem) sweep(at time.Time) []domainevent.Event {
	var events []domainevent.Event
	kept := i.Reservations[:0]
	for _, r := range i.Reservations {
		if !r.IsExpired(at) {
			kept = append(kept, r)
			continue
		}
		i.AvailableQuantity += r.Quantity
		events = append(events, i.released(at, r, ReasonReservationExpired))
	}
	i.Reservations = kept
	if len(events) > 0 {
		i.LastUpdated = at
	}
	return events
}

// Release 释放预留并归还库存，reason 为空时记为手动释放。
func (i *InventoryItem) Release(at time.Time, reservationID, reason string) ([]domainevent.Event, error) {
	idx := i.indexOf(reservationID)
	if idx < 0 {
		return nil, &InvalidReservationError{ReservationID: reservationID, Reason: "reservation not found"}
	}
	if reason == "" {
		reason = ReasonManualRelease
	}
	r := i.Reservations[idx]
	i.Reservations = append(i.Reservations[:idx], i.Reservations[idx+1:]...)
	i.AvailableQuantity += r.Quantity
	i.LastUpdated = at

	return i.checkLowStock(at, []domainevent.Event{i.released(at, r, reason)}), nil
}

// Confirm 把预留转为实际出库：移除预留，不归还库存。
func (i *InventoryItem) Confirm(at time.Time, reservationID string) ([]domainevent.Event, error) {
	idx := i.indexOf(reservationID)
	if idx < 0 {
		return nil, &InvalidReservationError{ReservationID: reservationID, Reason: "reservation not found"}
	}
	r := i.Reservations[idx]
	if r.IsExpired(at) {
		return nil, &InvalidReservationError{ReservationID: reservationID, Reason: "reservation has expired"}
	}
	i.Reservations = append(i.Reservations[:idx], i.Reservations[idx+1:]...)
	i.LastUpdated = at

	newTotal := i.TotalQuantity(at)
	events := []domainevent.Event{InventoryUpdated{
		Base:             domainevent.NewBase(EventInventoryUpdated, i.ID, at),
		ProductID:        i.ProductID,
		NewQuantity:      newTotal,
		PreviousQuantity: newTotal + r.Quantity,
		Reason:           ReasonReservationConfirmed,
	}}
	return i.checkLowStock(at, events), nil
}

// AdjustStock 增减可用库存（盘点、入库、损耗）。
func (i *InventoryItem) AdjustStock(at time.Time, delta int, reason string) ([]domainevent.Event, error) {
	previousTotal := i.TotalQuantity(at)
	newAvailable := i.AvailableQuantity + delta

	if newAvailable < 0 {
		requested := delta
		if requested < 0 {
			requested = -requested
		}
		return nil, &InsufficientStockError{ProductID: i.ProductID, Requested: requested, Available: i.AvailableQuantity}
	}
	if newAvailable > i.MaxStockLevel {
		return nil, ErrCapacityExceeded
	}

	i.AvailableQuantity = newAvailable
	i.LastUpdated = at

	events := []domainevent.Event{InventoryUpdated{
		Base:             domainevent.NewBase(EventInventoryUpdated, i.ID, at),
		ProductID:        i.ProductID,
		NewQuantity:      i.TotalQuantity(at),
		PreviousQuantity: previousTotal,
		Reason:           reason,
	}}
	return i.checkLowStock(at, events), nil
}

// UpdateStockLevels 修改补货线和库存上限。降低上限不影响现有库存。
func (i *InventoryItem) UpdateStockLevels(at time.Time, reorderLevel, maxStockLevel int) ([]domainevent.Event, error) {
	if err := validateLevels(reorderLevel, maxStockLevel); err != nil {
		return nil, err
	}
	i.ReorderLevel = reorderLevel
	i.MaxStockLevel = maxStockLevel
	i.LastUpdated = at
	return i.checkLowStock(at, nil), nil
}

func (i *InventoryItem) released(at time.Time, r StockReservation, reason string) StockReservationReleased {
	return StockReservationReleased{
		Base:          domainevent.NewBase(EventReservationReleased, i.ID, at),
		ProductID:     i.ProductID,
		Quantity:      r.Quantity,
		ReservationID: r.ID,
		Reason:        reason,
	}
}

func (i *InventoryItem) checkLowStock(at time.Time, events []domainevent.Event) []domainevent.Event {
	total := i.TotalQuantity(at)
	if total > i.ReorderLevel {
		return events
	}
	return append(events, LowStockAlert{
		Base:             domainevent.NewBase(EventLowStockAlert, i.ID, at),
		ProductID:        i.ProductID,
		CurrentQuantity:  total,
		ReorderLevel:     i.ReorderLevel,
		SuggestedReorder: i.MaxStockLevel - total,
	})
}
