// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidReservation     = errors.New("invalid reservation")
	ErrCapacityExceeded       = errors.New("exceeds maximum stock level")
	ErrInvalidInventory       = errors.New("invalid inventory operation")
	ErrInventoryNotFound      = errors.New("inventory item not found")
	ErrInventoryExists        = errors.New("inventory item already exists")
	ErrConcurrentModification = errors.New("inventory item was modified concurrently")
)

// InsufficientStockError 携带请求量和当前可用量。
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InvalidReservationError 表示预留不存在或已过期。
type InvalidReservationError struct {
	ReservationID string
	Reason        string
}

func (e *InvalidReservationError) Error() string {
	return fmt.Sprintf("invalid reservation %s: %s", e.ReservationID, e.Reason)
}

func (e *InvalidReservationError) Is(target error) bool { return target == ErrInvalidReservation }

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInventory, fmt.Sprintf(format, args...))
}
