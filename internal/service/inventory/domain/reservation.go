// internal/service/inventory/domain/reservation.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockReservation 是一次有时限的库存占用，创建后不可变，只会被移除。
type StockReservation struct {
	ID        string
	Quantity  int
	CreatedAt time.Time
	ExpiresAt time.Time
	Reference string // 可选，批量预留时为批次 id
}

func newStockReservation(at time.Time, quantity int, duration time.Duration, reference string) (StockReservation, error) {
	if quantity <= 0 {
		return StockReservation{}, invalid("reservation quantity must be positive")
	}
	if duration <= 0 {
		return StockReservation{}, invalid("reservation duration must be positive")
	}
	return StockReservation{
		ID:        uuid.NewString(),
		Quantity:  quantity,
		CreatedAt: at,
		ExpiresAt: at.Add(duration),
		Reference: reference,
	}, nil
}

// IsExpired 严格晚于 ExpiresAt 才算过期。
func (r StockReservation) IsExpired(at time.Time) bool {
	return at.After(r.ExpiresAt)
}
