package infrastructure

import (
	"context"
	"sync"
	"time"

	"storefront/internal/service/inventory/domain"
)

// MemoryInventoryRepository 是进程内实现，语义与 GORM 版本一致（包括版本校验），
// 用于未配置 MySQL 的本地运行和测试。
type MemoryInventoryRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.InventoryItem // key: productID
}

func NewMemoryInventoryRepository() *MemoryInventoryRepository {
	return &MemoryInventoryRepository{items: make(map[string]*domain.InventoryItem)}
}

func cloneItem(item *domain.InventoryItem) *domain.InventoryItem {
	c := *item
	c.Reservations = append([]domain.StockReservation(nil), item.Reservations...)
	return &c
}

func (r *MemoryInventoryRepository) Create(_ context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ProductID]; ok {
		return domain.ErrInventoryExists
	}
	r.items[item.ProductID] = cloneItem(item)
	return nil
}

func (r *MemoryInventoryRepository) Save(_ context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ProductID]
	if !ok {
		return domain.ErrInventoryNotFound
	}
	if stored.Version != item.Version {
		return domain.ErrConcurrentModification
	}
	item.Version++
	r.items[item.ProductID] = cloneItem(item)
	return nil
}

func (r *MemoryInventoryRepository) FindByProductID(_ context.Context, productID string) (*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrInventoryNotFound
	}
	return cloneItem(item), nil
}

func (r *MemoryInventoryRepository) FindByProductIDs(_ context.Context, productIDs []string) ([]*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.InventoryItem
	for _, id := range productIDs {
		if item, ok := r.items[id]; ok {
			out = append(out, cloneItem(item))
		}
	}
	return out, nil
}

func (r *MemoryInventoryRepository) filter(keep func(*domain.InventoryItem) bool, limit int) []*domain.InventoryItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.InventoryItem
	for _, item := range r.items {
		if limit > 0 && len(out) >= limit {
			break
		}
		if keep(item) {
			out = append(out, cloneItem(item))
		}
	}
	return out
}

func (r *MemoryInventoryRepository) FindByReference(_ context.Context, reference string) ([]*domain.InventoryItem, error) {
	return r.filter(func(item *domain.InventoryItem) bool {
		for _, res := range item.Reservations {
			if res.Reference == reference {
				return true
			}
		}
		return false
	}, 0), nil
}

func (r *MemoryInventoryRepository) FindWithExpiredReservations(_ context.Context, at time.Time, limit int) ([]*domain.InventoryItem, error) {
	return r.filter(func(item *domain.InventoryItem) bool { return item.HasExpired(at) }, limit), nil
}

func (r *MemoryInventoryRepository) FindLowStock(_ context.Context) ([]*domain.InventoryItem, error) {
	return r.filter(func(item *domain.InventoryItem) bool { return item.AvailableQuantity <= item.ReorderLevel }, 0), nil
}
