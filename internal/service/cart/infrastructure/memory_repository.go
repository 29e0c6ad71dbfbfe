package infrastructure

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"storefront/internal/service/cart/domain"
)

// MemoryCartRepository 未配置 Redis 时使用，也用于测试
type MemoryCartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{carts: make(map[string]*domain.Cart)}
}

func (r *MemoryCartRepository) FindByCustomerID(_ context.Context, customerID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cart, ok := r.carts[customerID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrCartNotFound, "customer %s", customerID)
	}
	return cloneCart(cart), nil
}

func (r *MemoryCartRepository) Save(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current int64
	if stored, ok := r.carts[cart.CustomerID]; ok {
		current = stored.Version
	}
	if current != cart.Version {
		return errors.Wrapf(domain.ErrConcurrentModification, "customer %s at version %d", cart.CustomerID, cart.Version)
	}
	cart.Version++
	r.carts[cart.CustomerID] = cloneCart(cart)
	return nil
}

func (r *MemoryCartRepository) Delete(_ context.Context, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, customerID)
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem{}, c.Items...)
	return &cp
}
