// internal/service/inventory/domain/repository.go
package domain

import (
	"context"
	"time"
)

// InventoryRepository 定义库存聚合的持久化接口，由基础设施层实现。
type InventoryRepository interface {
	// Create 保存新条目，商品已存在时返回 ErrInventoryExists。
	Create(ctx context.Context, item *InventoryItem) error

	// Save 以 item.Version 做比较并交换，成功后递增 Version；版本不符返回 ErrConcurrentModification。
	Save(ctx context.Context, item *InventoryItem) error

	// FindByProductID 找不到时返回 ErrInventoryNotFound。
	FindByProductID(ctx context.Context, productID string) (*InventoryItem, error)

	FindByProductIDs(ctx context.Context, productIDs []string) ([]*InventoryItem, error)

	// FindByReference 返回持有该批次预留的所有条目。
	FindByReference(ctx context.Context, reference string) ([]*InventoryItem, error)

	// FindWithExpiredReservations 返回存在 at 时刻已过期预留的条目，最多 limit 条。
	FindWithExpiredReservations(ctx context.Context, at time.Time, limit int) ([]*InventoryItem, error)

	// FindLowStock 返回可用量不高于补货线的候选条目，调用方再按总量过滤。
	FindLowStock(ctx context.Context) ([]*InventoryItem, error)
}
