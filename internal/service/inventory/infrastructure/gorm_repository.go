package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/service/inventory/domain"
)

// GormInventoryRepository 是 InventoryRepository 的 GORM 实现。
// 条目行和预留行在同一事务中写入，条目行通过 version 列做比较并交换。
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository 创建一个新的 GORM 仓储实例
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

func (r *GormInventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	model := FromDomainInventoryItem(item)
	err := r.db.WithContext(ctx).Create(model).Error
	if bootstrap.IsDuplicateKey(err) {
		return domain.ErrInventoryExists
	}
	return err
}

// Save 仅当数据库中的 version 与 item.Version 一致时才写入
func (r *GormInventoryRepository) Save(ctx context.Context, item *domain.InventoryItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&InventoryItemModel{}).
			Where("id = ? AND version = ?", item.ID, item.Version).
			Updates(map[string]interface{}{
				"available_quantity": item.AvailableQuantity,
				"reorder_level":      item.ReorderLevel,
				"max_stock_level":    item.MaxStockLevel,
				"last_updated":       item.LastUpdated,
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConcurrentModification
		}

		// 预留行整体替换
		if err := tx.Where("inventory_item_id = ?", item.ID).Delete(&StockReservationModel{}).Error; err != nil {
			return err
		}
		if reservations := fromDomainReservations(item); len(reservations) > 0 {
			if err := tx.Create(&reservations).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	item.Version++
	return nil
}

func (r *GormInventoryRepository) FindByProductID(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	var model InventoryItemModel
	err := r.db.WithContext(ctx).Preload("Reservations").Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInventoryNotFound
		}
		return nil, err
	}
	return ToDomainInventoryItem(&model), nil
}

func (r *GormInventoryRepository) FindByProductIDs(ctx context.Context, productIDs []string) ([]*domain.InventoryItem, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	return r.find(r.db.WithContext(ctx).Where("product_id IN ?", productIDs))
}

func (r *GormInventoryRepository) FindByReference(ctx context.Context, reference string) ([]*domain.InventoryItem, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&StockReservationModel{}).Select("inventory_item_id").Where("reference = ?", reference)
	return r.find(db.Where("id IN (?)", sub))
}

func (r *GormInventoryRepository) FindWithExpiredReservations(ctx context.Context, at time.Time, limit int) ([]*domain.InventoryItem, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&StockReservationModel{}).Select("inventory_item_id").Where("expires_at < ?", at)
	return r.find(db.Where("id IN (?)", sub).Limit(limit))
}

func (r *GormInventoryRepository) FindLowStock(ctx context.Context) ([]*domain.InventoryItem, error) {
	return r.find(r.db.WithContext(ctx).Where("available_quantity <= reorder_level"))
}

func (r *GormInventoryRepository) find(query *gorm.DB) ([]*domain.InventoryItem, error) {
	var models []InventoryItemModel
	if err := query.Preload("Reservations").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]*domain.InventoryItem, 0, len(models))
	for i := range models {
		items = append(items, ToDomainInventoryItem(&models[i]))
	}
	return items, nil
}
