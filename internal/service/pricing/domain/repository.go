package domain

import (
	"context"
	"time"
)

// RuleRepository 提供在某一时刻生效的规则
type RuleRepository interface {
	ActiveRules(ctx context.Context, at time.Time) ([]Rule, error)
}

// ProductCatalog 找不到商品时返回 ErrProductNotFound
type ProductCatalog interface {
	FindProduct(ctx context.Context, productID string) (*Product, error)
}
