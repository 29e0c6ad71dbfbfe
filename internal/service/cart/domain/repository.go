package domain

import "context"

// CartRepository 每个客户最多一辆购物车。
// Save 以 Version 做乐观并发控制：Version 为 0 表示新建，冲突时返回 ErrConcurrentModification。
type CartRepository interface {
	FindByCustomerID(ctx context.Context, customerID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, customerID string) error
}
