// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 保存新订单及其订单行。
	Create(ctx context.Context, order *Order) error

	// Save 只更新状态相关字段，按 Version 比较并交换，成功后递增 Version。
	Save(ctx context.Context, order *Order) error

	// FindByID 找不到时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByCustomerID 按创建时间倒序。
	FindByCustomerID(ctx context.Context, customerID string, limit int) ([]*Order, error)
}
