package infrastructure

import (
	"sort"

	"storefront/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型，订单行按下单顺序还原
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	status, ok := domain.ParseStatus(model.Status)
	if !ok {
		status = domain.StatusPending
	}
	items := append([]OrderItemModel(nil), model.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	o := &domain.Order{
		ID:          model.ID,
		CustomerID:  model.CustomerID,
		Status:      status,
		TotalAmount: model.TotalAmount,
		Currency:    model.Currency,
		Details: domain.Details{
			ShippingAddress: model.ShippingAddress,
			PaymentMethod:   model.PaymentMethod,
			Metadata:        model.Metadata,
		},
		CreatedAt:          model.CreatedAt.UTC(),
		UpdatedAt:          model.UpdatedAt.UTC(),
		CancellationReason: model.CancellationReason,
		Version:            model.Version,
	}
	for _, it := range items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Currency:    it.Currency,
		})
	}
	return o
}

// FromDomainOrder 将领域模型转换为数据库模型
func FromDomainOrder(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}
	model := &OrderModel{
		ID:                 o.ID,
		CustomerID:         o.CustomerID,
		Status:             string(o.Status),
		TotalAmount:        o.TotalAmount,
		Currency:           o.Currency,
		ShippingAddress:    o.Details.ShippingAddress,
		PaymentMethod:      o.Details.PaymentMethod,
		Metadata:           o.Details.Metadata,
		CancellationReason: o.CancellationReason,
		Version:            o.Version,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	for i, it := range o.Items {
		model.Items = append(model.Items, OrderItemModel{
			OrderID:     o.ID,
			Position:    i,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Currency:    it.Currency,
		})
	}
	return model
}
