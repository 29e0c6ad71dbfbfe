package infrastructure

import (
	"storefront/internal/service/inventory/domain"
)

// ToDomainInventoryItem 将数据库模型转换为领域模型
func ToDomainInventoryItem(model *InventoryItemModel) *domain.InventoryItem {
	if model == nil {
		return nil
	}
	item := &domain.InventoryItem{
		ID:                model.ID,
		ProductID:         model.ProductID,
		AvailableQuantity: model.AvailableQuantity,
		ReorderLevel:      model.ReorderLevel,
		MaxStockLevel:     model.MaxStockLevel,
		LastUpdated:       model.LastUpdated.UTC(),
		Version:           model.Version,
	}
	for _, r := range model.Reservations {
		item.Reservations = append(item.Reservations, domain.StockReservation{
			ID:        r.ID,
			Quantity:  r.Quantity,
			CreatedAt: r.CreatedAt.UTC(),
			ExpiresAt: r.ExpiresAt.UTC(),
			Reference: r.Reference,
		})
	}
	return item
}

// FromDomainInventoryItem 将领域模型转换为数据库模型
func FromDomainInventoryItem(item *domain.InventoryItem) *InventoryItemModel {
	if item == nil {
		return nil
	}
	return &InventoryItemModel{
		ID:                item.ID,
		ProductID:         item.ProductID,
		AvailableQuantity: item.AvailableQuantity,
		ReorderLevel:      item.ReorderLevel,
		MaxStockLevel:     item.MaxStockLevel,
		Version:           item.Version,
		LastUpdated:       item.LastUpdated,
		Reservations:      fromDomainReservations(item),
	}
}

func fromDomainReservations(item *domain.InventoryItem) []StockReservationModel {
	models := make([]StockReservationModel, 0, len(item.Reservations))
	for _, r := range item.Reservations {
		models = append(models, StockReservationModel{
			ID:              r.ID,
			InventoryItemID: item.ID,
			Quantity:        r.Quantity,
			CreatedAt:       r.CreatedAt,
			ExpiresAt:       r.ExpiresAt,
			Reference:       r.Reference,
		})
	}
	return models
}
