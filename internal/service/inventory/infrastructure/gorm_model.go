package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// InventoryItemModel 对应数据库中的 inventory_items 表
type InventoryItemModel struct {
	ID                string `gorm:"primaryKey;type:char(36)"`
	ProductID         string `gorm:"type:varchar(64);uniqueIndex"`
	AvailableQuantity int
	ReorderLevel      int
	MaxStockLevel     int
	Version           int64 `gorm:"not null;default:0"`
	LastUpdated       time.Time
	CreatedAt         time.Time

	Reservations []StockReservationModel `gorm:"foreignKey:InventoryItemID;constraint:OnDelete:CASCADE"`
}

// TableName 指定 GORM 应该使用的表名
func (InventoryItemModel) TableName() string {
	return "inventory_items"
}

// StockReservationModel 对应数据库中的 stock_reservations 表，reference 存放批次 id
type StockReservationModel struct {
	ID              string `gorm:"primaryKey;type:char(36)"`
	InventoryItemID string `gorm:"type:char(36);index"`
	Quantity        int
	CreatedAt       time.Time
	ExpiresAt       time.Time `gorm:"index"`
	Reference       string    `gorm:"type:varchar(64);index"`
}

// TableName 指定 GORM 应该使用的表名
func (StockReservationModel) TableName() string {
	return "stock_reservations"
}

// AutoMigrate 创建或更新库存相关表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&InventoryItemModel{}, &StockReservationModel{})
}
