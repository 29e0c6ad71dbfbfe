package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID                 string            `gorm:"primaryKey;type:char(36)"`
	CustomerID         string            `gorm:"type:varchar(64);index:idx_orders_customer_created,priority:1"`
	Status             string            `gorm:"type:varchar(16);index"`
	TotalAmount        decimal.Decimal   `gorm:"type:decimal(18,4)"`
	Currency           string            `gorm:"type:char(3)"`
	ShippingAddress    string            `gorm:"type:varchar(512)"`
	PaymentMethod      string            `gorm:"type:varchar(64)"`
	Metadata           map[string]string `gorm:"serializer:json;type:json"`
	CancellationReason string            `gorm:"type:varchar(512)"`
	Version            int64             `gorm:"not null;default:0"`
	CreatedAt          time.Time         `gorm:"index:idx_orders_customer_created,priority:2"`
	UpdatedAt          time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	OrderID     string          `gorm:"type:char(36);index"`
	Position    int
	ProductID   string          `gorm:"type:varchar(64)"`
	ProductName string          `gorm:"type:varchar(255)"`
	ProductSKU  string          `gorm:"column:product_sku;type:varchar(64)"`
	Quantity    int
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4)"`
	Currency    string          `gorm:"type:char(3)"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderItemModel) TableName() string {
	return "order_items"
}

// AutoMigrate 创建或更新订单相关表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{}, &OrderItemModel{})
}
