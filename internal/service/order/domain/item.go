// internal/service/order/domain/item.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem 是订单行，创建后不可变。
type OrderItem struct {
	ProductID   string
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   decimal.Decimal
	Currency    string
}

// NewOrderItem sku 为空时使用商品 id。
func NewOrderItem(productID, productName, sku string, quantity int, unitPrice decimal.Decimal, currency string) (OrderItem, error) {
	switch {
	case productID == "":
		return OrderItem{}, invalid("product id is required")
	case strings.TrimSpace(productName) == "":
		return OrderItem{}, invalid("product name is required for %s", productID)
	case quantity <= 0:
		return OrderItem{}, invalid("quantity must be greater than zero for %s", productID)
	case unitPrice.IsNegative():
		return OrderItem{}, invalid("unit price cannot be negative for %s", productID)
	case strings.TrimSpace(currency) == "":
		return OrderItem{}, invalid("currency is required for %s", productID)
	}
	if strings.TrimSpace(sku) == "" {
		sku = productID
	}
	return OrderItem{
		ProductID:   productID,
		ProductName: strings.TrimSpace(productName),
		ProductSKU:  strings.TrimSpace(sku),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Currency:    strings.ToUpper(strings.TrimSpace(currency)),
	}, nil
}

func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
