package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem 是不可变的值对象，修改数量或价格都返回新值
type CartItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
	AddedAt     time.Time       `json:"addedAt"`
}

func NewCartItem(at time.Time, productID, productName string, quantity int, unitPrice decimal.Decimal, currency string) (CartItem, error) {
	productName = strings.TrimSpace(productName)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	switch {
	case productID == "":
		return CartItem{}, invalid("product id is required")
	case productName == "":
		return CartItem{}, invalid("product name is required")
	case quantity <= 0:
		return CartItem{}, invalid("quantity must be greater than zero")
	case unitPrice.IsNegative():
		return CartItem{}, invalid("unit price cannot be negative")
	case currency == "":
		return CartItem{}, invalid("currency is required")
	}
	return CartItem{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Currency:    currency,
		AddedAt:     at,
	}, nil
}

func (i CartItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i CartItem) WithQuantity(quantity int) (CartItem, error) {
	if quantity <= 0 {
		return i, invalid("quantity must be greater than zero")
	}
	i.Quantity = quantity
	return i, nil
}

func (i CartItem) WithPrice(unitPrice decimal.Decimal) (CartItem, error) {
	if unitPrice.IsNegative() {
		return i, invalid("unit price cannot be negative")
	}
	i.UnitPrice = unitPrice
	return i, nil
}
