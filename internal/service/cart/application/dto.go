package application

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/cart/domain"
)

// AddToCartRequest 中的 UnitPrice 只在定价服务没有该商品时使用
type AddToCartRequest struct {
	CustomerID  string           `json:"customerId"`
	ProductID   string           `json:"productId"`
	ProductName string           `json:"productName"`
	Quantity    int              `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice,omitempty"`
	Currency    string           `json:"currency,omitempty"`
}

type UpdateQuantityRequest struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
}

type CartItemDTO struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	AddedAt     time.Time       `json:"addedAt"`
}

type CartDTO struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customerId"`
	Currency       string          `json:"currency"`
	Items          []CartItemDTO   `json:"items"`
	ItemCount      int             `json:"itemCount"`
	TotalQuantity  int             `json:"totalQuantity"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	IsEmpty        bool            `json:"isEmpty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	LastActivityAt time.Time       `json:"lastActivityAt"`
}

func ToCartDTO(c *domain.Cart) *CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Currency:    item.Currency,
			TotalPrice:  item.TotalPrice(),
			AddedAt:     item.AddedAt,
		})
	}
	return &CartDTO{
		ID:             c.ID,
		CustomerID:     c.CustomerID,
		Currency:       c.Currency,
		Items:          items,
		ItemCount:      c.ItemCount(),
		TotalQuantity:  c.TotalQuantity(),
		TotalAmount:    c.TotalAmount(),
		IsEmpty:        c.IsEmpty(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		LastActivityAt: c.LastActivityAt,
	}
}
