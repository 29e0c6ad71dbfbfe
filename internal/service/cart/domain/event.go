package domain

import (
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/domainevent"
)

const (
	EventProductAdded      = "cart.product_added"
	EventQuantityUpdated   = "cart.quantity_updated"
	EventProductRemoved    = "cart.product_removed"
	EventCartCleared       = "cart.cleared"
	EventCheckoutInitiated = "cart.checkout_initiated"
	EventCheckoutCompleted = "cart.checkout_completed"
)

type ProductAddedToCart struct {
	domainevent.Base
	CustomerID  string          `json:"customerId"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
}

type CartQuantityUpdated struct {
	domainevent.Base
	CustomerID  string `json:"customerId"`
	ProductID   string `json:"productId"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
}

type ProductRemovedFromCart struct {
	domainevent.Base
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
}

type CartCleared struct {
	domainevent.Base
	CustomerID   string `json:"customerId"`
	ItemsRemoved int    `json:"itemsRemoved"`
}

// CartCheckoutInitiated 只是结账开始的快照，不改变购物车
type CartCheckoutInitiated struct {
	domainevent.Base
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	ItemCount   int             `json:"itemCount"`
}

// CartCheckoutCompleted 携带清空前的购物车总额
type CartCheckoutCompleted struct {
	domainevent.Base
	CustomerID  string          `json:"customerId"`
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
}
