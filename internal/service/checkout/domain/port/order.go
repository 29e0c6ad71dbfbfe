package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderLine struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Currency    string
}

type CreateOrderRequest struct {
	CustomerID      string
	Items           []OrderLine
	Currency        string
	TotalAmount     decimal.Decimal
	ShippingAddress string
	PaymentMethod   string
	Metadata        map[string]string
}

// OrderCreationResult Success 为 false 时 Error 给出下游的原因
type OrderCreationResult struct {
	Success   bool
	OrderID   string
	Error     string
	CreatedAt time.Time
}

// OrderService 是订单服务的出站端口。
type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderCreationResult, error)
}
