package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutRequest 中的 IdempotencyKey 可选：相同 key 的重复提交在保护期内被拒绝
type CheckoutRequest struct {
	CustomerID      string            `json:"customerId"`
	ShippingAddress string            `json:"shippingAddress,omitempty"`
	PaymentMethod   string            `json:"paymentMethod,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	IdempotencyKey  string            `json:"idempotencyKey,omitempty"`
}

// CheckoutResult 是结账的唯一输出，业务失败和意外错误都以 Success=false 表达
type CheckoutResult struct {
	Success             bool            `json:"success"`
	OrderID             string          `json:"orderId,omitempty"`
	CustomerID          string          `json:"customerId"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	Currency            string          `json:"currency,omitempty"`
	CheckoutCompletedAt *time.Time      `json:"checkoutCompletedAt,omitempty"`
	ErrorMessage        string          `json:"errorMessage,omitempty"`
}

func failure(customerID, message string) *CheckoutResult {
	return &CheckoutResult{Success: false, CustomerID: customerID, ErrorMessage: message}
}
