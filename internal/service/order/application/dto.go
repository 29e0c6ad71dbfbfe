package application

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/order/domain"
)

// CreateOrderItem 是下单请求中的一行
type CreateOrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	ProductSKU  string          `json:"productSku,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
}

// CreateOrderRequest 是创建订单用例的输入数据。
// TotalAmount 是调用方报价的应付总额（含折扣和税），只做正数校验；
// 订单自身的 TotalAmount 始终由订单行汇总。
type CreateOrderRequest struct {
	CustomerID      string            `json:"customerId"`
	Items           []CreateOrderItem `json:"items"`
	Currency        string            `json:"currency"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	ShippingAddress string            `json:"shippingAddress,omitempty"`
	PaymentMethod   string            `json:"paymentMethod,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// TransitionRequest 用于所有状态迁移接口，Reason 只在取消时使用
type TransitionRequest struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
}

type OrderItemDTO struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	ProductSKU  string          `json:"productSku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// OrderDTO 是订单的只读视图
type OrderDTO struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customerId"`
	Status             domain.Status     `json:"status"`
	Items              []OrderItemDTO    `json:"items"`
	TotalAmount        decimal.Decimal   `json:"totalAmount"`
	Currency           string            `json:"currency"`
	ShippingAddress    string            `json:"shippingAddress,omitempty"`
	PaymentMethod      string            `json:"paymentMethod,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CancellationReason string            `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func toOrderDTO(o *domain.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:                 o.ID,
		CustomerID:         o.CustomerID,
		Status:             o.Status,
		Items:              make([]OrderItemDTO, 0, len(o.Items)),
		TotalAmount:        o.TotalAmount,
		Currency:           o.Currency,
		ShippingAddress:    o.Details.ShippingAddress,
		PaymentMethod:      o.Details.PaymentMethod,
		Metadata:           o.Details.Metadata,
		CancellationReason: o.CancellationReason,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	for _, it := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Currency:    it.Currency,
			TotalPrice:  it.TotalPrice(),
		})
	}
	return dto
}
