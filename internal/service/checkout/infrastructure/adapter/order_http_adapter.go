package adapter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/checkout/domain/port"
)

type orderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    string          `json:"currency"`
}

type createOrderRequest struct {
	CustomerID      string            `json:"customerId"`
	Items           []orderItem       `json:"items"`
	Currency        string            `json:"currency"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	ShippingAddress string            `json:"shippingAddress,omitempty"`
	PaymentMethod   string            `json:"paymentMethod,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type orderResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderHTTPAdapter 实现了 port.OrderService。
type OrderHTTPAdapter struct {
	client *httpclient.Client
}

func NewOrderHTTPAdapter(client *httpclient.Client) *OrderHTTPAdapter {
	return &OrderHTTPAdapter{client: client}
}

// CreateOrder 订单服务拒绝请求（4xx）时返回 Success=false 的结果，网络或 5xx 错误返回 error
func (a *OrderHTTPAdapter) CreateOrder(ctx context.Context, req *port.CreateOrderRequest) (*port.OrderCreationResult, error) {
	body := createOrderRequest{
		CustomerID:      req.CustomerID,
		Items:           make([]orderItem, 0, len(req.Items)),
		Currency:        req.Currency,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Metadata:        req.Metadata,
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, orderItem(item))
	}

	var resp orderResponse
	err := a.client.PostJSON(ctx, OrderService, ordersPath, body, &resp)
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
		return &port.OrderCreationResult{Success: false, Error: statusErr.Body}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "order create")
	}
	return &port.OrderCreationResult{Success: true, OrderID: resp.ID, CreatedAt: resp.CreatedAt}, nil
}
