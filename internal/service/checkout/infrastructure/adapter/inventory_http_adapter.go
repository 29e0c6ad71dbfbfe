package adapter

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"storefront/internal/pkg/httpclient"
	"storefront/internal/service/checkout/domain/port"
)

// ReasonCheckoutCompensation 是结账补偿释放预留时记录的原因
const ReasonCheckoutCompensation = "Checkout compensation"

type availabilityRequest struct {
	Items []port.StockLine `json:"items"`
}

type availabilityResponse struct {
	Availability map[string]bool `json:"availability"`
}

type reserveRequest struct {
	CustomerID string           `json:"customerId"`
	Items      []port.StockLine `json:"items"`
	TTLSeconds int              `json:"ttlSeconds,omitempty"`
}

type reserveResponse struct {
	Success             bool           `json:"success"`
	ReservationID       string         `json:"reservationId"`
	ReservedQuantities  map[string]int `json:"reservedQuantities"`
	UnavailableProducts []string       `json:"unavailableProducts"`
	Error               string         `json:"error"`
}

type releaseRequest struct {
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason"`
}

type releaseResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// InventoryHTTPAdapter 实现了 port.InventoryService，同时作为购物车的库存检查器。
type InventoryHTTPAdapter struct {
	client *httpclient.Client
	ttl    time.Duration
}

// NewInventoryHTTPAdapter ttl 为预留时长，0 表示使用库存服务的默认值
func NewInventoryHTTPAdapter(client *httpclient.Client, ttl time.Duration) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, ttl: ttl}
}

func (a *InventoryHTTPAdapter) IsAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	availability, err := a.CheckAvailability(ctx, []port.StockLine{{ProductID: productID, Quantity: quantity}})
	if err != nil {
		return false, err
	}
	return availability[productID], nil
}

func (a *InventoryHTTPAdapter) CheckAvailability(ctx context.Context, items []port.StockLine) (map[string]bool, error) {
	var resp availabilityResponse
	if err := a.client.PostJSON(ctx, InventoryService, inventoryAvailabilityPath, availabilityRequest{Items: items}, &resp); err != nil {
		return nil, errors.Wrap(err, "inventory availability")
	}
	return resp.Availability, nil
}

func (a *InventoryHTTPAdapter) Reserve(ctx context.Context, customerID string, items []port.StockLine) (*port.ReservationResult, error) {
	req := reserveRequest{CustomerID: customerID, Items: items, TTLSeconds: int(a.ttl / time.Second)}
	var resp reserveResponse
	if err := a.client.PostJSON(ctx, InventoryService, inventoryReservePath, req, &resp); err != nil {
		return nil, errors.Wrap(err, "inventory reserve")
	}
	return &port.ReservationResult{
		Success:             resp.Success,
		ReservationID:       resp.ReservationID,
		ReservedQuantities:  resp.ReservedQuantities,
		UnavailableProducts: resp.UnavailableProducts,
		Error:               resp.Error,
	}, nil
}

// ReleaseReservation 返回 false 表示没有可释放的预留（已确认或已过期）
func (a *InventoryHTTPAdapter) ReleaseReservation(ctx context.Context, reservationID string) (bool, error) {
	var resp releaseResponse
	req := releaseRequest{ReservationID: reservationID, Reason: ReasonCheckoutCompensation}
	if err := a.client.PostJSON(ctx, InventoryService, inventoryReleasePath, req, &resp); err != nil {
		return false, errors.Wrap(err, "inventory release")
	}
	return resp.Success, nil
}
