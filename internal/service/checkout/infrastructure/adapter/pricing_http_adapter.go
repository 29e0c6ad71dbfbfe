package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/httpclient"
	cartapp "storefront/internal/service/cart/application"
	"storefront/internal/service/checkout/domain/port"
)

type cartLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type cartPricingRequest struct {
	CustomerID string     `json:"customerId"`
	Items      []cartLine `json:"items"`
}

type cartPricingResponse struct {
	ItemPrices        map[string]decimal.Decimal `json:"itemPrices"`
	Subtotal          decimal.Decimal            `json:"subtotal"`
	Discount          decimal.Decimal            `json:"discount"`
	Tax               decimal.Decimal            `json:"tax"`
	Total             decimal.Decimal            `json:"total"`
	AppliedPromotions []string                   `json:"appliedPromotions"`
}

type priceQuoteResponse struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	Currency   string          `json:"currency"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
}

// PricingHTTPAdapter 实现了 port.PricingService，同时为购物车提供单品报价。
type PricingHTTPAdapter struct {
	client *httpclient.Client
}

func NewPricingHTTPAdapter(client *httpclient.Client) *PricingHTTPAdapter {
	return &PricingHTTPAdapter{client: client}
}

func (a *PricingHTTPAdapter) CalculateCartPricing(ctx context.Context, customerID string, items []port.PricingLine) (*port.CartPricing, error) {
	req := cartPricingRequest{CustomerID: customerID, Items: make([]cartLine, 0, len(items))}
	for _, item := range items {
		req.Items = append(req.Items, cartLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	var resp cartPricingResponse
	if err := a.client.PostJSON(ctx, PricingService, pricingCartPath, req, &resp); err != nil {
		return nil, errors.Wrap(err, "pricing calculate cart")
	}
	return &port.CartPricing{
		ItemPrices:        resp.ItemPrices,
		Subtotal:          resp.Subtotal,
		Discount:          resp.Discount,
		Tax:               resp.Tax,
		Total:             resp.Total,
		AppliedPromotions: resp.AppliedPromotions,
	}, nil
}

// QuotePrice 定价目录中没有该商品时返回 cartapp.ErrPriceUnavailable
func (a *PricingHTTPAdapter) QuotePrice(ctx context.Context, customerID, productID string, quantity int) (*cartapp.PriceQuote, error) {
	q := url.Values{}
	q.Set("productId", productID)
	q.Set("customerId", customerID)
	q.Set("quantity", strconv.Itoa(quantity))

	var resp priceQuoteResponse
	err := a.client.GetJSON(ctx, PricingService, pricingPricePath, q, &resp)
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil, cartapp.ErrPriceUnavailable
	}
	if err != nil {
		return nil, errors.Wrap(err, "pricing quote")
	}
	return &cartapp.PriceQuote{ProductName: resp.Name, UnitPrice: resp.FinalPrice, Currency: resp.Currency}, nil
}
