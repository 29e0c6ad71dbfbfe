package application

import "github.com/shopspring/decimal"

// CartLine 是购物车中的一行，UnitPrice 为购物车当前展示的单价，目录中没有该商品时作为基准价
type CartLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CartPricingRequest struct {
	CustomerID   string     `json:"customerId"`
	CustomerType string     `json:"customerType,omitempty"`
	Currency     string     `json:"currency,omitempty"`
	Items        []CartLine `json:"items"`
}

type LinePricing struct {
	ProductID    string          `json:"productId"`
	Quantity     int             `json:"quantity"`
	BasePrice    decimal.Decimal `json:"basePrice"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
	AppliedRules []string        `json:"appliedRules"`
}

// CartPricing 是整车计价结果：Total = Subtotal - Discount + Tax
type CartPricing struct {
	CustomerID        string                     `json:"customerId"`
	Currency          string                     `json:"currency"`
	ItemPrices        map[string]decimal.Decimal `json:"itemPrices"`
	Lines             []LinePricing              `json:"lines"`
	Subtotal          decimal.Decimal            `json:"subtotal"`
	Discount          decimal.Decimal            `json:"discount"`
	Tax               decimal.Decimal            `json:"tax"`
	Total             decimal.Decimal            `json:"total"`
	AppliedPromotions []string                   `json:"appliedPromotions"`
}

type PriceQuery struct {
	ProductID    string
	CustomerID   string
	CustomerType string
	Quantity     int
}

type PriceQuote struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	Currency     string          `json:"currency"`
	BasePrice    decimal.Decimal `json:"basePrice"`
	FinalPrice   decimal.Decimal `json:"finalPrice"`
	AppliedRules []string        `json:"appliedRules"`
}
