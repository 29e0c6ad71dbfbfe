package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// PricingLine 携带购物车当前展示的单价，定价服务目录中没有该商品时以它为基准
type PricingLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CartPricing 是定价服务给出的权威价格
type CartPricing struct {
	ItemPrices        map[string]decimal.Decimal
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
	AppliedPromotions []string
}

// PricingService 是定价服务的出站端口。
type PricingService interface {
	CalculateCartPricing(ctx context.Context, customerID string, items []PricingLine) (*CartPricing, error)
}
