package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable 定价服务没有该商品的价格
var ErrPriceUnavailable = errors.New("price unavailable")

// StockChecker 加入购物车前检查库存
type StockChecker interface {
	IsAvailable(ctx context.Context, productID string, quantity int) (bool, error)
}

// PriceQuoter 返回商品对某位客户的当前价格，没有价格时返回 ErrPriceUnavailable
type PriceQuoter interface {
	QuotePrice(ctx context.Context, customerID, productID string, quantity int) (*PriceQuote, error)
}

type PriceQuote struct {
	ProductName string
	UnitPrice   decimal.Decimal
	Currency    string
}
