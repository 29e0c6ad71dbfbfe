package domain

import "github.com/shopspring/decimal"

// Product 是定价目录中的一条商品，BasePrice 为规则计算的起点。
type Product struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Category  string          `json:"category,omitempty" yaml:"category"`
	BasePrice decimal.Decimal `json:"basePrice" yaml:"basePrice"`
	Currency  string          `json:"currency" yaml:"currency"`
}
