package application

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const DefaultBulkPromotionCode = "BULK_DISCOUNT_5"

// CartPolicy 是整车层面的折扣和税率：小计超过 BulkThreshold 时按 BulkRate 打折，
// 税按折后金额计算。
type CartPolicy struct {
	TaxRate       decimal.Decimal
	BulkThreshold decimal.Decimal
	BulkRate      decimal.Decimal
	BulkCode      string
}

func DefaultCartPolicy() CartPolicy {
	return CartPolicy{
		TaxRate:       decimal.RequireFromString("0.085"),
		BulkThreshold: decimal.NewFromInt(100),
		BulkRate:      decimal.RequireFromString("0.05"),
		BulkCode:      DefaultBulkPromotionCode,
	}
}

// ParseCartPolicy 从配置中的字符串解析，空值保留默认
func ParseCartPolicy(taxRate, bulkThreshold, bulkRate, bulkCode string) (CartPolicy, error) {
	p := DefaultCartPolicy()
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"taxRate", taxRate, &p.TaxRate},
		{"bulkThreshold", bulkThreshold, &p.BulkThreshold},
		{"bulkDiscountRate", bulkRate, &p.BulkRate},
	} {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return p, errors.Wrapf(err, "pricing.%s", f.name)
		}
		if v.IsNegative() {
			return p, errors.Errorf("pricing.%s cannot be negative", f.name)
		}
		*f.dst = v
	}
	if bulkCode != "" {
		p.BulkCode = bulkCode
	}
	return p, nil
}
