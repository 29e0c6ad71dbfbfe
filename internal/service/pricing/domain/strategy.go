package domain

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type StrategyType string

const (
	StrategyFixed       StrategyType = "fixed"
	StrategyPercentage  StrategyType = "percentage"
	StrategyTiered      StrategyType = "tiered"
	StrategyPromotional StrategyType = "promotional"
)

var hundred = decimal.NewFromInt(100)

// Strategy 描述一条规则如何改写价格。
//   - fixed: 价格直接置为 Value
//   - percentage: 按 Value% 加价，IsDiscount 时改为减价，不低于 0
//   - tiered: Tiers 为 "门槛价 -> 折扣%"，取不超过当前价的最高门槛
//   - promotional: 减去 Value%，不低于 0
type Strategy struct {
	Type       StrategyType               `json:"type" yaml:"type"`
	Value      decimal.Decimal            `json:"value" yaml:"value"`
	IsDiscount bool                       `json:"isDiscount,omitempty" yaml:"isDiscount"`
	Tiers      map[string]decimal.Decimal `json:"tiers,omitempty" yaml:"tiers"`
}

func (s Strategy) Validate() error {
	switch s.Type {
	case StrategyFixed:
		if s.Value.IsNegative() {
			return errors.Wrap(ErrInvalidPricingRule, "fixed price cannot be negative")
		}
	case StrategyPercentage, StrategyPromotional:
		if s.Value.IsNegative() || s.Value.GreaterThan(hundred) {
			return errors.Wrapf(ErrInvalidPricingRule, "%s value must be between 0 and 100", s.Type)
		}
	case StrategyTiered:
		if len(s.Tiers) == 0 {
			return errors.Wrap(ErrInvalidPricingRule, "tiered strategy requires tiers")
		}
		if _, err := s.sortedTiers(); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrInvalidPricingRule, "unsupported strategy %q", s.Type)
	}
	return nil
}

// Apply 返回应用策略后的新价格
func (s Strategy) Apply(price decimal.Decimal) (decimal.Decimal, error) {
	switch s.Type {
	case StrategyFixed:
		return s.Value, nil
	case StrategyPercentage:
		adjustment := price.Mul(s.Value).Div(hundred)
		if s.IsDiscount {
			return floorZero(price.Sub(adjustment)), nil
		}
		return floorZero(price.Add(adjustment)), nil
	case StrategyTiered:
		tiers, err := s.sortedTiers()
		if err != nil {
			return price, err
		}
		for _, t := range tiers {
			if t.threshold.LessThanOrEqual(price) {
				return price.Mul(decimal.NewFromInt(1).Sub(t.discount.Div(hundred))), nil
			}
		}
		return price, nil
	case StrategyPromotional:
		return floorZero(price.Sub(price.Mul(s.Value).Div(hundred))), nil
	default:
		return price, errors.Wrapf(ErrPriceCalculation, "unsupported strategy %q", s.Type)
	}
}

type tier struct {
	threshold decimal.Decimal
	discount  decimal.Decimal
}

// sortedTiers 按门槛从高到低排序
func (s Strategy) sortedTiers() ([]tier, error) {
	if len(s.Tiers) == 0 {
		return nil, errors.Wrap(ErrPriceCalculation, "tiered strategy requires tiers")
	}
	tiers := make([]tier, 0, len(s.Tiers))
	for k, v := range s.Tiers {
		threshold, err := decimal.NewFromString(k)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidPricingRule, fmt.Sprintf("tier threshold %q", k))
		}
		tiers = append(tiers, tier{threshold: threshold, discount: v})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].threshold.GreaterThan(tiers[j].threshold) })
	return tiers, nil
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
