package domain

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Facts 是规则判断时可见的上下文，同时作为 CEL 条件的变量。
type Facts struct {
	ProductID    string
	Category     string
	CustomerID   string
	CustomerType string
	Quantity     int
	OrderAmount  decimal.Decimal
	BasePrice    decimal.Decimal
}

// ConditionEvaluator 判断规则的条件表达式是否成立
type ConditionEvaluator interface {
	Evaluate(condition string, facts Facts) (bool, error)
}

// PriceResult 是单价计算结果，AppliedRuleIDs 只包含真正改变了价格的规则
type PriceResult struct {
	BasePrice      decimal.Decimal `json:"basePrice"`
	FinalPrice     decimal.Decimal `json:"finalPrice"`
	AppliedRuleIDs []string        `json:"appliedRules"`
}

func (r *PriceResult) DiscountAmount() decimal.Decimal {
	return r.BasePrice.Sub(r.FinalPrice)
}

// Engine 是无状态的定价领域服务
type Engine struct {
	conditions ConditionEvaluator
}

func NewEngine(conditions ConditionEvaluator) *Engine {
	return &Engine{conditions: conditions}
}

// CalculatePrice 按优先级从高到低依次应用命中的规则
func (e *Engine) CalculatePrice(base decimal.Decimal, facts Facts, rules []Rule) (*PriceResult, error) {
	if base.IsNegative() {
		return nil, errors.Wrap(ErrInvalidPricingRequest, "base price cannot be negative")
	}
	facts.BasePrice = base

	matched := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		ok, err := e.matches(&rule, facts)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, rule)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority > matched[j].Priority })

	result := &PriceResult{BasePrice: base, FinalPrice: base, AppliedRuleIDs: []string{}}
	for _, rule := range matched {
		price, err := rule.Strategy.Apply(result.FinalPrice)
		if err != nil {
			return nil, errors.Wrapf(ErrPriceCalculation, "apply rule %s (%s): %v", rule.ID, rule.Name, err)
		}
		if !price.Equal(result.FinalPrice) {
			result.FinalPrice = price
			result.AppliedRuleIDs = append(result.AppliedRuleIDs, rule.ID)
		}
	}
	return result, nil
}

func (e *Engine) matches(rule *Rule, facts Facts) (bool, error) {
	if !rule.IsApplicableToProduct(facts.ProductID, facts.Category) ||
		!rule.IsApplicableToCustomer(facts.CustomerType, facts.OrderAmount) {
		return false, nil
	}
	if rule.Condition == "" {
		return true, nil
	}
	if e.conditions == nil {
		return false, errors.Wrapf(ErrPriceCalculation, "rule %s has a condition but no evaluator is configured", rule.ID)
	}
	ok, err := e.conditions.Evaluate(rule.Condition, facts)
	if err != nil {
		return false, errors.Wrapf(ErrPriceCalculation, "rule %s condition: %v", rule.ID, err)
	}
	return ok, nil
}
