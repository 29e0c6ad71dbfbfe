package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Rule 是一条定价规则。
// 适用范围由商品/类目列表、客户类型、最低订单金额和 CEL 条件共同限定，空值表示不限。
type Rule struct {
	ID                   string           `json:"id" yaml:"id"`
	Name                 string           `json:"name" yaml:"name"`
	Description          string           `json:"description,omitempty" yaml:"description"`
	Priority             int              `json:"priority" yaml:"priority"`
	Strategy             Strategy         `json:"strategy" yaml:"strategy"`
	Condition            string           `json:"condition,omitempty" yaml:"condition"`
	ApplicableProducts   []string         `json:"applicableProducts,omitempty" yaml:"applicableProducts"`
	ApplicableCategories []string         `json:"applicableCategories,omitempty" yaml:"applicableCategories"`
	CustomerType         string           `json:"customerType,omitempty" yaml:"customerType"`
	MinimumOrderAmount   *decimal.Decimal `json:"minimumOrderAmount,omitempty" yaml:"minimumOrderAmount"`
	ValidFrom            time.Time        `json:"validFrom" yaml:"validFrom"`
	ValidTo              *time.Time       `json:"validTo,omitempty" yaml:"validTo"`
	IsActive             bool             `json:"isActive" yaml:"isActive"`
}

func (r *Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.Wrap(ErrInvalidPricingRule, "rule id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.Wrapf(ErrInvalidPricingRule, "rule %s: name is required", r.ID)
	}
	if r.ValidTo != nil && !r.ValidTo.After(r.ValidFrom) {
		return errors.Wrapf(ErrInvalidPricingRule, "rule %s: validTo must be after validFrom", r.ID)
	}
	if err := r.Strategy.Validate(); err != nil {
		return errors.WithMessagef(err, "rule %s", r.ID)
	}
	return nil
}

// IsValidAt 规则已激活且 at 落在有效期内
func (r *Rule) IsValidAt(at time.Time) bool {
	if !r.IsActive || at.Before(r.ValidFrom) {
		return false
	}
	return r.ValidTo == nil || !at.After(*r.ValidTo)
}

// IsApplicableToProduct 两个列表都为空时适用于所有商品，否则商品或类目命中其一即可
func (r *Rule) IsApplicableToProduct(productID, category string) bool {
	if len(r.ApplicableProducts) == 0 && len(r.ApplicableCategories) == 0 {
		return true
	}
	for _, p := range r.ApplicableProducts {
		if p == productID {
			return true
		}
	}
	if category == "" {
		return false
	}
	for _, c := range r.ApplicableCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func (r *Rule) IsApplicableToCustomer(customerType string, orderAmount decimal.Decimal) bool {
	if r.CustomerType != "" && !strings.EqualFold(r.CustomerType, customerType) {
		return false
	}
	if r.MinimumOrderAmount != nil && orderAmount.LessThan(*r.MinimumOrderAmount) {
		return false
	}
	return true
}
