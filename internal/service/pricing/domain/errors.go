package domain

import "errors"

var (
	ErrInvalidPricingRule    = errors.New("invalid pricing rule")
	ErrPriceCalculation      = errors.New("price calculation failed")
	ErrProductNotFound       = errors.New("product not found")
	ErrInvalidPricingRequest = errors.New("invalid pricing request")
)
