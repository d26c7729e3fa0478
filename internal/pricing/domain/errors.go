package domain

import "github.com/smallbiznis/sellerflow/internal/errs"

var (
	ErrInvalidQuantity     = errs.New(errs.ErrValidation, "invalid_quantity")
	ErrNegativeBaseCost    = errs.New(errs.ErrValidation, "negative_base_cost")
	ErrNegativePrice       = errs.New(errs.ErrValidation, "negative_offered_price")
	ErrInvalidRegion       = errs.New(errs.ErrValidation, "invalid_region")
	ErrInvalidPercent      = errs.New(errs.ErrValidation, "invalid_percent")
	ErrInvalidMarkup       = errs.New(errs.ErrValidation, "invalid_markup")
	ErrInvalidThresholds   = errs.New(errs.ErrValidation, "invalid_margin_thresholds")
	ErrOverheadTooHigh     = errs.New(errs.ErrConfiguration, "overhead_percent_too_high")
	ErrRegionNotConfigured = errs.New(errs.ErrConfiguration, "region_not_configured")
)
