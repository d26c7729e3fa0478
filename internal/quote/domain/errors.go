package domain

import "github.com/smallbiznis/sellerflow/internal/errs"

var (
	ErrInvalidCustomer    = errs.New(errs.ErrValidation, "invalid_customer")
	ErrInvalidProduct     = errs.New(errs.ErrValidation, "invalid_product")
	ErrInvalidQuoteID     = errs.New(errs.ErrValidation, "invalid_quote_id")
	ErrInvalidItemID      = errs.New(errs.ErrValidation, "invalid_item_id")
	ErrEmptyQuote         = errs.New(errs.ErrValidation, "quote_has_no_items")
	ErrNotEditable        = errs.New(errs.ErrConflict, "quote_not_editable")
	ErrInvalidTransition  = errs.New(errs.ErrConflict, "invalid_status_transition")
	ErrVersionConflict    = errs.New(errs.ErrConflict, "quote_version_conflict")
	ErrNotFound           = errs.New(errs.ErrNotFound, "quote_not_found")
	ErrItemNotFound       = errs.New(errs.ErrNotFound, "quote_item_not_found")
	ErrQuoteNumberExhaust = errs.New(errs.ErrConflict, "quote_number_unavailable")
)
