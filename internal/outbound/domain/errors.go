package domain

import "github.com/smallbiznis/sellerflow/internal/errs"

var (
	ErrInvalidEventType = errs.New(errs.ErrValidation, "invalid_outbound_event_type")
	ErrInvalidQuote     = errs.New(errs.ErrValidation, "invalid_outbound_quote")
	ErrSenderNotReady   = errs.New(errs.ErrConfiguration, "outbound_sender_not_configured")
)
