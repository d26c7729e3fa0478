package domain

import "github.com/smallbiznis/sellerflow/internal/errs"

var (
	ErrMissingPayload     = errs.New(errs.ErrValidation, "missing_event_payload")
	ErrUnknownEventType   = errs.New(errs.ErrValidation, "unknown_event_type")
	ErrUnsupportedSchema  = errs.New(errs.ErrValidation, "unsupported_event_schema")
	ErrInvalidEventTarget = errs.New(errs.ErrValidation, "invalid_event_quote")
)
