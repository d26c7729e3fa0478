package domain

import "github.com/smallbiznis/sellerflow/internal/errs"

var (
	ErrInvalidName     = errs.New(errs.ErrValidation, "invalid_rule_name")
	ErrInvalidBounds   = errs.New(errs.ErrValidation, "invalid_margin_bounds")
	ErrInvalidSLA      = errs.New(errs.ErrValidation, "invalid_sla_hours")
	ErrInvalidRole     = errs.New(errs.ErrValidation, "invalid_approver_role")
	ErrInvalidPriority = errs.New(errs.ErrValidation, "invalid_priority")
	ErrInvalidSteps    = errs.New(errs.ErrValidation, "invalid_rule_steps")
	ErrDuplicateCode   = errs.New(errs.ErrConflict, "duplicate_rule_code")
	ErrNotFound        = errs.New(errs.ErrNotFound, "approval_rule_not_found")
)
