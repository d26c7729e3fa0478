package domain

import "github.com/smallbiznis/sellerflow/internal/errs"

var (
	ErrInvalidRequestID    = errs.New(errs.ErrValidation, "invalid_approval_request_id")
	ErrCommentsRequired    = errs.New(errs.ErrValidation, "approval_comments_required")
	ErrReasonRequired      = errs.New(errs.ErrValidation, "approval_reason_required")
	ErrInvalidChain        = errs.New(errs.ErrConfiguration, "invalid_approval_chain")
	ErrPendingExists       = errs.New(errs.ErrConflict, "approval_already_pending")
	ErrQuoteNotSubmittable = errs.New(errs.ErrConflict, "quote_not_submittable")
	ErrApprovalNotRequired = errs.New(errs.ErrConflict, "approval_not_required")
	ErrAlreadyDecided      = errs.New(errs.ErrAlreadyDecided, "approval_already_decided")
	ErrInsufficientRole    = errs.New(errs.ErrPermission, "insufficient_approver_role")
	ErrNotFound            = errs.New(errs.ErrNotFound, "approval_request_not_found")
)
