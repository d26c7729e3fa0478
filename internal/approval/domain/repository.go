package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	quotedomain "github.com/smallbiznis/sellerflow/internal/quote/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert fails with ErrPendingExists when the quote already has a
	// pending request.
	Insert(ctx context.Context, db *gorm.DB, req *ApprovalRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ApprovalRequest, error)
	FindPendingByQuote(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (*ApprovalRequest, error)
	// Decide moves a pending request to status. It reports false when the
	// request was no longer pending.
	Decide(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, decidedBy string, comments string, at time.Time) (bool, error)
	// Expire flips a pending request whose deadline is before now.
	Expire(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkSLAWarning(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]ApprovalRequest, error)
	ListUnwarned(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]ApprovalRequest, error)
	ListPendingByRoles(ctx context.Context, db *gorm.DB, roles []authorization.Role) ([]ApprovalRequest, error)
	ListByQuote(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]ApprovalRequest, error)
}

type Service interface {
	// Submit approves a self-authorized quote directly and opens an
	// approval request otherwise.
	Submit(ctx context.Context, quoteID string, req SubmitRequest) (*SubmitResult, error)
	Create(ctx context.Context, quoteID string, req SubmitRequest) (*ApprovalRequest, error)
	Approve(ctx context.Context, requestID string, req DecisionRequest) (*DecisionResult, error)
	Reject(ctx context.Context, requestID string, req DecisionRequest) (*DecisionResult, error)

	// ExpireDue applies the expiry policy to every overdue pending request.
	ExpireDue(ctx context.Context) (SweepResult, error)
	// ExpireIfDue applies the expiry policy to the quote's pending request
	// when its deadline has passed.
	ExpireIfDue(ctx context.Context, quoteID string) error
	SendSLAWarnings(ctx context.Context) (int, error)

	ListPending(ctx context.Context) ([]ApprovalRequest, error)
	History(ctx context.Context, quoteID string) ([]ApprovalRequest, error)
}

type SubmitRequest struct {
	Reason string `json:"reason,omitempty"`
}

type DecisionRequest struct {
	Comments string `json:"comments"`
}

type SubmitResult struct {
	Quote   *quotedomain.Quote `json:"quote"`
	Request *ApprovalRequest   `json:"approval_request,omitempty"`
}

type DecisionResult struct {
	Request *ApprovalRequest   `json:"approval_request"`
	Next    *ApprovalRequest   `json:"next_request,omitempty"`
	Quote   *quotedomain.Quote `json:"quote"`
}

type SweepResult struct {
	Expired   int `json:"expired"`
	Escalated int `json:"escalated"`
}
