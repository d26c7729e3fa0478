package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Repository interface {
	List(ctx context.Context, activeOnly bool) ([]ApprovalRule, error)
	FindByID(ctx context.Context, id snowflake.ID) (*ApprovalRule, error)
	Insert(ctx context.Context, rule ApprovalRule) error
	Update(ctx context.Context, rule ApprovalRule) error
}

type Service interface {
	List(ctx context.Context, activeOnly bool) ([]ApprovalRule, error)
	Get(ctx context.Context, id string) (*ApprovalRule, error)
	Create(ctx context.Context, req CreateRuleRequest) (*ApprovalRule, error)
	Update(ctx context.Context, id string, req UpdateRuleRequest) (*ApprovalRule, error)
	// RuleSet returns the snapshot of active rules used for pricing decisions.
	RuleSet(ctx context.Context) (RuleSet, error)
}

type StepRequest struct {
	ApproverRole string `json:"approver_role"`
	SLAHours     int    `json:"sla_hours"`
}

type CreateRuleRequest struct {
	Name         string           `json:"name"`
	MarginMin    *decimal.Decimal `json:"margin_min"`
	MarginMax    *decimal.Decimal `json:"margin_max"`
	ApproverRole string           `json:"approver_role"`
	SLAHours     int              `json:"sla_hours"`
	Priority     string           `json:"priority"`
	IsActive     *bool            `json:"is_active"`
	Steps        []StepRequest    `json:"steps"`
}

// UpdateRuleRequest patches a rule. Nil fields are left untouched; Steps
// replaces the whole chain when present.
type UpdateRuleRequest struct {
	Name           *string          `json:"name"`
	MarginMin      *decimal.Decimal `json:"margin_min"`
	ClearMarginMin bool             `json:"clear_margin_min"`
	MarginMax      *decimal.Decimal `json:"margin_max"`
	ClearMarginMax bool             `json:"clear_margin_max"`
	ApproverRole   *string          `json:"approver_role"`
	SLAHours       *int             `json:"sla_hours"`
	Priority       *string          `json:"priority"`
	IsActive       *bool            `json:"is_active"`
	Steps          *[]StepRequest   `json:"steps"`
}
