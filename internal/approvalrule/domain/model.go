package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sellerflow/internal/authorization"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	case "":
		return PriorityMedium, nil
	default:
		return "", ErrInvalidPriority
	}
}

// ApprovalRule maps the half-open margin band [MarginMin, MarginMax) to the
// role that must sign off. A nil bound is unbounded on that side.
type ApprovalRule struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	Code         string             `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name         string             `gorm:"type:text;not null" json:"name"`
	MarginMin    *decimal.Decimal   `gorm:"column:margin_min;type:numeric(8,4)" json:"margin_min"`
	MarginMax    *decimal.Decimal   `gorm:"column:margin_max;type:numeric(8,4)" json:"margin_max"`
	ApproverRole authorization.Role `gorm:"column:approver_role;type:text;not null" json:"approver_role"`
	SLAHours     int                `gorm:"column:sla_hours;not null" json:"sla_hours"`
	Priority     Priority           `gorm:"type:text;not null" json:"priority"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt    time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Steps []ApprovalRuleStep `gorm:"-" json:"steps,omitempty"`
}

func (ApprovalRule) TableName() string { return "approval_rules" }

// ApprovalRuleStep is one level of a multi-step chain.
type ApprovalRuleStep struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	RuleID       snowflake.ID       `gorm:"column:rule_id;not null;index" json:"rule_id"`
	StepOrder    int                `gorm:"column:step_order;not null" json:"step_order"`
	ApproverRole authorization.Role `gorm:"column:approver_role;type:text;not null" json:"approver_role"`
	SLAHours     int                `gorm:"column:sla_hours;not null" json:"sla_hours"`
}

func (ApprovalRuleStep) TableName() string { return "approval_rule_steps" }

// ChainStep is a resolved approval level.
type ChainStep struct {
	Order    int                `json:"order"`
	Role     authorization.Role `json:"role"`
	SLAHours int                `json:"sla_hours"`
}

// Matches reports whether marginPercent falls inside the rule band.
func (r ApprovalRule) Matches(marginPercent decimal.Decimal) bool {
	if r.MarginMin != nil && marginPercent.LessThan(*r.MarginMin) {
		return false
	}
	if r.MarginMax != nil && marginPercent.GreaterThanOrEqual(*r.MarginMax) {
		return false
	}
	return true
}

// Chain returns the ordered approval levels. Rules without explicit steps
// yield a single level built from the rule itself.
func (r ApprovalRule) Chain() []ChainStep {
	if len(r.Steps) == 0 {
		return []ChainStep{{Order: 1, Role: r.ApproverRole, SLAHours: r.SLAHours}}
	}
	chain := make([]ChainStep, 0, len(r.Steps))
	for _, s := range r.Steps {
		chain = append(chain, ChainStep{Order: s.StepOrder, Role: s.ApproverRole, SLAHours: s.SLAHours})
	}
	return chain
}

// ChainRole is the role that completes the chain.
func (r ApprovalRule) ChainRole() authorization.Role {
	chain := r.Chain()
	return chain[len(chain)-1].Role
}

// MaxSLAHours caps a rule or step deadline at one year of business hours.
const MaxSLAHours = 8760

func (r ApprovalRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Code) == "" {
		return ErrInvalidName
	}
	if r.MarginMin != nil && r.MarginMax != nil && !r.MarginMin.LessThan(*r.MarginMax) {
		return ErrInvalidBounds
	}
	if r.SLAHours <= 0 || r.SLAHours > MaxSLAHours {
		return ErrInvalidSLA
	}
	if !r.ApproverRole.Valid() {
		return ErrInvalidRole
	}
	if _, err := ParsePriority(string(r.Priority)); err != nil {
		return err
	}

	prev := authorization.Role("")
	for i, step := range r.Steps {
		if step.StepOrder != i+1 {
			return ErrInvalidSteps
		}
		if !step.ApproverRole.Valid() {
			return ErrInvalidRole
		}
		if step.SLAHours <= 0 || step.SLAHours > MaxSLAHours {
			return ErrInvalidSLA
		}
		if step.ApproverRole.Rank() < prev.Rank() {
			return ErrInvalidSteps
		}
		prev = step.ApproverRole
	}
	return nil
}
