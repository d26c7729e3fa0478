package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// ApprovalRequest is one step of an approval chain. Every step of a chain
// shares ChainID and carries the chain snapshot resolved when the first
// step was opened, so later rule edits never reshape a running chain.
type ApprovalRequest struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	QuoteID            snowflake.ID       `gorm:"column:quote_id;not null;index" json:"quote_id"`
	RuleID             *snowflake.ID      `gorm:"column:rule_id" json:"rule_id,omitempty"`
	ChainID            snowflake.ID       `gorm:"column:chain_id;not null" json:"chain_id"`
	ApprovalCycle      int                `gorm:"column:approval_cycle;not null" json:"approval_cycle"`
	RequestedBy        string             `gorm:"column:requested_by;type:text;not null" json:"requested_by"`
	ApprovedBy         *string            `gorm:"column:approved_by;type:text" json:"approved_by,omitempty"`
	Status             Status             `gorm:"type:text;not null" json:"status"`
	RequiredRole       authorization.Role `gorm:"column:required_role;type:text;not null" json:"required_role"`
	Priority           string             `gorm:"type:text;not null" json:"priority"`
	QuoteTotal         decimal.Decimal    `gorm:"column:quote_total;type:numeric(18,2);not null" json:"quote_total"`
	QuoteMarginPercent decimal.Decimal    `gorm:"column:quote_margin_percent;type:numeric(8,4);not null" json:"quote_margin_percent"`
	Reason             *string            `gorm:"type:text" json:"reason,omitempty"`
	Comments           *string            `gorm:"type:text" json:"comments,omitempty"`
	RequestedAt        time.Time          `gorm:"column:requested_at;not null" json:"requested_at"`
	DecidedAt          *time.Time         `gorm:"column:decided_at" json:"decided_at,omitempty"`
	ExpiresAt          time.Time          `gorm:"column:expires_at;not null" json:"expires_at"`
	SLAHours           int                `gorm:"column:sla_hours;not null" json:"sla_hours"`
	SLAWarningSent     bool               `gorm:"column:sla_warning_sent;not null;default:false" json:"sla_warning_sent"`
	CurrentStepOrder   int                `gorm:"column:current_step_order;not null" json:"current_step_order"`
	TotalSteps         int                `gorm:"column:total_steps;not null" json:"total_steps"`
	Chain              datatypes.JSON     `gorm:"type:jsonb;not null" json:"chain"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

func (ApprovalRequest) TableName() string { return "approval_requests" }

func EncodeChain(steps []approvalruledomain.ChainStep) (datatypes.JSON, error) {
	if len(steps) == 0 {
		return nil, ErrInvalidChain
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (r ApprovalRequest) Steps() ([]approvalruledomain.ChainStep, error) {
	var steps []approvalruledomain.ChainStep
	if err := json.Unmarshal(r.Chain, &steps); err != nil {
		return nil, ErrInvalidChain
	}
	if len(steps) == 0 {
		return nil, ErrInvalidChain
	}
	return steps, nil
}

// NextStep returns the chain step after the current one, or nil on the last.
func (r ApprovalRequest) NextStep() (*approvalruledomain.ChainStep, error) {
	if r.CurrentStepOrder >= r.TotalSteps {
		return nil, nil
	}
	steps, err := r.Steps()
	if err != nil {
		return nil, err
	}
	for i := range steps {
		if steps[i].Order == r.CurrentStepOrder+1 {
			step := steps[i]
			return &step, nil
		}
	}
	return nil, ErrInvalidChain
}

func (r ApprovalRequest) Final() bool {
	return r.CurrentStepOrder >= r.TotalSteps
}
