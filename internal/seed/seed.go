package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type step struct {
	role     authorization.Role
	slaHours int
}

type defaultRule struct {
	name      string
	marginMin *decimal.Decimal
	marginMax *decimal.Decimal
	role      authorization.Role
	slaHours  int
	priority  approvalruledomain.Priority
	steps     []step
}

func bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// Bands mirror the default engine thresholds: green needs no approval,
// each band below it needs a more senior role.
var defaultRules = []defaultRule{
	{
		name:      "Margem baixa",
		marginMin: bound(5),
		marginMax: bound(10),
		role:      authorization.RoleCoordenador,
		slaHours:  24,
		priority:  approvalruledomain.PriorityMedium,
	},
	{
		name:      "Margem critica",
		marginMin: bound(0),
		marginMax: bound(5),
		role:      authorization.RoleGerente,
		slaHours:  16,
		priority:  approvalruledomain.PriorityHigh,
	},
	{
		name:      "Margem negativa",
		marginMax: bound(0),
		role:      authorization.RoleGerente,
		slaHours:  8,
		priority:  approvalruledomain.PriorityUrgent,
		steps: []step{
			{role: authorization.RoleGerente, slaHours: 8},
			{role: authorization.RoleDiretor, slaHours: 16},
		},
	},
}

// EnsureDefaults installs the default approval rules on an empty rule table.
// Pricing and business hours fall back to the file defaults and are not
// seeded.
func EnsureDefaults(db *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	if db == nil || node == nil {
		return errors.New("seed needs a database handle and an id node")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&approvalruledomain.ApprovalRule{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := ensureApprovalRulesTx(ctx, tx, node); err != nil {
			return err
		}
		if log != nil {
			log.Info("seeded default approval rules", zap.Int("count", len(defaultRules)))
		}
		return nil
	})
}

func ensureApprovalRulesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	now := time.Now().UTC()
	for _, r := range defaultRules {
		rule := approvalruledomain.ApprovalRule{
			ID:           node.Generate(),
			Code:         slug.Make(r.name),
			Name:         r.name,
			MarginMin:    r.marginMin,
			MarginMax:    r.marginMax,
			ApproverRole: r.role,
			SLAHours:     r.slaHours,
			Priority:     r.priority,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		res := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
			Create(&rule)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}

		for i, s := range r.steps {
			row := approvalruledomain.ApprovalRuleStep{
				ID:           node.Generate(),
				RuleID:       rule.ID,
				StepOrder:    i + 1,
				ApproverRole: s.role,
				SLAHours:     s.slaHours,
			}
			if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
