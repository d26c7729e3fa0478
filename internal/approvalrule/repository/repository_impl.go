package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) approvalruledomain.Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]approvalruledomain.ApprovalRule, error) {
	query := `SELECT id, code, name, margin_min, margin_max, approver_role, sla_hours, priority,
	                 is_active, created_at, updated_at
	          FROM approval_rules`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY id ASC`

	var rules []approvalruledomain.ApprovalRule
	if err := r.db.WithContext(ctx).Raw(query).Scan(&rules).Error; err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return rules, nil
	}

	ids := make([]snowflake.ID, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
	}
	var steps []approvalruledomain.ApprovalRuleStep
	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, rule_id, step_order, approver_role, sla_hours
		 FROM approval_rule_steps
		 WHERE rule_id IN ?
		 ORDER BY rule_id ASC, step_order ASC`,
		ids,
	).Scan(&steps).Error; err != nil {
		return nil, err
	}

	byRule := make(map[snowflake.ID][]approvalruledomain.ApprovalRuleStep, len(rules))
	for _, step := range steps {
		byRule[step.RuleID] = append(byRule[step.RuleID], step)
	}
	for i := range rules {
		rules[i].Steps = byRule[rules[i].ID]
	}
	return rules, nil
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*approvalruledomain.ApprovalRule, error) {
	var rules []approvalruledomain.ApprovalRule
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, code, name, margin_min, margin_max, approver_role, sla_hours, priority,
		        is_active, created_at, updated_at
		 FROM approval_rules
		 WHERE id = ?`,
		id,
	).Scan(&rules).Error
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	rule := rules[0]

	if err := r.db.WithContext(ctx).Raw(
		`SELECT id, rule_id, step_order, approver_role, sla_hours
		 FROM approval_rule_steps
		 WHERE rule_id = ?
		 ORDER BY step_order ASC`,
		id,
	).Scan(&rule.Steps).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) Insert(ctx context.Context, rule approvalruledomain.ApprovalRule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO approval_rules (
				id, code, name, margin_min, margin_max, approver_role, sla_hours, priority,
				is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.ID,
			rule.Code,
			rule.Name,
			rule.MarginMin,
			rule.MarginMax,
			rule.ApproverRole,
			rule.SLAHours,
			rule.Priority,
			rule.IsActive,
			rule.CreatedAt,
			rule.UpdatedAt,
		).Error; err != nil {
			return err
		}
		return insertSteps(tx, rule.Steps)
	})
}

func (r *repository) Update(ctx context.Context, rule approvalruledomain.ApprovalRule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`UPDATE approval_rules
			 SET code = ?, name = ?, margin_min = ?, margin_max = ?, approver_role = ?,
			     sla_hours = ?, priority = ?, is_active = ?, updated_at = ?
			 WHERE id = ?`,
			rule.Code,
			rule.Name,
			rule.MarginMin,
			rule.MarginMax,
			rule.ApproverRole,
			rule.SLAHours,
			rule.Priority,
			rule.IsActive,
			rule.UpdatedAt,
			rule.ID,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM approval_rule_steps WHERE rule_id = ?`, rule.ID).Error; err != nil {
			return err
		}
		return insertSteps(tx, rule.Steps)
	})
}

func insertSteps(tx *gorm.DB, steps []approvalruledomain.ApprovalRuleStep) error {
	for _, step := range steps {
		if err := tx.Exec(
			`INSERT INTO approval_rule_steps (id, rule_id, step_order, approver_role, sla_hours)
			 VALUES (?, ?, ?, ?, ?)`,
			step.ID,
			step.RuleID,
			step.StepOrder,
			step.ApproverRole,
			step.SLAHours,
		).Error; err != nil {
			return err
		}
	}
	return nil
}
