package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/approval/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"github.com/smallbiznis/sellerflow/pkg/db"
	"gorm.io/gorm"
)

const requestColumns = `id, quote_id, rule_id, chain_id, approval_cycle, requested_by, approved_by,
	status, required_role, priority, quote_total, quote_margin_percent, reason, comments,
	requested_at, decided_at, expires_at, sla_hours, sla_warning_sent, current_step_order,
	total_steps, chain, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, req *domain.ApprovalRequest) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO approval_requests (`+requestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.QuoteID, req.RuleID, req.ChainID, req.ApprovalCycle, req.RequestedBy, req.ApprovedBy,
		req.Status, req.RequiredRole, req.Priority, req.QuoteTotal, req.QuoteMarginPercent,
		req.Reason, req.Comments, req.RequestedAt, req.DecidedAt, req.ExpiresAt, req.SLAHours,
		req.SLAWarningSent, req.CurrentStepOrder, req.TotalSteps, req.Chain,
		req.CreatedAt, req.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrPendingExists
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.ApprovalRequest, error) {
	var req domain.ApprovalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM approval_requests WHERE id = ? LIMIT 1`,
		id,
	).Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) FindPendingByQuote(ctx context.Context, conn *gorm.DB, quoteID snowflake.ID) (*domain.ApprovalRequest, error) {
	var req domain.ApprovalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM approval_requests WHERE quote_id = ? AND status = ? LIMIT 1`,
		quoteID, domain.StatusPending,
	).Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) Decide(ctx context.Context, conn *gorm.DB, id snowflake.ID, status domain.Status, decidedBy string, comments string, at time.Time) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`UPDATE approval_requests
		 SET status = ?, approved_by = ?, comments = ?, decided_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, decidedBy, comments, at, at,
		id, domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Expire(ctx context.Context, conn *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`UPDATE approval_requests
		 SET status = ?, decided_at = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND expires_at < ?`,
		domain.StatusExpired, now, now,
		id, domain.StatusPending, now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkSLAWarning(ctx context.Context, conn *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`UPDATE approval_requests
		 SET sla_warning_sent = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND sla_warning_sent = ?`,
		true, at,
		id, domain.StatusPending, false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListExpired(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.ApprovalRequest, error) {
	var out []domain.ApprovalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM approval_requests
		 WHERE status = ? AND expires_at < ?
		 ORDER BY expires_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending, now, limit,
	).Scan(&out).Error
	return out, err
}

func (r *repo) ListUnwarned(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.ApprovalRequest, error) {
	var out []domain.ApprovalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM approval_requests
		 WHERE status = ? AND sla_warning_sent = ? AND expires_at >= ?
		 ORDER BY expires_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending, false, now, limit,
	).Scan(&out).Error
	return out, err
}

func (r *repo) ListPendingByRoles(ctx context.Context, conn *gorm.DB, roles []authorization.Role) ([]domain.ApprovalRequest, error) {
	if len(roles) == 0 {
		return []domain.ApprovalRequest{}, nil
	}
	var out []domain.ApprovalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM approval_requests
		 WHERE status = ? AND required_role IN ?
		 ORDER BY expires_at ASC, id ASC`,
		domain.StatusPending, roles,
	).Scan(&out).Error
	return out, err
}

func (r *repo) ListByQuote(ctx context.Context, conn *gorm.DB, quoteID snowflake.ID) ([]domain.ApprovalRequest, error) {
	var out []domain.ApprovalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM approval_requests
		 WHERE quote_id = ?
		 ORDER BY requested_at ASC, current_step_order ASC, id ASC`,
		quoteID,
	).Scan(&out).Error
	return out, err
}
