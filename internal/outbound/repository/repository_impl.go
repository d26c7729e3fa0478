package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/outbound/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO outbound_notifications (
			id, quote_id, event_type, approval_cycle, payload, status, attempts, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (quote_id, event_type, approval_cycle) DO NOTHING`,
		n.ID,
		n.QuoteID,
		n.EventType,
		n.ApprovalCycle,
		n.Payload,
		n.Status,
		n.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, limit int) ([]domain.Notification, error) {
	var items []domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, quote_id, event_type, approval_cycle, payload, status, attempts, last_error,
		        created_at, delivered_at
		 FROM outbound_notifications
		 WHERE status = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Claim moves a pending row to dispatching. Only one dispatcher wins.
func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE outbound_notifications
		 SET status = ?, attempts = attempts + 1
		 WHERE id = ? AND status = ?`,
		domain.StatusDispatching,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkDelivered(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbound_notifications
		 SET status = ?, delivered_at = ?, last_error = NULL
		 WHERE id = ? AND status = ?`,
		domain.StatusDelivered,
		at,
		id,
		domain.StatusDispatching,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbound_notifications
		 SET status = ?, last_error = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFailed,
		reason,
		id,
		domain.StatusDispatching,
	).Error
}

func (r *repo) ListByQuote(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]domain.Notification, error) {
	var items []domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT id, quote_id, event_type, approval_cycle, payload, status, attempts, last_error,
		        created_at, delivered_at
		 FROM outbound_notifications
		 WHERE quote_id = ?
		 ORDER BY created_at ASC, id ASC`,
		quoteID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
