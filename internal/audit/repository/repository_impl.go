package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert appends event. Replays of the same (quote, type, instant) are ignored.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.QuoteEvent) error {
	if event == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO quote_events (
			id, schema_version, quote_id, event_type, from_status, to_status, message,
			actor_id, actor_role, request_id, payload, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (quote_id, event_type, occurred_at) DO NOTHING`,
		event.ID,
		event.SchemaVersion,
		event.QuoteID,
		event.EventType,
		event.FromStatus,
		event.ToStatus,
		event.Message,
		event.ActorID,
		event.ActorRole,
		event.RequestID,
		event.Payload,
		event.OccurredAt,
	).Error
}

func (r *repo) ListByQuote(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]domain.QuoteEvent, error) {
	var events []domain.QuoteEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, schema_version, quote_id, event_type, from_status, to_status, message,
		        actor_id, actor_role, request_id, payload, occurred_at
		 FROM quote_events
		 WHERE quote_id = ?
		 ORDER BY occurred_at ASC, id ASC`,
		quoteID,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) LatestOccurredAt(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (*time.Time, error) {
	var row struct {
		OccurredAt time.Time
	}
	result := db.WithContext(ctx).Raw(
		`SELECT occurred_at
		 FROM quote_events
		 WHERE quote_id = ?
		 ORDER BY occurred_at DESC
		 LIMIT 1`,
		quoteID,
	).Scan(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || row.OccurredAt.IsZero() {
		return nil, nil
	}
	return &row.OccurredAt, nil
}
