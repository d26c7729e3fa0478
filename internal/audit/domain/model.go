package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuoteEvent is an append-only audit record of something that happened to a quote.
type QuoteEvent struct {
	ID            string         `gorm:"primaryKey;type:text" json:"id"`
	SchemaVersion int            `gorm:"column:schema_version;not null" json:"schema_version"`
	QuoteID       snowflake.ID   `gorm:"column:quote_id;not null;index" json:"quote_id"`
	EventType     EventType      `gorm:"column:event_type;type:text;not null" json:"event_type"`
	FromStatus    string         `gorm:"column:from_status;type:text" json:"from_status,omitempty"`
	ToStatus      string         `gorm:"column:to_status;type:text" json:"to_status,omitempty"`
	Message       string         `gorm:"type:text" json:"message"`
	ActorID       string         `gorm:"column:actor_id;type:text;not null" json:"actor_id"`
	ActorRole     string         `gorm:"column:actor_role;type:text;not null" json:"actor_role"`
	RequestID     string         `gorm:"column:request_id;type:text" json:"request_id,omitempty"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	OccurredAt    time.Time      `gorm:"column:occurred_at;not null" json:"occurred_at"`
}

func (QuoteEvent) TableName() string { return "quote_events" }

// Entry is an event before it is stamped and encoded by the sink.
type Entry struct {
	QuoteID    snowflake.ID
	Actor      actorcontext.Actor
	FromStatus string
	ToStatus   string
	Message    string
	Payload    Payload
	OccurredAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *QuoteEvent) error
	ListByQuote(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]QuoteEvent, error)
	LatestOccurredAt(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (*time.Time, error)
}

// Sink records quote events inside the caller's transaction.
type Sink interface {
	Record(ctx context.Context, tx *gorm.DB, entries ...Entry) error
}

type Service interface {
	Sink
	ListByQuote(ctx context.Context, quoteID snowflake.ID) ([]QuoteEvent, error)
}
