package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventQuoteApproved EventType = "quote.approved"
	EventQuoteSent     EventType = "quote.sent"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDispatching Status = "dispatching"
	StatusDelivered   Status = "delivered"
	StatusFailed      Status = "failed"
)

// Notification is an outbox row. It is written in the same transaction as
// the quote transition and handed to the Sender exactly once.
type Notification struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	QuoteID       snowflake.ID   `gorm:"column:quote_id;not null" json:"quote_id"`
	EventType     EventType      `gorm:"column:event_type;type:text;not null" json:"event_type"`
	ApprovalCycle int            `gorm:"column:approval_cycle;not null" json:"approval_cycle"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Status        Status         `gorm:"type:text;not null" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     *string        `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	DeliveredAt   *time.Time     `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
}

func (Notification) TableName() string { return "outbound_notifications" }

// Message is what the external channel receives.
type Message struct {
	ID        string
	QuoteID   string
	EventType EventType
	Payload   []byte
}

//go:generate mockgen -source=model.go -destination=mock/mock_sender.go -package=mock Sender

// Sender transmits a message to the external commerce channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) (bool, error)
	ListPending(ctx context.Context, db *gorm.DB, limit int) ([]Notification, error)
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	MarkDelivered(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
	ListByQuote(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]Notification, error)
}

type DispatchResult struct {
	Claimed   int
	Delivered int
	Failed    int
}

type Service interface {
	// Enqueue writes the notification through tx. Duplicates for the same
	// quote, event and approval cycle are ignored.
	Enqueue(ctx context.Context, tx *gorm.DB, quoteID snowflake.ID, eventType EventType, approvalCycle int, payload any) error
	DispatchPending(ctx context.Context) (DispatchResult, error)
	ListByQuote(ctx context.Context, quoteID snowflake.ID) ([]Notification, error)
}
