package service

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	auditdomain "github.com/smallbiznis/sellerflow/internal/audit/domain"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  auditdomain.Repository

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Record writes entries through tx so they commit or roll back with the
// state change they describe. Events on a quote are kept strictly ordered:
// an entry that would land on or before the quote's latest stored instant is
// moved a microsecond past it, so edits made within the same instant keep
// distinct idempotency keys and list in the order they were written.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, entries ...auditdomain.Entry) error {
	if tx == nil {
		tx = s.db
	}

	latest := make(map[snowflake.ID]time.Time, len(entries))

	for _, entry := range entries {
		if entry.QuoteID == 0 {
			return auditdomain.ErrInvalidEventTarget
		}
		payload, err := auditdomain.EncodePayload(entry.Payload)
		if err != nil {
			return err
		}

		occurredAt := entry.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = s.clock.Now()
		}
		occurredAt = occurredAt.UTC().Truncate(time.Microsecond)
		eventType := entry.Payload.EventType()

		last, ok := latest[entry.QuoteID]
		if !ok {
			stored, err := s.repo.LatestOccurredAt(ctx, tx, entry.QuoteID)
			if err != nil {
				return err
			}
			if stored != nil {
				last, ok = stored.UTC().Truncate(time.Microsecond), true
			}
		}
		if ok && !occurredAt.After(last) {
			occurredAt = last.Add(time.Microsecond)
		}
		latest[entry.QuoteID] = occurredAt

		actor := entry.Actor
		if !actor.Valid() {
			if fromCtx, ok := actorcontext.ActorFromContext(ctx); ok {
				actor = fromCtx
			} else {
				actor = actorcontext.System
			}
		}

		event := auditdomain.QuoteEvent{
			ID:            s.newID(occurredAt),
			SchemaVersion: auditdomain.SchemaVersion,
			QuoteID:       entry.QuoteID,
			EventType:     eventType,
			FromStatus:    entry.FromStatus,
			ToStatus:      entry.ToStatus,
			Message:       entry.Message,
			ActorID:       actor.ID,
			ActorRole:     actor.Role,
			RequestID:     actorcontext.RequestIDFromContext(ctx),
			Payload:       datatypes.JSON(payload),
			OccurredAt:    occurredAt,
		}
		if err := s.repo.Insert(ctx, tx, &event); err != nil {
			s.log.Warn("failed to write quote event",
				zap.String("event_type", string(eventType)),
				zap.String("quote_id", entry.QuoteID.String()),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (s *Service) ListByQuote(ctx context.Context, quoteID snowflake.ID) ([]auditdomain.QuoteEvent, error) {
	if quoteID == 0 {
		return nil, auditdomain.ErrInvalidEventTarget
	}
	return s.repo.ListByQuote(ctx, s.db, quoteID)
}

func (s *Service) newID(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}
