package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cfg    config.Config
	Repo   outbounddomain.Repository
	Sender outbounddomain.Sender
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      outbounddomain.Repository
	sender    outbounddomain.Sender
	batchSize int
}

func NewService(p Params) outbounddomain.Service {
	batch := p.Cfg.Outbound.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("outbound.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		sender:    p.Sender,
		batchSize: batch,
	}
}

func (s *Service) Enqueue(ctx context.Context, tx *gorm.DB, quoteID snowflake.ID, eventType outbounddomain.EventType, approvalCycle int, payload any) error {
	if quoteID == 0 {
		return outbounddomain.ErrInvalidQuote
	}
	switch eventType {
	case outbounddomain.EventQuoteApproved, outbounddomain.EventQuoteSent:
	default:
		return outbounddomain.ErrInvalidEventType
	}
	if tx == nil {
		tx = s.db
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	n := outbounddomain.Notification{
		ID:            s.genID.Generate(),
		QuoteID:       quoteID,
		EventType:     eventType,
		ApprovalCycle: approvalCycle,
		Payload:       datatypes.JSON(body),
		Status:        outbounddomain.StatusPending,
		CreatedAt:     s.clock.Now().UTC(),
	}
	inserted, err := s.repo.Insert(ctx, tx, &n)
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Debug("outbound notification already queued",
			zap.String("quote_id", quoteID.String()),
			zap.String("event_type", string(eventType)),
		)
	}
	return nil
}

// DispatchPending hands each pending notification to the sender once.
// Failures are recorded on the row and never touch the quote.
func (s *Service) DispatchPending(ctx context.Context) (outbounddomain.DispatchResult, error) {
	var result outbounddomain.DispatchResult
	if s.sender == nil {
		return result, outbounddomain.ErrSenderNotReady
	}

	pending, err := s.repo.ListPending(ctx, s.db, s.batchSize)
	if err != nil {
		return result, err
	}
	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		claimed, err := s.repo.Claim(ctx, s.db, n.ID)
		if err != nil {
			return result, err
		}
		if !claimed {
			continue
		}
		result.Claimed++

		sendErr := s.sender.Send(ctx, outbounddomain.Message{
			ID:        n.ID.String(),
			QuoteID:   n.QuoteID.String(),
			EventType: n.EventType,
			Payload:   []byte(n.Payload),
		})
		if sendErr != nil {
			result.Failed++
			s.log.Warn("outbound notification failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("quote_id", n.QuoteID.String()),
				zap.String("event_type", string(n.EventType)),
				zap.Error(sendErr),
			)
			if err := s.repo.MarkFailed(ctx, s.db, n.ID, sendErr.Error()); err != nil {
				return result, err
			}
			continue
		}

		result.Delivered++
		if err := s.repo.MarkDelivered(ctx, s.db, n.ID, s.clock.Now().UTC()); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Service) ListByQuote(ctx context.Context, quoteID snowflake.ID) ([]outbounddomain.Notification, error) {
	return s.repo.ListByQuote(ctx, s.db, quoteID)
}
