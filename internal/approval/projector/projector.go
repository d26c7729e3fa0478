// Package projector keeps the quote's status and authorization consistent
// with approval decisions. It writes through the caller's transaction so the
// request change, the quote change and the audit trail commit together.
package projector

import (
	"context"
	"time"

	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	auditdomain "github.com/smallbiznis/sellerflow/internal/audit/domain"
	obslogger "github.com/smallbiznis/sellerflow/internal/observability/logger"
	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
	quotedomain "github.com/smallbiznis/sellerflow/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Projection describes one quote status change and the events that explain it.
type Projection struct {
	Quote  *quotedomain.Quote
	To     quotedomain.Status
	Actor  actorcontext.Actor
	At     time.Time
	Reason string
	// Events are recorded after the status change, in order.
	Events []auditdomain.Entry
	// WithItems persists repriced items along with the quote.
	WithItems bool
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Quotes   quotedomain.Repository
	Audit    auditdomain.Sink
	Outbound outbounddomain.Service
}

type Projector struct {
	log      *zap.Logger
	quotes   quotedomain.Repository
	audit    auditdomain.Sink
	outbound outbounddomain.Service
}

func New(p Params) *Projector {
	return &Projector{
		log:      p.Log.Named("approval.projector"),
		quotes:   p.Quotes,
		audit:    p.Audit,
		outbound: p.Outbound,
	}
}

// Apply moves the quote to p.To and records the status change followed by
// p.Events. Reaching approved marks the quote authorized and enqueues the
// quote.approved notification; rejected and expired clear the authorization.
func (pr *Projector) Apply(ctx context.Context, tx *gorm.DB, p Projection) (*quotedomain.Quote, error) {
	current := p.Quote
	if current == nil {
		return nil, quotedomain.ErrNotFound
	}
	if !current.Status.CanTransition(p.To) {
		return nil, quotedomain.ErrInvalidTransition
	}

	next := *current
	next.Status = p.To
	next.UpdatedAt = p.At
	switch p.To {
	case quotedomain.StatusPendingApproval, quotedomain.StatusRejected, quotedomain.StatusExpired:
		next.IsAuthorized = false
	case quotedomain.StatusApproved:
		next.IsAuthorized = true
	}
	next.RequiresApproval = !next.IsAuthorized

	if err := pr.quotes.Save(ctx, tx, &next, p.WithItems); err != nil {
		return nil, err
	}

	if p.To == quotedomain.StatusApproved {
		payload := quotedomain.NewNotificationPayload(next, p.Actor.ID)
		if err := pr.outbound.Enqueue(ctx, tx, next.ID, outbounddomain.EventQuoteApproved, next.ApprovalCycle, payload); err != nil {
			return nil, err
		}
	}

	entries := make([]auditdomain.Entry, 0, len(p.Events)+1)
	entries = append(entries, auditdomain.Entry{
		QuoteID:    next.ID,
		Actor:      p.Actor,
		FromStatus: string(current.Status),
		ToStatus:   string(next.Status),
		Message:    p.Reason,
		OccurredAt: p.At,
		Payload:    auditdomain.StatusChanged{Reason: p.Reason, ApprovalCycle: next.ApprovalCycle},
	})
	entries = append(entries, p.Events...)
	if err := pr.audit.Record(ctx, tx, entries...); err != nil {
		return nil, err
	}

	pr.log.Debug("quote status projected",
		obslogger.Quote(next.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
	)
	return &next, nil
}

// Record writes events that leave the quote status unchanged.
func (pr *Projector) Record(ctx context.Context, tx *gorm.DB, entries ...auditdomain.Entry) error {
	return pr.audit.Record(ctx, tx, entries...)
}
