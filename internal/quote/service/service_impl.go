package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	auditdomain "github.com/smallbiznis/sellerflow/internal/audit/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	obslogger "github.com/smallbiznis/sellerflow/internal/observability/logger"
	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
	quotedomain "github.com/smallbiznis/sellerflow/internal/quote/domain"
	"github.com/smallbiznis/sellerflow/internal/quotelock"
	"github.com/smallbiznis/sellerflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	numberAttempts   = 5
	expireBatchLimit = 200
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Repo     quotedomain.Repository
	Pricing  pricingdomain.ConfigSource
	Rules    approvalruledomain.Service
	Audit    auditdomain.Sink
	Outbound outbounddomain.Service
	Locker   quotelock.Locker
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     quotedomain.Repository
	pricing  pricingdomain.ConfigSource
	rules    approvalruledomain.Service
	audit    auditdomain.Sink
	outbound outbounddomain.Service
	locker   quotelock.Locker

	validity time.Duration
}

func NewService(p Params) quotedomain.Service {
	days := p.Cfg.Approval.QuoteValidityDays
	if days <= 0 {
		days = 15
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("quote.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		pricing:  p.Pricing,
		rules:    p.Rules,
		audit:    p.Audit,
		outbound: p.Outbound,
		locker:   p.Locker,
		validity: time.Duration(days) * 24 * time.Hour,
	}
}

func (s *Service) Create(ctx context.Context, req quotedomain.CreateQuoteRequest) (*quotedomain.Quote, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return nil, authorization.ErrInvalidActor
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, quotedomain.ErrInvalidCustomer
	}
	region, err := pricingdomain.ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	base := quotedomain.Quote{
		ID:                 s.genID.Generate(),
		CustomerID:         customerID,
		Region:             region,
		IsInterLab:         req.IsInterLab,
		CreatedBy:          actor.ID,
		Status:             quotedomain.StatusDraft,
		PaymentConditionID: req.PaymentConditionID,
		ValidUntil:         now.Add(s.validity),
		Totals:             quotedomain.CalculateTotals(nil),
		IsAuthorized:       true,
		ApprovalCycle:      1,
		Version:            1,
		Notes:              strings.TrimSpace(req.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	draft, err := quotedomain.NewDraft(base, now, s.genID.Generate)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if _, err := draft.AddItem(item.Input()); err != nil {
			return nil, err
		}
	}
	pricer, err := s.Pricer(ctx, &base)
	if err != nil {
		return nil, err
	}
	quote, err := draft.Commit(pricer)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < numberAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := s.nextQuoteNumber(ctx, tx, now)
			if err != nil {
				return err
			}
			quote.QuoteNumber = number
			if err := s.repo.Insert(ctx, tx, &quote); err != nil {
				return err
			}

			entries := []auditdomain.Entry{{
				QuoteID:    quote.ID,
				Actor:      actor,
				ToStatus:   string(quotedomain.StatusDraft),
				Message:    "quote created",
				OccurredAt: now,
				Payload: auditdomain.QuoteCreated{
					QuoteNumber: quote.QuoteNumber,
					CustomerID:  quote.CustomerID,
					Region:      string(quote.Region),
					IsInterLab:  quote.IsInterLab,
				},
			}}
			entries = append(entries, s.draftEntries(actor, now, quote, draft)...)
			return s.audit.Record(ctx, tx, entries...)
		})
		if err == nil || !db.IsDuplicateKeyErr(err) {
			break
		}
		s.log.Debug("quote number collision, retrying", zap.String("quote_number", quote.QuoteNumber))
	}
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, quotedomain.ErrQuoteNumberExhaust
		}
		return nil, err
	}

	s.log.Info("quote created",
		obslogger.Quote(quote.ID),
		zap.String("quote_number", quote.QuoteNumber),
		zap.String("status", string(quote.Status)),
		zap.Int("items", len(quote.Items)),
	)
	return &quote, nil
}

func (s *Service) Get(ctx context.Context, id string) (*quotedomain.Quote, error) {
	quoteID, err := parseID(id, quotedomain.ErrInvalidQuoteID)
	if err != nil {
		return nil, err
	}
	quote, err := s.repo.FindByID(ctx, s.db, quoteID, false)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, quotedomain.ErrNotFound
	}
	return quote, nil
}

func (s *Service) AddItem(ctx context.Context, id string, req quotedomain.ItemRequest) (*quotedomain.Quote, error) {
	return s.edit(ctx, id, func(d *quotedomain.Draft) error {
		_, err := d.AddItem(req.Input())
		return err
	})
}

func (s *Service) UpdateItem(ctx context.Context, id string, itemID string, req quotedomain.UpdateItemRequest) (*quotedomain.Quote, error) {
	parsed, err := parseID(itemID, quotedomain.ErrInvalidItemID)
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, id, func(d *quotedomain.Draft) error {
		return d.UpdateItem(parsed, req.Patch())
	})
}

func (s *Service) RemoveItem(ctx context.Context, id string, itemID string) (*quotedomain.Quote, error) {
	parsed, err := parseID(itemID, quotedomain.ErrInvalidItemID)
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, id, func(d *quotedomain.Draft) error {
		return d.RemoveItem(parsed)
	})
}

// Reset returns a rejected or expired quote to draft and opens a new
// approval cycle. Items keep their last calculation until edited.
func (s *Service) Reset(ctx context.Context, id string) (*quotedomain.Quote, error) {
	var out *quotedomain.Quote
	err := s.mutate(ctx, id, func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error {
		if !current.Status.NeedsReset() {
			return quotedomain.ErrInvalidTransition
		}
		draft, err := quotedomain.NewDraft(*current, now, s.genID.Generate)
		if err != nil {
			return err
		}
		next := draft.Current()
		next.UpdatedAt = now
		s.renewValidity(&next, now)
		if err := s.repo.Save(ctx, tx, &next, false); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, s.draftEntries(actor, now, next, draft)...); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Send hands an approved quote to the order channel through the outbox.
func (s *Service) Send(ctx context.Context, id string) (*quotedomain.Quote, error) {
	var out *quotedomain.Quote
	err := s.mutate(ctx, id, func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error {
		if !current.Status.CanTransition(quotedomain.StatusSent) || !current.IsAuthorized || len(current.Items) == 0 {
			return quotedomain.ErrInvalidTransition
		}
		from := current.Status
		next := *current
		next.Status = quotedomain.StatusSent
		next.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, &next, false); err != nil {
			return err
		}
		payload := quotedomain.NewNotificationPayload(next, actor.ID)
		if err := s.outbound.Enqueue(ctx, tx, next.ID, outbounddomain.EventQuoteSent, next.ApprovalCycle, payload); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			QuoteID:    next.ID,
			Actor:      actor,
			FromStatus: string(from),
			ToStatus:   string(next.Status),
			Message:    "quote sent",
			OccurredAt: now,
			Payload:    auditdomain.QuoteSent{TotalOffered: next.Totals.TotalOffered},
		}); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("quote sent", obslogger.Quote(out.ID), zap.String("quote_number", out.QuoteNumber))
	return out, nil
}

func (s *Service) Convert(ctx context.Context, id string, req quotedomain.ConvertRequest) (*quotedomain.Quote, error) {
	var out *quotedomain.Quote
	err := s.mutate(ctx, id, func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error {
		if !current.Status.CanTransition(quotedomain.StatusConverted) {
			return quotedomain.ErrInvalidTransition
		}
		from := current.Status
		next := *current
		next.Status = quotedomain.StatusConverted
		next.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, &next, false); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			QuoteID:    next.ID,
			Actor:      actor,
			FromStatus: string(from),
			ToStatus:   string(next.Status),
			Message:    "quote converted",
			OccurredAt: now,
			Payload:    auditdomain.QuoteConverted{OrderReference: strings.TrimSpace(req.OrderReference)},
		}); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	ids, err := s.repo.ListExpirable(ctx, s.db, now, expireBatchLimit)
	if err != nil {
		return 0, err
	}

	ctx = actorcontext.WithActor(ctx, actorcontext.System)
	expired := 0
	var errs []error
	for _, id := range ids {
		changed := false
		err := s.mutate(ctx, id.String(), func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error {
			if !current.ValidUntil.Before(now) || !current.Status.CanTransition(quotedomain.StatusExpired) ||
				current.Status == quotedomain.StatusPendingApproval {
				return nil
			}
			from := current.Status
			next := *current
			next.Status = quotedomain.StatusExpired
			next.IsAuthorized = false
			next.UpdatedAt = now
			if err := s.repo.Save(ctx, tx, &next, false); err != nil {
				return err
			}
			changed = true
			return s.audit.Record(ctx, tx, auditdomain.Entry{
				QuoteID:    next.ID,
				Actor:      actor,
				FromStatus: string(from),
				ToStatus:   string(next.Status),
				Message:    "quote validity elapsed",
				OccurredAt: now,
				Payload:    auditdomain.StatusChanged{Reason: "validity elapsed", ApprovalCycle: next.ApprovalCycle},
			})
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("quote %s: %w", id, err))
			continue
		}
		if changed {
			expired++
		}
	}
	if expired > 0 {
		s.log.Info("stale quotes expired", zap.Int("count", expired))
	}
	return expired, errors.Join(errs...)
}

// Pricer resolves the configuration snapshot for the quote's region and the
// active rule set.
func (s *Service) Pricer(ctx context.Context, quote *quotedomain.Quote) (quotedomain.Pricer, error) {
	snapshot, err := s.pricing.Snapshot(ctx, quote.Region)
	if err != nil {
		return quotedomain.Pricer{}, err
	}
	rules, err := s.rules.RuleSet(ctx)
	if err != nil {
		return quotedomain.Pricer{}, err
	}
	return quotedomain.Pricer{Snapshot: snapshot, Authorizer: rules}, nil
}

func (s *Service) edit(ctx context.Context, id string, fn func(d *quotedomain.Draft) error) (*quotedomain.Quote, error) {
	var out *quotedomain.Quote
	err := s.mutate(ctx, id, func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error {
		draft, err := quotedomain.NewDraft(*current, now, s.genID.Generate)
		if err != nil {
			return err
		}
		if err := fn(draft); err != nil {
			return err
		}
		pricer, err := s.Pricer(ctx, current)
		if err != nil {
			return err
		}
		next, err := draft.Commit(pricer)
		if err != nil {
			return err
		}
		s.renewValidity(&next, now)
		if err := s.repo.Save(ctx, tx, &next, true); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, s.draftEntries(actor, now, next, draft)...); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutate runs fn under the quote lock inside one transaction with the row
// loaded for update.
func (s *Service) mutate(ctx context.Context, id string, fn func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error) error {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return authorization.ErrInvalidActor
	}
	quoteID, err := parseID(id, quotedomain.ErrInvalidQuoteID)
	if err != nil {
		return err
	}

	return s.locker.WithLock(ctx, quoteID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.repo.FindByID(ctx, tx, quoteID, true)
			if err != nil {
				return err
			}
			if current == nil {
				return quotedomain.ErrNotFound
			}
			return fn(tx, actor, s.clock.Now().UTC(), current)
		})
	})
}

func (s *Service) draftEntries(actor actorcontext.Actor, now time.Time, next quotedomain.Quote, draft *quotedomain.Draft) []auditdomain.Entry {
	var entries []auditdomain.Entry
	for _, t := range draft.Transitions() {
		if t.To == quotedomain.StatusDraft {
			entries = append(entries, statusEntry(next, actor, now, t))
		}
	}
	for _, change := range draft.Changes() {
		entry := auditdomain.Entry{QuoteID: next.ID, Actor: actor, OccurredAt: now}
		switch change.Kind {
		case quotedomain.ChangeAdded:
			item := next.Item(change.ItemID)
			if item == nil {
				continue
			}
			entry.Message = "item added"
			entry.Payload = auditdomain.ItemAdded{Item: itemSnapshot(*item)}
		case quotedomain.ChangeUpdated:
			item := next.Item(change.ItemID)
			if item == nil {
				continue
			}
			entry.Message = "item updated"
			entry.Payload = auditdomain.ItemUpdated{Before: itemSnapshot(*change.Before), After: itemSnapshot(*item)}
		case quotedomain.ChangeRemoved:
			entry.Message = "item removed"
			entry.Payload = auditdomain.ItemRemoved{Item: itemSnapshot(*change.Before)}
		}
		entries = append(entries, entry)
	}
	for _, t := range draft.Transitions() {
		if t.To != quotedomain.StatusDraft {
			entries = append(entries, statusEntry(next, actor, now, t))
		}
	}
	return entries
}

// renewValidity gives a quote reopened after its validity date a fresh window.
func (s *Service) renewValidity(q *quotedomain.Quote, now time.Time) {
	if q.ValidUntil.Before(now) {
		q.ValidUntil = now.Add(s.validity)
	}
}

func statusEntry(q quotedomain.Quote, actor actorcontext.Actor, now time.Time, t quotedomain.Transition) auditdomain.Entry {
	return auditdomain.Entry{
		QuoteID:    q.ID,
		Actor:      actor,
		FromStatus: string(t.From),
		ToStatus:   string(t.To),
		Message:    t.Reason,
		OccurredAt: now,
		Payload:    auditdomain.StatusChanged{Reason: t.Reason, ApprovalCycle: q.ApprovalCycle},
	}
}

func itemSnapshot(item quotedomain.QuoteItem) auditdomain.ItemSnapshot {
	snap := auditdomain.ItemSnapshot{
		ItemID:        item.ID.String(),
		ProductID:     item.ProductID,
		Quantity:      item.Quantity,
		OfferedPrice:  item.OfferedPrice,
		MarginPercent: item.MarginPercent,
		IsAuthorized:  item.IsAuthorized,
	}
	if item.RequiredApproverRole != nil {
		snap.RequiredRole = *item.RequiredApproverRole
	}
	return snap
}

// nextQuoteNumber returns Q-YYYYMMDD-<base36 sequence> for the day of now.
func (s *Service) nextQuoteNumber(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	prefix := "Q-" + now.Format("20060102") + "-"
	count, err := s.repo.CountNumbersWithPrefix(ctx, tx, prefix)
	if err != nil {
		return "", err
	}
	seq := strings.ToUpper(strconv.FormatInt(count+1, 36))
	if len(seq) < 4 {
		seq = strings.Repeat("0", 4-len(seq)) + seq
	}
	return prefix + seq, nil
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}
