package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	approvaldomain "github.com/smallbiznis/sellerflow/internal/approval/domain"
	"github.com/smallbiznis/sellerflow/internal/approval/projector"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	auditdomain "github.com/smallbiznis/sellerflow/internal/audit/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	calendardomain "github.com/smallbiznis/sellerflow/internal/calendar/domain"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	obslogger "github.com/smallbiznis/sellerflow/internal/observability/logger"
	"github.com/smallbiznis/sellerflow/internal/observability/metrics"
	quotedomain "github.com/smallbiznis/sellerflow/internal/quote/domain"
	"github.com/smallbiznis/sellerflow/internal/quotelock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepBatchLimit = 200

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Cfg       config.Config
	Repo      approvaldomain.Repository
	Quotes    quotedomain.Repository
	Pricing   quotedomain.Service
	Rules     approvalruledomain.Service
	Calendar  calendardomain.Service
	Authz     authorization.Service
	Locker    quotelock.Locker
	Projector *projector.Projector
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      approvaldomain.Repository
	quotes    quotedomain.Repository
	pricing   quotedomain.Service
	rules     approvalruledomain.Service
	calendar  calendardomain.Service
	authz     authorization.Service
	locker    quotelock.Locker
	projector *projector.Projector
	metrics   *metrics.Metrics

	policy        string
	requireReason bool
	warningWindow decimal.Decimal
	defaultRole   authorization.Role
	defaultSLA    int
}

func NewService(p Params) approvaldomain.Service {
	defaultRole, err := authorization.ParseRole(p.Cfg.Approval.DefaultApproverRole)
	if err != nil {
		defaultRole = authorization.RoleGerente
	}
	defaultSLA := p.Cfg.Approval.DefaultSLAHours
	if defaultSLA <= 0 {
		defaultSLA = 24
	}
	window := p.Cfg.Approval.SLAWarningWindow
	if window <= 0 {
		window = 4 * time.Hour
	}
	policy := p.Cfg.Approval.ExpiryPolicy
	if policy != config.ExpiryPolicyNotify {
		policy = config.ExpiryPolicyEscalate
	}

	return &Service{
		db:            p.DB,
		log:           p.Log.Named("approval.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		quotes:        p.Quotes,
		pricing:       p.Pricing,
		rules:         p.Rules,
		calendar:      p.Calendar,
		authz:         p.Authz,
		locker:        p.Locker,
		projector:     p.Projector,
		metrics:       p.Metrics,
		policy:        policy,
		requireReason: p.Cfg.Approval.RequireReason,
		warningWindow: decimal.NewFromFloat(window.Hours()),
		defaultRole:   defaultRole,
		defaultSLA:    defaultSLA,
	}
}

func (s *Service) Submit(ctx context.Context, quoteID string, req approvaldomain.SubmitRequest) (*approvaldomain.SubmitResult, error) {
	var out approvaldomain.SubmitResult
	err := s.withQuote(ctx, quoteID, func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error {
		repriced, err := s.prepare(ctx, current)
		if err != nil {
			return err
		}
		if repriced.IsAuthorized {
			quote, err := s.projector.Apply(ctx, tx, projector.Projection{
				Quote:     repriced,
				To:        quotedomain.StatusApproved,
				Actor:     actor,
				At:        now,
				Reason:    "self-authorized",
				WithItems: true,
			})
			if err != nil {
				return err
			}
			out.Quote = quote
			return nil
		}
		request, quote, err := s.open(ctx, tx, actor, now, repriced, req.Reason)
		if err != nil {
			return err
		}
		out.Quote, out.Request = quote, request
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Request != nil {
		s.metrics.RecordApprovalRequested(ctx, string(out.Request.RequiredRole))
		s.log.Info("approval requested",
			obslogger.Quote(out.Quote.ID),
			obslogger.ApprovalRequest(out.Request.ID),
			zap.String("required_role", string(out.Request.RequiredRole)),
			zap.Time("expires_at", out.Request.ExpiresAt),
		)
	} else {
		s.log.Info("quote self-authorized", obslogger.Quote(out.Quote.ID))
	}
	return &out, nil
}

func (s *Service) Create(ctx context.Context, quoteID string, req approvaldomain.SubmitRequest) (*approvaldomain.ApprovalRequest, error) {
	var out *approvaldomain.ApprovalRequest
	err := s.withQuote(ctx, quoteID, func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error {
		repriced, err := s.prepare(ctx, current)
		if err != nil {
			return err
		}
		if repriced.IsAuthorized {
			return approvaldomain.ErrApprovalNotRequired
		}
		request, _, err := s.open(ctx, tx, actor, now, repriced, req.Reason)
		if err != nil {
			return err
		}
		out = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordApprovalRequested(ctx, string(out.RequiredRole))
	return out, nil
}

func (s *Service) Approve(ctx context.Context, requestID string, req approvaldomain.DecisionRequest) (*approvaldomain.DecisionResult, error) {
	return s.decide(ctx, requestID, approvaldomain.StatusApproved, req)
}

func (s *Service) Reject(ctx context.Context, requestID string, req approvaldomain.DecisionRequest) (*approvaldomain.DecisionResult, error) {
	return s.decide(ctx, requestID, approvaldomain.StatusRejected, req)
}

func (s *Service) decide(ctx context.Context, requestID string, outcome approvaldomain.Status, req approvaldomain.DecisionRequest) (*approvaldomain.DecisionResult, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return nil, authorization.ErrInvalidActor
	}
	id, err := parseID(requestID, approvaldomain.ErrInvalidRequestID)
	if err != nil {
		return nil, err
	}
	comments := strings.TrimSpace(req.Comments)
	if comments == "" {
		return nil, approvaldomain.ErrCommentsRequired
	}

	request, err := s.repo.FindByID(ctx, s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, approvaldomain.ErrNotFound
	}
	// An overdue request is expired before anyone can act on it.
	if err := s.expireIfDue(ctx, request.QuoteID); err != nil {
		return nil, err
	}

	var out approvaldomain.DecisionResult
	err = s.locker.WithLock(ctx, request.QuoteID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now().UTC()
			current, err := s.repo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if current == nil {
				return approvaldomain.ErrNotFound
			}
			if current.Status != approvaldomain.StatusPending {
				return approvaldomain.ErrAlreadyDecided
			}
			if err := s.checkRole(actor, current.RequiredRole); err != nil {
				return err
			}

			decided, err := s.repo.Decide(ctx, tx, current.ID, outcome, actor.ID, comments, now)
			if err != nil {
				return err
			}
			if !decided {
				return approvaldomain.ErrAlreadyDecided
			}
			approvedBy := actor.ID
			current.Status = outcome
			current.ApprovedBy = &approvedBy
			current.Comments = &comments
			current.DecidedAt = &now
			current.UpdatedAt = now
			out.Request = current

			quote, err := s.quotes.FindByID(ctx, tx, current.QuoteID, true)
			if err != nil {
				return err
			}
			if quote == nil {
				return quotedomain.ErrNotFound
			}

			if outcome == approvaldomain.StatusRejected {
				projected, err := s.projector.Apply(ctx, tx, projector.Projection{
					Quote:  quote,
					To:     quotedomain.StatusRejected,
					Actor:  actor,
					At:     now,
					Reason: "approval rejected",
					Events: []auditdomain.Entry{{
						QuoteID:    quote.ID,
						Actor:      actor,
						Message:    comments,
						OccurredAt: now,
						Payload: auditdomain.ApprovalRejected{
							RequestID:  current.ID.String(),
							RejectedBy: actor.ID,
							Comments:   comments,
							StepOrder:  current.CurrentStepOrder,
						},
					}},
				})
				if err != nil {
					return err
				}
				out.Quote = projected
				return nil
			}

			approved := auditdomain.Entry{
				QuoteID:    quote.ID,
				Actor:      actor,
				Message:    comments,
				OccurredAt: now,
				Payload: auditdomain.ApprovalApproved{
					RequestID:  current.ID.String(),
					ApprovedBy: actor.ID,
					Comments:   comments,
					StepOrder:  current.CurrentStepOrder,
					TotalSteps: current.TotalSteps,
					Final:      current.Final(),
				},
			}

			step, err := current.NextStep()
			if err != nil {
				return err
			}
			if step == nil {
				projected, err := s.projector.Apply(ctx, tx, projector.Projection{
					Quote:  quote,
					To:     quotedomain.StatusApproved,
					Actor:  actor,
					At:     now,
					Reason: "approval granted",
					Events: []auditdomain.Entry{approved},
				})
				if err != nil {
					return err
				}
				out.Quote = projected
				return nil
			}

			next, err := s.successor(ctx, current, step.Role, step.Order, step.SLAHours, now)
			if err != nil {
				return err
			}
			if err := s.repo.Insert(ctx, tx, next); err != nil {
				return err
			}
			if err := s.projector.Record(ctx, tx, approved, auditdomain.Entry{
				QuoteID:    quote.ID,
				Actor:      actor,
				Message:    "approval advanced to " + string(next.RequiredRole),
				OccurredAt: now,
				Payload: auditdomain.ApprovalStepAdvanced{
					PreviousRequestID: current.ID.String(),
					RequestID:         next.ID.String(),
					RequiredRole:      string(next.RequiredRole),
					StepOrder:         next.CurrentStepOrder,
					TotalSteps:        next.TotalSteps,
					ExpiresAt:         next.ExpiresAt,
				},
			}); err != nil {
				return err
			}
			out.Next = next
			out.Quote = quote
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	waited := time.Duration(-1)
	if out.Request.DecidedAt != nil {
		waited = out.Request.DecidedAt.Sub(out.Request.RequestedAt)
	}
	s.metrics.RecordApprovalDecision(ctx, string(outcome), string(out.Request.RequiredRole), waited)
	if out.Next != nil {
		s.metrics.RecordApprovalRequested(ctx, string(out.Next.RequiredRole))
	}
	s.log.Info("approval decided",
		obslogger.ApprovalRequest(out.Request.ID),
		obslogger.Quote(out.Request.QuoteID),
		zap.String("outcome", string(outcome)),
		zap.String("actor_id", actor.ID),
		zap.Bool("advanced", out.Next != nil),
	)
	return &out, nil
}

func (s *Service) ExpireDue(ctx context.Context) (approvaldomain.SweepResult, error) {
	var result approvaldomain.SweepResult
	now := s.clock.Now().UTC()
	overdue, err := s.repo.ListExpired(ctx, s.db.WithContext(ctx), now, sweepBatchLimit)
	if err != nil {
		return result, err
	}

	ctx = actorcontext.WithActor(ctx, actorcontext.System)
	var errs []error
	for _, request := range overdue {
		escalated, expired, err := s.expire(ctx, request.QuoteID, request.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("approval request %s: %w", request.ID, err))
			continue
		}
		if expired {
			result.Expired++
		}
		if escalated {
			result.Escalated++
		}
	}
	if result.Expired > 0 {
		s.log.Info("approval requests expired",
			zap.Int("expired", result.Expired),
			zap.Int("escalated", result.Escalated),
			zap.String("policy", s.policy),
		)
	}
	return result, errors.Join(errs...)
}

func (s *Service) ExpireIfDue(ctx context.Context, quoteID string) error {
	id, err := parseID(quoteID, quotedomain.ErrInvalidQuoteID)
	if err != nil {
		return err
	}
	return s.expireIfDue(ctx, id)
}

func (s *Service) expireIfDue(ctx context.Context, quoteID snowflake.ID) error {
	pending, err := s.repo.FindPendingByQuote(ctx, s.db.WithContext(ctx), quoteID)
	if err != nil {
		return err
	}
	if pending == nil || !pending.ExpiresAt.Before(s.clock.Now().UTC()) {
		return nil
	}
	_, _, err = s.expire(actorcontext.WithActor(ctx, actorcontext.System), quoteID, pending.ID)
	return err
}

// expire flips one overdue request and applies the configured policy. A
// request decided or expired concurrently is left alone.
func (s *Service) expire(ctx context.Context, quoteID, requestID snowflake.ID) (escalated bool, expired bool, err error) {
	err = s.locker.WithLock(ctx, quoteID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now().UTC()
			request, err := s.repo.FindByID(ctx, tx, requestID)
			if err != nil {
				return err
			}
			if request == nil {
				return approvaldomain.ErrNotFound
			}
			flipped, err := s.repo.Expire(ctx, tx, requestID, now)
			if err != nil || !flipped {
				return err
			}
			expired = true

			actor := actorcontext.System
			expiredEntry := auditdomain.Entry{
				QuoteID:    request.QuoteID,
				Actor:      actor,
				Message:    "approval deadline elapsed",
				OccurredAt: now,
				Payload: auditdomain.ApprovalExpired{
					RequestID:    request.ID.String(),
					RequiredRole: string(request.RequiredRole),
					ExpiresAt:    request.ExpiresAt,
					Policy:       s.policy,
					RequestedBy:  request.RequestedBy,
				},
			}

			if s.policy == config.ExpiryPolicyNotify {
				quote, err := s.quotes.FindByID(ctx, tx, request.QuoteID, true)
				if err != nil {
					return err
				}
				if quote == nil {
					return quotedomain.ErrNotFound
				}
				_, err = s.projector.Apply(ctx, tx, projector.Projection{
					Quote:  quote,
					To:     quotedomain.StatusExpired,
					Actor:  actor,
					At:     now,
					Reason: "approval expired",
					Events: []auditdomain.Entry{expiredEntry},
				})
				return err
			}

			next, err := s.successor(ctx, request, request.RequiredRole.Next(), request.CurrentStepOrder, request.SLAHours, now)
			if err != nil {
				return err
			}
			next.RequestedBy = request.RequestedBy
			if err := s.repo.Insert(ctx, tx, next); err != nil {
				return err
			}
			escalated = true
			return s.projector.Record(ctx, tx, expiredEntry, auditdomain.Entry{
				QuoteID:    request.QuoteID,
				Actor:      actor,
				Message:    "approval escalated to " + string(next.RequiredRole),
				OccurredAt: now,
				Payload: auditdomain.ApprovalEscalated{
					PreviousRequestID: request.ID.String(),
					RequestID:         next.ID.String(),
					FromRole:          string(request.RequiredRole),
					ToRole:            string(next.RequiredRole),
					ExpiresAt:         next.ExpiresAt,
				},
			})
		})
	})
	if err == nil && expired {
		s.metrics.RecordApprovalExpired(ctx, s.policy)
	}
	return escalated, expired, err
}

// SendSLAWarnings flags pending requests whose remaining business time fell
// inside the warning window. Each request is warned once.
func (s *Service) SendSLAWarnings(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	candidates, err := s.repo.ListUnwarned(ctx, s.db.WithContext(ctx), now, sweepBatchLimit)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	cal, err := s.calendar.Current(ctx)
	if err != nil {
		return 0, err
	}

	warned := 0
	var errs []error
	for _, request := range candidates {
		remaining := cal.ElapsedBusinessHours(now, request.ExpiresAt)
		if remaining.GreaterThan(s.warningWindow) {
			continue
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			marked, err := s.repo.MarkSLAWarning(ctx, tx, request.ID, now)
			if err != nil || !marked {
				return err
			}
			warned++
			return s.projector.Record(ctx, tx, auditdomain.Entry{
				QuoteID:    request.QuoteID,
				Actor:      actorcontext.System,
				Message:    "approval deadline approaching",
				OccurredAt: now,
				Payload: auditdomain.ApprovalSLAWarning{
					RequestID:      request.ID.String(),
					RequiredRole:   string(request.RequiredRole),
					ExpiresAt:      request.ExpiresAt,
					RemainingHours: remaining.Round(2),
				},
			})
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("approval request %s: %w", request.ID, err))
			continue
		}
		s.metrics.RecordSLAWarning(ctx, string(request.RequiredRole))
	}
	return warned, errors.Join(errs...)
}

// ListPending returns the pending requests the caller's role may decide.
func (s *Service) ListPending(ctx context.Context) ([]approvaldomain.ApprovalRequest, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return nil, authorization.ErrInvalidActor
	}
	role, err := authorization.ParseRole(actor.Role)
	if err != nil {
		return nil, authorization.ErrInvalidActor
	}
	var roles []authorization.Role
	for _, candidate := range authorization.Roles() {
		ok, err := s.authz.Satisfies(role, candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			roles = append(roles, candidate)
		}
	}
	return s.repo.ListPendingByRoles(ctx, s.db.WithContext(ctx), roles)
}

func (s *Service) History(ctx context.Context, quoteID string) ([]approvaldomain.ApprovalRequest, error) {
	id, err := parseID(quoteID, quotedomain.ErrInvalidQuoteID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByQuote(ctx, s.db.WithContext(ctx), id)
}

// withQuote runs fn under the quote lock inside one transaction with the
// quote loaded for update.
func (s *Service) withQuote(ctx context.Context, quoteID string, fn func(tx *gorm.DB, actor actorcontext.Actor, now time.Time, current *quotedomain.Quote) error) error {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return authorization.ErrInvalidActor
	}
	id, err := parseID(quoteID, quotedomain.ErrInvalidQuoteID)
	if err != nil {
		return err
	}
	return s.locker.WithLock(ctx, id, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.quotes.FindByID(ctx, tx, id, true)
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

// prepare checks the quote can enter the approval flow and reprices it with
// the current configuration.
func (s *Service) prepare(ctx context.Context, current *quotedomain.Quote) (*quotedomain.Quote, error) {
	if current.Status != quotedomain.StatusDraft && current.Status != quotedomain.StatusCalculated {
		return nil, approvaldomain.ErrQuoteNotSubmittable
	}
	if len(current.Items) == 0 {
		return nil, quotedomain.ErrEmptyQuote
	}
	pricer, err := s.pricing.Pricer(ctx, current)
	if err != nil {
		return nil, err
	}
	repriced := *current
	repriced.Items = append([]quotedomain.QuoteItem(nil), current.Items...)
	if err := quotedomain.Reprice(&repriced, pricer); err != nil {
		return nil, err
	}
	return &repriced, nil
}

// open creates the first request of the quote's approval chain and moves the
// quote to pending_approval.
func (s *Service) open(ctx context.Context, tx *gorm.DB, actor actorcontext.Actor, now time.Time, quote *quotedomain.Quote, rawReason string) (*approvaldomain.ApprovalRequest, *quotedomain.Quote, error) {
	reason := strings.TrimSpace(rawReason)
	if reason == "" {
		if s.requireReason {
			return nil, nil, approvaldomain.ErrReasonRequired
		}
		reason = fmt.Sprintf("margin %s%% requires approval", quote.Totals.TotalMarginPercent.StringFixed(2))
	}

	chain, priority, err := s.resolveChain(ctx, quote)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := approvaldomain.EncodeChain(chain)
	if err != nil {
		return nil, nil, err
	}
	first := chain[0]
	expiresAt, err := s.calendar.AddBusinessHours(ctx, now, decimal.NewFromInt(int64(first.SLAHours)))
	if err != nil {
		return nil, nil, err
	}

	id := s.genID.Generate()
	request := &approvaldomain.ApprovalRequest{
		ID:                 id,
		QuoteID:            quote.ID,
		RuleID:             quote.GoverningRuleID,
		ChainID:            id,
		ApprovalCycle:      quote.ApprovalCycle,
		RequestedBy:        actor.ID,
		Status:             approvaldomain.StatusPending,
		RequiredRole:       first.Role,
		Priority:           priority,
		QuoteTotal:         quote.Totals.TotalOffered,
		QuoteMarginPercent: quote.Totals.TotalMarginPercent,
		Reason:             &reason,
		RequestedAt:        now,
		ExpiresAt:          expiresAt,
		SLAHours:           first.SLAHours,
		CurrentStepOrder:   first.Order,
		TotalSteps:         len(chain),
		Chain:              encoded,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, tx, request); err != nil {
		return nil, nil, err
	}

	requested := auditdomain.Entry{
		QuoteID:    quote.ID,
		Actor:      actor,
		Message:    reason,
		OccurredAt: now,
		Payload: auditdomain.ApprovalRequested{
			RequestID:     request.ID.String(),
			RequiredRole:  string(request.RequiredRole),
			StepOrder:     request.CurrentStepOrder,
			TotalSteps:    request.TotalSteps,
			ExpiresAt:     request.ExpiresAt,
			Reason:        reason,
			QuoteTotal:    request.QuoteTotal,
			MarginPercent: request.QuoteMarginPercent,
		},
	}
	if request.RuleID != nil {
		payload := requested.Payload.(auditdomain.ApprovalRequested)
		payload.RuleID = request.RuleID.String()
		requested.Payload = payload
	}

	projected, err := s.projector.Apply(ctx, tx, projector.Projection{
		Quote:     quote,
		To:        quotedomain.StatusPendingApproval,
		Actor:     actor,
		At:        now,
		Reason:    "approval requested",
		Events:    []auditdomain.Entry{requested},
		WithItems: true,
	})
	if err != nil {
		return nil, nil, err
	}
	return request, projected, nil
}

// resolveChain returns the governing rule's steps, or a single step for the
// quote's required role when the rule is gone or the quote carries none.
func (s *Service) resolveChain(ctx context.Context, quote *quotedomain.Quote) ([]approvalruledomain.ChainStep, string, error) {
	if quote.GoverningRuleID != nil {
		set, err := s.rules.RuleSet(ctx)
		if err != nil {
			return nil, "", err
		}
		if rule := set.Find(*quote.GoverningRuleID); rule != nil {
			return rule.Chain(), string(rule.Priority), nil
		}
	}

	role := s.defaultRole
	if quote.RequiredApproverRole != nil {
		if parsed, err := authorization.ParseRole(*quote.RequiredApproverRole); err == nil {
			role = parsed
		}
	}
	return []approvalruledomain.ChainStep{{Order: 1, Role: role, SLAHours: s.defaultSLA}}, string(approvalruledomain.PriorityMedium), nil
}

// successor builds the pending request that replaces prev in its chain.
func (s *Service) successor(ctx context.Context, prev *approvaldomain.ApprovalRequest, role authorization.Role, order, slaHours int, now time.Time) (*approvaldomain.ApprovalRequest, error) {
	if slaHours <= 0 {
		slaHours = s.defaultSLA
	}
	expiresAt, err := s.calendar.AddBusinessHours(ctx, now, decimal.NewFromInt(int64(slaHours)))
	if err != nil {
		return nil, err
	}
	next := *prev
	next.ID = s.genID.Generate()
	next.ApprovedBy = nil
	next.Comments = nil
	next.DecidedAt = nil
	next.Status = approvaldomain.StatusPending
	next.RequiredRole = role
	next.CurrentStepOrder = order
	next.SLAHours = slaHours
	next.SLAWarningSent = false
	next.RequestedAt = now
	next.ExpiresAt = expiresAt
	next.CreatedAt = now
	next.UpdatedAt = now
	return &next, nil
}

func (s *Service) checkRole(actor actorcontext.Actor, required authorization.Role) error {
	role, err := authorization.ParseRole(actor.Role)
	if err != nil {
		return approvaldomain.ErrInsufficientRole
	}
	ok, err := s.authz.Satisfies(role, required)
	if err != nil {
		return err
	}
	if !ok {
		return approvaldomain.ErrInsufficientRole
	}
	return nil
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}
