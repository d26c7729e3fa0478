package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	approvaldomain "github.com/smallbiznis/sellerflow/internal/approval/domain"
	"github.com/smallbiznis/sellerflow/internal/approval/projector"
	"github.com/smallbiznis/sellerflow/internal/approval/repository"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	approvalrulerepo "github.com/smallbiznis/sellerflow/internal/approvalrule/repository"
	approvalruleservice "github.com/smallbiznis/sellerflow/internal/approvalrule/service"
	auditdomain "github.com/smallbiznis/sellerflow/internal/audit/domain"
	auditrepo "github.com/smallbiznis/sellerflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/sellerflow/internal/audit/service"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	calendarrepo "github.com/smallbiznis/sellerflow/internal/calendar/repository"
	calendarservice "github.com/smallbiznis/sellerflow/internal/calendar/service"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/dbtest"
	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
	outboundrepo "github.com/smallbiznis/sellerflow/internal/outbound/repository"
	"github.com/smallbiznis/sellerflow/internal/outbound/sender"
	outboundservice "github.com/smallbiznis/sellerflow/internal/outbound/service"
	pricingrepo "github.com/smallbiznis/sellerflow/internal/pricing/repository"
	pricingservice "github.com/smallbiznis/sellerflow/internal/pricing/service"
	quotedomain "github.com/smallbiznis/sellerflow/internal/quote/domain"
	quoterepo "github.com/smallbiznis/sellerflow/internal/quote/repository"
	quoteservice "github.com/smallbiznis/sellerflow/internal/quote/service"
	"github.com/smallbiznis/sellerflow/internal/quotelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Wednesday noon; the default calendar is open 08:00-18:00 Monday to Friday.
var start = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      approvaldomain.Service
	quotes   quotedomain.Service
	rules    approvalruledomain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	audit    auditdomain.Service
	outbound outbounddomain.Service
	accel    *dbtest.Accelerator
}

func setup(t *testing.T, mutate func(cfg *config.Config)) fixture {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(start)
	log := zap.NewNop()
	cfg := config.Config{
		Business: config.BusinessConfig{Timezone: "UTC"},
		Approval: config.ApprovalConfig{
			ExpiryPolicy:        config.ExpiryPolicyEscalate,
			SLAWarningWindow:    4 * time.Hour,
			DefaultApproverRole: "gerente",
			DefaultSLAHours:     24,
			QuoteValidityDays:   15,
		},
		Outbound: config.OutboundConfig{BatchSize: 10},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	defaults := config.NewStaticPricingDefaultsHolder(config.DefaultPricingDefaults())

	rules := approvalruleservice.NewService(approvalruleservice.Params{
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  approvalrulerepo.NewRepository(db),
	})
	zero, ten := decimal.Zero, decimal.NewFromInt(10)
	_, err = rules.Create(context.Background(), approvalruledomain.CreateRuleRequest{
		Name:         "Margem baixa",
		MarginMin:    &zero,
		MarginMax:    &ten,
		ApproverRole: "coordenador",
		SLAHours:     24,
	})
	require.NoError(t, err)
	_, err = rules.Create(context.Background(), approvalruledomain.CreateRuleRequest{
		Name:         "Margem negativa",
		MarginMax:    &zero,
		ApproverRole: "gerente",
		SLAHours:     8,
		Priority:     "high",
		Steps: []approvalruledomain.StepRequest{
			{ApproverRole: "gerente", SLAHours: 8},
			{ApproverRole: "diretor", SLAHours: 16},
		},
	})
	require.NoError(t, err)

	pricing := pricingservice.NewService(pricingservice.Params{
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Defaults: defaults,
		Repo:     pricingrepo.NewRepository(db),
		Rules:    rules,
	})
	calendar, err := calendarservice.NewService(calendarservice.Params{
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Cfg:      cfg,
		Defaults: defaults,
		Repo:     calendarrepo.NewRepository(db),
	})
	require.NoError(t, err)
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, Clock: clk, Repo: auditrepo.Provide()})
	outbound := outboundservice.NewService(outboundservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Cfg:    cfg,
		Repo:   outboundrepo.Provide(),
		Sender: sender.NewLogSender(log),
	})
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	locker := quotelock.NewLocal()
	quoteRepo := quoterepo.Provide()
	quotes := quoteservice.NewService(quoteservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Cfg:      cfg,
		Repo:     quoteRepo,
		Pricing:  pricing,
		Rules:    rules,
		Audit:    audit,
		Outbound: outbound,
		Locker:   locker,
	})

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Cfg:      cfg,
		Repo:     repository.Provide(),
		Quotes:   quoteRepo,
		Pricing:  quotes,
		Rules:    rules,
		Calendar: calendar,
		Authz:    authz,
		Locker:   locker,
		Projector: projector.New(projector.Params{
			Log:      log,
			Quotes:   quoteRepo,
			Audit:    audit,
			Outbound: outbound,
		}),
	})
	return fixture{
		svc:      svc,
		quotes:   quotes,
		rules:    rules,
		db:       db,
		clock:    clk,
		audit:    audit,
		outbound: outbound,
		accel:    dbtest.NewAccelerator(db),
	}
}

func as(id, role string) context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{ID: id, Role: role})
}

func seller() context.Context { return as("seller-1", "vendedor") }

func (f fixture) quote(t *testing.T, base, offered string) *quotedomain.Quote {
	t.Helper()
	q, err := f.quotes.Create(seller(), quotedomain.CreateQuoteRequest{
		CustomerID: "cust-1",
		Region:     "MG",
		Items: []quotedomain.ItemRequest{{
			ProductID:        "p-1",
			ProductName:      "Reagente",
			Quantity:         2,
			BaseCost:         decimal.RequireFromString(base),
			OfferedUnitPrice: decimal.RequireFromString(offered),
		}},
	})
	require.NoError(t, err)
	return q
}

func (f fixture) eventTypes(t *testing.T, quoteID snowflake.ID) []auditdomain.EventType {
	t.Helper()
	events, err := f.audit.ListByQuote(context.Background(), quoteID)
	require.NoError(t, err)
	out := make([]auditdomain.EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func TestSubmitSelfAuthorizedQuote(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "150")

	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)
	assert.Nil(t, res.Request)
	assert.Equal(t, quotedomain.StatusApproved, res.Quote.Status)
	assert.True(t, res.Quote.IsAuthorized)

	history, err := f.svc.History(seller(), q.ID.String())
	require.NoError(t, err)
	assert.Empty(t, history)

	notes, err := f.outbound.ListByQuote(context.Background(), q.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, outbounddomain.EventQuoteApproved, notes[0].EventType)
}

func TestSubmitEscalatesAndApproverDecides(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "105")

	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)
	require.NotNil(t, res.Request)
	req := res.Request
	assert.Equal(t, quotedomain.StatusPendingApproval, res.Quote.Status)
	assert.True(t, res.Quote.RequiresApproval)
	assert.Equal(t, authorization.RoleCoordenador, req.RequiredRole)
	assert.Equal(t, "margin 4.76% requires approval", *req.Reason)
	assert.Equal(t, 1, req.TotalSteps)
	// 24 business hours from Wednesday noon: 6h + 10h + 8h
	assert.True(t, req.ExpiresAt.Equal(time.Date(2026, time.October, 16, 16, 0, 0, 0, time.UTC)), "got %s", req.ExpiresAt)

	_, err = f.svc.Approve(as("seller-2", "vendedor"), req.ID.String(), approvaldomain.DecisionRequest{Comments: "ok"})
	assert.ErrorIs(t, err, approvaldomain.ErrInsufficientRole)

	_, err = f.svc.Approve(as("coord-1", "coordenador"), req.ID.String(), approvaldomain.DecisionRequest{Comments: "  "})
	assert.ErrorIs(t, err, approvaldomain.ErrCommentsRequired)

	decision, err := f.svc.Approve(as("coord-1", "coordenador"), req.ID.String(), approvaldomain.DecisionRequest{Comments: "cliente estratégico"})
	require.NoError(t, err)
	assert.Nil(t, decision.Next)
	assert.Equal(t, approvaldomain.StatusApproved, decision.Request.Status)
	assert.Equal(t, quotedomain.StatusApproved, decision.Quote.Status)
	assert.True(t, decision.Quote.IsAuthorized)
	assert.False(t, decision.Quote.RequiresApproval)

	stored, err := f.quotes.Get(seller(), q.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.IsAuthorized)
	assert.False(t, stored.RequiresApproval)

	_, err = f.svc.Approve(as("dir-1", "diretor"), req.ID.String(), approvaldomain.DecisionRequest{Comments: "again"})
	assert.ErrorIs(t, err, approvaldomain.ErrAlreadyDecided)

	notes, err := f.outbound.ListByQuote(context.Background(), q.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, outbounddomain.EventQuoteApproved, notes[0].EventType)

	assert.Equal(t, []auditdomain.EventType{
		auditdomain.EventQuoteCreated,
		auditdomain.EventQuoteItemAdded,
		auditdomain.EventQuoteStatusChanged,
		auditdomain.EventQuoteStatusChanged,
		auditdomain.EventApprovalRequested,
		auditdomain.EventQuoteStatusChanged,
		auditdomain.EventApprovalApproved,
	}, f.eventTypes(t, q.ID))

	sent, err := f.quotes.Send(seller(), q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusSent, sent.Status)
}

func TestMultiStepChainAdvances(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "90")

	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{Reason: "concorrência"})
	require.NoError(t, err)
	first := res.Request
	assert.Equal(t, authorization.RoleGerente, first.RequiredRole)
	assert.Equal(t, "high", first.Priority)
	assert.Equal(t, 2, first.TotalSteps)
	assert.Equal(t, "concorrência", *first.Reason)

	decision, err := f.svc.Approve(as("ger-1", "gerente"), first.ID.String(), approvaldomain.DecisionRequest{Comments: "de acordo"})
	require.NoError(t, err)
	require.NotNil(t, decision.Next)
	assert.Equal(t, quotedomain.StatusPendingApproval, decision.Quote.Status)
	assert.True(t, decision.Quote.RequiresApproval)
	next := decision.Next
	assert.Equal(t, authorization.RoleDiretor, next.RequiredRole)
	assert.Equal(t, 2, next.CurrentStepOrder)
	assert.Equal(t, first.ChainID, next.ChainID)
	assert.Equal(t, 16, next.SLAHours)

	_, err = f.svc.Approve(as("ger-1", "gerente"), next.ID.String(), approvaldomain.DecisionRequest{Comments: "ok"})
	assert.ErrorIs(t, err, approvaldomain.ErrInsufficientRole)

	final, err := f.svc.Approve(as("dir-1", "diretor"), next.ID.String(), approvaldomain.DecisionRequest{Comments: "aprovado"})
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusApproved, final.Quote.Status)
	assert.True(t, final.Quote.IsAuthorized)
	assert.False(t, final.Quote.RequiresApproval)

	history, err := f.svc.History(seller(), q.ID.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, f.eventTypes(t, q.ID), auditdomain.EventApprovalStepAdvanced)
}

func TestRejectTerminatesChain(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "90")

	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)

	_, err = f.svc.Reject(as("ger-1", "gerente"), res.Request.ID.String(), approvaldomain.DecisionRequest{})
	assert.ErrorIs(t, err, approvaldomain.ErrCommentsRequired)

	decision, err := f.svc.Reject(as("ger-1", "gerente"), res.Request.ID.String(), approvaldomain.DecisionRequest{Comments: "preço abaixo do mínimo"})
	require.NoError(t, err)
	assert.Nil(t, decision.Next)
	assert.Equal(t, approvaldomain.StatusRejected, decision.Request.Status)
	assert.Equal(t, quotedomain.StatusRejected, decision.Quote.Status)
	assert.False(t, decision.Quote.IsAuthorized)

	pending, err := f.svc.ListPending(as("dir-1", "diretor"))
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	assert.ErrorIs(t, err, approvaldomain.ErrQuoteNotSubmittable)

	// the seller reopens the quote and a new cycle can be submitted
	_, err = f.quotes.Reset(seller(), q.ID.String())
	require.NoError(t, err)
	again, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Request.ApprovalCycle)
}

func TestAtMostOnePendingPerQuote(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "105")

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, approvaldomain.ErrQuoteNotSubmittable)
	}
	assert.Equal(t, 1, succeeded)

	// the partial unique index backs the status check
	pending, err := repository.Provide().FindPendingByQuote(context.Background(), f.db, q.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	dup := *pending
	dup.ID = pending.ID + 1
	err = repository.Provide().Insert(context.Background(), f.db, &dup)
	assert.ErrorIs(t, err, approvaldomain.ErrPendingExists)
}

func TestCreateRequiresUnauthorizedQuote(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "150")

	_, err := f.svc.Create(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	assert.ErrorIs(t, err, approvaldomain.ErrApprovalNotRequired)

	empty, err := f.quotes.Create(seller(), quotedomain.CreateQuoteRequest{CustomerID: "c", Region: "MG"})
	require.NoError(t, err)
	_, err = f.svc.Submit(seller(), empty.ID.String(), approvaldomain.SubmitRequest{})
	assert.ErrorIs(t, err, quotedomain.ErrEmptyQuote)
}

func TestReasonRequiredByPolicy(t *testing.T) {
	f := setup(t, func(cfg *config.Config) { cfg.Approval.RequireReason = true })
	q := f.quote(t, "100", "105")

	_, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	assert.ErrorIs(t, err, approvaldomain.ErrReasonRequired)

	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{Reason: "renovação de contrato"})
	require.NoError(t, err)
	assert.Equal(t, "renovação de contrato", *res.Request.Reason)
}

func TestExpireSweepEscalates(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "105")
	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)

	result, err := f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Expired)

	require.NoError(t, f.accel.ExpireRequest(context.Background(), res.Request.ID, f.clock.Now()))
	result, err = f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, approvaldomain.SweepResult{Expired: 1, Escalated: 1}, result)

	history, err := f.svc.History(seller(), q.ID.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, approvaldomain.StatusExpired, history[0].Status)
	assert.Equal(t, approvaldomain.StatusPending, history[1].Status)
	assert.Equal(t, authorization.RoleGerente, history[1].RequiredRole)
	assert.Equal(t, "seller-1", history[1].RequestedBy)

	stored, err := f.quotes.Get(seller(), q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusPendingApproval, stored.Status)

	types := f.eventTypes(t, q.ID)
	assert.Contains(t, types, auditdomain.EventApprovalExpired)
	assert.Contains(t, types, auditdomain.EventApprovalEscalated)

	_, err = f.svc.Approve(as("coord-1", "coordenador"), history[1].ID.String(), approvaldomain.DecisionRequest{Comments: "ok"})
	assert.ErrorIs(t, err, approvaldomain.ErrInsufficientRole)
}

func TestExpireNotifyPolicyExpiresQuote(t *testing.T) {
	f := setup(t, func(cfg *config.Config) { cfg.Approval.ExpiryPolicy = config.ExpiryPolicyNotify })
	q := f.quote(t, "100", "105")
	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)

	require.NoError(t, f.accel.ExpireRequest(context.Background(), res.Request.ID, f.clock.Now()))
	result, err := f.svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, approvaldomain.SweepResult{Expired: 1}, result)

	stored, err := f.quotes.Get(seller(), q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusExpired, stored.Status)
	assert.False(t, stored.IsAuthorized)

	events, err := f.audit.ListByQuote(context.Background(), q.ID)
	require.NoError(t, err)
	var expired *auditdomain.ApprovalExpired
	for _, e := range events {
		if e.EventType != auditdomain.EventApprovalExpired {
			continue
		}
		payload, err := auditdomain.DecodePayload(e)
		require.NoError(t, err)
		expired = payload.(*auditdomain.ApprovalExpired)
	}
	require.NotNil(t, expired)
	assert.Equal(t, "seller-1", expired.RequestedBy)
	assert.Equal(t, config.ExpiryPolicyNotify, expired.Policy)
}

func TestDecisionOnOverdueRequestExpiresFirst(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "105")
	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)

	f.clock.Set(res.Request.ExpiresAt.Add(time.Minute))
	_, err = f.svc.Approve(as("coord-1", "coordenador"), res.Request.ID.String(), approvaldomain.DecisionRequest{Comments: "tarde"})
	assert.ErrorIs(t, err, approvaldomain.ErrAlreadyDecided)

	pending, err := f.svc.ListPending(as("ger-1", "gerente"))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, authorization.RoleGerente, pending[0].RequiredRole)
}

func TestSLAWarningSentOnce(t *testing.T) {
	f := setup(t, nil)
	q := f.quote(t, "100", "105")
	res, err := f.svc.Submit(seller(), q.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)

	warned, err := f.svc.SendSLAWarnings(context.Background())
	require.NoError(t, err)
	assert.Zero(t, warned)

	// three business hours before the Friday 16:00 deadline
	f.clock.Set(time.Date(2026, time.October, 16, 13, 0, 0, 0, time.UTC))
	warned, err = f.svc.SendSLAWarnings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, warned)

	warned, err = f.svc.SendSLAWarnings(context.Background())
	require.NoError(t, err)
	assert.Zero(t, warned)

	history, err := f.svc.History(seller(), q.ID.String())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.Request.ID, history[0].ID)
	assert.True(t, history[0].SLAWarningSent)
	assert.Contains(t, f.eventTypes(t, q.ID), auditdomain.EventApprovalSLAWarning)
}

func TestListPendingFiltersByRole(t *testing.T) {
	f := setup(t, nil)
	low := f.quote(t, "100", "105")
	negative := f.quote(t, "100", "90")
	_, err := f.svc.Submit(seller(), low.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)
	_, err = f.svc.Submit(seller(), negative.ID.String(), approvaldomain.SubmitRequest{})
	require.NoError(t, err)

	pending, err := f.svc.ListPending(as("coord-1", "coordenador"))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, low.ID, pending[0].QuoteID)

	pending, err = f.svc.ListPending(as("ger-1", "gerente"))
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	pending, err = f.svc.ListPending(seller())
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.ListPending(context.Background())
	assert.ErrorIs(t, err, authorization.ErrInvalidActor)
}
