package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	approvalrulerepo "github.com/smallbiznis/sellerflow/internal/approvalrule/repository"
	approvalruleservice "github.com/smallbiznis/sellerflow/internal/approvalrule/service"
	auditdomain "github.com/smallbiznis/sellerflow/internal/audit/domain"
	auditrepo "github.com/smallbiznis/sellerflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/sellerflow/internal/audit/service"
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
	"github.com/smallbiznis/sellerflow/internal/quote/repository"
	"github.com/smallbiznis/sellerflow/internal/quotelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      quotedomain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	audit    auditdomain.Service
	outbound outbounddomain.Service
}

func setupService(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{
		Approval: config.ApprovalConfig{QuoteValidityDays: 15},
		Outbound: config.OutboundConfig{BatchSize: 10},
	}

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
		ApproverRole: "diretor",
		SLAHours:     8,
	})
	require.NoError(t, err)

	pricing := pricingservice.NewService(pricingservice.Params{
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Defaults: config.NewStaticPricingDefaultsHolder(config.DefaultPricingDefaults()),
		Repo:     pricingrepo.NewRepository(db),
		Rules:    rules,
	})
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

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Cfg:      cfg,
		Repo:     repository.Provide(),
		Pricing:  pricing,
		Rules:    rules,
		Audit:    audit,
		Outbound: outbound,
		Locker:   quotelock.NewLocal(),
	})
	return fixture{svc: svc, db: db, clock: clk, audit: audit, outbound: outbound}
}

func sellerCtx() context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{ID: "seller-1", Role: "vendedor"})
}

func itemReq(productID string, qty int64, base, offered string) quotedomain.ItemRequest {
	return quotedomain.ItemRequest{
		ProductID:        productID,
		ProductName:      "Produto " + productID,
		Quantity:         qty,
		BaseCost:         decimal.RequireFromString(base),
		OfferedUnitPrice: decimal.RequireFromString(offered),
	}
}

func TestCreateQuoteWithItems(t *testing.T) {
	f := setupService(t)
	ctx := sellerCtx()

	q, err := f.svc.Create(ctx, quotedomain.CreateQuoteRequest{
		CustomerID: "cust-1",
		Region:     "mg",
		Items:      []quotedomain.ItemRequest{itemReq("p-1", 2, "100", "150")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Q-20261014-0001", q.QuoteNumber)
	assert.Equal(t, quotedomain.StatusCalculated, q.Status)
	assert.Equal(t, "seller-1", q.CreatedBy)
	assert.True(t, q.IsAuthorized)
	assert.True(t, q.ValidUntil.Equal(time.Date(2026, time.October, 29, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "300.00", q.Totals.TotalOffered.StringFixed(2))

	stored, err := f.svc.Get(ctx, q.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "33.33", stored.Items[0].MarginPercent.StringFixed(2))
	assert.Equal(t, "green", stored.Items[0].Band)
	assert.Equal(t, 1, stored.Version)

	events, err := f.audit.ListByQuote(ctx, q.ID)
	require.NoError(t, err)
	types := make([]auditdomain.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []auditdomain.EventType{
		auditdomain.EventQuoteCreated,
		auditdomain.EventQuoteItemAdded,
		auditdomain.EventQuoteStatusChanged,
	}, types)

	second, err := f.svc.Create(ctx, quotedomain.CreateQuoteRequest{CustomerID: "cust-2", Region: "BR"})
	require.NoError(t, err)
	assert.Equal(t, "Q-20261014-0002", second.QuoteNumber)
	assert.Equal(t, quotedomain.StatusDraft, second.Status)
}

func TestCreateValidatesInput(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.Create(context.Background(), quotedomain.CreateQuoteRequest{CustomerID: "c", Region: "MG"})
	assert.Error(t, err, "missing actor")

	_, err = f.svc.Create(sellerCtx(), quotedomain.CreateQuoteRequest{Region: "MG"})
	assert.ErrorIs(t, err, quotedomain.ErrInvalidCustomer)

	_, err = f.svc.Create(sellerCtx(), quotedomain.CreateQuoteRequest{CustomerID: "c", Region: "SP"})
	assert.Error(t, err)
}

func TestItemEditsRecomputeAuthorization(t *testing.T) {
	f := setupService(t)
	ctx := sellerCtx()

	q, err := f.svc.Create(ctx, quotedomain.CreateQuoteRequest{CustomerID: "cust-1", Region: "MG"})
	require.NoError(t, err)

	q, err = f.svc.AddItem(ctx, q.ID.String(), itemReq("p-1", 1, "100", "105"))
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusCalculated, q.Status)
	assert.False(t, q.IsAuthorized)
	require.NotNil(t, q.RequiredApproverRole)
	assert.Equal(t, "coordenador", *q.RequiredApproverRole)

	q, err = f.svc.AddItem(ctx, q.ID.String(), itemReq("p-2", 1, "100", "90"))
	require.NoError(t, err)
	assert.Equal(t, "diretor", *q.RequiredApproverRole)

	itemID := q.Items[1].ID.String()
	price := decimal.NewFromInt(200)
	q, err = f.svc.UpdateItem(ctx, q.ID.String(), itemID, quotedomain.UpdateItemRequest{OfferedUnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "coordenador", *q.RequiredApproverRole)

	q, err = f.svc.RemoveItem(ctx, q.ID.String(), q.Items[0].ID.String())
	require.NoError(t, err)
	assert.True(t, q.IsAuthorized)
	assert.Nil(t, q.RequiredApproverRole)
	assert.Equal(t, 5, q.Version)

	_, err = f.svc.RemoveItem(ctx, q.ID.String(), "12345")
	assert.ErrorIs(t, err, quotedomain.ErrItemNotFound)
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	f := setupService(t)
	ctx := sellerCtx()
	q, err := f.svc.Create(ctx, quotedomain.CreateQuoteRequest{CustomerID: "cust-1", Region: "MG"})
	require.NoError(t, err)

	stale := *q
	_, err = f.svc.AddItem(ctx, q.ID.String(), itemReq("p-1", 1, "100", "150"))
	require.NoError(t, err)

	err = repository.Provide().Save(ctx, f.db, &stale, false)
	assert.ErrorIs(t, err, quotedomain.ErrVersionConflict)
}

func TestSendRequiresApprovedQuoteAndEnqueues(t *testing.T) {
	f := setupService(t)
	ctx := sellerCtx()
	q, err := f.svc.Create(ctx, quotedomain.CreateQuoteRequest{
		CustomerID: "cust-1",
		Region:     "MG",
		Items:      []quotedomain.ItemRequest{itemReq("p-1", 1, "100", "105")},
	})
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, q.ID.String())
	assert.ErrorIs(t, err, quotedomain.ErrInvalidTransition)

	require.NoError(t, f.db.Exec(`UPDATE quotes SET status = ?, is_authorized = ? WHERE id = ?`,
		quotedomain.StatusApproved, true, q.ID).Error)

	sent, err := f.svc.Send(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusSent, sent.Status)

	notes, err := f.outbound.ListByQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, outbounddomain.EventQuoteSent, notes[0].EventType)

	converted, err := f.svc.Convert(ctx, q.ID.String(), quotedomain.ConvertRequest{OrderReference: "PO-1"})
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusConverted, converted.Status)

	_, err = f.svc.AddItem(ctx, q.ID.String(), itemReq("p-2", 1, "100", "150"))
	assert.ErrorIs(t, err, quotedomain.ErrNotEditable)
}

func TestResetStartsNewCycle(t *testing.T) {
	f := setupService(t)
	ctx := sellerCtx()
	q, err := f.svc.Create(ctx, quotedomain.CreateQuoteRequest{
		CustomerID: "cust-1",
		Region:     "MG",
		Items:      []quotedomain.ItemRequest{itemReq("p-1", 1, "100", "105")},
	})
	require.NoError(t, err)

	_, err = f.svc.Reset(ctx, q.ID.String())
	assert.ErrorIs(t, err, quotedomain.ErrInvalidTransition)

	require.NoError(t, f.db.Exec(`UPDATE quotes SET status = ? WHERE id = ?`, quotedomain.StatusRejected, q.ID).Error)

	reset, err := f.svc.Reset(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusDraft, reset.Status)
	assert.Equal(t, 2, reset.ApprovalCycle)
}

func TestExpireStaleQuotes(t *testing.T) {
	f := setupService(t)
	ctx := sellerCtx()
	q, err := f.svc.Create(ctx, quotedomain.CreateQuoteRequest{
		CustomerID: "cust-1",
		Region:     "MG",
		Items:      []quotedomain.ItemRequest{itemReq("p-1", 1, "100", "150")},
	})
	require.NoError(t, err)

	count, err := f.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	f.clock.Advance(16 * 24 * time.Hour)
	count, err = f.svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := f.svc.Get(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusExpired, stored.Status)

	// expired quotes are editable again after a reset
	edited, err := f.svc.AddItem(ctx, q.ID.String(), itemReq("p-2", 1, "100", "150"))
	require.NoError(t, err)
	assert.Equal(t, quotedomain.StatusCalculated, edited.Status)
	assert.Equal(t, 2, edited.ApprovalCycle)
}
