package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	approvaldomain "github.com/smallbiznis/sellerflow/internal/approval/domain"
	"github.com/smallbiznis/sellerflow/internal/approval/projector"
	approvalrepo "github.com/smallbiznis/sellerflow/internal/approval/repository"
	approvalservice "github.com/smallbiznis/sellerflow/internal/approval/service"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	approvalrulerepo "github.com/smallbiznis/sellerflow/internal/approvalrule/repository"
	approvalruleservice "github.com/smallbiznis/sellerflow/internal/approvalrule/service"
	auditrepo "github.com/smallbiznis/sellerflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/sellerflow/internal/audit/service"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	calendarrepo "github.com/smallbiznis/sellerflow/internal/calendar/repository"
	calendarservice "github.com/smallbiznis/sellerflow/internal/calendar/service"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/dbtest"
	"github.com/smallbiznis/sellerflow/internal/errs"
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

type caller struct {
	id   string
	role string
}

var (
	seller      = caller{"seller-1", "vendedor"}
	coordinator = caller{"coord-1", "coordenador"}
	admin       = caller{"admin-1", "admin"}
	anonymous   = caller{}
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC))
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
	approvals := approvalservice.NewService(approvalservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Cfg:      cfg,
		Repo:     approvalrepo.Provide(),
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

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		DB:          db,
		AuthzSvc:    authz,
		QuoteSvc:    quotes,
		ApprovalSvc: approvals,
		RuleSvc:     rules,
		PricingSvc:  pricing,
		CalendarSvc: calendar,
		AuditSvc:    audit,
		OutboundSvc: outbound,
	})
	return srv.Engine()
}

func do(t *testing.T, r http.Handler, who caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who.id != "" {
		req.Header.Set(HeaderUserID, who.id)
		req.Header.Set(HeaderUserRole, who.role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return envelope.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error.Code
}

func createQuote(t *testing.T, r http.Handler, offered string) quotedomain.Quote {
	t.Helper()
	w := do(t, r, seller, http.MethodPost, "/api/quotes", quotedomain.CreateQuoteRequest{
		CustomerID: "cust-1",
		Region:     "MG",
		Items: []quotedomain.ItemRequest{{
			ProductID:        "p-1",
			ProductName:      "Reagente",
			Quantity:         2,
			BaseCost:         decimal.NewFromInt(100),
			OfferedUnitPrice: decimal.RequireFromString(offered),
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[quotedomain.Quote](t, w)
}

func TestRequestsWithoutActorAreUnauthorized(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, anonymous, http.MethodGet, "/api/approvals/pending", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireConfigurationGrant(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, seller, http.MethodGet, "/api/admin/approval-rules", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorCode(t, w))

	w = do(t, r, admin, http.MethodGet, "/api/admin/approval-rules", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[[]approvalruledomain.ApprovalRule](t, w), 1)
}

func TestUnknownRoleIsForbidden(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, caller{"x-1", "estagiario"}, http.MethodPost, "/api/pricing/simulate", map[string]any{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "invalid_actor", errorCode(t, w))
}

func TestSubmitAndApproveOverHTTP(t *testing.T) {
	r := newTestServer(t)
	q := createQuote(t, r, "105")
	assert.Equal(t, quotedomain.StatusCalculated, q.Status)
	assert.True(t, q.RequiresApproval)

	w := do(t, r, seller, http.MethodPost, fmt.Sprintf("/api/quotes/%s/submit", q.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	submitted := decode[approvaldomain.SubmitResult](t, w)
	require.NotNil(t, submitted.Request)
	assert.Equal(t, quotedomain.StatusPendingApproval, submitted.Quote.Status)
	requestID := submitted.Request.ID

	// sellers cannot see the approval queue at all
	w = do(t, r, seller, http.MethodGet, "/api/approvals/pending", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, coordinator, http.MethodGet, "/api/approvals/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[[]approvaldomain.ApprovalRequest](t, w)
	require.Len(t, pending, 1)
	assert.Equal(t, requestID, pending[0].ID)

	w = do(t, r, coordinator, http.MethodPost, fmt.Sprintf("/api/approvals/%s/approve", requestID), approvaldomain.DecisionRequest{Comments: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "approval_comments_required", errorCode(t, w))

	w = do(t, r, coordinator, http.MethodPost, fmt.Sprintf("/api/approvals/%s/approve", requestID), approvaldomain.DecisionRequest{Comments: "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decided := decode[approvaldomain.DecisionResult](t, w)
	assert.Equal(t, quotedomain.StatusApproved, decided.Quote.Status)

	w = do(t, r, coordinator, http.MethodPost, fmt.Sprintf("/api/approvals/%s/reject", requestID), approvaldomain.DecisionRequest{Comments: "late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "approval_already_decided", errorCode(t, w))

	w = do(t, r, seller, http.MethodGet, fmt.Sprintf("/api/quotes/%s/approvals", q.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]approvaldomain.ApprovalRequest](t, w), 1)

	w = do(t, r, seller, http.MethodPost, fmt.Sprintf("/api/quotes/%s/send", q.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, quotedomain.StatusSent, decode[quotedomain.Quote](t, w).Status)
}

func TestQuoteErrorsMapToStatus(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, seller, http.MethodPost, "/api/quotes", quotedomain.CreateQuoteRequest{Region: "MG"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_customer", errorCode(t, w))

	w = do(t, r, seller, http.MethodGet, "/api/quotes/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, seller, http.MethodGet, "/api/quotes/1234567890", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "quote_not_found", errorCode(t, w))

	w = do(t, r, seller, http.MethodPost, "/api/quotes", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", errorCode(t, w))

	w = do(t, r, seller, http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route_not_found", errorCode(t, w))
}

func TestSendBeforeApprovalConflicts(t *testing.T) {
	r := newTestServer(t)
	q := createQuote(t, r, "105")

	w := do(t, r, seller, http.MethodPost, fmt.Sprintf("/api/quotes/%s/send", q.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSimulateMargin(t *testing.T) {
	r := newTestServer(t)

	w := do(t, r, seller, http.MethodPost, "/api/pricing/simulate", map[string]any{
		"region":             "MG",
		"base_cost":          "100",
		"quantity":           1,
		"offered_unit_price": "150",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "MG", body["data"]["region"])
	assert.Contains(t, body["data"], "margin_percent")

	w = do(t, r, seller, http.MethodPost, "/api/pricing/simulate", map[string]any{
		"region":   "MG",
		"quantity": "two",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_field_type", resp.Error.Code)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "quantity", resp.Error.Errors[0].Field)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", quotedomain.ErrInvalidCustomer, http.StatusBadRequest, "invalid_customer"},
		{"configuration", approvaldomain.ErrInvalidChain, http.StatusUnprocessableEntity, "invalid_approval_chain"},
		{"conflict", quotedomain.ErrVersionConflict, http.StatusConflict, "quote_version_conflict"},
		{"already decided", approvaldomain.ErrAlreadyDecided, http.StatusConflict, "approval_already_decided"},
		{"permission", approvaldomain.ErrInsufficientRole, http.StatusForbidden, "insufficient_approver_role"},
		{"not found", approvaldomain.ErrNotFound, http.StatusNotFound, "approval_request_not_found"},
		{"wrapped", fmt.Errorf("submit: %w", quotedomain.ErrEmptyQuote), http.StatusBadRequest, "quote_has_no_items"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, errs.ErrNotFound.Error()},
		{"unknown", assert.AnError, http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, payload.Code)
		})
	}

	status, payload := mapError(ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", payload.Type)
}
