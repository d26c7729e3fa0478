package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/sellerflow/internal/approval"
	approvaldomain "github.com/smallbiznis/sellerflow/internal/approval/domain"
	"github.com/smallbiznis/sellerflow/internal/approvalrule"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"github.com/smallbiznis/sellerflow/internal/audit"
	auditdomain "github.com/smallbiznis/sellerflow/internal/audit/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"github.com/smallbiznis/sellerflow/internal/calendar"
	calendardomain "github.com/smallbiznis/sellerflow/internal/calendar/domain"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/observability"
	obslogger "github.com/smallbiznis/sellerflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sellerflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/sellerflow/internal/observability/tracing"
	"github.com/smallbiznis/sellerflow/internal/outbound"
	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
	"github.com/smallbiznis/sellerflow/internal/pricing"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
	"github.com/smallbiznis/sellerflow/internal/quote"
	quotedomain "github.com/smallbiznis/sellerflow/internal/quote/domain"
	"github.com/smallbiznis/sellerflow/internal/quotelock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	outbound.Module,
	approvalrule.Module,
	calendar.Module,
	pricing.Module,
	quotelock.Module,
	quote.Module,
	approval.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if obsCfg.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	authzSvc    authorization.Service
	quoteSvc    quotedomain.Service
	approvalSvc approvaldomain.Service
	ruleSvc     approvalruledomain.Service
	pricingSvc  pricingdomain.Service
	calendarSvc calendardomain.Service
	auditSvc    auditdomain.Service
	outboundSvc outbounddomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	AuthzSvc    authorization.Service
	QuoteSvc    quotedomain.Service
	ApprovalSvc approvaldomain.Service
	RuleSvc     approvalruledomain.Service
	PricingSvc  pricingdomain.Service
	CalendarSvc calendardomain.Service
	AuditSvc    auditdomain.Service
	OutboundSvc outbounddomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		authzSvc:    p.AuthzSvc,
		quoteSvc:    p.QuoteSvc,
		approvalSvc: p.ApprovalSvc,
		ruleSvc:     p.RuleSvc,
		pricingSvc:  p.PricingSvc,
		calendarSvc: p.CalendarSvc,
		auditSvc:    p.AuditSvc,
		outboundSvc: p.OutboundSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	// -------- Quotes --------
	quotes := api.Group("/quotes")
	{
		quotes.POST("", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteEdit), s.CreateQuote)
		quotes.GET("/:id", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteView), s.GetQuote)
		quotes.POST("/:id/items", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteEdit), s.AddQuoteItem)
		quotes.PATCH("/:id/items/:itemId", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteEdit), s.UpdateQuoteItem)
		quotes.DELETE("/:id/items/:itemId", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteEdit), s.RemoveQuoteItem)
		quotes.POST("/:id/submit", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteSubmit), s.SubmitQuote)
		quotes.POST("/:id/reset", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteEdit), s.ResetQuote)
		quotes.POST("/:id/send", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteSend), s.SendQuote)
		quotes.POST("/:id/convert", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteSend), s.ConvertQuote)
		quotes.GET("/:id/events", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteView), s.ListQuoteEvents)
		quotes.GET("/:id/approvals", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteView), s.ListQuoteApprovals)
		quotes.GET("/:id/notifications", s.authorize(authorization.ObjectQuote, authorization.ActionQuoteView), s.ListQuoteNotifications)
	}

	// -------- Approvals --------
	// Role seniority is checked per request by the approval workflow.
	approvals := api.Group("/approvals", s.authorize(authorization.ObjectApproval, authorization.ActionApprovalView))
	{
		approvals.GET("/pending", s.ListPendingApprovals)
		approvals.POST("/:id/approve", s.ApproveRequest)
		approvals.POST("/:id/reject", s.RejectRequest)
	}

	// -------- Pricing --------
	api.POST("/pricing/simulate", s.authorize(authorization.ObjectPricing, authorization.ActionSimulate), s.SimulateMargin)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.ActorRequired(), s.authorize(authorization.ObjectConfiguration, authorization.ActionConfigManage))

	// -------- Approval rules --------
	admin.GET("/approval-rules", s.ListApprovalRules)
	admin.POST("/approval-rules", s.CreateApprovalRule)
	admin.GET("/approval-rules/:id", s.GetApprovalRule)
	admin.PATCH("/approval-rules/:id", s.UpdateApprovalRule)

	// -------- Business hours --------
	admin.GET("/business-hours", s.ListBusinessHours)
	admin.PUT("/business-hours", s.ReplaceBusinessHours)

	// -------- Pricing configuration --------
	admin.GET("/regions", s.ListRegions)
	admin.PUT("/regions/:region", s.UpsertRegion)
	admin.GET("/engine-config", s.GetEngineConfig)
	admin.PUT("/engine-config", s.UpdateEngineConfig)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
