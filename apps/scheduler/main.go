package main

import (
	"github.com/smallbiznis/sellerflow/internal/approval"
	"github.com/smallbiznis/sellerflow/internal/approvalrule"
	"github.com/smallbiznis/sellerflow/internal/audit"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"github.com/smallbiznis/sellerflow/internal/calendar"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/idgen"
	"github.com/smallbiznis/sellerflow/internal/observability"
	"github.com/smallbiznis/sellerflow/internal/outbound"
	"github.com/smallbiznis/sellerflow/internal/pricing"
	"github.com/smallbiznis/sellerflow/internal/quote"
	"github.com/smallbiznis/sellerflow/internal/quotelock"
	"github.com/smallbiznis/sellerflow/internal/redisclient"
	"github.com/smallbiznis/sellerflow/internal/scheduler"
	"github.com/smallbiznis/sellerflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		clock.Module,
		redisclient.Module,

		// Domain services required by scheduler
		scheduler.Module,
		approval.Module,
		quote.Module,
		outbound.Module,
		audit.Module,
		authorization.Module,

		// Transitive dependencies (approval needs rules, calendar and pricing)
		approvalrule.Module,
		calendar.Module,
		pricing.Module,
		quotelock.Module,

		// No server module!
	)
	app.Run()
}
