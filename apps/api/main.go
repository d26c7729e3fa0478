package main

import (
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/idgen"
	"github.com/smallbiznis/sellerflow/internal/migration"
	"github.com/smallbiznis/sellerflow/internal/observability"
	"github.com/smallbiznis/sellerflow/internal/redisclient"
	"github.com/smallbiznis/sellerflow/internal/server"
	"github.com/smallbiznis/sellerflow/pkg/db"
	"go.uber.org/fx"
)

// API only; run apps/scheduler alongside it for expiry and outbox sweeps.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		clock.Module,
		redisclient.Module,
		migration.Module,

		server.Module,
	)
	app.Run()
}
