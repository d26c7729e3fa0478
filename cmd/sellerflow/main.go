package main

import (
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/idgen"
	"github.com/smallbiznis/sellerflow/internal/migration"
	"github.com/smallbiznis/sellerflow/internal/observability"
	"github.com/smallbiznis/sellerflow/internal/redisclient"
	"github.com/smallbiznis/sellerflow/internal/scheduler"
	"github.com/smallbiznis/sellerflow/internal/server"
	"github.com/smallbiznis/sellerflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		clock.Module,
		redisclient.Module,
		migration.Module,

		// HTTP API and the domain services behind it
		server.Module,

		// Background sweeps
		scheduler.Module,
	)
	app.Run()
}
