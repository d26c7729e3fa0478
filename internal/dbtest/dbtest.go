// Package dbtest opens in-memory sqlite databases carrying the service schema
// and moves stored deadlines around so sweeps can be exercised in tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS region_pricing_configs (
		id BIGINT PRIMARY KEY,
		region TEXT NOT NULL UNIQUE,
		admin_percent NUMERIC NOT NULL,
		logistics_percent NUMERIC NOT NULL,
		tax_percent NUMERIC NOT NULL,
		other_tax_percent NUMERIC NOT NULL,
		inter_lab_discount_percent NUMERIC NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pricing_engine_configs (
		id BIGINT PRIMARY KEY,
		version INTEGER NOT NULL,
		default_markup_mg NUMERIC NOT NULL,
		default_markup_br NUMERIC NOT NULL,
		margin_red_threshold NUMERIC NOT NULL,
		margin_orange_threshold NUMERIC NOT NULL,
		margin_yellow_threshold NUMERIC NOT NULL,
		margin_green_threshold NUMERIC NOT NULL,
		minimum_price_margin_target NUMERIC NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS approval_rules (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		margin_min NUMERIC,
		margin_max NUMERIC,
		approver_role TEXT NOT NULL,
		sla_hours INTEGER NOT NULL,
		priority TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS approval_rule_steps (
		id BIGINT PRIMARY KEY,
		rule_id BIGINT NOT NULL,
		step_order INTEGER NOT NULL,
		approver_role TEXT NOT NULL,
		sla_hours INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS business_hours (
		id BIGINT PRIMARY KEY,
		day_of_week INTEGER NOT NULL UNIQUE,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_open BOOLEAN NOT NULL DEFAULT true,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quotes (
		id BIGINT PRIMARY KEY,
		quote_number TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		region TEXT NOT NULL,
		is_inter_lab BOOLEAN NOT NULL DEFAULT false,
		created_by TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_condition_id TEXT,
		valid_until TIMESTAMP NOT NULL,
		subtotal NUMERIC NOT NULL,
		total_offered NUMERIC NOT NULL,
		total_discount NUMERIC NOT NULL,
		total_margin_value NUMERIC NOT NULL,
		total_margin_percent NUMERIC NOT NULL,
		coupon_value NUMERIC NOT NULL,
		is_authorized BOOLEAN NOT NULL DEFAULT false,
		requires_approval BOOLEAN NOT NULL DEFAULT false,
		required_approver_role TEXT,
		governing_rule_id BIGINT,
		approval_cycle INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 1,
		notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quote_items (
		id BIGINT PRIMARY KEY,
		quote_id BIGINT NOT NULL,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		base_cost NUMERIC NOT NULL,
		list_price_override NUMERIC,
		list_price NUMERIC NOT NULL,
		offered_unit_price NUMERIC NOT NULL,
		discount_percent NUMERIC NOT NULL,
		offered_price NUMERIC NOT NULL,
		minimum_price NUMERIC NOT NULL,
		margin_value NUMERIC NOT NULL,
		margin_percent NUMERIC NOT NULL,
		band TEXT NOT NULL,
		is_authorized BOOLEAN NOT NULL DEFAULT false,
		required_approver_role TEXT,
		matched_rule_id BIGINT,
		notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS approval_requests (
		id BIGINT PRIMARY KEY,
		quote_id BIGINT NOT NULL,
		rule_id BIGINT,
		chain_id BIGINT NOT NULL,
		approval_cycle INTEGER NOT NULL,
		requested_by TEXT NOT NULL,
		approved_by TEXT,
		status TEXT NOT NULL,
		required_role TEXT NOT NULL,
		priority TEXT NOT NULL,
		quote_total NUMERIC NOT NULL,
		quote_margin_percent NUMERIC NOT NULL,
		reason TEXT,
		comments TEXT,
		requested_at TIMESTAMP NOT NULL,
		decided_at TIMESTAMP,
		expires_at TIMESTAMP NOT NULL,
		sla_hours INTEGER NOT NULL,
		sla_warning_sent BOOLEAN NOT NULL DEFAULT false,
		current_step_order INTEGER NOT NULL,
		total_steps INTEGER NOT NULL,
		chain TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_approval_requests_pending
		ON approval_requests (quote_id) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS quote_events (
		id TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		quote_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT,
		message TEXT,
		actor_id TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		request_id TEXT,
		payload TEXT,
		occurred_at TIMESTAMP NOT NULL,
		UNIQUE (quote_id, event_type, occurred_at)
	)`,
	`CREATE TABLE IF NOT EXISTS outbound_notifications (
		id BIGINT PRIMARY KEY,
		quote_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		approval_cycle INTEGER NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMP NOT NULL,
		delivered_at TIMESTAMP,
		UNIQUE (quote_id, event_type, approval_cycle)
	)`,
}

// Open returns a private in-memory database with every table created. Each
// call gets its own database, so repeated runs (-count) and parallel tests
// never see each other's rows. The shared cache lets the pool's connections
// reach the same database; it is dropped when the test ends.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:sellerflow-" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// Accelerator rewrites stored deadlines so expiry and validity sweeps fire
// without waiting on the clock.
type Accelerator struct {
	db *gorm.DB
}

func NewAccelerator(db *gorm.DB) *Accelerator {
	return &Accelerator{db: db}
}

// ExpireRequest moves a pending request's deadline to just before now.
func (a *Accelerator) ExpireRequest(ctx context.Context, requestID snowflake.ID, now time.Time) error {
	return a.db.WithContext(ctx).Exec(
		`UPDATE approval_requests
		 SET expires_at = ?
		 WHERE id = ? AND status = 'pending'`,
		now.Add(-time.Minute),
		requestID,
	).Error
}

// ExpireQuoteValidity moves a quote's validity date to just before now.
func (a *Accelerator) ExpireQuoteValidity(ctx context.Context, quoteID snowflake.ID, now time.Time) error {
	return a.db.WithContext(ctx).Exec(
		`UPDATE quotes SET valid_until = ? WHERE id = ?`,
		now.Add(-time.Minute),
		quoteID,
	).Error
}
