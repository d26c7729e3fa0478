package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
	"github.com/smallbiznis/sellerflow/internal/pricing/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticRules struct {
	approvalruledomain.Service
	rules []approvalruledomain.ApprovalRule
}

func (s staticRules) RuleSet(context.Context) (approvalruledomain.RuleSet, error) {
	return approvalruledomain.NewRuleSet(s.rules), nil
}

func setupService(t *testing.T) pricingdomain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS region_pricing_configs (
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
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS pricing_engine_configs (
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
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	lo, hi := decimal.NewFromInt(0), decimal.NewFromInt(10)
	return NewService(Params{
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)),
		Defaults: config.NewStaticPricingDefaultsHolder(config.DefaultPricingDefaults()),
		Repo:     repository.NewRepository(db),
		Rules: staticRules{rules: []approvalruledomain.ApprovalRule{{
			ID:           1,
			Code:         "margem-baixa",
			Name:         "Margem baixa",
			MarginMin:    &lo,
			MarginMax:    &hi,
			ApproverRole: authorization.RoleCoordenador,
			SLAHours:     24,
			Priority:     approvalruledomain.PriorityMedium,
			IsActive:     true,
		}}},
	})
}

func TestSnapshotFallsBackToDefaults(t *testing.T) {
	svc := setupService(t)
	snap, err := svc.Snapshot(context.Background(), pricingdomain.RegionMG)
	require.NoError(t, err)
	assert.True(t, snap.Region.OverheadPercent().Equal(decimal.NewFromInt(26)))
	assert.True(t, snap.Engine.DefaultMarkupMG.Equal(decimal.RequireFromString("1.5")))
}

func TestSimulateScenarios(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.UpsertRegion(ctx, "mg", pricingdomain.RegionRequest{
		AdminPercent:            decimal.NewFromInt(5),
		LogisticsPercent:        decimal.NewFromInt(5),
		TaxPercent:              decimal.NewFromInt(10),
		OtherTaxPercent:         decimal.Zero,
		InterLabDiscountPercent: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	selfAuthorized, err := svc.Simulate(ctx, pricingdomain.SimulateRequest{
		Region:           "MG",
		BaseCost:         decimal.NewFromInt(100),
		Quantity:         1,
		OfferedUnitPrice: decimal.NewFromInt(150),
	})
	require.NoError(t, err)
	assert.Equal(t, "125.00", selfAuthorized.MinimumPrice.StringFixed(2))
	assert.Equal(t, "33.33", selfAuthorized.MarginPercent.StringFixed(2))
	assert.True(t, selfAuthorized.IsAuthorized)
	assert.Equal(t, pricingdomain.BandGreen, selfAuthorized.Band)

	escalated, err := svc.Simulate(ctx, pricingdomain.SimulateRequest{
		Region:           "MG",
		BaseCost:         decimal.NewFromInt(100),
		Quantity:         1,
		OfferedUnitPrice: decimal.NewFromInt(110),
	})
	require.NoError(t, err)
	assert.Equal(t, "9.09", escalated.MarginPercent.StringFixed(2))
	assert.False(t, escalated.IsAuthorized)
	assert.Equal(t, "coordenador", escalated.RequiredApprover)
	assert.Equal(t, pricingdomain.BandYellow, escalated.Band)
}

func TestSimulateRejectsUnknownRegion(t *testing.T) {
	svc := setupService(t)
	_, err := svc.Simulate(context.Background(), pricingdomain.SimulateRequest{Region: "SP", BaseCost: decimal.NewFromInt(1), Quantity: 1})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidRegion)
}

func TestUpsertRegionRejectsOverheadAtHundred(t *testing.T) {
	svc := setupService(t)
	_, err := svc.UpsertRegion(context.Background(), "BR", pricingdomain.RegionRequest{
		AdminPercent: decimal.NewFromInt(60),
		TaxPercent:   decimal.NewFromInt(40),
	})
	assert.ErrorIs(t, err, pricingdomain.ErrOverheadTooHigh)
}

func TestUpdateEngineVersions(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	req := pricingdomain.EngineRequest{
		DefaultMarkupMG:          decimal.RequireFromString("1.4"),
		DefaultMarkupBR:          decimal.RequireFromString("1.7"),
		MarginRedThreshold:       decimal.NewFromInt(-10),
		MarginOrangeThreshold:    decimal.NewFromInt(0),
		MarginYellowThreshold:    decimal.NewFromInt(8),
		MarginGreenThreshold:     decimal.NewFromInt(15),
		MinimumPriceMarginTarget: decimal.NewFromInt(2),
	}

	first, err := svc.UpdateEngine(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	req.DefaultMarkupMG = decimal.RequireFromString("1.45")
	second, err := svc.UpdateEngine(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.True(t, second.DefaultMarkupMG.Equal(decimal.RequireFromString("1.45")))

	req.MarginGreenThreshold = decimal.NewFromInt(-20)
	_, err = svc.UpdateEngine(ctx, req)
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidThresholds)
}

func TestListRegionsMergesDefaults(t *testing.T) {
	svc := setupService(t)
	regions, err := svc.ListRegions(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, 2)
}
