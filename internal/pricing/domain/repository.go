package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	FindActiveRegion(ctx context.Context, region Region) (*RegionPricingConfig, error)
	ListRegions(ctx context.Context) ([]RegionPricingConfig, error)
	UpsertRegion(ctx context.Context, cfg RegionPricingConfig) error
	FindActiveEngine(ctx context.Context) (*EngineConfig, error)
	ActivateEngine(ctx context.Context, cfg EngineConfig) error
}

// Snapshot is the immutable configuration a calculation runs against.
type Snapshot struct {
	Region RegionPricingConfig
	Engine EngineConfig
}

// ConfigSource resolves the configuration snapshot for a region.
type ConfigSource interface {
	Snapshot(ctx context.Context, region Region) (Snapshot, error)
}

type Service interface {
	ConfigSource
	ListRegions(ctx context.Context) ([]RegionPricingConfig, error)
	UpsertRegion(ctx context.Context, region string, req RegionRequest) (*RegionPricingConfig, error)
	ActiveEngine(ctx context.Context) (*EngineConfig, error)
	UpdateEngine(ctx context.Context, req EngineRequest) (*EngineConfig, error)
	Simulate(ctx context.Context, req SimulateRequest) (*MarginCalculation, error)
}

type RegionRequest struct {
	AdminPercent            decimal.Decimal `json:"admin_percent"`
	LogisticsPercent        decimal.Decimal `json:"logistics_percent"`
	TaxPercent              decimal.Decimal `json:"tax_percent"`
	OtherTaxPercent         decimal.Decimal `json:"other_tax_percent"`
	InterLabDiscountPercent decimal.Decimal `json:"inter_lab_discount_percent"`
}

type EngineRequest struct {
	DefaultMarkupMG          decimal.Decimal `json:"default_markup_mg"`
	DefaultMarkupBR          decimal.Decimal `json:"default_markup_br"`
	MarginRedThreshold       decimal.Decimal `json:"margin_red_threshold"`
	MarginOrangeThreshold    decimal.Decimal `json:"margin_orange_threshold"`
	MarginYellowThreshold    decimal.Decimal `json:"margin_yellow_threshold"`
	MarginGreenThreshold     decimal.Decimal `json:"margin_green_threshold"`
	MinimumPriceMarginTarget decimal.Decimal `json:"minimum_price_margin_target"`
}

type SimulateRequest struct {
	Region           string           `json:"region"`
	BaseCost         decimal.Decimal  `json:"base_cost"`
	Quantity         int64            `json:"quantity"`
	OfferedUnitPrice decimal.Decimal  `json:"offered_unit_price"`
	DiscountPercent  decimal.Decimal  `json:"discount_percent"`
	IsInterLab       bool             `json:"is_inter_lab"`
	ListPrice        *decimal.Decimal `json:"list_price,omitempty"`
}
