package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Region string

const (
	RegionMG Region = "MG"
	RegionBR Region = "BR"
)

func ParseRegion(raw string) (Region, error) {
	switch Region(strings.ToUpper(strings.TrimSpace(raw))) {
	case RegionMG:
		return RegionMG, nil
	case RegionBR:
		return RegionBR, nil
	default:
		return "", ErrInvalidRegion
	}
}

var hundred = decimal.NewFromInt(100)

// RegionPricingConfig holds the overhead percentages applied to a region.
// Percentages are expressed on a 0-100 scale.
type RegionPricingConfig struct {
	ID                      snowflake.ID    `gorm:"primaryKey"`
	Region                  Region          `gorm:"type:text;not null;uniqueIndex"`
	AdminPercent            decimal.Decimal `gorm:"column:admin_percent;type:numeric(8,4);not null"`
	LogisticsPercent        decimal.Decimal `gorm:"column:logistics_percent;type:numeric(8,4);not null"`
	TaxPercent              decimal.Decimal `gorm:"column:tax_percent;type:numeric(8,4);not null"`
	OtherTaxPercent         decimal.Decimal `gorm:"column:other_tax_percent;type:numeric(8,4);not null"`
	InterLabDiscountPercent decimal.Decimal `gorm:"column:inter_lab_discount_percent;type:numeric(8,4);not null"`
	IsActive                bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt               time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt               time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RegionPricingConfig) TableName() string { return "region_pricing_configs" }

// OverheadPercent is the sum of the four cost percentages.
func (r RegionPricingConfig) OverheadPercent() decimal.Decimal {
	return r.AdminPercent.Add(r.LogisticsPercent).Add(r.TaxPercent).Add(r.OtherTaxPercent)
}

func (r RegionPricingConfig) Validate() error {
	if _, err := ParseRegion(string(r.Region)); err != nil {
		return err
	}
	for _, pct := range []decimal.Decimal{r.AdminPercent, r.LogisticsPercent, r.TaxPercent, r.OtherTaxPercent, r.InterLabDiscountPercent} {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return ErrInvalidPercent
		}
	}
	if r.OverheadPercent().GreaterThanOrEqual(hundred) {
		return ErrOverheadTooHigh
	}
	return nil
}

// EngineConfig holds markups and margin band thresholds. Only one row is active.
type EngineConfig struct {
	ID                       snowflake.ID    `gorm:"primaryKey"`
	Version                  int             `gorm:"not null"`
	DefaultMarkupMG          decimal.Decimal `gorm:"column:default_markup_mg;type:numeric(8,4);not null"`
	DefaultMarkupBR          decimal.Decimal `gorm:"column:default_markup_br;type:numeric(8,4);not null"`
	MarginRedThreshold       decimal.Decimal `gorm:"column:margin_red_threshold;type:numeric(8,4);not null"`
	MarginOrangeThreshold    decimal.Decimal `gorm:"column:margin_orange_threshold;type:numeric(8,4);not null"`
	MarginYellowThreshold    decimal.Decimal `gorm:"column:margin_yellow_threshold;type:numeric(8,4);not null"`
	MarginGreenThreshold     decimal.Decimal `gorm:"column:margin_green_threshold;type:numeric(8,4);not null"`
	MinimumPriceMarginTarget decimal.Decimal `gorm:"column:minimum_price_margin_target;type:numeric(8,4);not null"`
	IsActive                 bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt                time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EngineConfig) TableName() string { return "pricing_engine_configs" }

func (e EngineConfig) Validate() error {
	if !e.DefaultMarkupMG.IsPositive() || !e.DefaultMarkupBR.IsPositive() {
		return ErrInvalidMarkup
	}
	if !(e.MarginRedThreshold.LessThan(e.MarginOrangeThreshold) &&
		e.MarginOrangeThreshold.LessThan(e.MarginYellowThreshold) &&
		e.MarginYellowThreshold.LessThan(e.MarginGreenThreshold)) {
		return ErrInvalidThresholds
	}
	if e.MinimumPriceMarginTarget.IsNegative() || e.MinimumPriceMarginTarget.GreaterThanOrEqual(hundred) {
		return ErrInvalidPercent
	}
	return nil
}

// Markup returns the list-price multiplier for region. MG has its own markup,
// every other region uses the national one.
func (e EngineConfig) Markup(region Region) decimal.Decimal {
	if region == RegionMG {
		return e.DefaultMarkupMG
	}
	return e.DefaultMarkupBR
}

// Band classifies marginPercent against the engine thresholds.
func (e EngineConfig) Band(marginPercent decimal.Decimal) MarginBand {
	switch {
	case marginPercent.GreaterThanOrEqual(e.MarginGreenThreshold):
		return BandGreen
	case marginPercent.GreaterThanOrEqual(e.MarginYellowThreshold):
		return BandYellow
	case marginPercent.GreaterThanOrEqual(e.MarginOrangeThreshold):
		return BandOrange
	case marginPercent.GreaterThanOrEqual(e.MarginRedThreshold):
		return BandRed
	default:
		return BandCritical
	}
}

type MarginBand string

const (
	BandCritical MarginBand = "critical"
	BandRed      MarginBand = "red"
	BandOrange   MarginBand = "orange"
	BandYellow   MarginBand = "yellow"
	BandGreen    MarginBand = "green"
)

type CostBreakdown struct {
	BaseCost       decimal.Decimal `json:"base_cost"`
	AdminCost      decimal.Decimal `json:"admin_cost"`
	LogisticsCost  decimal.Decimal `json:"logistics_cost"`
	TaxCost        decimal.Decimal `json:"tax_cost"`
	OtherTaxCost   decimal.Decimal `json:"other_tax_cost"`
	InterLabCredit decimal.Decimal `json:"inter_lab_credit"`
	Total          decimal.Decimal `json:"total"`
}

// Decision is the outcome of matching a margin against the approval rules.
type Decision struct {
	IsAuthorized bool
	RequiredRole string
	RuleID       *snowflake.ID
}

// Authorizer decides whether a margin may be sold without sign-off.
type Authorizer interface {
	Decide(marginPercent decimal.Decimal, zeroOfferedPrice bool) Decision
}

type MarginInput struct {
	BaseCost         decimal.Decimal
	Quantity         int64
	OfferedUnitPrice decimal.Decimal
	DiscountPercent  decimal.Decimal
	IsInterLab       bool
	// ListPrice overrides the markup-derived list price when set.
	ListPrice *decimal.Decimal
}

type MarginCalculation struct {
	Region           Region          `json:"region"`
	Quantity         int64           `json:"quantity"`
	ListPrice        decimal.Decimal `json:"list_price"`
	ClusterPrice     decimal.Decimal `json:"cluster_price"`
	MinimumPrice     decimal.Decimal `json:"minimum_price"`
	TargetPrice      decimal.Decimal `json:"target_price"`
	OfferedUnitPrice decimal.Decimal `json:"offered_unit_price"`
	OfferedPrice     decimal.Decimal `json:"offered_price"`
	OverheadPercent  decimal.Decimal `json:"overhead_percent"`
	CostBreakdown    CostBreakdown   `json:"cost_breakdown"`
	MarginValue      decimal.Decimal `json:"margin_value"`
	MarginPercent    decimal.Decimal `json:"margin_percent"`
	NetMarginValue   decimal.Decimal `json:"net_margin_value"`
	NetMarginPercent decimal.Decimal `json:"net_margin_percent"`
	LineListTotal    decimal.Decimal `json:"line_list_total"`
	LineOfferedTotal decimal.Decimal `json:"line_offered_total"`
	LineMarginValue  decimal.Decimal `json:"line_margin_value"`
	Band             MarginBand      `json:"band"`
	IsAuthorized     bool            `json:"is_authorized"`
	RequiredApprover string          `json:"required_approver_role,omitempty"`
	MatchedRuleID    *snowflake.ID   `json:"matched_rule_id,omitempty"`
}
