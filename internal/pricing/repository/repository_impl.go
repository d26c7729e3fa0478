package repository

import (
	"context"

	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) pricingdomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindActiveRegion(ctx context.Context, region pricingdomain.Region) (*pricingdomain.RegionPricingConfig, error) {
	var items []pricingdomain.RegionPricingConfig
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, region, admin_percent, logistics_percent, tax_percent, other_tax_percent,
		        inter_lab_discount_percent, is_active, created_at, updated_at
		 FROM region_pricing_configs
		 WHERE region = ? AND is_active = true
		 LIMIT 1`,
		region,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repository) ListRegions(ctx context.Context) ([]pricingdomain.RegionPricingConfig, error) {
	var items []pricingdomain.RegionPricingConfig
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, region, admin_percent, logistics_percent, tax_percent, other_tax_percent,
		        inter_lab_discount_percent, is_active, created_at, updated_at
		 FROM region_pricing_configs
		 ORDER BY region ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpsertRegion(ctx context.Context, cfg pricingdomain.RegionPricingConfig) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO region_pricing_configs (
			id, region, admin_percent, logistics_percent, tax_percent, other_tax_percent,
			inter_lab_discount_percent, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (region) DO UPDATE SET
			admin_percent = excluded.admin_percent,
			logistics_percent = excluded.logistics_percent,
			tax_percent = excluded.tax_percent,
			other_tax_percent = excluded.other_tax_percent,
			inter_lab_discount_percent = excluded.inter_lab_discount_percent,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		cfg.ID,
		cfg.Region,
		cfg.AdminPercent,
		cfg.LogisticsPercent,
		cfg.TaxPercent,
		cfg.OtherTaxPercent,
		cfg.InterLabDiscountPercent,
		cfg.IsActive,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repository) FindActiveEngine(ctx context.Context) (*pricingdomain.EngineConfig, error) {
	var items []pricingdomain.EngineConfig
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, version, default_markup_mg, default_markup_br, margin_red_threshold,
		        margin_orange_threshold, margin_yellow_threshold, margin_green_threshold,
		        minimum_price_margin_target, is_active, created_at
		 FROM pricing_engine_configs
		 WHERE is_active = true
		 ORDER BY version DESC
		 LIMIT 1`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// ActivateEngine stores cfg as the next version and deactivates the others.
// cfg.Version is assigned inside the transaction.
func (r *repository) ActivateEngine(ctx context.Context, cfg pricingdomain.EngineConfig) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current struct{ Version int }
		if err := tx.Raw(`SELECT COALESCE(MAX(version), 0) AS version FROM pricing_engine_configs`).Scan(&current).Error; err != nil {
			return err
		}
		if err := tx.Exec(`UPDATE pricing_engine_configs SET is_active = false WHERE is_active = true`).Error; err != nil {
			return err
		}
		return tx.Exec(
			`INSERT INTO pricing_engine_configs (
				id, version, default_markup_mg, default_markup_br, margin_red_threshold,
				margin_orange_threshold, margin_yellow_threshold, margin_green_threshold,
				minimum_price_margin_target, is_active, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, true, ?)`,
			cfg.ID,
			current.Version+1,
			cfg.DefaultMarkupMG,
			cfg.DefaultMarkupBR,
			cfg.MarginRedThreshold,
			cfg.MarginOrangeThreshold,
			cfg.MarginYellowThreshold,
			cfg.MarginGreenThreshold,
			cfg.MinimumPriceMarginTarget,
			cfg.CreatedAt,
		).Error
	})
}
