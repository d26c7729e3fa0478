package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/internal/config"
	obsmetrics "github.com/smallbiznis/sellerflow/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/sellerflow/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Defaults *config.PricingDefaultsHolder
	Repo     pricingdomain.Repository
	Rules    approvalruledomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	defaults *config.PricingDefaultsHolder
	repo     pricingdomain.Repository
	rules    approvalruledomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) pricingdomain.Service {
	return &Service{
		log:      p.Log.Named("pricing.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		defaults: p.Defaults,
		repo:     p.Repo,
		rules:    p.Rules,
		metrics:  p.Metrics,
	}
}

// Snapshot resolves the stored configuration for region, falling back to the
// pricing defaults file for whatever is not stored yet.
func (s *Service) Snapshot(ctx context.Context, region pricingdomain.Region) (pricingdomain.Snapshot, error) {
	regionCfg, err := s.regionConfig(ctx, region)
	if err != nil {
		return pricingdomain.Snapshot{}, err
	}
	engine, err := s.ActiveEngine(ctx)
	if err != nil {
		return pricingdomain.Snapshot{}, err
	}
	return pricingdomain.Snapshot{Region: *regionCfg, Engine: *engine}, nil
}

func (s *Service) regionConfig(ctx context.Context, region pricingdomain.Region) (*pricingdomain.RegionPricingConfig, error) {
	stored, err := s.repo.FindActiveRegion(ctx, region)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	if s.defaults == nil {
		return nil, pricingdomain.ErrRegionNotConfigured
	}
	fallback, ok := s.defaults.Get().Regions[string(region)]
	if !ok {
		return nil, pricingdomain.ErrRegionNotConfigured
	}
	cfg := regionFromDefaults(region, fallback)
	return &cfg, nil
}

func (s *Service) ListRegions(ctx context.Context) ([]pricingdomain.RegionPricingConfig, error) {
	stored, err := s.repo.ListRegions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[pricingdomain.Region]bool, len(stored))
	for _, cfg := range stored {
		seen[cfg.Region] = true
	}
	if s.defaults != nil {
		for _, region := range []pricingdomain.Region{pricingdomain.RegionBR, pricingdomain.RegionMG} {
			fallback, ok := s.defaults.Get().Regions[string(region)]
			if ok && !seen[region] {
				stored = append(stored, regionFromDefaults(region, fallback))
			}
		}
	}
	return stored, nil
}

func (s *Service) UpsertRegion(ctx context.Context, region string, req pricingdomain.RegionRequest) (*pricingdomain.RegionPricingConfig, error) {
	parsed, err := pricingdomain.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	cfg := pricingdomain.RegionPricingConfig{
		ID:                      s.genID.Generate(),
		Region:                  parsed,
		AdminPercent:            req.AdminPercent,
		LogisticsPercent:        req.LogisticsPercent,
		TaxPercent:              req.TaxPercent,
		OtherTaxPercent:         req.OtherTaxPercent,
		InterLabDiscountPercent: req.InterLabDiscountPercent,
		IsActive:                true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpsertRegion(ctx, cfg); err != nil {
		return nil, err
	}
	s.log.Info("region pricing updated",
		zap.String("region", string(parsed)),
		zap.String("overhead_percent", cfg.OverheadPercent().String()),
	)
	return s.regionConfig(ctx, parsed)
}

func (s *Service) ActiveEngine(ctx context.Context) (*pricingdomain.EngineConfig, error) {
	stored, err := s.repo.FindActiveEngine(ctx)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	defaults := config.DefaultPricingDefaults()
	if s.defaults != nil {
		defaults = s.defaults.Get()
	}
	cfg := engineFromDefaults(defaults.Engine)
	return &cfg, nil
}

func (s *Service) UpdateEngine(ctx context.Context, req pricingdomain.EngineRequest) (*pricingdomain.EngineConfig, error) {
	cfg := pricingdomain.EngineConfig{
		ID:                       s.genID.Generate(),
		DefaultMarkupMG:          req.DefaultMarkupMG,
		DefaultMarkupBR:          req.DefaultMarkupBR,
		MarginRedThreshold:       req.MarginRedThreshold,
		MarginOrangeThreshold:    req.MarginOrangeThreshold,
		MarginYellowThreshold:    req.MarginYellowThreshold,
		MarginGreenThreshold:     req.MarginGreenThreshold,
		MinimumPriceMarginTarget: req.MinimumPriceMarginTarget,
		IsActive:                 true,
		CreatedAt:                s.clock.Now().UTC(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.ActivateEngine(ctx, cfg); err != nil {
		return nil, err
	}
	active, err := s.ActiveEngine(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("pricing engine config activated", zap.Int("version", active.Version))
	return active, nil
}

func (s *Service) Simulate(ctx context.Context, req pricingdomain.SimulateRequest) (*pricingdomain.MarginCalculation, error) {
	region, err := pricingdomain.ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.Snapshot(ctx, region)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.RuleSet(ctx)
	if err != nil {
		return nil, err
	}

	calc, err := pricingdomain.Calculate(pricingdomain.MarginInput{
		BaseCost:         req.BaseCost,
		Quantity:         req.Quantity,
		OfferedUnitPrice: req.OfferedUnitPrice,
		DiscountPercent:  req.DiscountPercent,
		IsInterLab:       req.IsInterLab,
		ListPrice:        req.ListPrice,
	}, snapshot.Region, snapshot.Engine, rules)
	if err != nil {
		return nil, err
	}
	rounded := calc.Rounded()
	s.metrics.RecordMarginCalculation(ctx, string(rounded.Band), rounded.IsAuthorized)
	return &rounded, nil
}

func regionFromDefaults(region pricingdomain.Region, d config.RegionDefaults) pricingdomain.RegionPricingConfig {
	return pricingdomain.RegionPricingConfig{
		Region:                  region,
		AdminPercent:            decimal.NewFromFloat(d.AdminPercent),
		LogisticsPercent:        decimal.NewFromFloat(d.LogisticsPercent),
		TaxPercent:              decimal.NewFromFloat(d.TaxPercent),
		OtherTaxPercent:         decimal.NewFromFloat(d.OtherTaxPercent),
		InterLabDiscountPercent: decimal.NewFromFloat(d.InterLabDiscountPercent),
		IsActive:                true,
	}
}

func engineFromDefaults(d config.EngineDefaults) pricingdomain.EngineConfig {
	return pricingdomain.EngineConfig{
		DefaultMarkupMG:          decimal.NewFromFloat(d.DefaultMarkupMG),
		DefaultMarkupBR:          decimal.NewFromFloat(d.DefaultMarkupBR),
		MarginRedThreshold:       decimal.NewFromFloat(d.MarginRedThreshold),
		MarginOrangeThreshold:    decimal.NewFromFloat(d.MarginOrangeThreshold),
		MarginYellowThreshold:    decimal.NewFromFloat(d.MarginYellowThreshold),
		MarginGreenThreshold:     decimal.NewFromFloat(d.MarginGreenThreshold),
		MinimumPriceMarginTarget: decimal.NewFromFloat(d.MinimumPriceMarginTarget),
		IsActive:                 true,
	}
}
