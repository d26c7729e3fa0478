package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingDefaults is the file-backed fallback used when the database holds no
// active engine or region configuration.
type PricingDefaults struct {
	Engine        EngineDefaults            `mapstructure:"engine"`
	Regions       map[string]RegionDefaults `mapstructure:"regions"`
	BusinessHours []BusinessHourDefault     `mapstructure:"businessHours"`
}

type EngineDefaults struct {
	DefaultMarkupMG          float64 `mapstructure:"defaultMarkupMG"`
	DefaultMarkupBR          float64 `mapstructure:"defaultMarkupBR"`
	MarginRedThreshold       float64 `mapstructure:"marginRedThreshold"`
	MarginOrangeThreshold    float64 `mapstructure:"marginOrangeThreshold"`
	MarginYellowThreshold    float64 `mapstructure:"marginYellowThreshold"`
	MarginGreenThreshold     float64 `mapstructure:"marginGreenThreshold"`
	MinimumPriceMarginTarget float64 `mapstructure:"minimumPriceMarginTarget"`
}

type RegionDefaults struct {
	AdminPercent            float64 `mapstructure:"adminPercent"`
	LogisticsPercent        float64 `mapstructure:"logisticsPercent"`
	TaxPercent              float64 `mapstructure:"taxPercent"`
	OtherTaxPercent         float64 `mapstructure:"otherTaxPercent"`
	InterLabDiscountPercent float64 `mapstructure:"interLabDiscountPercent"`
}

type BusinessHourDefault struct {
	DayOfWeek int    `mapstructure:"dayOfWeek"`
	StartTime string `mapstructure:"startTime"`
	EndTime   string `mapstructure:"endTime"`
	IsOpen    bool   `mapstructure:"isOpen"`
}

func DefaultPricingDefaults() PricingDefaults {
	hours := make([]BusinessHourDefault, 0, 7)
	for day := 0; day < 7; day++ {
		open := day >= 1 && day <= 5
		hours = append(hours, BusinessHourDefault{
			DayOfWeek: day,
			StartTime: "08:00",
			EndTime:   "18:00",
			IsOpen:    open,
		})
	}

	return PricingDefaults{
		Engine: EngineDefaults{
			DefaultMarkupMG:          1.5,
			DefaultMarkupBR:          1.6,
			MarginRedThreshold:       -5,
			MarginOrangeThreshold:    0,
			MarginYellowThreshold:    5,
			MarginGreenThreshold:     10,
			MinimumPriceMarginTarget: 1,
		},
		Regions: map[string]RegionDefaults{
			"MG": {AdminPercent: 5, LogisticsPercent: 3, TaxPercent: 18, OtherTaxPercent: 0, InterLabDiscountPercent: 10},
			"BR": {AdminPercent: 5, LogisticsPercent: 5, TaxPercent: 12, OtherTaxPercent: 0, InterLabDiscountPercent: 10},
		},
		BusinessHours: hours,
	}
}

type PricingDefaultsHolder struct {
	current atomic.Value // holds PricingDefaults
}

// NewStaticPricingDefaultsHolder returns a holder pinned to cfg with no file watch.
func NewStaticPricingDefaultsHolder(cfg PricingDefaults) *PricingDefaultsHolder {
	holder := &PricingDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPricingDefaultsHolder() (*PricingDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/sellerflow/config")
	v.AddConfigPath("/etc/sellerflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SELLERFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingDefaults()
	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := defaults
	if fileFound {
		if err := v.UnmarshalKey("pricing", &cfg); err != nil {
			return nil, err
		}
		cfg = mergePricingDefaults(cfg, defaults)
	}
	if err := ValidatePricingDefaults(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPricingDefaultsHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := defaults
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		updated = mergePricingDefaults(updated, defaults)
		if err := ValidatePricingDefaults(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingDefaultsHolder) Get() PricingDefaults {
	return h.current.Load().(PricingDefaults)
}

func mergePricingDefaults(cfg, defaults PricingDefaults) PricingDefaults {
	if len(cfg.Regions) == 0 {
		cfg.Regions = defaults.Regions
	}
	// viper lowercases map keys
	regions := make(map[string]RegionDefaults, len(cfg.Regions))
	for key, value := range cfg.Regions {
		regions[strings.ToUpper(strings.TrimSpace(key))] = value
	}
	cfg.Regions = regions
	if len(cfg.BusinessHours) == 0 {
		cfg.BusinessHours = defaults.BusinessHours
	}
	if cfg.Engine.DefaultMarkupMG == 0 {
		cfg.Engine.DefaultMarkupMG = defaults.Engine.DefaultMarkupMG
	}
	if cfg.Engine.DefaultMarkupBR == 0 {
		cfg.Engine.DefaultMarkupBR = defaults.Engine.DefaultMarkupBR
	}
	return cfg
}

func ValidatePricingDefaults(cfg PricingDefaults) error {
	e := cfg.Engine
	if e.DefaultMarkupMG <= 0 || e.DefaultMarkupBR <= 0 {
		return errors.New("pricing.engine markups must be positive")
	}
	if !(e.MarginRedThreshold < e.MarginOrangeThreshold &&
		e.MarginOrangeThreshold < e.MarginYellowThreshold &&
		e.MarginYellowThreshold < e.MarginGreenThreshold) {
		return errors.New("pricing.engine thresholds must be strictly increasing")
	}
	for region, r := range cfg.Regions {
		if r.AdminPercent < 0 || r.LogisticsPercent < 0 || r.TaxPercent < 0 || r.OtherTaxPercent < 0 || r.InterLabDiscountPercent < 0 {
			return fmt.Errorf("pricing.regions.%s percentages cannot be negative", region)
		}
		if r.AdminPercent+r.LogisticsPercent+r.TaxPercent+r.OtherTaxPercent >= 100 {
			return fmt.Errorf("pricing.regions.%s overhead must stay below 100%%", region)
		}
	}
	return nil
}
