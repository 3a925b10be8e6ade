package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingConfig controls the amounts used when a publication has no explicit
// provider-side price yet, plus checkout throttling. Amounts are in the
// currency's minor unit.
type PricingConfig struct {
	Currency      string  `mapstructure:"currency"`
	MonthlyAmount int64   `mapstructure:"monthlyAmount"`
	YearlyAmount  int64   `mapstructure:"yearlyAmount"`
	CheckoutRate  float64 `mapstructure:"checkoutRate"`
	CheckoutBurst int     `mapstructure:"checkoutBurst"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency:      "usd",
		MonthlyAmount: 500,
		YearlyAmount:  5000,
		CheckoutRate:  0.2,
		CheckoutBurst: 5,
	}
}

// PricingHolder serves the current pricing config and hot-reloads it when the
// underlying file changes.
type PricingHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingHolder() (*PricingHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/lettercast")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LETTERCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.currency", defaults.Currency)
	v.SetDefault("pricing.monthlyAmount", defaults.MonthlyAmount)
	v.SetDefault("pricing.yearlyAmount", defaults.YearlyAmount)
	v.SetDefault("pricing.checkoutRate", defaults.CheckoutRate)
	v.SetDefault("pricing.checkoutBurst", defaults.CheckoutBurst)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("pricing.currency cannot be empty")
	}
	if cfg.MonthlyAmount <= 0 || cfg.YearlyAmount <= 0 {
		return errors.New("pricing amounts must be positive")
	}
	if cfg.CheckoutRate <= 0 || cfg.CheckoutBurst <= 0 {
		return errors.New("pricing checkout throttle must be positive")
	}
	return nil
}
