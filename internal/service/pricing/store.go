package pricing

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/config"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// Store is the in-memory price configuration provider. Reads never block.
type Store struct {
	current atomic.Pointer[models.PriceConfig]
}

// NewStore seeds the store with cfg.
func NewStore(cfg models.PriceConfig) *Store {
	s := &Store{}
	s.Replace(cfg)
	return s
}

// PriceConfig returns the current configuration snapshot.
func (s *Store) PriceConfig() (models.PriceConfig, error) {
	cfg := s.current.Load()
	if cfg == nil {
		return models.PriceConfig{}, fmt.Errorf("%w: no price configuration loaded", models.ErrConfigurationMissing)
	}
	return *cfg, nil
}

// Replace swaps the configuration and reports whether any value changed.
func (s *Store) Replace(cfg models.PriceConfig) bool {
	previous := s.current.Swap(&cfg)
	return previous == nil || !previous.Equal(cfg)
}

// FromConfig builds the env-provided price configuration. Blank keys stay unset.
func FromConfig(cfg config.PricingConfig) (models.PriceConfig, error) {
	var out models.PriceConfig
	var err error

	if out.LayingUnitPrice, err = parseNullDecimal("PRICE_LAYING_UNIT", cfg.LayingUnitPrice); err != nil {
		return models.PriceConfig{}, err
	}
	if out.EggUnitPrice, err = parseNullDecimal("PRICE_EGG_UNIT", cfg.EggUnitPrice); err != nil {
		return models.PriceConfig{}, err
	}
	if out.PricePerPound, err = parseNullDecimal("PRICE_PER_POUND", cfg.PricePerPound); err != nil {
		return models.PriceConfig{}, err
	}
	if out.TargetWeightLb, err = parseNullDecimal("PRICE_TARGET_WEIGHT_LB", cfg.TargetWeightLb); err != nil {
		return models.PriceConfig{}, err
	}
	out.UnitsPerCase = cfg.UnitsPerCase

	return out, nil
}

func parseNullDecimal(key, value string) (decimal.NullDecimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return decimal.NewNullDecimal(d), nil
}
