package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// VolumeDiscountThreshold is the head count a batch must exceed to earn the large discount.
const VolumeDiscountThreshold = 100

var (
	growingMultiplier = decimal.RequireFromString("0.8")
	smallDiscount     = decimal.RequireFromString("0.05")
	largeDiscount     = decimal.RequireFromString("0.10")
)

// EggPricing is the resolved egg price set.
type EggPricing struct {
	PerEgg       decimal.Decimal
	PerCase      decimal.Decimal
	UnitsPerCase int
}

// Calculator resolves product prices from one price configuration snapshot.
// No rounding is applied.
type Calculator struct {
	cfg models.PriceConfig
}

// NewCalculator binds a calculator to cfg.
func NewCalculator(cfg models.PriceConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Check verifies that every key category needs is configured. Fattening only
// needs the target weight when some batch is unweighed, so it is not checked here.
func (c *Calculator) Check(category models.Category) error {
	switch category {
	case models.CategoryLaying, models.CategoryGrowing:
		_, err := lookup("laying_unit_price", c.cfg.LayingUnitPrice)
		return err
	case models.CategoryFattening:
		_, err := lookup("price_per_pound", c.cfg.PricePerPound)
		return err
	case models.CategoryEggs:
		_, err := c.EggPrices()
		return err
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownCategory, category)
	}
}

// UnitPrice resolves the per-bird price of a batch.
func (c *Calculator) UnitPrice(batch models.Batch) (decimal.Decimal, error) {
	switch batch.Category {
	case models.CategoryLaying:
		return lookup("laying_unit_price", c.cfg.LayingUnitPrice)
	case models.CategoryGrowing:
		flat, err := lookup("laying_unit_price", c.cfg.LayingUnitPrice)
		if err != nil {
			return decimal.Zero, err
		}
		return flat.Mul(growingMultiplier), nil
	case models.CategoryFattening:
		perPound, err := lookup("price_per_pound", c.cfg.PricePerPound)
		if err != nil {
			return decimal.Zero, err
		}
		weight, err := c.weightOf(batch)
		if err != nil {
			return decimal.Zero, err
		}
		return weight.Mul(perPound), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", models.ErrUnknownCategory, batch.Category)
	}
}

// BatchPrice prices a whole batch: unitPrice * headCount * (1 - VolumeDiscount(headCount)).
func (c *Calculator) BatchPrice(unitPrice decimal.Decimal, headCount int) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(headCount)))
	return gross.Mul(decimal.NewFromInt(1).Sub(VolumeDiscount(headCount)))
}

// VolumeDiscount is 10% strictly above VolumeDiscountThreshold head, 5% otherwise.
func VolumeDiscount(headCount int) decimal.Decimal {
	if headCount > VolumeDiscountThreshold {
		return largeDiscount
	}
	return smallDiscount
}

// EggPrices resolves the per-egg and per-case prices. Cases carry no extra discount.
func (c *Calculator) EggPrices() (EggPricing, error) {
	perEgg, err := lookup("egg_unit_price", c.cfg.EggUnitPrice)
	if err != nil {
		return EggPricing{}, err
	}
	if c.cfg.UnitsPerCase <= 0 {
		return EggPricing{}, fmt.Errorf("%w: units_per_case", models.ErrConfigurationMissing)
	}

	return EggPricing{
		PerEgg:       perEgg,
		PerCase:      perEgg.Mul(decimal.NewFromInt(int64(c.cfg.UnitsPerCase))),
		UnitsPerCase: c.cfg.UnitsPerCase,
	}, nil
}

func (c *Calculator) weightOf(batch models.Batch) (decimal.Decimal, error) {
	if batch.AverageWeightLb != nil && *batch.AverageWeightLb > 0 {
		return decimal.NewFromFloat(*batch.AverageWeightLb), nil
	}
	return lookup("target_weight_lb", c.cfg.TargetWeightLb)
}

func lookup(key string, value decimal.NullDecimal) (decimal.Decimal, error) {
	if !value.Valid {
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrConfigurationMissing, key)
	}
	return value.Decimal, nil
}
