package models

import "github.com/shopspring/decimal"

// PriceConfig is the already-loaded price configuration. Null values are keys
// the provider has no value for.
type PriceConfig struct {
	LayingUnitPrice decimal.NullDecimal
	EggUnitPrice    decimal.NullDecimal
	PricePerPound   decimal.NullDecimal
	TargetWeightLb  decimal.NullDecimal
	// UnitsPerCase is missing when zero.
	UnitsPerCase int
}

// Equal reports whether both configurations hold the same values.
func (c PriceConfig) Equal(other PriceConfig) bool {
	return nullEqual(c.LayingUnitPrice, other.LayingUnitPrice) &&
		nullEqual(c.EggUnitPrice, other.EggUnitPrice) &&
		nullEqual(c.PricePerPound, other.PricePerPound) &&
		nullEqual(c.TargetWeightLb, other.TargetWeightLb) &&
		c.UnitsPerCase == other.UnitsPerCase
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
