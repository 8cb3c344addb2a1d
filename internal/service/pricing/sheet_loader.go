package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// Price sheet keys, one per row in column A with the value in column B.
const (
	KeyLayingUnitPrice = "laying_unit_price"
	KeyEggUnitPrice    = "egg_unit_price"
	KeyPricePerPound   = "price_per_pound"
	KeyTargetWeightLb  = "target_weight_lb"
	KeyUnitsPerCase    = "units_per_case"
)

// RangeReader reads a rectangular range from a spreadsheet.
type RangeReader interface {
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
}

// SheetLoader overlays price sheet values on the env defaults and publishes
// the result to a Store.
type SheetLoader struct {
	reader     RangeReader
	sheetRange string
	defaults   models.PriceConfig
	store      *Store
	logger     *zap.Logger
}

// NewSheetLoader wires a loader for sheetRange.
func NewSheetLoader(reader RangeReader, sheetRange string, defaults models.PriceConfig, store *Store, logger *zap.Logger) *SheetLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetLoader{
		reader:     reader,
		sheetRange: sheetRange,
		defaults:   defaults,
		store:      store,
		logger:     logger,
	}
}

// Refresh reloads the sheet and reports whether the stored prices changed.
// Unreadable rows are skipped; unknown keys are ignored.
func (l *SheetLoader) Refresh(ctx context.Context) (bool, error) {
	rows, err := l.reader.ReadRange(ctx, l.sheetRange)
	if err != nil {
		return false, fmt.Errorf("load price sheet: %w", err)
	}

	cfg := l.defaults
	applied := 0
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(fmt.Sprint(row[0])))
		raw := strings.TrimSpace(fmt.Sprint(row[1]))
		if raw == "" {
			continue
		}

		ok, err := apply(&cfg, key, raw)
		if err != nil {
			l.logger.Warn("skip price row", zap.String("key", key), zap.String("value", raw), zap.Error(err))
			continue
		}
		if ok {
			applied++
		}
	}

	changed := l.store.Replace(cfg)
	l.logger.Info("price sheet loaded", zap.Int("applied", applied), zap.Bool("changed", changed))
	return changed, nil
}

func apply(cfg *models.PriceConfig, key, raw string) (bool, error) {
	if key == KeyUnitsPerCase {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return false, err
		}
		if n <= 0 {
			return false, fmt.Errorf("units per case must be positive, got %d", n)
		}
		cfg.UnitsPerCase = n
		return true, nil
	}

	var target *decimal.NullDecimal
	switch key {
	case KeyLayingUnitPrice:
		target = &cfg.LayingUnitPrice
	case KeyEggUnitPrice:
		target = &cfg.EggUnitPrice
	case KeyPricePerPound:
		target = &cfg.PricePerPound
	case KeyTargetWeightLb:
		target = &cfg.TargetWeightLb
	default:
		return false, nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return false, err
	}
	*target = decimal.NewNullDecimal(d)
	return true, nil
}
