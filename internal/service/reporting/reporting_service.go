package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// Catalogue yields the current product list.
type Catalogue interface {
	GetProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error)
}

// Sender delivers a plain-text report.
type Sender interface {
	SendReport(ctx context.Context, text string) error
}

// Service builds and delivers the daily stock summary.
type Service struct {
	catalogue Catalogue
	sender    Sender
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(catalogue Catalogue, sender Sender, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{catalogue: catalogue, sender: sender, location: location, now: time.Now, logger: logger}
}

// SendDailySummary renders the summary from a fresh catalogue and sends it.
func (s *Service) SendDailySummary(ctx context.Context) error {
	products, err := s.catalogue.GetProducts(ctx, true)
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}

	local := s.now().In(s.location)
	day := models.CalendarDay{Year: local.Year(), Month: local.Month(), Day: local.Day()}
	if err := s.sender.SendReport(ctx, Summarize(products, day)); err != nil {
		return fmt.Errorf("send stock summary: %w", err)
	}

	s.logger.Info("stock summary sent", zap.String("day", day.String()), zap.Int("products", len(products)))
	return nil
}

type livestockTotals struct {
	batches int
	birds   int
	value   decimal.Decimal
}

// Summarize renders a stock summary for day. Egg value is counted from the
// units products only since cases repackage the same eggs.
func Summarize(products []models.Product, day models.CalendarDay) string {
	totals := make(map[models.Category]*livestockTotals, len(models.LivestockCategories))
	for _, category := range models.LivestockCategories {
		totals[category] = &livestockTotals{value: decimal.Zero}
	}

	eggUnits, eggCases := 0, 0
	eggValue := decimal.Zero

	for _, product := range products {
		switch p := product.(type) {
		case models.WholeBatchProduct:
			if t, ok := totals[p.Category]; ok {
				t.batches++
				t.value = t.value.Add(p.UnitPrice)
			}
		case models.PerUnitProduct:
			if t, ok := totals[p.Category]; ok {
				t.birds += p.Available
			}
		case models.EggProduct:
			if p.SaleUnit == models.SaleUnitCases {
				eggCases += p.Available
				continue
			}
			eggUnits += p.Available
			eggValue = eggValue.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Available))))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stock summary %s\n", day)
	for _, category := range models.LivestockCategories {
		t := totals[category]
		if t.batches == 0 {
			fmt.Fprintf(&b, "%s: no active batches\n", title(category))
			continue
		}
		fmt.Fprintf(&b, "%s: %d batches, %d birds, batch value %s\n", title(category), t.batches, t.birds, t.value.StringFixed(2))
	}
	if eggUnits == 0 {
		b.WriteString("Eggs: none available")
	} else {
		fmt.Fprintf(&b, "Eggs: %d units (%d full cases), value %s", eggUnits, eggCases, eggValue.StringFixed(2))
	}

	return b.String()
}

func title(category models.Category) string {
	s := string(category)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
