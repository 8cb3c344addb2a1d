package inventory

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/service/pricing"
)

// productNamespace scopes the name-based product ids.
var productNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://gallinapp.app/inventory/products"))

const (
	idKindWholeBatch = "whole-batch"
	idKindPerUnit    = "per-unit"
	idKindEggUnits   = "egg-units"
	idKindEggCases   = "egg-cases"
)

type categoryLabel struct {
	title, singular, plural string
}

var categoryLabels = map[models.Category]categoryLabel{
	models.CategoryLaying:    {title: "Laying hen", singular: "laying hen", plural: "laying hens"},
	models.CategoryGrowing:   {title: "Growing bird", singular: "growing bird", plural: "growing birds"},
	models.CategoryFattening: {title: "Broiler", singular: "broiler", plural: "broilers"},
}

// ProductID derives the stable id of a product. day is ignored when zero.
func ProductID(kind, batchID string, day models.CalendarDay) string {
	name := kind + ":" + batchID
	if !day.IsZero() {
		name += ":" + day.String()
	}
	return uuid.NewSHA1(productNamespace, []byte(name)).String()
}

// Synthesizer turns batches and production rows into catalogue products.
// Given the same inputs and clock day it always returns the same products.
type Synthesizer struct {
	now     func() time.Time
	metrics *Metrics
	logger  *zap.Logger
}

// NewSynthesizer builds a synthesizer. now defaults to time.Now.
func NewSynthesizer(now func() time.Time, metrics *Metrics, logger *zap.Logger) *Synthesizer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{now: now, metrics: metrics, logger: logger}
}

// Livestock emits a whole-batch and a per-unit product for every active,
// non-empty batch. Malformed batches are skipped; a pricing error aborts.
func (s *Synthesizer) Livestock(category models.Category, batches []models.Batch, calc *pricing.Calculator) ([]models.Product, error) {
	label, ok := categoryLabels[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCategory, category)
	}

	today := models.DayOf(s.now())
	products := make([]models.Product, 0, 2*len(batches))
	for _, batch := range batches {
		if batch.Status != models.BatchActive {
			continue
		}
		if err := validateBatch(batch); err != nil {
			s.skip(category, zap.String("batch_id", batch.ID), err)
			continue
		}
		if *batch.HeadCount == 0 {
			continue
		}
		// Readers query one collection per category; trust that over the stored field.
		batch.Category = category

		unitPrice, err := calc.UnitPrice(batch)
		if err != nil {
			return nil, fmt.Errorf("price batch %s: %w", batch.ID, err)
		}

		head := *batch.HeadCount
		details := models.BatchDetails{
			BatchID:         batch.ID,
			AgeDays:         max(today.DaysSince(models.DayOf(batch.StartDate)), 0),
			HeadCount:       head,
			Breed:           batch.Breed,
			StartDate:       batch.StartDate,
			AverageWeightLb: batch.AverageWeightLb,
		}
		name := displayName(batch)

		products = append(products,
			models.WholeBatchProduct{
				ProductInfo: models.ProductInfo{
					ID:          ProductID(idKindWholeBatch, batch.ID, models.CalendarDay{}),
					Kind:        models.KindWholeBatch,
					Name:        fmt.Sprintf("Batch %s (%d %s)", name, head, label.plural),
					Description: fmt.Sprintf("Whole batch of %d %s, %d days old", head, label.plural, details.AgeDays),
					Category:    category,
					UnitPrice:   calc.BatchPrice(unitPrice, head),
					UnitLabel:   "batch",
					Available:   1,
				},
				BatchDetails: details,
			},
			models.PerUnitProduct{
				ProductInfo: models.ProductInfo{
					ID:          ProductID(idKindPerUnit, batch.ID, models.CalendarDay{}),
					Kind:        models.KindPerUnit,
					Name:        fmt.Sprintf("%s from batch %s", label.title, name),
					Description: fmt.Sprintf("Single %s, %d days old", label.singular, details.AgeDays),
					Category:    category,
					UnitPrice:   unitPrice,
					UnitLabel:   "bird",
					Available:   head,
				},
				BatchDetails: details,
			},
		)
	}

	return products, nil
}

type eggDay struct {
	day       models.CalendarDay
	sizes     models.EggSizes
	remaining int
	rowIDs    []string
}

// Eggs groups a laying batch's production rows by UTC calendar day and emits
// a units product per non-empty day plus a cases product when a full case fits.
// Each row contributes only the eggs it has left unsold.
func (s *Synthesizer) Eggs(batch models.Batch, rows []models.ProductionRow, prices pricing.EggPricing) []models.Product {
	groups := make(map[models.CalendarDay]*eggDay)
	for _, row := range rows {
		if row.Consumed {
			continue
		}
		if err := validateRow(batch.ID, row); err != nil {
			s.skip(models.CategoryEggs, zap.String("row_id", row.ID), err)
			continue
		}
		remaining := row.Remaining()
		if remaining == 0 {
			continue
		}

		day := models.DayOf(row.Date)
		group, ok := groups[day]
		if !ok {
			group = &eggDay{day: day}
			groups[day] = group
		}
		group.sizes = group.sizes.Add(row.Sizes)
		group.remaining += remaining
		group.rowIDs = append(group.rowIDs, row.ID)
	}

	days := make([]*eggDay, 0, len(groups))
	for _, group := range groups {
		days = append(days, group)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].day.Before(days[j].day) })

	name := displayName(batch)
	var products []models.Product
	for _, group := range days {
		total := group.remaining
		if total <= 0 {
			continue
		}
		sort.Strings(group.rowIDs)
		size := group.sizes.Label()

		products = append(products, models.EggProduct{
			ProductInfo: models.ProductInfo{
				ID:          ProductID(idKindEggUnits, batch.ID, group.day),
				Kind:        models.KindEgg,
				Name:        fmt.Sprintf("Eggs %s, %s", size, group.day),
				Description: fmt.Sprintf("%d eggs collected on %s from batch %s", total, group.day, name),
				Category:    models.CategoryLaying,
				UnitPrice:   prices.PerEgg,
				UnitLabel:   "egg",
				Available:   total,
			},
			Size:                size,
			Quality:             models.EggQualityFresh,
			CollectionDate:      group.day,
			BatchID:             batch.ID,
			SaleUnit:            models.SaleUnitUnits,
			ProductionRecordIDs: group.rowIDs,
		})

		if prices.UnitsPerCase <= 0 || total < prices.UnitsPerCase {
			continue
		}
		unitsPerCase := prices.UnitsPerCase
		products = append(products, models.EggProduct{
			ProductInfo: models.ProductInfo{
				ID:          ProductID(idKindEggCases, batch.ID, group.day),
				Kind:        models.KindEgg,
				Name:        fmt.Sprintf("Egg case x%d %s, %s", unitsPerCase, size, group.day),
				Description: fmt.Sprintf("Cases of %d eggs collected on %s from batch %s", unitsPerCase, group.day, name),
				Category:    models.CategoryLaying,
				UnitPrice:   prices.PerCase,
				UnitLabel:   "case",
				Available:   total / unitsPerCase,
			},
			Size:                size,
			Quality:             models.EggQualityFresh,
			CollectionDate:      group.day,
			BatchID:             batch.ID,
			SaleUnit:            models.SaleUnitCases,
			UnitsPerCase:        &unitsPerCase,
			ProductionRecordIDs: slices.Clone(group.rowIDs),
		})
	}

	return products
}

func (s *Synthesizer) skip(category models.Category, id zap.Field, err error) {
	s.metrics.malformedRecord(category)
	s.logger.Warn("skipping malformed record", zap.String("category", string(category)), id, zap.Error(err))
}

func validateBatch(batch models.Batch) error {
	switch {
	case batch.ID == "":
		return fmt.Errorf("%w: batch without id", models.ErrMalformedRecord)
	case batch.HeadCount == nil:
		return fmt.Errorf("%w: batch %s has no head count", models.ErrMalformedRecord, batch.ID)
	case *batch.HeadCount < 0:
		return fmt.Errorf("%w: batch %s has negative head count %d", models.ErrMalformedRecord, batch.ID, *batch.HeadCount)
	case batch.StartDate.IsZero():
		return fmt.Errorf("%w: batch %s has no start date", models.ErrMalformedRecord, batch.ID)
	}
	return nil
}

func validateRow(batchID string, row models.ProductionRow) error {
	var errs []error
	if row.ID == "" {
		errs = append(errs, errors.New("row without id"))
	}
	if row.BatchID != "" && row.BatchID != batchID {
		errs = append(errs, fmt.Errorf("row belongs to batch %s", row.BatchID))
	}
	if row.Date.IsZero() {
		errs = append(errs, errors.New("row has no date"))
	}
	if row.Sizes.Small < 0 || row.Sizes.Medium < 0 || row.Sizes.Large < 0 || row.Sizes.ExtraLarge < 0 {
		errs = append(errs, errors.New("row has a negative size count"))
	}
	if row.ConsumedUnits < 0 {
		errs = append(errs, errors.New("row has a negative consumed count"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrMalformedRecord, errors.Join(errs...))
	}
	return nil
}

func displayName(batch models.Batch) string {
	if batch.Name != "" {
		return batch.Name
	}
	return batch.ID
}
