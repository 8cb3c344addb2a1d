package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/service/inventory"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/service/pricing"
)

type fakeCatalogue struct {
	products    []models.Product
	err         error
	invalidated []models.Category
}

func (f *fakeCatalogue) GetProducts(context.Context, bool) ([]models.Product, error) {
	return f.products, f.err
}

func (f *fakeCatalogue) Invalidate(category models.Category) error {
	f.invalidated = append(f.invalidated, category)
	return nil
}

type fakeInventory struct {
	closeFn     func(ctx context.Context, category models.Category, batchID string) error
	decrementFn func(ctx context.Context, category models.Category, batchID string, quantity int) error
	consumeFn   func(ctx context.Context, rowIDs []string, units int) error
}

func (f *fakeInventory) CloseBatch(ctx context.Context, category models.Category, batchID string) error {
	return f.closeFn(ctx, category, batchID)
}

func (f *fakeInventory) DecrementHeadCount(ctx context.Context, category models.Category, batchID string, quantity int) error {
	return f.decrementFn(ctx, category, batchID, quantity)
}

func (f *fakeInventory) ConsumeProductionUnits(ctx context.Context, rowIDs []string, units int) error {
	return f.consumeFn(ctx, rowIDs, units)
}

type fakeStore struct {
	saved []models.SaleRecord
	err   error
}

func (f *fakeStore) SaveSale(_ context.Context, sale models.SaleRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, sale)
	return "sale-1", nil
}

type fakePublisher struct {
	events []models.InventoryEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event models.InventoryEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeLedger struct {
	ranges []string
	rows   [][]interface{}
}

func (f *fakeLedger) AppendRow(_ context.Context, sheetRange string, values []interface{}) error {
	f.ranges = append(f.ranges, sheetRange)
	f.rows = append(f.rows, values)
	return nil
}

func catalogueFixture() []models.Product {
	unitsPerCase := 30
	details := models.BatchDetails{BatchID: "b1", HeadCount: 50}
	return []models.Product{
		models.WholeBatchProduct{
			ProductInfo:  models.ProductInfo{ID: "whole", Kind: models.KindWholeBatch, Category: models.CategoryLaying, UnitPrice: decimal.RequireFromString("475"), Available: 1},
			BatchDetails: details,
		},
		models.PerUnitProduct{
			ProductInfo:  models.ProductInfo{ID: "unit", Kind: models.KindPerUnit, Category: models.CategoryGrowing, UnitPrice: decimal.RequireFromString("8"), Available: 30},
			BatchDetails: models.BatchDetails{BatchID: "g1", HeadCount: 30},
		},
		models.EggProduct{
			ProductInfo:         models.ProductInfo{ID: "eggs", Kind: models.KindEgg, Category: models.CategoryLaying, UnitPrice: decimal.RequireFromString("0.20"), Available: 45},
			BatchID:             "b1",
			SaleUnit:            models.SaleUnitUnits,
			ProductionRecordIDs: []string{"r1", "r2"},
		},
		models.EggProduct{
			ProductInfo:         models.ProductInfo{ID: "cases", Kind: models.KindEgg, Category: models.CategoryLaying, UnitPrice: decimal.RequireFromString("6"), Available: 1},
			BatchID:             "b1",
			SaleUnit:            models.SaleUnitCases,
			UnitsPerCase:        &unitsPerCase,
			ProductionRecordIDs: []string{"r1", "r2"},
		},
	}
}

func okInventory() *fakeInventory {
	return &fakeInventory{
		closeFn:     func(context.Context, models.Category, string) error { return nil },
		decrementFn: func(context.Context, models.Category, string, int) error { return nil },
		consumeFn:   func(context.Context, []string, int) error { return nil },
	}
}

func TestService_RecordSaleByKind(t *testing.T) {
	tests := []struct {
		name           string
		req            models.SaleRequest
		wantTotal      string
		wantInvalidate []models.Category
		wantEventCat   string
	}{
		{
			name:           "whole batch closes the batch",
			req:            models.SaleRequest{ProductID: "whole", Quantity: 1, Client: "Colmado Rosa"},
			wantTotal:      "475",
			wantInvalidate: []models.Category{models.CategoryLaying, models.CategoryEggs},
			wantEventCat:   "laying",
		},
		{
			name:           "per unit decrements head count",
			req:            models.SaleRequest{ProductID: "unit", Quantity: 12},
			wantTotal:      "96",
			wantInvalidate: []models.Category{models.CategoryGrowing},
			wantEventCat:   "growing",
		},
		{
			name:           "eggs consume single units",
			req:            models.SaleRequest{ProductID: "eggs", Quantity: 12},
			wantTotal:      "2.4",
			wantInvalidate: []models.Category{models.CategoryEggs},
			wantEventCat:   "eggs",
		},
		{
			name:           "egg cases consume the case size",
			req:            models.SaleRequest{ProductID: "cases", Quantity: 1},
			wantTotal:      "6",
			wantInvalidate: []models.Category{models.CategoryEggs},
			wantEventCat:   "eggs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalogue := &fakeCatalogue{products: catalogueFixture()}
			inventory := okInventory()
			var closed, consumed []string
			var decremented, consumedUnits int
			inventory.closeFn = func(_ context.Context, _ models.Category, batchID string) error {
				closed = append(closed, batchID)
				return nil
			}
			inventory.decrementFn = func(_ context.Context, _ models.Category, _ string, quantity int) error {
				decremented += quantity
				return nil
			}
			inventory.consumeFn = func(_ context.Context, rowIDs []string, units int) error {
				consumed = append(consumed, rowIDs...)
				consumedUnits += units
				return nil
			}
			store := &fakeStore{}
			publisher := &fakePublisher{}
			ledger := &fakeLedger{}
			registry := prometheus.NewRegistry()

			svc := NewService(catalogue, inventory, store, nil,
				WithPublisher(publisher),
				WithLedger(ledger, "Sales!A:G"),
				WithMetrics(registry),
			)
			svc.now = func() time.Time { return time.Date(2026, time.October, 16, 15, 0, 0, 0, time.UTC) }

			sale, err := svc.RecordSale(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, "sale-1", sale.ID)
			assert.True(t, decimal.RequireFromString(tt.wantTotal).Equal(sale.Total), "total %s", sale.Total)
			assert.Equal(t, tt.wantInvalidate, catalogue.invalidated)
			require.Len(t, store.saved, 1)
			require.Len(t, publisher.events, 1)
			assert.Equal(t, tt.wantEventCat, publisher.events[0].Category)
			assert.Equal(t, models.EventSaleRecorded, publisher.events[0].EventType)
			assert.Equal(t, []string{"Sales!A:G"}, ledger.ranges)
			assert.Equal(t, 1.0, testutil.ToFloat64(svc.recorded.WithLabelValues(string(sale.ProductKind))))

			switch tt.req.ProductID {
			case "whole":
				assert.Equal(t, []string{"b1"}, closed)
			case "unit":
				assert.Equal(t, 12, decremented)
			case "eggs":
				assert.Equal(t, []string{"r1", "r2"}, consumed)
				assert.Equal(t, 12, consumedUnits)
			case "cases":
				assert.Equal(t, 30, consumedUnits)
			}
		})
	}
}

func TestService_RecordSaleRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     models.SaleRequest
		wantErr error
	}{
		{name: "unknown product", req: models.SaleRequest{ProductID: "nope", Quantity: 1}, wantErr: models.ErrProductNotFound},
		{name: "zero quantity", req: models.SaleRequest{ProductID: "unit", Quantity: 0}, wantErr: models.ErrInvalidQuantity},
		{name: "over selling", req: models.SaleRequest{ProductID: "unit", Quantity: 31}, wantErr: models.ErrInsufficientStock},
		{name: "whole batch by parts", req: models.SaleRequest{ProductID: "whole", Quantity: 2}, wantErr: models.ErrInsufficientStock},
		{name: "more cases than packed", req: models.SaleRequest{ProductID: "cases", Quantity: 2}, wantErr: models.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalogue := &fakeCatalogue{products: catalogueFixture()}
			store := &fakeStore{}
			svc := NewService(catalogue, okInventory(), store, nil)

			_, err := svc.RecordSale(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.saved)
			assert.Empty(t, catalogue.invalidated, "nothing changed, nothing to invalidate")
		})
	}
}

func TestService_StockRaceSurfacesWriterError(t *testing.T) {
	catalogue := &fakeCatalogue{products: catalogueFixture()}
	inventory := okInventory()
	inventory.decrementFn = func(context.Context, models.Category, string, int) error {
		return models.ErrInsufficientStock
	}
	store := &fakeStore{}

	_, err := NewService(catalogue, inventory, store, nil).RecordSale(context.Background(), models.SaleRequest{ProductID: "unit", Quantity: 5})
	require.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Empty(t, store.saved)
}

func TestService_CatalogueFailure(t *testing.T) {
	catalogue := &fakeCatalogue{err: models.ErrSourceUnavailable}

	_, err := NewService(catalogue, okInventory(), &fakeStore{}, nil).RecordSale(context.Background(), models.SaleRequest{ProductID: "unit", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}

func TestService_PublishFailureDoesNotFailSale(t *testing.T) {
	catalogue := &fakeCatalogue{products: catalogueFixture()}
	publisher := &fakePublisher{err: errors.New("channel closed")}

	sale, err := NewService(catalogue, okInventory(), &fakeStore{}, nil, WithPublisher(publisher)).
		RecordSale(context.Background(), models.SaleRequest{ProductID: "eggs", Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, sale.Quantity)
	assert.Len(t, publisher.events, 1)
}

// memoryFarm is a one-batch farm that reads and writes stock like the Mongo repository.
type memoryFarm struct {
	mu   sync.Mutex
	head int
	rows []models.ProductionRow
}

func (f *memoryFarm) FetchActiveBatches(_ context.Context, category models.Category) ([]models.Batch, error) {
	if category != models.CategoryLaying {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	head := f.head
	return []models.Batch{{
		ID:        "b1",
		Category:  models.CategoryLaying,
		Name:      "Lote b1",
		Status:    models.BatchActive,
		StartDate: time.Date(2026, time.June, 18, 9, 0, 0, 0, time.UTC),
		HeadCount: &head,
	}}, nil
}

func (f *memoryFarm) FetchProductionRows(context.Context, string) ([]models.ProductionRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.ProductionRow
	for _, row := range f.rows {
		if !row.Consumed {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *memoryFarm) CloseBatch(context.Context, models.Category, string) error {
	return nil
}

func (f *memoryFarm) DecrementHeadCount(_ context.Context, _ models.Category, _ string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head -= quantity
	return nil
}

func (f *memoryFarm) ConsumeProductionUnits(_ context.Context, rowIDs []string, units int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(rowIDs))
	for _, id := range rowIDs {
		wanted[id] = true
	}

	available := 0
	for _, row := range f.rows {
		if wanted[row.ID] {
			available += row.Remaining()
		}
	}
	if available < units {
		return models.ErrInsufficientStock
	}

	for i := range f.rows {
		row := &f.rows[i]
		if units == 0 || !wanted[row.ID] {
			continue
		}
		take := min(row.Remaining(), units)
		row.ConsumedUnits += take
		row.Consumed = row.Remaining() == 0
		units -= take
	}
	return nil
}

func eggProductsByUnit(t *testing.T, catalogue *inventory.Service) map[models.SaleUnit]models.EggProduct {
	t.Helper()
	products, err := catalogue.GetProducts(context.Background(), false)
	require.NoError(t, err)

	out := make(map[models.SaleUnit]models.EggProduct)
	for _, product := range products {
		if egg, ok := product.(models.EggProduct); ok {
			out[egg.SaleUnit] = egg
		}
	}
	return out
}

func TestService_PartialEggSaleKeepsRemainingStock(t *testing.T) {
	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
	farm := &memoryFarm{
		head: 50,
		rows: []models.ProductionRow{
			{ID: "r1", BatchID: "b1", Date: now.Add(-4 * time.Hour), Sizes: models.EggSizes{Large: 25}},
			{ID: "r2", BatchID: "b1", Date: now.Add(-1 * time.Hour), Sizes: models.EggSizes{Large: 20}},
		},
	}
	prices := pricing.NewStore(models.PriceConfig{
		LayingUnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("10.00")),
		EggUnitPrice:    decimal.NewNullDecimal(decimal.RequireFromString("0.20")),
		PricePerPound:   decimal.NewNullDecimal(decimal.RequireFromString("1.50")),
		TargetWeightLb:  decimal.NewNullDecimal(decimal.RequireFromString("5")),
		UnitsPerCase:    30,
	})
	catalogue := inventory.NewService(farm, farm, prices, inventory.Options{Now: func() time.Time { return now }}, nil)
	svc := NewService(catalogue, farm, &fakeStore{}, nil)
	ctx := context.Background()

	eggs := eggProductsByUnit(t, catalogue)
	require.Equal(t, 45, eggs[models.SaleUnitUnits].Available)
	require.Equal(t, 1, eggs[models.SaleUnitCases].Available)

	_, err := svc.RecordSale(ctx, models.SaleRequest{ProductID: eggs[models.SaleUnitUnits].ID, Quantity: 1})
	require.NoError(t, err)

	eggs = eggProductsByUnit(t, catalogue)
	assert.Equal(t, 44, eggs[models.SaleUnitUnits].Available, "one egg sold, the rest stays for sale")
	assert.Equal(t, 1, eggs[models.SaleUnitCases].Available)

	_, err = svc.RecordSale(ctx, models.SaleRequest{ProductID: eggs[models.SaleUnitCases].ID, Quantity: 1})
	require.NoError(t, err)

	eggs = eggProductsByUnit(t, catalogue)
	assert.Equal(t, 14, eggs[models.SaleUnitUnits].Available)
	assert.NotContains(t, eggs, models.SaleUnitCases, "fewer eggs than a case remain")
	assert.Equal(t, []string{"r2"}, eggs[models.SaleUnitUnits].ProductionRecordIDs)
}
