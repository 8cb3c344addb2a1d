package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// Catalogue resolves products and stales cache slots after a write.
type Catalogue interface {
	GetProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error)
	Invalidate(category models.Category) error
}

// InventoryWriter applies the stock changes a sale implies.
type InventoryWriter interface {
	CloseBatch(ctx context.Context, category models.Category, batchID string) error
	DecrementHeadCount(ctx context.Context, category models.Category, batchID string, quantity int) error
	ConsumeProductionUnits(ctx context.Context, rowIDs []string, units int) error
}

// SaleStore persists sale records.
type SaleStore interface {
	SaveSale(ctx context.Context, sale models.SaleRecord) (string, error)
}

// EventPublisher announces inventory changes to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event models.InventoryEvent) error
}

// LedgerWriter appends a row to the sales spreadsheet.
type LedgerWriter interface {
	AppendRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// Service records sales against the current catalogue.
type Service struct {
	catalogue   Catalogue
	inventory   InventoryWriter
	store       SaleStore
	publisher   EventPublisher
	ledger      LedgerWriter
	ledgerRange string
	recorded    *prometheus.CounterVec
	logger      *zap.Logger
	now         func() time.Time
}

// Option customizes optional collaborators of the Service.
type Option func(*Service)

// WithPublisher publishes an inventory event after every sale.
func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithLedger appends every sale to sheetRange.
func WithLedger(ledger LedgerWriter, sheetRange string) Option {
	return func(s *Service) {
		s.ledger = ledger
		s.ledgerRange = sheetRange
	}
}

// WithMetrics registers the sales counter on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.recorded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sales_recorded_total",
			Help: "Sales recorded, by product kind.",
		}, []string{"kind"})
		reg.MustRegister(s.recorded)
	}
}

// NewService wires the sales flow.
func NewService(catalogue Catalogue, inventory InventoryWriter, store SaleStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		catalogue: catalogue,
		inventory: inventory,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordSale sells req.Quantity of a catalogue product, applies the stock
// change, stores the sale and invalidates the affected cache slots.
func (s *Service) RecordSale(ctx context.Context, req models.SaleRequest) (models.SaleRecord, error) {
	if req.Quantity <= 0 {
		return models.SaleRecord{}, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, req.Quantity)
	}

	product, err := s.findProduct(ctx, req.ProductID)
	if err != nil {
		return models.SaleRecord{}, err
	}

	info := product.Info()
	if req.Quantity > info.Available {
		return models.SaleRecord{}, fmt.Errorf("%w: %d requested, %d available", models.ErrInsufficientStock, req.Quantity, info.Available)
	}

	batchID, invalidate, err := s.applyStockChange(ctx, product, req.Quantity)
	if err != nil {
		return models.SaleRecord{}, err
	}
	s.invalidate(invalidate)

	sale := models.SaleRecord{
		Date:        s.now().UTC(),
		Client:      req.Client,
		ProductID:   info.ID,
		ProductKind: info.Kind,
		Category:    info.Category,
		BatchID:     batchID,
		Quantity:    req.Quantity,
		UnitPrice:   info.UnitPrice,
		Total:       info.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
	}

	id, err := s.store.SaveSale(ctx, sale)
	if err != nil {
		// The stock change is already applied; the sale must still be reconciled.
		s.logger.Error("sale applied but not stored",
			zap.String("product_id", sale.ProductID),
			zap.Int("quantity", sale.Quantity),
			zap.Error(err),
		)
		return models.SaleRecord{}, fmt.Errorf("store sale: %w", err)
	}
	sale.ID = id

	if s.recorded != nil {
		s.recorded.WithLabelValues(string(sale.ProductKind)).Inc()
	}
	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("product_id", sale.ProductID),
		zap.String("kind", string(sale.ProductKind)),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", sale.Total.String()),
	)

	s.publish(ctx, sale)
	s.appendLedger(ctx, info, sale)
	return sale, nil
}

func (s *Service) findProduct(ctx context.Context, productID string) (models.Product, error) {
	products, err := s.catalogue.GetProducts(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("load catalogue: %w", err)
	}
	for _, product := range products {
		if product.Info().ID == productID {
			return product, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, productID)
}

// applyStockChange runs the side-channel write for the product kind and
// returns the source batch and the categories to invalidate.
func (s *Service) applyStockChange(ctx context.Context, product models.Product, quantity int) (string, []models.Category, error) {
	switch p := product.(type) {
	case models.WholeBatchProduct:
		if quantity != 1 {
			return "", nil, fmt.Errorf("%w: a whole batch is sold as a single unit", models.ErrInvalidQuantity)
		}
		if err := s.inventory.CloseBatch(ctx, p.Category, p.BatchID); err != nil {
			return "", nil, fmt.Errorf("close batch: %w", err)
		}
		return p.BatchID, livestockSlots(p.Category), nil
	case models.PerUnitProduct:
		if err := s.inventory.DecrementHeadCount(ctx, p.Category, p.BatchID, quantity); err != nil {
			return "", nil, fmt.Errorf("decrement head count: %w", err)
		}
		return p.BatchID, livestockSlots(p.Category), nil
	case models.EggProduct:
		units, err := eggUnits(p, quantity)
		if err != nil {
			return "", nil, err
		}
		if err := s.inventory.ConsumeProductionUnits(ctx, p.ProductionRecordIDs, units); err != nil {
			return "", nil, fmt.Errorf("consume production units: %w", err)
		}
		return p.BatchID, []models.Category{models.CategoryEggs}, nil
	default:
		return "", nil, fmt.Errorf("%w: %T", models.ErrUnknownProductKind, product)
	}
}

// eggUnits converts a sold quantity into single eggs.
func eggUnits(p models.EggProduct, quantity int) (int, error) {
	if p.SaleUnit != models.SaleUnitCases {
		return quantity, nil
	}
	if p.UnitsPerCase == nil || *p.UnitsPerCase <= 0 {
		return 0, fmt.Errorf("%w: case product %s has no case size", models.ErrInvalidQuantity, p.ID)
	}
	return quantity * *p.UnitsPerCase, nil
}

// livestockSlots lists the slots a livestock sale stales. Laying batches also feed the egg slot.
func livestockSlots(category models.Category) []models.Category {
	if category == models.CategoryLaying {
		return []models.Category{category, models.CategoryEggs}
	}
	return []models.Category{category}
}

func (s *Service) invalidate(categories []models.Category) {
	for _, category := range categories {
		if err := s.catalogue.Invalidate(category); err != nil {
			s.logger.Warn("invalidate after sale failed", zap.String("category", string(category)), zap.Error(err))
		}
	}
}

func (s *Service) publish(ctx context.Context, sale models.SaleRecord) {
	if s.publisher == nil {
		return
	}

	event := models.InventoryEvent{
		EventType: models.EventSaleRecorded,
		Category:  string(sale.Category),
		BatchID:   sale.BatchID,
		ProductID: sale.ProductID,
		Quantity:  sale.Quantity,
		Timestamp: sale.Date,
	}
	if sale.ProductKind == models.KindEgg {
		event.Category = string(models.CategoryEggs)
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish sale event failed", zap.String("sale_id", sale.ID), zap.Error(err))
	}
}

func (s *Service) appendLedger(ctx context.Context, info models.ProductInfo, sale models.SaleRecord) {
	if s.ledger == nil {
		return
	}

	row := []interface{}{
		sale.Date.Format(time.RFC3339),
		sale.Client,
		info.Name,
		string(sale.ProductKind),
		sale.Quantity,
		sale.UnitPrice.String(),
		sale.Total.String(),
	}
	if err := s.ledger.AppendRow(ctx, s.ledgerRange, row); err != nil {
		s.logger.Warn("append sale to ledger failed", zap.String("sale_id", sale.ID), zap.Error(err))
	}
}
