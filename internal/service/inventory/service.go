// Package inventory builds the product catalogue from batches and production
// and caches it per category.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/cache"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/service/pricing"
)

// SlotCombined is the union slot holding the full catalogue.
const SlotCombined cache.Key = "combined"

// forcedSuffix separates forced combined fetches from regular ones in flight.
const forcedSuffix = ":force"

const (
	defaultLivestockTTL   = 10 * time.Minute
	defaultEggsTTL        = 2 * time.Minute
	defaultPreloadTimeout = 30 * time.Second
	defaultConcurrency    = 4
)

// catalogueOrder is the order categories are concatenated in the combined slot.
var catalogueOrder = []models.Category{
	models.CategoryLaying,
	models.CategoryGrowing,
	models.CategoryFattening,
	models.CategoryEggs,
}

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	LivestockTTL     time.Duration
	EggsTTL          time.Duration
	PreloadTimeout   time.Duration
	FetchConcurrency int
	Now              func() time.Time
	Metrics          *Metrics
}

// SlotStatus is the diagnostic view of one cache slot.
type SlotStatus struct {
	cache.SlotState
	Items int `json:"items"`
}

// Service is the single entry point to the product catalogue. It owns the
// slot cache and recomputes slots from the source readers on a miss.
type Service struct {
	batches    BatchReader
	production ProductionReader
	prices     PriceProvider

	cache    *cache.Tiered[[]models.Product]
	synth    *Synthesizer
	inflight singleflight.Group

	preloadTimeout time.Duration
	concurrency    int
	metrics        *Metrics
	logger         *zap.Logger
}

// NewService wires the orchestrator over its readers and price provider.
func NewService(batches BatchReader, production ProductionReader, prices PriceProvider, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LivestockTTL <= 0 {
		opts.LivestockTTL = defaultLivestockTTL
	}
	if opts.EggsTTL <= 0 {
		opts.EggsTTL = defaultEggsTTL
	}
	if opts.PreloadTimeout <= 0 {
		opts.PreloadTimeout = defaultPreloadTimeout
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = defaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ttls := map[cache.Key]time.Duration{
		slotOf(models.CategoryLaying):    opts.LivestockTTL,
		slotOf(models.CategoryGrowing):   opts.LivestockTTL,
		slotOf(models.CategoryFattening): opts.LivestockTTL,
		slotOf(models.CategoryEggs):      opts.EggsTTL,
		SlotCombined:                     opts.LivestockTTL,
	}

	return &Service{
		batches:        batches,
		production:     production,
		prices:         prices,
		cache:          cache.NewTiered[[]models.Product](ttls, SlotCombined, opts.Now, logger.Named("cache")),
		synth:          NewSynthesizer(opts.Now, opts.Metrics, logger),
		preloadTimeout: opts.PreloadTimeout,
		concurrency:    opts.FetchConcurrency,
		metrics:        opts.Metrics,
		logger:         logger,
	}
}

// GetProducts returns the full catalogue. Unless forceRefresh is set a fresh
// combined slot is served; otherwise every category is fetched concurrently
// and any failure fails the whole call without touching the combined slot.
func (s *Service) GetProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error) {
	if !forceRefresh {
		if products, ok := s.lookup(SlotCombined); ok {
			return products, nil
		}
	}

	key := string(SlotCombined)
	if forceRefresh {
		key += forcedSuffix
	}

	products, err := s.share(ctx, key, func(ctx context.Context) ([]models.Product, error) {
		gen := s.cache.Generation(SlotCombined)
		started := time.Now()
		products, err := s.fetchCategories(ctx, catalogueOrder, forceRefresh)
		s.metrics.fetched(SlotCombined, started, err)
		if err != nil {
			return nil, err
		}
		s.store(SlotCombined, products, gen)
		return products, nil
	})
	if err != nil {
		s.logger.Error("catalogue fetch failed", zap.Bool("force", forceRefresh), zap.Error(err))
		return nil, err
	}
	return slices.Clone(products), nil
}

// GetLivestockProducts returns the three livestock categories. The cached
// slots are served only when all three are fresh; otherwise all three are
// refetched concurrently.
func (s *Service) GetLivestockProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error) {
	if !forceRefresh {
		var products []models.Product
		hits := 0
		for _, category := range models.LivestockCategories {
			cached, ok := s.lookup(slotOf(category))
			if !ok {
				break
			}
			products = append(products, cached...)
			hits++
		}
		if hits == len(models.LivestockCategories) {
			return products, nil
		}
	}

	products, err := s.fetchCategories(ctx, models.LivestockCategories, true)
	if err != nil {
		s.logger.Error("livestock fetch failed", zap.Error(err))
		return nil, err
	}
	return products, nil
}

// GetEggProducts returns the egg catalogue under the short TTL.
func (s *Service) GetEggProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error) {
	products, err := s.category(ctx, models.CategoryEggs, forceRefresh)
	if err != nil {
		s.logger.Error("egg fetch failed", zap.Error(err))
		return nil, err
	}
	return slices.Clone(products), nil
}

// Invalidate stales one category slot and the combined slot.
func (s *Service) Invalidate(category models.Category) error {
	switch category {
	case models.CategoryLaying, models.CategoryGrowing, models.CategoryFattening, models.CategoryEggs:
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownCategory, category)
	}

	flipped := s.cache.Invalidate(slotOf(category))
	s.forget(slotOf(category))
	s.metrics.invalidated(flipped)
	s.logger.Info("cache invalidated", zap.String("category", string(category)), zap.Int("slots", len(flipped)))
	return nil
}

// InvalidateAll stales every slot. Cached data is kept but not served.
func (s *Service) InvalidateAll() {
	flipped := s.cache.Invalidate(cache.All)
	s.forget(cache.All)
	s.metrics.invalidated(flipped)
	s.logger.Info("cache invalidated", zap.String("category", string(cache.All)), zap.Int("slots", len(flipped)))
}

// Preload warms the laying and egg slots in the background. It never fails;
// errors are logged and dropped.
func (s *Service) Preload(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.preloadTimeout)

	var group errgroup.Group
	for _, category := range []models.Category{models.CategoryLaying, models.CategoryEggs} {
		category := category
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("preload panicked", zap.String("category", string(category)), zap.Any("panic", r))
				}
			}()
			if _, err := s.category(ctx, category, false); err != nil {
				s.logger.Warn("preload failed", zap.String("category", string(category)), zap.Error(err))
			}
			return nil
		})
	}

	go func() {
		defer cancel()
		_ = group.Wait()
		s.logger.Debug("preload finished")
	}()
}

// CacheState reports the state of every slot.
func (s *Service) CacheState() []SlotStatus {
	states := s.cache.Snapshot()
	out := make([]SlotStatus, 0, len(states))
	for _, state := range states {
		status := SlotStatus{SlotState: state}
		if slot, ok := s.cache.Get(state.Key); ok {
			status.Items = len(slot.Data)
		}
		out = append(out, status)
	}
	return out
}

// fetchCategories resolves categories concurrently and concatenates them in order.
func (s *Service) fetchCategories(ctx context.Context, categories []models.Category, forceRefresh bool) ([]models.Product, error) {
	results := make([][]models.Product, len(categories))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, category := range categories {
		i, category := i, category
		group.Go(func() error {
			products, err := s.category(groupCtx, category, forceRefresh)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", category, err)
			}
			results[i] = products
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var products []models.Product
	for _, part := range results {
		products = append(products, part...)
	}
	return products, nil
}

// category serves one category slot, recomputing it on a miss or when forced.
func (s *Service) category(ctx context.Context, category models.Category, forceRefresh bool) ([]models.Product, error) {
	slot := slotOf(category)
	if !forceRefresh {
		if products, ok := s.lookup(slot); ok {
			return products, nil
		}
	}

	return s.share(ctx, string(slot), func(ctx context.Context) ([]models.Product, error) {
		gen := s.cache.Generation(slot)
		started := time.Now()
		products, err := s.load(ctx, category)
		s.metrics.fetched(slot, started, err)
		if err != nil {
			return nil, err
		}
		s.store(slot, products, gen)
		return products, nil
	})
}

// store writes a recomputed slot unless it was invalidated while the fetch ran.
// The caller still receives the products it fetched.
func (s *Service) store(slot cache.Key, products []models.Product, gen uint64) {
	if !s.cache.PutIfCurrent(slot, products, gen) {
		s.logger.Debug("discarded result invalidated during fetch", zap.String("slot", string(slot)))
		return
	}
	s.logger.Debug("slot recomputed", zap.String("slot", string(slot)), zap.Int("products", len(products)))
}

// forget detaches in-flight fetches of the invalidated slots so later callers
// start a new read instead of joining one that began before the change.
func (s *Service) forget(key cache.Key) {
	for _, target := range s.cache.Targets(key) {
		s.inflight.Forget(string(target))
		if target == SlotCombined {
			s.inflight.Forget(string(SlotCombined) + forcedSuffix)
		}
	}
}

func (s *Service) load(ctx context.Context, category models.Category) ([]models.Product, error) {
	cfg, err := s.prices.PriceConfig()
	if err != nil {
		return nil, err
	}
	calc := pricing.NewCalculator(cfg)
	if err := calc.Check(category); err != nil {
		return nil, err
	}

	if category == models.CategoryEggs {
		return s.loadEggs(ctx, calc)
	}

	batches, err := s.batches.FetchActiveBatches(ctx, category)
	if err != nil {
		return nil, sourceError(err)
	}
	return s.synth.Livestock(category, batches, calc)
}

func (s *Service) loadEggs(ctx context.Context, calc *pricing.Calculator) ([]models.Product, error) {
	prices, err := calc.EggPrices()
	if err != nil {
		return nil, err
	}

	batches, err := s.batches.FetchActiveBatches(ctx, models.CategoryLaying)
	if err != nil {
		return nil, sourceError(err)
	}

	layers := make([]models.Batch, 0, len(batches))
	for _, batch := range batches {
		if batch.ID != "" && batch.Sellable() {
			layers = append(layers, batch)
		}
	}

	rows := make([][]models.ProductionRow, len(layers))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, batch := range layers {
		i, batch := i, batch
		group.Go(func() error {
			batchRows, err := s.production.FetchProductionRows(groupCtx, batch.ID)
			if err != nil {
				return fmt.Errorf("production rows of batch %s: %w", batch.ID, sourceError(err))
			}
			rows[i] = batchRows
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var products []models.Product
	for i, batch := range layers {
		products = append(products, s.synth.Eggs(batch, rows[i], prices)...)
	}
	return products, nil
}

// lookup serves a fresh slot and records the hit or miss.
func (s *Service) lookup(slot cache.Key) ([]models.Product, bool) {
	products, ok := s.cache.Fresh(slot)
	s.metrics.cacheResult(slot, ok)
	if ok {
		s.logger.Debug("cache hit", zap.String("slot", string(slot)), zap.Int("products", len(products)))
		return slices.Clone(products), true
	}
	return nil, false
}

// share runs fn once per key for all concurrent callers. The shared call is
// detached from any single caller's cancellation; each caller still stops
// waiting when its own context ends.
func (s *Service) share(ctx context.Context, key string, fn func(context.Context) ([]models.Product, error)) ([]models.Product, error) {
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("joined in-flight fetch", zap.String("key", key))
		}
		return res.Val.([]models.Product), nil
	}
}

func slotOf(category models.Category) cache.Key {
	return cache.Key(category)
}

// sourceError classifies an unclassified reader failure as ErrSourceUnavailable.
func sourceError(err error) error {
	if errors.Is(err, models.ErrSourceUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrSourceUnavailable, err)
}
