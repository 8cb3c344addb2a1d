package inventory

import (
	"context"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// BatchReader fetches the active batches of one livestock category.
type BatchReader interface {
	FetchActiveBatches(ctx context.Context, category models.Category) ([]models.Batch, error)
}

// ProductionReader fetches the unconsumed production rows of one laying batch.
type ProductionReader interface {
	FetchProductionRows(ctx context.Context, batchID string) ([]models.ProductionRow, error)
}

// PriceProvider returns the currently loaded price configuration.
type PriceProvider interface {
	PriceConfig() (models.PriceConfig, error)
}
