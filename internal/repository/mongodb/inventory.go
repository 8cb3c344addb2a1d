package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

type batchDocument struct {
	ID              interface{} `bson:"_id"`
	Name            string      `bson:"name"`
	Breed           string      `bson:"breed"`
	Status          string      `bson:"status"`
	StartDate       time.Time   `bson:"start_date"`
	HeadCount       *int        `bson:"head_count"`
	AverageWeightLb *float64    `bson:"average_weight_lb"`
}

func (d batchDocument) toModel(category models.Category) models.Batch {
	return models.Batch{
		ID:              idString(d.ID),
		Category:        category,
		Name:            d.Name,
		Breed:           d.Breed,
		Status:          models.BatchStatus(d.Status),
		StartDate:       d.StartDate,
		HeadCount:       d.HeadCount,
		AverageWeightLb: d.AverageWeightLb,
	}
}

type productionDocument struct {
	ID            interface{} `bson:"_id"`
	BatchID       string      `bson:"batch_id"`
	Date          time.Time   `bson:"date"`
	Small         int         `bson:"small"`
	Medium        int         `bson:"medium"`
	Large         int         `bson:"large"`
	ExtraLarge    int         `bson:"extra_large"`
	ConsumedUnits int         `bson:"consumed_units"`
	Consumed      bool        `bson:"consumed"`
}

func (d productionDocument) toModel() models.ProductionRow {
	return models.ProductionRow{
		ID:      idString(d.ID),
		BatchID: d.BatchID,
		Date:    d.Date,
		Sizes: models.EggSizes{
			Small:      d.Small,
			Medium:     d.Medium,
			Large:      d.Large,
			ExtraLarge: d.ExtraLarge,
		},
		ConsumedUnits: d.ConsumedUnits,
		Consumed:      d.Consumed,
	}
}

// consumption is the share of one production row taken by an egg sale.
type consumption struct {
	id       interface{}
	seen     int
	take     int
	exhausts bool
}

// planConsumption takes units from docs in order, oldest first, and returns
// the steps plus the units no row could cover.
func planConsumption(docs []productionDocument, units int) ([]consumption, int) {
	var steps []consumption
	for _, doc := range docs {
		if units == 0 {
			break
		}
		remaining := doc.toModel().Remaining()
		if remaining == 0 {
			continue
		}
		take := min(remaining, units)
		steps = append(steps, consumption{id: doc.ID, seen: doc.ConsumedUnits, take: take, exhausts: take == remaining})
		units -= take
	}
	return steps, units
}

// FetchActiveBatches returns the active batches of a livestock category ordered by start date.
func (r *MongoDBRepository) FetchActiveBatches(ctx context.Context, category models.Category) ([]models.Batch, error) {
	collection, err := r.batchCollection(category)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{"status": string(models.BatchActive)}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s batches: %w", models.ErrSourceUnavailable, category, err)
	}

	var docs []batchDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode %s batches: %w", models.ErrSourceUnavailable, category, err)
	}

	batches := make([]models.Batch, 0, len(docs))
	for _, doc := range docs {
		batches = append(batches, doc.toModel(category))
	}

	r.logger.Debug("active batches fetched", zap.String("category", string(category)), zap.Int("count", len(batches)))
	return batches, nil
}

// FetchProductionRows returns the unconsumed production rows of a batch ordered by date.
func (r *MongoDBRepository) FetchProductionRows(ctx context.Context, batchID string) ([]models.ProductionRow, error) {
	filter := bson.M{"batch_id": batchID, "consumed": bson.M{"$ne": true}}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.db.Collection(r.production).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find production of batch %s: %w", models.ErrSourceUnavailable, batchID, err)
	}

	var docs []productionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode production of batch %s: %w", models.ErrSourceUnavailable, batchID, err)
	}

	rows := make([]models.ProductionRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, doc.toModel())
	}
	return rows, nil
}

// CloseBatch marks an active batch inactive once it has been sold whole.
func (r *MongoDBRepository) CloseBatch(ctx context.Context, category models.Category, batchID string) error {
	collection, err := r.batchCollection(category)
	if err != nil {
		return err
	}

	filter := idFilter(batchID)
	filter["status"] = string(models.BatchActive)
	update := bson.M{"$set": bson.M{"status": string(models.BatchInactive), "closed_at": time.Now().UTC()}}

	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%w: close batch %s: %w", models.ErrSourceUnavailable, batchID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: no active %s batch %s", models.ErrProductNotFound, category, batchID)
	}

	r.logger.Info("batch closed", zap.String("category", string(category)), zap.String("batch_id", batchID))
	return nil
}

// DecrementHeadCount removes quantity birds from a batch. The update only
// applies while the batch still holds at least quantity birds.
func (r *MongoDBRepository) DecrementHeadCount(ctx context.Context, category models.Category, batchID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: %d", models.ErrInvalidQuantity, quantity)
	}

	collection, err := r.batchCollection(category)
	if err != nil {
		return err
	}

	filter := idFilter(batchID)
	filter["status"] = string(models.BatchActive)
	filter["head_count"] = bson.M{"$gte": quantity}
	update := bson.M{"$inc": bson.M{"head_count": -quantity}}

	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%w: decrement batch %s: %w", models.ErrSourceUnavailable, batchID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s batch %s has fewer than %d birds", models.ErrInsufficientStock, category, batchID, quantity)
	}

	r.logger.Info("head count decremented",
		zap.String("category", string(category)),
		zap.String("batch_id", batchID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// ConsumeProductionUnits sells units eggs out of the given production rows,
// oldest first. Each row keeps its unsold remainder; a row is flagged consumed
// once nothing is left. Every row update is conditioned on the consumed count
// read beforehand, and a lost race undoes the rows already updated.
func (r *MongoDBRepository) ConsumeProductionUnits(ctx context.Context, rowIDs []string, units int) error {
	if units <= 0 {
		return fmt.Errorf("%w: %d", models.ErrInvalidQuantity, units)
	}
	if len(rowIDs) == 0 {
		return fmt.Errorf("%w: no production rows to consume", models.ErrInsufficientStock)
	}

	collection := r.db.Collection(r.production)
	filter := bson.M{"_id": bson.M{"$in": idValues(rowIDs)}, "consumed": bson.M{"$ne": true}}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("%w: find production rows: %w", models.ErrSourceUnavailable, err)
	}
	var docs []productionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("%w: decode production rows: %w", models.ErrSourceUnavailable, err)
	}

	steps, left := planConsumption(docs, units)
	if left > 0 {
		return fmt.Errorf("%w: %d eggs short", models.ErrInsufficientStock, left)
	}

	now := time.Now().UTC()
	for i, step := range steps {
		seen := interface{}(step.seen)
		if step.seen == 0 {
			seen = bson.M{"$in": bson.A{0, nil}}
		}
		stepFilter := bson.M{"_id": step.id, "consumed": bson.M{"$ne": true}, "consumed_units": seen}
		update := bson.M{"$inc": bson.M{"consumed_units": step.take}}
		if step.exhausts {
			update["$set"] = bson.M{"consumed": true, "consumed_at": now}
		}

		res, err := collection.UpdateOne(ctx, stepFilter, update)
		if err != nil {
			r.undoConsumption(ctx, steps[:i])
			return fmt.Errorf("%w: consume production row %s: %w", models.ErrSourceUnavailable, idString(step.id), err)
		}
		if res.MatchedCount == 0 {
			r.undoConsumption(ctx, steps[:i])
			return fmt.Errorf("%w: production row %s changed during the sale", models.ErrInsufficientStock, idString(step.id))
		}
	}

	r.logger.Info("production units consumed", zap.Int("units", units), zap.Int("rows", len(steps)))
	return nil
}

// undoConsumption reverts applied steps after a failed sale. Failures are
// logged and leave the row short of the eggs that were not sold.
func (r *MongoDBRepository) undoConsumption(ctx context.Context, applied []consumption) {
	ctx = context.WithoutCancel(ctx)
	collection := r.db.Collection(r.production)
	for _, step := range applied {
		update := bson.M{"$inc": bson.M{"consumed_units": -step.take}}
		if step.exhausts {
			update["$set"] = bson.M{"consumed": false}
			update["$unset"] = bson.M{"consumed_at": ""}
		}
		if _, err := collection.UpdateOne(ctx, bson.M{"_id": step.id}, update); err != nil {
			r.logger.Error("failed to undo production consumption", zap.String("row_id", idString(step.id)), zap.Int("units", step.take), zap.Error(err))
		}
	}
}
