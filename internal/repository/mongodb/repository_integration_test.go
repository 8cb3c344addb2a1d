//go:build integration

package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	mongocontainer "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/config"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

func setupRepository(t *testing.T) *MongoDBRepository {
	t.Helper()
	ctx := context.Background()

	container, err := mongocontainer.RunContainer(ctx, testcontainers.WithImage("mongo:7"))
	if err != nil {
		t.Fatalf("start mongo container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	repo, err := NewMongoDBRepository(ctx, config.MongoDBConfig{
		URI:                  uri,
		DBName:               "gallinapp_test",
		LayingCollection:     "laying_batches",
		GrowingCollection:    "growing_batches",
		FatteningCollection:  "fattening_batches",
		ProductionCollection: "egg_production",
		SalesCollection:      "sales",
	}, nil)
	if err != nil {
		t.Fatalf("connect repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(ctx) })

	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestRepository_FetchActiveBatches(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	oid := primitive.NewObjectID()

	_, err := repo.db.Collection("laying_batches").InsertMany(ctx, []interface{}{
		bson.M{"_id": "late", "status": "active", "start_date": time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "head_count": 40},
		bson.M{"_id": oid, "status": "active", "start_date": time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), "head_count": 50},
		bson.M{"_id": "gone", "status": "inactive", "start_date": time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), "head_count": 0},
	})
	require.NoError(t, err)

	batches, err := repo.FetchActiveBatches(ctx, models.CategoryLaying)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, oid.Hex(), batches[0].ID)
	assert.Equal(t, "late", batches[1].ID)

	_, err = repo.FetchActiveBatches(ctx, models.CategoryEggs)
	assert.ErrorIs(t, err, models.ErrUnknownCategory)
}

func TestRepository_SideChannelWrites(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	_, err := repo.db.Collection("growing_batches").InsertOne(ctx,
		bson.M{"_id": "g1", "status": "active", "start_date": time.Now().UTC(), "head_count": 10})
	require.NoError(t, err)

	require.NoError(t, repo.DecrementHeadCount(ctx, models.CategoryGrowing, "g1", 4))
	assert.ErrorIs(t, repo.DecrementHeadCount(ctx, models.CategoryGrowing, "g1", 7), models.ErrInsufficientStock)

	batches, err := repo.FetchActiveBatches(ctx, models.CategoryGrowing)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 6, *batches[0].HeadCount)

	require.NoError(t, repo.CloseBatch(ctx, models.CategoryGrowing, "g1"))
	assert.ErrorIs(t, repo.CloseBatch(ctx, models.CategoryGrowing, "g1"), models.ErrProductNotFound)

	batches, err = repo.FetchActiveBatches(ctx, models.CategoryGrowing)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestRepository_ProductionRowsAndSales(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	_, err := repo.db.Collection("egg_production").InsertMany(ctx, []interface{}{
		bson.M{"_id": "r1", "batch_id": "b1", "date": time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC), "large": 20},
		bson.M{"_id": "r2", "batch_id": "b1", "date": time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC), "large": 25},
		bson.M{"_id": "r3", "batch_id": "b2", "date": time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC), "large": 5},
	})
	require.NoError(t, err)

	rows, err := repo.FetchProductionRows(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "r1", rows[0].ID)

	require.NoError(t, repo.ConsumeProductionUnits(ctx, []string{"r1", "r2"}, 25))
	assert.ErrorIs(t, repo.ConsumeProductionUnits(ctx, []string{"r1", "r2"}, 21), models.ErrInsufficientStock)

	rows, err = repo.FetchProductionRows(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "the oldest row is used up first")
	assert.Equal(t, "r2", rows[0].ID)
	assert.Equal(t, 5, rows[0].ConsumedUnits)
	assert.Equal(t, 20, rows[0].Remaining())

	require.NoError(t, repo.ConsumeProductionUnits(ctx, []string{"r2"}, 20))
	rows, err = repo.FetchProductionRows(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	id, err := repo.SaveSale(ctx, models.SaleRecord{
		Date:        time.Now().UTC(),
		ProductID:   "p1",
		ProductKind: models.KindEgg,
		Category:    models.CategoryLaying,
		BatchID:     "b1",
		Quantity:    20,
		UnitPrice:   decimal.RequireFromString("0.20"),
		Total:       decimal.RequireFromString("4.00"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var stored saleDocument
	oid, err := primitive.ObjectIDFromHex(id)
	require.NoError(t, err)
	require.NoError(t, repo.db.Collection("sales").FindOne(ctx, bson.M{"_id": oid}).Decode(&stored))
	assert.Equal(t, "4.00", stored.Total.String())
}
