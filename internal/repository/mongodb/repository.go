package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/config"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// MongoDBRepository reads batches and production rows and applies the
// inventory side-channel writes after a sale.
type MongoDBRepository struct {
	client     *mongo.Client
	db         *mongo.Database
	batches    map[models.Category]string
	production string
	sales      string
	logger     *zap.Logger
}

// NewMongoDBRepository connects to MongoDB and verifies the connection.
func NewMongoDBRepository(ctx context.Context, cfg config.MongoDBConfig, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(cfg.DBName),
		batches: map[models.Category]string{
			models.CategoryLaying:    cfg.LayingCollection,
			models.CategoryGrowing:   cfg.GrowingCollection,
			models.CategoryFattening: cfg.FatteningCollection,
		},
		production: cfg.ProductionCollection,
		sales:      cfg.SalesCollection,
		logger:     logger,
	}, nil
}

// EnsureIndexes creates the indexes backing the reader queries.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	for category, name := range r.batches {
		_, err := r.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("create %s batch index: %w", category, err)
		}
	}

	_, err := r.db.Collection(r.production).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "batch_id", Value: 1}, {Key: "date", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create production index: %w", err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (r *MongoDBRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) batchCollection(category models.Category) (*mongo.Collection, error) {
	name, ok := r.batches[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no batch collection", models.ErrUnknownCategory, category)
	}
	return r.db.Collection(name), nil
}

// idString renders a document id as the string used throughout the domain.
func idString(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// idFilter matches a domain id against both ObjectID and string _id values.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func idValues(ids []string) bson.A {
	values := make(bson.A, 0, 2*len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			values = append(values, oid)
		}
		values = append(values, id)
	}
	return values
}
