package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

type saleDocument struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Date        time.Time            `bson:"date"`
	Client      string               `bson:"client,omitempty"`
	ProductID   string               `bson:"product_id"`
	ProductKind string               `bson:"product_kind"`
	Category    string               `bson:"category"`
	BatchID     string               `bson:"batch_id"`
	Quantity    int                  `bson:"quantity"`
	UnitPrice   primitive.Decimal128 `bson:"unit_price"`
	Total       primitive.Decimal128 `bson:"total"`
}

// SaveSale stores a sale record and returns its id.
func (r *MongoDBRepository) SaveSale(ctx context.Context, sale models.SaleRecord) (string, error) {
	unitPrice, err := toDecimal128(sale.UnitPrice)
	if err != nil {
		return "", fmt.Errorf("encode unit price: %w", err)
	}
	total, err := toDecimal128(sale.Total)
	if err != nil {
		return "", fmt.Errorf("encode total: %w", err)
	}

	doc := saleDocument{
		Date:        sale.Date,
		Client:      sale.Client,
		ProductID:   sale.ProductID,
		ProductKind: string(sale.ProductKind),
		Category:    string(sale.Category),
		BatchID:     sale.BatchID,
		Quantity:    sale.Quantity,
		UnitPrice:   unitPrice,
		Total:       total,
	}

	res, err := r.db.Collection(r.sales).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert sale: %w", err)
	}
	return idString(res.InsertedID), nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}
