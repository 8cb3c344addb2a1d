package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleRequest asks to sell a quantity of one catalogue product.
type SaleRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
	Client    string `json:"client"`
}

// SaleRecord captures a completed sale.
type SaleRecord struct {
	ID          string          `json:"id,omitempty"`
	Date        time.Time       `json:"date"`
	Client      string          `json:"client"`
	ProductID   string          `json:"product_id"`
	ProductKind ProductKind     `json:"product_kind"`
	Category    Category        `json:"category"`
	BatchID     string          `json:"batch_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// Inventory event types carried on the inventory queue.
const (
	EventSaleRecorded     = "sale_recorded"
	EventBatchChanged     = "batch_changed"
	EventProductionLogged = "production_logged"
)

// InventoryEvent announces a change to one inventory category. An empty
// category or "all" targets every cache slot.
type InventoryEvent struct {
	EventType string    `json:"event_type"`
	Category  string    `json:"category"`
	BatchID   string    `json:"batch_id,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
