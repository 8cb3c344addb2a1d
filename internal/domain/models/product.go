package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductKind discriminates the Product variants.
type ProductKind string

const (
	KindWholeBatch ProductKind = "whole_batch"
	KindPerUnit    ProductKind = "per_unit"
	KindEgg        ProductKind = "egg"
)

// SaleUnit is the unit an egg product is sold in.
type SaleUnit string

const (
	SaleUnitUnits SaleUnit = "units"
	SaleUnitCases SaleUnit = "cases"
)

// EggQualityFresh is the quality every generated egg product carries.
const EggQualityFresh = "fresh"

// Product is a sellable catalogue entry. It is implemented only by
// WholeBatchProduct, PerUnitProduct and EggProduct.
type Product interface {
	Info() ProductInfo
	isProduct()
}

// ProductInfo holds the fields shared by every product variant.
type ProductInfo struct {
	ID          string          `json:"id"`
	Kind        ProductKind     `json:"productKind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	UnitLabel   string          `json:"unitLabel"`
	Available   int             `json:"available"`
}

// BatchDetails describes the batch a livestock product was generated from.
type BatchDetails struct {
	BatchID         string    `json:"batchId"`
	AgeDays         int       `json:"ageDays"`
	HeadCount       int       `json:"headCount"`
	Breed           string    `json:"breed"`
	StartDate       time.Time `json:"startDate"`
	AverageWeightLb *float64  `json:"averageWeightLb,omitempty"`
}

// WholeBatchProduct sells an entire batch as a single unit.
type WholeBatchProduct struct {
	ProductInfo
	BatchDetails
}

// PerUnitProduct sells individual birds out of a batch.
type PerUnitProduct struct {
	ProductInfo
	BatchDetails
}

// EggProduct sells one day's egg production of a laying batch.
type EggProduct struct {
	ProductInfo
	Size                string      `json:"size"`
	Quality             string      `json:"quality"`
	CollectionDate      CalendarDay `json:"collectionDate"`
	BatchID             string      `json:"batchId"`
	SaleUnit            SaleUnit    `json:"saleUnit"`
	UnitsPerCase        *int        `json:"unitsPerCase,omitempty"`
	ProductionRecordIDs []string    `json:"productionRecordIds"`
}

func (p WholeBatchProduct) Info() ProductInfo { return p.ProductInfo }
func (p PerUnitProduct) Info() ProductInfo    { return p.ProductInfo }
func (p EggProduct) Info() ProductInfo        { return p.ProductInfo }

func (WholeBatchProduct) isProduct() {}
func (PerUnitProduct) isProduct()    {}
func (EggProduct) isProduct()        {}
