package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/cache"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/service/inventory"
)

type fakeInventory struct {
	productsFn    func(ctx context.Context, forceRefresh bool) ([]models.Product, error)
	invalidated   []models.Category
	invalidateAll int
}

func (f *fakeInventory) GetProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error) {
	return f.productsFn(ctx, forceRefresh)
}

func (f *fakeInventory) GetLivestockProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error) {
	return f.productsFn(ctx, forceRefresh)
}

func (f *fakeInventory) GetEggProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error) {
	return f.productsFn(ctx, forceRefresh)
}

func (f *fakeInventory) Invalidate(category models.Category) error {
	f.invalidated = append(f.invalidated, category)
	return nil
}

func (f *fakeInventory) InvalidateAll() {
	f.invalidateAll++
}

func (f *fakeInventory) CacheState() []inventory.SlotStatus {
	return []inventory.SlotStatus{{SlotState: cache.SlotState{Key: "eggs", Populated: true, Valid: true}, Items: 2}}
}

type fakeSales struct {
	recordFn func(ctx context.Context, req models.SaleRequest) (models.SaleRecord, error)
}

func (f *fakeSales) RecordSale(ctx context.Context, req models.SaleRequest) (models.SaleRecord, error) {
	return f.recordFn(ctx, req)
}

func setupRouter(inv *fakeInventory, sales *fakeSales) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	ih := NewInventoryHandler(inv, nil)
	r.GET("/inventory/products", ih.Products)
	r.GET("/inventory/products/eggs", ih.Eggs)
	r.GET("/inventory/cache", ih.CacheState)
	r.POST("/inventory/invalidate/:category", ih.Invalidate)

	sh := NewSalesHandler(sales, nil)
	r.POST("/sales", sh.Create)
	return r
}

func perform(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInventoryHandler_Products(t *testing.T) {
	var forced []bool
	inv := &fakeInventory{productsFn: func(_ context.Context, forceRefresh bool) ([]models.Product, error) {
		forced = append(forced, forceRefresh)
		return []models.Product{
			models.PerUnitProduct{
				ProductInfo:  models.ProductInfo{ID: "p1", Kind: models.KindPerUnit, Category: models.CategoryLaying, UnitPrice: decimal.RequireFromString("10"), Available: 50},
				BatchDetails: models.BatchDetails{BatchID: "b1", HeadCount: 50},
			},
		}, nil
	}}
	r := setupRouter(inv, &fakeSales{})

	w := perform(r, http.MethodGet, "/inventory/products?refresh=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []bool{true}, forced)

	var body struct {
		Count    int              `json:"count"`
		Products []map[string]any `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "per_unit", body.Products[0]["productKind"])
	assert.Equal(t, "b1", body.Products[0]["batchId"])
	assert.Equal(t, "10", body.Products[0]["unitPrice"])

	w = perform(r, http.MethodGet, "/inventory/products?refresh=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventoryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{err: fmt.Errorf("fetch laying: %w", models.ErrSourceUnavailable), wantStatus: http.StatusServiceUnavailable},
		{err: fmt.Errorf("%w: price_per_pound", models.ErrConfigurationMissing), wantStatus: http.StatusInternalServerError},
		{err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			inv := &fakeInventory{productsFn: func(context.Context, bool) ([]models.Product, error) {
				return nil, tt.err
			}}
			w := perform(setupRouter(inv, &fakeSales{}), http.MethodGet, "/inventory/products/eggs", "")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestInventoryHandler_EmptyCatalogueIsEmptyArray(t *testing.T) {
	inv := &fakeInventory{productsFn: func(context.Context, bool) ([]models.Product, error) {
		return nil, nil
	}}

	w := perform(setupRouter(inv, &fakeSales{}), http.MethodGet, "/inventory/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"products":[]}`, w.Body.String())
}

func TestInventoryHandler_Invalidate(t *testing.T) {
	inv := &fakeInventory{}
	r := setupRouter(inv, &fakeSales{})

	w := perform(r, http.MethodPost, "/inventory/invalidate/Laying", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.Category{models.CategoryLaying}, inv.invalidated)

	w = perform(r, http.MethodPost, "/inventory/invalidate/all", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, inv.invalidateAll)

	w = perform(r, http.MethodPost, "/inventory/invalidate/ducks", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventoryHandler_CacheState(t *testing.T) {
	w := perform(setupRouter(&fakeInventory{}, &fakeSales{}), http.MethodGet, "/inventory/cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":2`)
	assert.Contains(t, w.Body.String(), `"key":"eggs"`)
}

func TestSalesHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "recorded", body: `{"product_id":"p1","quantity":2}`, wantStatus: http.StatusCreated},
		{name: "malformed body", body: `{"product_id":`, wantStatus: http.StatusBadRequest},
		{name: "missing quantity", body: `{"product_id":"p1"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown product", body: `{"product_id":"p9","quantity":1}`, err: models.ErrProductNotFound, wantStatus: http.StatusNotFound},
		{name: "over selling", body: `{"product_id":"p1","quantity":99}`, err: models.ErrInsufficientStock, wantStatus: http.StatusConflict},
		{name: "negative quantity", body: `{"product_id":"p1","quantity":-1}`, err: models.ErrInvalidQuantity, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sales := &fakeSales{recordFn: func(_ context.Context, req models.SaleRequest) (models.SaleRecord, error) {
				if tt.err != nil {
					return models.SaleRecord{}, tt.err
				}
				return models.SaleRecord{ID: "s1", ProductID: req.ProductID, Quantity: req.Quantity}, nil
			}}

			w := perform(setupRouter(&fakeInventory{}, sales), http.MethodPost, "/sales", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
