package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
	"github.com/lomonchiapp/gallinapp-user-sub000/internal/service/inventory"
)

// InventoryService is the catalogue surface exposed over HTTP.
type InventoryService interface {
	GetProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error)
	GetLivestockProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error)
	GetEggProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error)
	Invalidate(category models.Category) error
	InvalidateAll()
	CacheState() []inventory.SlotStatus
}

// InventoryHandler serves the product catalogue and cache controls.
type InventoryHandler struct {
	svc    InventoryService
	logger *zap.Logger
}

// NewInventoryHandler constructs the HTTP handler adapter.
func NewInventoryHandler(svc InventoryService, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{svc: svc, logger: logger}
}

type productsResponse struct {
	Count    int              `json:"count"`
	Products []models.Product `json:"products"`
}

// Products returns the full catalogue.
func (h *InventoryHandler) Products(c *gin.Context) {
	h.list(c, "catalogue request failed", h.svc.GetProducts)
}

// Livestock returns the livestock products only.
func (h *InventoryHandler) Livestock(c *gin.Context) {
	h.list(c, "livestock request failed", h.svc.GetLivestockProducts)
}

// Eggs returns the egg products only.
func (h *InventoryHandler) Eggs(c *gin.Context) {
	h.list(c, "egg request failed", h.svc.GetEggProducts)
}

// CacheState reports every cache slot.
func (h *InventoryHandler) CacheState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"slots": h.svc.CacheState()})
}

// Invalidate stales one category slot, or every slot for "all".
func (h *InventoryHandler) Invalidate(c *gin.Context) {
	target := c.Param("category")
	if target == "all" {
		h.svc.InvalidateAll()
		c.JSON(http.StatusOK, gin.H{"invalidated": "all"})
		return
	}

	category, err := models.ParseCategory(target)
	if err == nil {
		err = h.svc.Invalidate(category)
	}
	if err != nil {
		respondError(c, h.logger, "invalidate failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invalidated": category})
}

func (h *InventoryHandler) list(c *gin.Context, failure string, fetch func(context.Context, bool) ([]models.Product, error)) {
	refresh, err := parseRefresh(c.Query("refresh"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh must be a boolean"})
		return
	}

	products, err := fetch(c.Request.Context(), refresh)
	if err != nil {
		respondError(c, h.logger, failure, err)
		return
	}

	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, productsResponse{Count: len(products), Products: products})
}

func parseRefresh(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
