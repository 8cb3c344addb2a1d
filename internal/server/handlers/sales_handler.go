package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/domain/models"
)

// SalesService records sales.
type SalesService interface {
	RecordSale(ctx context.Context, req models.SaleRequest) (models.SaleRecord, error)
}

// SalesHandler exposes the sale flow over HTTP.
type SalesHandler struct {
	svc    SalesService
	logger *zap.Logger
}

// NewSalesHandler constructs the HTTP handler adapter.
func NewSalesHandler(svc SalesService, logger *zap.Logger) *SalesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalesHandler{svc: svc, logger: logger}
}

// Create records one sale.
func (h *SalesHandler) Create(c *gin.Context) {
	var req models.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid sale payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sale, err := h.svc.RecordSale(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "sale failed", err)
		return
	}

	c.JSON(http.StatusCreated, sale)
}
