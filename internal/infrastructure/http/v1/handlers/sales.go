package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/sales"
	"dairyops/internal/infrastructure/http/v1/dto"
)

// SalesService records and refunds counter sales.
type SalesService interface {
	Record(ctx context.Context, in sales.RecordInput) (*sales.Sale, error)
	Refund(ctx context.Context, saleID id.ID) (*sales.Sale, error)
	Get(ctx context.Context, saleID id.ID) (*sales.Sale, error)
	List(ctx context.Context, limit int) ([]*sales.Sale, error)
}

// SalesHandler serves /sales.
type SalesHandler struct {
	BaseHandler
	svc SalesService
}

// NewSalesHandler creates the handler.
func NewSalesHandler(svc SalesService) *SalesHandler {
	return &SalesHandler{svc: svc}
}

// Record stores a sale.
// POST /sales
func (h *SalesHandler) Record(c *gin.Context) {
	var req dto.RecordSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	sale, err := h.svc.Record(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// List returns recent sales.
// GET /sales?limit=50
func (h *SalesHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(items))
}

// Get returns one sale with its lines.
// GET /sales/:id
func (h *SalesHandler) Get(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.svc.Get(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, sale)
}

// Refund returns a sale's stock.
// POST /sales/:id/refund
func (h *SalesHandler) Refund(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.svc.Refund(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, sale)
}
