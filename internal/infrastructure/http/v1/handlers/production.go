package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/production"
	"dairyops/internal/infrastructure/http/v1/dto"
)

// ProductionService records production runs.
type ProductionService interface {
	Create(ctx context.Context, in production.CreateInput) (*production.Batch, []production.Deduction, error)
	Get(ctx context.Context, batchID id.ID) (*production.Batch, error)
}

// ProductionHandler serves /production-batches.
type ProductionHandler struct {
	BaseHandler
	svc ProductionService
}

// NewProductionHandler creates the handler.
func NewProductionHandler(svc ProductionService) *ProductionHandler {
	return &ProductionHandler{svc: svc}
}

// Create records a run and draws its milk.
// POST /production-batches
func (h *ProductionHandler) Create(c *gin.Context) {
	var req dto.CreateProductionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, deductions, err := h.svc.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if deductions == nil {
		deductions = []production.Deduction{}
	}
	h.Created(c, dto.ProductionResponse{Batch: b, Deductions: deductions})
}

// Get returns one run.
// GET /production-batches/:id
func (h *ProductionHandler) Get(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	b, err := h.svc.Get(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, b)
}
