package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/inventory"
	"dairyops/internal/infrastructure/http/v1/dto"
)

// InventoryService reads inventory items and their movements.
type InventoryService interface {
	Get(ctx context.Context, itemID id.ID) (*inventory.Item, error)
	List(ctx context.Context) ([]*inventory.Item, error)
	Transactions(ctx context.Context, itemID id.ID, limit int) ([]*inventory.Transaction, error)
}

// InventoryHandler serves /inventory.
type InventoryHandler struct {
	BaseHandler
	svc InventoryService
}

// NewInventoryHandler creates the handler.
func NewInventoryHandler(svc InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// List returns all items.
// GET /inventory
func (h *InventoryHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(items))
}

// Get returns one item.
// GET /inventory/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.Get(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, item)
}

// Transactions returns the latest movements of an item.
// GET /inventory/:id/transactions?limit=50
func (h *InventoryHandler) Transactions(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	txns, err := h.svc.Transactions(c.Request.Context(), itemID, h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(txns))
}
