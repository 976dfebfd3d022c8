package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/storage"
	"dairyops/internal/infrastructure/http/v1/dto"
)

// StorageService manages cold storage lots.
type StorageService interface {
	Locations(ctx context.Context) ([]*storage.Location, error)
	Lots(ctx context.Context) ([]*storage.Lot, error)
	DeleteLot(ctx context.Context, lotID id.ID) error
	MoveToExpired(ctx context.Context, lotID id.ID) (*storage.ExpiredRecord, error)
	Reconcile(ctx context.Context, apply bool) (*storage.Report, error)
	SyncInventoryFromStorage(ctx context.Context, apply bool) (*storage.SyncPlan, error)
}

// StorageHandler serves /storage.
type StorageHandler struct {
	BaseHandler
	svc StorageService
}

// NewStorageHandler creates the handler.
func NewStorageHandler(svc StorageService) *StorageHandler {
	return &StorageHandler{svc: svc}
}

// Locations lists storage locations.
// GET /storage/locations
func (h *StorageHandler) Locations(c *gin.Context) {
	items, err := h.svc.Locations(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(items))
}

// Lots lists cold storage lots.
// GET /storage/lots
func (h *StorageHandler) Lots(c *gin.Context) {
	items, err := h.svc.Lots(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(items))
}

// DeleteLot removes a lot and resyncs its SKU.
// DELETE /storage/lots/:id
func (h *StorageHandler) DeleteLot(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteLot(c.Request.Context(), lotID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ExpireLot moves an expired lot out of storage.
// POST /storage/lots/:id/expire
func (h *StorageHandler) ExpireLot(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.MoveToExpired(c.Request.Context(), lotID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rec)
}

// Reconcile compares inventory with storage; ?apply=true removes empty lots.
// POST /storage/reconcile
func (h *StorageHandler) Reconcile(c *gin.Context) {
	report, err := h.svc.Reconcile(c.Request.Context(), h.ParseBoolQuery(c, "apply"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, report)
}

// Sync aligns inventory items with storage totals; ?apply=true writes them.
// POST /storage/sync
func (h *StorageHandler) Sync(c *gin.Context) {
	plan, err := h.svc.SyncInventoryFromStorage(c.Request.Context(), h.ParseBoolQuery(c, "apply"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, plan)
}
