package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"dairyops/internal/domain/collection"
	"dairyops/internal/infrastructure/http/v1/dto"
)

// CollectionService manages intake windows.
type CollectionService interface {
	ListWindows(ctx context.Context) ([]collection.Window, error)
	SetOverride(ctx context.Context, session collection.Session, start, end collection.TimeOfDay) (*collection.Override, error)
	DeleteOverride(ctx context.Context, session collection.Session) error
}

// CollectionHandler serves /collection-windows.
type CollectionHandler struct {
	BaseHandler
	svc CollectionService
}

// NewCollectionHandler creates the handler.
func NewCollectionHandler(svc CollectionService) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

// List returns the effective windows.
// GET /collection-windows
func (h *CollectionHandler) List(c *gin.Context) {
	windows, err := h.svc.ListWindows(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(windows))
}

// Set overrides one session and returns the windows after the change.
// PUT /collection-windows/:session
func (h *CollectionHandler) Set(c *gin.Context) {
	var req dto.SetWindowRequest
	if !h.BindJSON(c, &req) {
		return
	}
	start, end, err := req.Bounds()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.svc.SetOverride(ctx, collection.Session(c.Param("session")), start, end); err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c)
}

// Delete restores the default bounds of a session.
// DELETE /collection-windows/:session
func (h *CollectionHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteOverride(c.Request.Context(), collection.Session(c.Param("session"))); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
