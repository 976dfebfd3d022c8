package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/id"
	"dairyops/internal/infrastructure/http/v1/dto"
	"dairyops/internal/infrastructure/storage/postgres"
)

const maxAuditLimit = 500

// AuditHistory reads the audit trail of one record.
type AuditHistory interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// AuditHandler serves /audit.
type AuditHandler struct {
	BaseHandler
	history AuditHistory
}

// NewAuditHandler creates the handler.
func NewAuditHandler(history AuditHistory) *AuditHandler {
	return &AuditHandler{history: history}
}

// History returns the latest changes of a record, newest first.
// GET /audit/:entityType/:id?limit=50
func (h *AuditHandler) History(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	limit := h.ParseIntQuery(c, "limit", 50)
	if limit <= 0 || limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	entries, err := h.history.History(c.Request.Context(), c.Param("entityType"), entityID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(entries))
}
