package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/lab"
	"dairyops/internal/infrastructure/http/v1/dto"
)

// LabService records lab verdicts on production batches.
type LabService interface {
	Get(ctx context.Context, batchID id.ID) (*lab.Approval, error)
	List(ctx context.Context, result lab.Result) ([]*lab.Approval, error)
	SaveApproval(ctx context.Context, in lab.SaveApprovalInput) (*lab.Outcome, error)
	SetExpiry(ctx context.Context, batchID id.ID, days int) (*lab.Approval, error)
}

// LabHandler serves /lab-approvals.
type LabHandler struct {
	BaseHandler
	svc LabService
}

// NewLabHandler creates the handler.
func NewLabHandler(svc LabService) *LabHandler {
	return &LabHandler{svc: svc}
}

// List returns approvals, optionally filtered by ?result=.
// GET /lab-approvals
func (h *LabHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), lab.Result(c.Query("result")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.NewList(items))
}

// Get returns the approval of a batch.
// GET /lab-approvals/:batchId
func (h *LabHandler) Get(c *gin.Context) {
	batchID, ok := h.ParseID(c, "batchId")
	if !ok {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, a)
}

// Save records the verdict and the storage release.
// PUT /lab-approvals/:batchId
func (h *LabHandler) Save(c *gin.Context) {
	batchID, ok := h.ParseID(c, "batchId")
	if !ok {
		return
	}
	var req dto.SaveApprovalRequest
	if !h.BindJSON(c, &req) {
		return
	}
	out, err := h.svc.SaveApproval(c.Request.Context(), req.ToInput(batchID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, out)
}

// SetExpiry sets the shelf life of an approved batch.
// POST /lab-approvals/:batchId/expiry
func (h *LabHandler) SetExpiry(c *gin.Context) {
	batchID, ok := h.ParseID(c, "batchId")
	if !ok {
		return
	}
	var req dto.SetExpiryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.svc.SetExpiry(c.Request.Context(), batchID, req.Days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, a)
}
