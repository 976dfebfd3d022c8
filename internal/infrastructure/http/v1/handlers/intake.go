package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/collection"
	"dairyops/internal/domain/intake"
	"dairyops/internal/infrastructure/http/v1/dto"
)

// IntakeService records yields and drives intake batches.
type IntakeService interface {
	RecordYield(ctx context.Context, in intake.RecordYieldInput) (*intake.MilkYield, *intake.Batch, error)
	EditYield(ctx context.Context, yieldID id.ID, in intake.EditYieldInput) (*intake.MilkYield, error)
	IsSessionAvailable(ctx context.Context, session collection.Session, t time.Time) (bool, error)
	ForSession(ctx context.Context, session collection.Session, date time.Time, create bool) (*intake.Batch, error)
	OpenBatch(ctx context.Context, batchID id.ID) (*intake.Batch, error)
	CloseBatch(ctx context.Context, batchID id.ID) (*intake.Batch, error)
	LockBatch(ctx context.Context, batchID id.ID) (*intake.Batch, error)
	BatchVolume(ctx context.Context, batchID id.ID) (types.Litres, error)
	RecordBatchTest(ctx context.Context, in intake.RecordBatchTestInput) (*intake.BatchTest, error)
	ApproveBatchTest(ctx context.Context, batchID id.ID) (*intake.BatchTest, error)
	RejectBatchTest(ctx context.Context, batchID id.ID, reason string) (*intake.BatchTest, error)
}

// IntakeHandler serves /yields and /batches.
type IntakeHandler struct {
	BaseHandler
	svc   IntakeService
	clock clock.Clock
}

// NewIntakeHandler creates the handler. clk resolves "now" and local dates.
func NewIntakeHandler(svc IntakeService, clk clock.Clock) *IntakeHandler {
	return &IntakeHandler{svc: svc, clock: clk}
}

// RecordYield stores a reading.
// POST /yields
func (h *IntakeHandler) RecordYield(c *gin.Context) {
	var req dto.RecordYieldRequest
	if !h.BindJSON(c, &req) {
		return
	}
	y, b, err := h.svc.RecordYield(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, gin.H{"yield": y, "batch": b})
}

// EditYield corrects a reading.
// PATCH /yields/:id
func (h *IntakeHandler) EditYield(c *gin.Context) {
	yieldID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.EditYieldRequest
	if !h.BindJSON(c, &req) {
		return
	}
	y, err := h.svc.EditYield(c.Request.Context(), yieldID, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, y)
}

// SessionAvailability reports whether a session still accepts readings.
// GET /yields/session-availability?session=morning&at=RFC3339
func (h *IntakeHandler) SessionAvailability(c *gin.Context) {
	at := h.clock.Now()
	if v := c.Query("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.HandleError(c, apperror.NewValidation("invalid at").WithDetail("at", v))
			return
		}
		at = t
	}
	session := collection.Session(c.Query("session"))
	ok, err := h.svc.IsSessionAvailable(c.Request.Context(), session, at)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.SessionAvailabilityResponse{Session: session, At: at, Available: ok})
}

// CurrentBatch returns the batch of a session and date.
// GET /batches/current?session=morning&date=2006-01-02&create=true
func (h *IntakeHandler) CurrentBatch(c *gin.Context) {
	date := clock.Today(h.clock)
	if v := c.Query("date"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.clock.Location())
		if err != nil {
			h.HandleError(c, apperror.NewValidation("invalid date").WithDetail("date", v))
			return
		}
		date = d
	}
	session := collection.Session(c.Query("session"))
	b, err := h.svc.ForSession(c.Request.Context(), session, date, h.ParseBoolQuery(c, "create"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if b == nil {
		h.HandleError(c, apperror.NewNotFound("intake batch", string(session)+" "+date.Format(time.DateOnly)))
		return
	}
	h.OK(c, b)
}

// OpenBatch reopens a closed batch.
// POST /batches/:id/open
func (h *IntakeHandler) OpenBatch(c *gin.Context) { h.transition(c, h.svc.OpenBatch) }

// CloseBatch closes an open batch.
// POST /batches/:id/close
func (h *IntakeHandler) CloseBatch(c *gin.Context) { h.transition(c, h.svc.CloseBatch) }

// LockBatch locks a batch.
// POST /batches/:id/lock
func (h *IntakeHandler) LockBatch(c *gin.Context) { h.transition(c, h.svc.LockBatch) }

func (h *IntakeHandler) transition(c *gin.Context, fn func(context.Context, id.ID) (*intake.Batch, error)) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	b, err := fn(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, b)
}

// Volume sums the yields of a batch.
// GET /batches/:id/volume
func (h *IntakeHandler) Volume(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.BatchVolume(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.BatchVolumeResponse{BatchID: batchID, Litres: v})
}

// RecordTest stores the quality test of a batch.
// PUT /batches/:id/test
func (h *IntakeHandler) RecordTest(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.BatchTestRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.svc.RecordBatchTest(c.Request.Context(), req.ToInput(batchID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, t)
}

// ApproveTest passes a batch test.
// POST /batches/:id/test/approve
func (h *IntakeHandler) ApproveTest(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.ApproveBatchTest(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, t)
}

// RejectTest fails a batch test with a reason.
// POST /batches/:id/test/reject
func (h *IntakeHandler) RejectTest(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.RejectTestRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.svc.RejectBatchTest(c.Request.Context(), batchID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, t)
}
