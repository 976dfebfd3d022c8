package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/internal/domain/collection"
	"dairyops/internal/domain/intake"
	"dairyops/internal/domain/sales"
	"dairyops/internal/infrastructure/http/v1/handlers"
	"dairyops/internal/infrastructure/http/v1/middleware"
	"dairyops/internal/infrastructure/storage/postgres"
	"dairyops/pkg/logger"
)

type fakeCollection struct {
	handlers.CollectionService
	windows []collection.Window
	setErr  error
}

func (f *fakeCollection) ListWindows(context.Context) ([]collection.Window, error) {
	return f.windows, nil
}

func (f *fakeCollection) SetOverride(_ context.Context, s collection.Session, start, end collection.TimeOfDay) (*collection.Override, error) {
	if f.setErr != nil {
		return nil, f.setErr
	}
	for i := range f.windows {
		if f.windows[i].Session == s {
			f.windows[i].Start, f.windows[i].End, f.windows[i].Overridden = start, end, true
		}
	}
	return &collection.Override{SessionKey: s}, nil
}

type fakeIntake struct {
	handlers.IntakeService
	gotSession collection.Session
	gotDate    time.Time
	gotCreate  bool
}

func (f *fakeIntake) ForSession(_ context.Context, s collection.Session, date time.Time, create bool) (*intake.Batch, error) {
	f.gotSession, f.gotDate, f.gotCreate = s, date, create
	if !create {
		return nil, nil
	}
	return intake.NewBatch(s, date, date), nil
}

type fakeSales struct {
	handlers.SalesService
	calls    int
	operator string
	in       sales.RecordInput
	err      error
}

func (f *fakeSales) Record(ctx context.Context, in sales.RecordInput) (*sales.Sale, error) {
	f.calls++
	f.operator = appctx.GetOperatorID(ctx)
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sales.Sale{ID: id.New(), Number: "SAL-000001", CreatedBy: f.operator}, nil
}

func (f *fakeSales) Get(_ context.Context, saleID id.ID) (*sales.Sale, error) {
	return nil, apperror.NewNotFound("sale", saleID)
}

type fakeIdempotency struct {
	stored   map[string]*postgres.IdempotencyReplay
	released []string
}

func (f *fakeIdempotency) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	return f.stored[key], nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	f.stored[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: contentType, Body: append([]byte(nil), body...)}
	return nil
}

func (f *fakeIdempotency) Release(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

type fakeAudit struct {
	entityType string
	limit      int
}

func (f *fakeAudit) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error) {
	f.entityType, f.limit = entityType, limit
	return []postgres.AuditEntry{{EntityType: entityType, EntityID: entityID, Action: "update"}}, nil
}

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }
func (f fakeDB) Stats() postgres.PoolStats  { return postgres.PoolStats{MaxConns: 10} }

type testEnv struct {
	collection  *fakeCollection
	intake      *fakeIntake
	sales       *fakeSales
	idempotency *fakeIdempotency
	audit       *fakeAudit
	clock       *clock.Fixed
}

func newTestRouter(t *testing.T, db handlers.Database) (*testEnv, http.Handler) {
	t.Helper()
	loc := time.FixedZone("EAT", 3*3600)
	env := &testEnv{
		collection: &fakeCollection{windows: []collection.Window{
			{Session: collection.Morning, Start: collection.NewTimeOfDay(5, 0), End: collection.NewTimeOfDay(10, 0)},
		}},
		intake:      &fakeIntake{},
		sales:       &fakeSales{},
		idempotency: &fakeIdempotency{stored: map[string]*postgres.IdempotencyReplay{}},
		audit:       &fakeAudit{},
		clock:       &clock.Fixed{At: time.Date(2026, 3, 14, 6, 30, 0, 0, loc)},
	}
	r := NewRouter(RouterConfig{
		Logger:      logger.Nop(),
		Clock:       env.clock,
		Version:     "test",
		Database:    db,
		Idempotency: env.idempotency,
		Collection:  env.collection,
		Intake:      env.intake,
		Sales:       env.sales,
		Audit:       env.audit,
	})
	return env, r
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var operator = map[string]string{middleware.HeaderOperatorID: "clerk-7"}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorBody {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRouter_RequiresOperator(t *testing.T) {
	_, r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/v1/collection-windows", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeError(t, w).Code)
}

func TestRouter_ListWindows(t *testing.T) {
	_, r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/v1/collection-windows", "", operator)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []map[string]any `json:"items"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "morning", body.Items[0]["key"])
	assert.Equal(t, "05:00", body.Items[0]["start"])
}

func TestRouter_SetWindow(t *testing.T) {
	env, r := newTestRouter(t, nil)

	w := do(r, http.MethodPut, "/api/v1/collection-windows/morning", `{"start":"04:30","end":"09:00"}`, operator)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.collection.windows[0].Overridden)
	assert.Contains(t, w.Body.String(), `"04:30"`)
}

func TestRouter_SetWindow_InvalidTime(t *testing.T) {
	_, r := newTestRouter(t, nil)

	w := do(r, http.MethodPut, "/api/v1/collection-windows/morning", `{"start":"25:00","end":"09:00"}`, operator)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeError(t, w).Code)
}

func TestRouter_CurrentBatch(t *testing.T) {
	env, r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/v1/batches/current?session=morning&date=2026-03-01&create=true", "", operator)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, collection.Morning, env.intake.gotSession)
	assert.True(t, env.intake.gotCreate)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, env.clock.Location()), env.intake.gotDate)
}

func TestRouter_CurrentBatch_DefaultsToToday(t *testing.T) {
	env, r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/v1/batches/current?session=morning", "", operator)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, clock.Today(env.clock), env.intake.gotDate)
	assert.False(t, env.intake.gotCreate)
}

func TestRouter_RecordSale(t *testing.T) {
	env, r := newTestRouter(t, nil)
	itemID := id.New()

	body := `{"customerName":"Amina","paymentMode":"cash","lines":[{"inventoryItemId":"` + itemID.String() + `","quantity":"3"}]}`
	w := do(r, http.MethodPost, "/api/v1/sales", body, operator)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "clerk-7", env.sales.operator)
	require.Len(t, env.sales.in.Lines, 1)
	assert.Equal(t, itemID, env.sales.in.Lines[0].InventoryItemID)
	assert.True(t, env.sales.in.Lines[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.Nil(t, env.sales.in.Lines[0].Price)
	assert.Contains(t, w.Body.String(), "SAL-000001")
}

func TestRouter_RecordSale_NoLines(t *testing.T) {
	env, r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/sales", `{"lines":[]}`, operator)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.sales.calls)
}

func TestRouter_WorkflowError(t *testing.T) {
	env, r := newTestRouter(t, nil)
	env.sales.err = apperror.NewInsufficientStock("Not enough stock", "5", "2")

	body := `{"lines":[{"inventoryItemId":"` + id.New().String() + `","quantity":"5"}]}`
	w := do(r, http.MethodPost, "/api/v1/sales", body, operator)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errBody := decodeError(t, w)
	assert.Equal(t, apperror.CodeInsufficientStock, errBody.Code)
	assert.Equal(t, "2", errBody.Details["available"])
}

func TestRouter_InternalErrorHidden(t *testing.T) {
	env, r := newTestRouter(t, nil)
	env.sales.err = errors.New("connection reset by peer")

	body := `{"lines":[{"inventoryItemId":"` + id.New().String() + `","quantity":"1"}]}`
	w := do(r, http.MethodPost, "/api/v1/sales", body, operator)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Equal(t, apperror.CodeInternal, decodeError(t, w).Code)
}

func TestRouter_NotFound(t *testing.T) {
	_, r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/v1/sales/"+id.New().String(), "", operator)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decodeError(t, w).Code)
}

func TestRouter_InvalidID(t *testing.T) {
	_, r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/v1/sales/not-a-uuid", "", operator)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_IdempotentReplay(t *testing.T) {
	env, r := newTestRouter(t, nil)
	headers := map[string]string{
		middleware.HeaderOperatorID:     "clerk-7",
		middleware.HeaderIdempotencyKey: "sale-1",
	}
	body := `{"lines":[{"inventoryItemId":"` + id.New().String() + `","quantity":"1"}]}`

	first := do(r, http.MethodPost, "/api/v1/sales", body, headers)
	second := do(r, http.MethodPost, "/api/v1/sales", body, headers)

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, env.sales.calls)
}

func TestRouter_IdempotencyReleasedOnError(t *testing.T) {
	env, r := newTestRouter(t, nil)
	env.sales.err = apperror.NewWorkflow(apperror.CodeExpiredStock, "Stock expired")
	headers := map[string]string{
		middleware.HeaderOperatorID:     "clerk-7",
		middleware.HeaderIdempotencyKey: "sale-2",
	}
	body := `{"lines":[{"inventoryItemId":"` + id.New().String() + `","quantity":"1"}]}`

	w := do(r, http.MethodPost, "/api/v1/sales", body, headers)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"sale-2"}, env.idempotency.released)
	assert.Empty(t, env.idempotency.stored)
}

func TestRouter_Health(t *testing.T) {
	_, r := newTestRouter(t, fakeDB{})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/ready", "", nil).Code)

	_, r = newTestRouter(t, fakeDB{err: errors.New("down")})
	w := do(r, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}

func TestRouter_AuditHistory(t *testing.T) {
	env, r := newTestRouter(t, nil)

	w := do(r, http.MethodGet, "/api/v1/audit/sales_transaction/"+id.New().String()+"?limit=9999", "", operator)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sales_transaction", env.audit.entityType)
	assert.Equal(t, 500, env.audit.limit)
	assert.Contains(t, w.Body.String(), `"action":"update"`)
}
