package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/collection"
)

type recordedAudit struct {
	entityType string
	action     audit.Action
}

type auditSpy struct{ entries []recordedAudit }

func (a *auditSpy) LogChange(_ context.Context, entityType string, _ id.ID, action audit.Action, _ map[string]any) error {
	a.entries = append(a.entries, recordedAudit{entityType, action})
	return nil
}

type fixture struct {
	svc   *Service
	repo  *memRepo
	clock *clock.Fixed
	audit *auditSpy
}

func newFixture(at time.Time) *fixture {
	repo := newMemRepo()
	clk := &clock.Fixed{At: at}
	spy := &auditSpy{}
	resolver := collection.NewResolver(nil, time.UTC)
	return &fixture{
		svc:   NewService(repo, resolver, tx.Passthrough{}, clk, spy),
		repo:  repo,
		clock: clk,
		audit: spy,
	}
}

func day(hour, minute int) time.Time {
	return time.Date(2025, 6, 10, hour, minute, 0, 0, time.UTC)
}

func opCtx() context.Context {
	return appctx.WithOperator(context.Background(), &appctx.OperatorContext{OperatorID: "clerk-7"})
}

func TestRecordYield_MorningScenario(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	y, b, err := f.svc.RecordYield(ctx, RecordYieldInput{
		CowID:        "COW-12",
		YieldLitres:  types.Must("12.5"),
		StorageTank:  TankA,
		QualityGrade: GradePremium,
	})
	require.NoError(t, err)

	assert.Equal(t, collection.Morning, y.Session)
	assert.Equal(t, day(5, 0), y.RecordedAt)
	assert.Equal(t, "clerk-7", y.RecordedBy)
	assert.Equal(t, 98, y.QualityScore)
	assert.True(t, y.TotalYield.Equal(types.Must("12.5")))
	require.NotNil(t, y.WindowStart)
	assert.Equal(t, day(0, 0), *y.WindowStart)
	assert.Equal(t, day(6, 0), *y.WindowEnd)

	require.NotNil(t, b)
	assert.Equal(t, BatchOpen, b.State)
	assert.Equal(t, collection.Morning, b.Session)
	assert.Equal(t, day(0, 0), b.CollectionDate)
	assert.Equal(t, []id.ID{y.ID}, f.repo.members[b.ID])

	test, err := f.svc.RecordBatchTest(ctx, RecordBatchTestInput{
		BatchID:       b.ID,
		FatPercentage: types.Must("3.8"),
		SNFPercentage: types.Must("8.5"),
		Acidity:       types.Must("0.14"),
		Contaminants:  "off smell",
		Result:        ResultRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, test.Result)
	require.NotNil(t, test.Contaminants)
	assert.Equal(t, "off smell", *test.Contaminants)

	stored, err := f.repo.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsLocked())

	_, err = f.svc.OpenBatch(ctx, b.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBatchLocked))
	_, err = f.svc.CloseBatch(ctx, b.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBatchLocked))

	assert.Contains(t, f.audit.entries, recordedAudit{audit.EntityBatchTest, audit.ActionReject})
}

func TestRecordYield_StorageLevelCountsSameTankSameDay(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	yesterday := day(5, 0).AddDate(0, 0, -1)
	for i, in := range []RecordYieldInput{
		{CowID: "COW-1", YieldLitres: types.Must("200"), StorageTank: TankA, RecordedAt: ptr(day(1, 0))},
		{CowID: "COW-2", YieldLitres: types.Must("100"), StorageTank: TankB, RecordedAt: ptr(day(2, 0))},
		{CowID: "COW-3", YieldLitres: types.Must("400"), StorageTank: TankA, RecordedAt: &yesterday},
	} {
		_, _, err := f.svc.RecordYield(ctx, in)
		require.NoError(t, err, "seed %d", i)
	}

	y, _, err := f.svc.RecordYield(ctx, RecordYieldInput{
		CowID: "COW-4", YieldLitres: types.Must("100"), StorageTank: TankA,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, y.StorageLevelPercentage)

	u, _, err := f.svc.RecordYield(ctx, RecordYieldInput{
		CowID: "COW-5", YieldLitres: types.Must("30"), StorageTank: TankUnassigned,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, u.StorageLevelPercentage)
}

func TestRecordYield_OutsideWindowWithoutSession(t *testing.T) {
	f := newFixture(day(9, 0))

	_, _, err := f.svc.RecordYield(opCtx(), RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5")})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeIntakeClosed, appErr.Code)
	assert.Equal(t, msgIntakeClosed, appErr.Message)
	assert.Empty(t, f.repo.yields)
}

func TestRecordYield_LateEntryJoinsOpenBatch(t *testing.T) {
	f := newFixture(day(9, 0))
	ctx := opCtx()

	y, b, err := f.svc.RecordYield(ctx, RecordYieldInput{
		CowID: "COW-1", Session: collection.Morning, YieldLitres: types.Must("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, collection.Morning, y.Session)
	assert.True(t, b.IsOpen())

	_, err = f.svc.CloseBatch(ctx, b.ID)
	require.NoError(t, err)

	_, _, err = f.svc.RecordYield(ctx, RecordYieldInput{
		CowID: "COW-2", Session: collection.Morning, YieldLitres: types.Must("5"),
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, msgWindowClosed, appErr.Message)
	assert.Len(t, f.repo.yields, 1)
}

func TestRecordYield_ClosedBatchCompensates(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	_, b, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5")})
	require.NoError(t, err)
	_, err = f.svc.CloseBatch(ctx, b.ID)
	require.NoError(t, err)

	_, _, err = f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-2", YieldLitres: types.Must("7")})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeBatchClosed))

	assert.Len(t, f.repo.deleted, 1, "inserted yield removed again")
	assert.Len(t, f.repo.yields, 1)
	assert.Len(t, f.repo.members[b.ID], 1)
}

func TestEnsureYieldAssignment_LockedBatchStartsNewOne(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	_, first, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5")})
	require.NoError(t, err)
	_, err = f.svc.LockBatch(ctx, first.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	y, second, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-2", YieldLitres: types.Must("6")})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.IsOpen())
	assert.Equal(t, []id.ID{y.ID}, f.repo.members[second.ID])
	assert.Len(t, f.repo.members[first.ID], 1)

	latest, err := f.svc.ForSession(ctx, collection.Morning, day(0, 0), false)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestForSession(t *testing.T) {
	f := newFixture(day(13, 0))
	ctx := opCtx()

	b, err := f.svc.ForSession(ctx, collection.Afternoon, day(13, 0), false)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = f.svc.ForSession(ctx, collection.Afternoon, day(13, 0), true)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, day(0, 0), b.CollectionDate)

	again, err := f.svc.ForSession(ctx, collection.Afternoon, day(8, 0), true)
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)

	_, err = f.svc.ForSession(ctx, "night", day(8, 0), true)
	assert.Error(t, err)
}

func TestBatchVolume(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	_, b, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5.5")})
	require.NoError(t, err)
	_, _, err = f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-2", YieldLitres: types.Must("4.5")})
	require.NoError(t, err)

	v, err := f.svc.BatchVolume(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, v.Equal(types.Must("10")))
}

func TestRecordBatchTest_ApproveLocksAndMovesTank(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	y, b, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5")})
	require.NoError(t, err)

	_, err = f.svc.RecordBatchTest(ctx, RecordBatchTestInput{
		BatchID: b.ID, Result: ResultApproved, StorageTank: TankB,
		FatPercentage: types.Must("4"), SNFPercentage: types.Must("8.6"), Acidity: types.Must("0.13"),
	})
	require.NoError(t, err)

	stored, _ := f.repo.GetBatch(ctx, b.ID)
	assert.True(t, stored.IsLocked())
	assert.Equal(t, TankB, f.repo.yields[y.ID].StorageTank)

	_, err = f.svc.RecordBatchTest(ctx, RecordBatchTestInput{BatchID: b.ID, StorageTank: TankSpoilt})
	assert.Error(t, err)
}

func TestRecordBatchTest_PendingClosesWithoutLocking(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	_, b, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5")})
	require.NoError(t, err)

	test, err := f.svc.RecordBatchTest(ctx, RecordBatchTestInput{BatchID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, ResultPending, test.Result)

	stored, _ := f.repo.GetBatch(ctx, b.ID)
	assert.Equal(t, BatchClosed, stored.State)

	_, err = f.svc.ApproveBatchTest(ctx, b.ID)
	require.NoError(t, err)
	stored, _ = f.repo.GetBatch(ctx, b.ID)
	assert.True(t, stored.IsLocked())
}

func TestRecordBatchTest_LockedBatchWithoutTest(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	_, b, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5")})
	require.NoError(t, err)
	_, err = f.svc.LockBatch(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.svc.RecordBatchTest(ctx, RecordBatchTestInput{BatchID: b.ID, Result: ResultApproved})
	assert.True(t, apperror.HasCode(err, apperror.CodeBatchLocked))
}

func TestAutoCloseElapsed(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	_, morning, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("5")})
	require.NoError(t, err)

	f.clock.At = day(12, 30)
	_, afternoon, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-2", YieldLitres: types.Must("5")})
	require.NoError(t, err)

	n, err := f.svc.AutoCloseElapsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, _ := f.repo.GetBatch(ctx, morning.ID)
	assert.Equal(t, BatchClosed, m.State)
	require.NotNil(t, m.ClosedBy)
	assert.Equal(t, appctx.SystemOperator, *m.ClosedBy)

	a, _ := f.repo.GetBatch(ctx, afternoon.ID)
	assert.True(t, a.IsOpen())
}

func TestAutoCloseElapsed_UTCMidnightDateWestOfUTC(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	f := newFixture(time.Date(2025, 6, 10, 17, 0, 0, 0, ny))
	f.svc = NewService(f.repo, collection.NewResolver(nil, ny), tx.Passthrough{}, f.clock, f.audit)

	// DATE columns come back as UTC midnight.
	b := NewBatch(collection.Evening, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), f.clock.At)
	f.repo.batches = append(f.repo.batches, b)

	n, err := f.svc.AutoCloseElapsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "evening window is still open")

	f.clock.At = time.Date(2025, 6, 10, 19, 0, 0, 0, ny)
	n, err = f.svc.AutoCloseElapsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEditYield_RecomputesDerivedFields(t *testing.T) {
	f := newFixture(day(5, 0))
	ctx := opCtx()

	y, _, err := f.svc.RecordYield(ctx, RecordYieldInput{CowID: "COW-1", YieldLitres: types.Must("50"), StorageTank: TankA})
	require.NoError(t, err)
	assert.Equal(t, 10, y.StorageLevelPercentage)

	litres := types.Must("250")
	grade := GradeLow
	edited, err := f.svc.EditYield(ctx, y.ID, EditYieldInput{YieldLitres: &litres, QualityGrade: &grade})
	require.NoError(t, err)
	assert.Equal(t, 50, edited.StorageLevelPercentage)
	assert.Equal(t, 70, edited.QualityScore)
	assert.Equal(t, collection.Morning, edited.Session)
}

func ptr[T any](v T) *T { return &v }
