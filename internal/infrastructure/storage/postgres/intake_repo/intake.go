// Package intake_repo persists milk yields, intake batches and batch tests.
package intake_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/collection"
	"dairyops/internal/domain/intake"
	"dairyops/internal/infrastructure/storage/postgres"
)

const (
	membersTable            = "intake_batch_yields"
	uniqueCowTimeConstraint = "uq_milk_yields_cow_time"
)

// Repo implements intake.Repository.
type Repo struct {
	yields  *postgres.Table[intake.MilkYield]
	batches *postgres.Table[intake.Batch]
	tests   *postgres.Table[intake.BatchTest]
}

var _ intake.Repository = (*Repo)(nil)

// New creates the intake repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		yields:  postgres.NewTable[intake.MilkYield](txm, "milk_yields", "milk yield"),
		batches: postgres.NewTable[intake.Batch](txm, "intake_batches", "batch"),
		tests:   postgres.NewTable[intake.BatchTest](txm, "intake_batch_tests", "batch test"),
	}
}

// --- Yields ---

func (r *Repo) CreateYield(ctx context.Context, y *intake.MilkYield) error {
	err := r.yields.Insert(ctx, y)
	if postgres.IsUniqueViolation(err, uniqueCowTimeConstraint) {
		return apperror.NewDuplicate("milk yield", "cow and time", y.CowID)
	}
	return err
}

func (r *Repo) UpdateYield(ctx context.Context, y *intake.MilkYield) error {
	err := r.yields.Update(ctx, y.ID, y, "created_at")
	if postgres.IsUniqueViolation(err, uniqueCowTimeConstraint) {
		return apperror.NewDuplicate("milk yield", "cow and time", y.CowID)
	}
	return err
}

func (r *Repo) DeleteYield(ctx context.Context, yieldID id.ID) error {
	return r.yields.Delete(ctx, yieldID)
}

func (r *Repo) GetYield(ctx context.Context, yieldID id.ID) (*intake.MilkYield, error) {
	return r.yields.Get(ctx, r.yields.Select().Where(squirrel.Eq{"id": yieldID}), yieldID)
}

func (r *Repo) SumTankVolume(ctx context.Context, tank intake.Tank, from, to time.Time, exclude id.ID) (types.Litres, error) {
	q := postgres.Builder().
		Select("COALESCE(SUM(yield_litres), 0)").
		From(r.yields.Name()).
		Where(squirrel.Eq{"storage_tank": tank}).
		Where(squirrel.GtOrEq{"recorded_at": from}).
		Where(squirrel.Lt{"recorded_at": to}).
		Where(squirrel.NotEq{"id": exclude})

	var total decimal.Decimal
	if err := postgres.Scalar(ctx, r.yields.Querier(ctx), q, &total); err != nil {
		return decimal.Zero, fmt.Errorf("sum tank volume: %w", err)
	}
	return total, nil
}

// --- Batches ---

func (r *Repo) LatestBatch(ctx context.Context, session collection.Session, date time.Time) (*intake.Batch, error) {
	q := r.batches.Select().
		Where(squirrel.Eq{"session": session, "collection_date": date}).
		OrderBy("created_at DESC").
		Limit(1)
	return r.batches.Find(ctx, q)
}

// CreateBatch relies on the partial unique index over unlocked batches so
// concurrent first yields of a session converge on one batch.
func (r *Repo) CreateBatch(ctx context.Context, b *intake.Batch) (*intake.Batch, error) {
	ins := postgres.Builder().
		Insert(r.batches.Name()).
		SetMap(postgres.StructToMap(b)).
		Suffix("ON CONFLICT (session, collection_date) WHERE state <> 'locked' DO NOTHING")
	if _, err := r.batches.Exec(ctx, ins); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	q := r.batches.Select().
		Where(squirrel.Eq{"session": b.Session, "collection_date": b.CollectionDate}).
		Where(squirrel.NotEq{"state": intake.BatchLocked})
	return r.batches.Get(ctx, q, b.Session)
}

func (r *Repo) GetBatch(ctx context.Context, batchID id.ID) (*intake.Batch, error) {
	return r.batches.Get(ctx, r.batches.Select().Where(squirrel.Eq{"id": batchID}), batchID)
}

func (r *Repo) GetBatchForUpdate(ctx context.Context, batchID id.ID) (*intake.Batch, error) {
	q := postgres.ForUpdate(r.batches.Select().Where(squirrel.Eq{"id": batchID}))
	return r.batches.Get(ctx, q, batchID)
}

func (r *Repo) UpdateBatch(ctx context.Context, b *intake.Batch) error {
	return r.batches.Update(ctx, b.ID, b, "created_at", "session", "collection_date")
}

func (r *Repo) ListOpenAutoManaged(ctx context.Context) ([]*intake.Batch, error) {
	q := r.batches.Select().
		Where(squirrel.Eq{"state": intake.BatchOpen, "auto_managed": true}).
		OrderBy("created_at")
	return r.batches.List(ctx, q)
}

func (r *Repo) AttachYield(ctx context.Context, batchID, yieldID id.ID) error {
	q := postgres.Builder().
		Insert(membersTable).
		Columns("batch_id", "yield_id").
		Values(batchID, yieldID).
		Suffix("ON CONFLICT (yield_id) DO NOTHING")
	if _, err := r.batches.Exec(ctx, q); err != nil {
		return fmt.Errorf("attach yield: %w", err)
	}
	return nil
}

func (r *Repo) BatchVolume(ctx context.Context, batchID id.ID) (types.Litres, error) {
	q := postgres.Builder().
		Select("COALESCE(SUM(y.yield_litres), 0)").
		From(membersTable + " m").
		Join(r.yields.Name() + " y ON y.id = m.yield_id").
		Where(squirrel.Eq{"m.batch_id": batchID})

	var total decimal.Decimal
	if err := postgres.Scalar(ctx, r.batches.Querier(ctx), q, &total); err != nil {
		return decimal.Zero, fmt.Errorf("batch volume: %w", err)
	}
	return total, nil
}

func (r *Repo) SetBatchTank(ctx context.Context, batchID id.ID, tank intake.Tank) error {
	members := postgres.Builder().
		Select("yield_id").
		From(membersTable).
		Where(squirrel.Eq{"batch_id": batchID})
	q := postgres.Builder().
		Update(r.yields.Name()).
		Set("storage_tank", tank).
		Where(squirrel.Expr("id IN (?)", members))
	if _, err := r.yields.Exec(ctx, q); err != nil {
		return fmt.Errorf("set batch tank: %w", err)
	}
	return nil
}

// --- Tests ---

func (r *Repo) FindTest(ctx context.Context, batchID id.ID) (*intake.BatchTest, error) {
	return r.tests.Find(ctx, r.tests.Select().Where(squirrel.Eq{"batch_id": batchID}))
}

func (r *Repo) SaveTest(ctx context.Context, t *intake.BatchTest) error {
	q := postgres.Builder().
		Insert(r.tests.Name()).
		SetMap(postgres.StructToMap(t)).
		Suffix(`ON CONFLICT (batch_id) DO UPDATE SET
			tested_at = EXCLUDED.tested_at,
			tested_by = EXCLUDED.tested_by,
			fat_percentage = EXCLUDED.fat_percentage,
			snf_percentage = EXCLUDED.snf_percentage,
			acidity = EXCLUDED.acidity,
			contaminants = EXCLUDED.contaminants,
			result = EXCLUDED.result`)
	if _, err := r.tests.Exec(ctx, q); err != nil {
		return fmt.Errorf("save batch test: %w", err)
	}
	return nil
}
