// Package production_repo persists production runs and draws milk from tanks.
package production_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/intake"
	"dairyops/internal/domain/production"
	"dairyops/internal/infrastructure/storage/postgres"
)

// Repo implements production.Repository.
type Repo struct {
	batches *postgres.Table[production.Batch]
	yields  *postgres.Table[production.TankYield]
	batch   *postgres.BatchExecutor
}

var _ production.Repository = (*Repo)(nil)

// New creates the production repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		batches: postgres.NewTable[production.Batch](txm, "production_batches", "production batch"),
		yields:  postgres.NewTable[production.TankYield](txm, "milk_yields", "milk yield"),
		batch:   postgres.NewBatchExecutor(txm),
	}
}

func (r *Repo) Create(ctx context.Context, b *production.Batch) error {
	return r.batches.Insert(ctx, b)
}

func (r *Repo) Get(ctx context.Context, batchID id.ID) (*production.Batch, error) {
	return r.batches.Get(ctx, r.batches.Select().Where(squirrel.Eq{"id": batchID}), batchID)
}

// batchImmutable lists the columns fixed at production time. The source tank
// is not among them: lab approval may move the batch to another tank.
var batchImmutable = []string{"produced_at"}

func (r *Repo) Update(ctx context.Context, b *production.Batch) error {
	return r.batches.Update(ctx, b.ID, b, batchImmutable...)
}

func (r *Repo) ListConsumableYieldsForUpdate(ctx context.Context, tank intake.Tank) ([]production.TankYield, error) {
	q := r.yields.Select().
		Where(squirrel.Eq{
			"storage_tank":  tank,
			"quality_grade": []intake.Grade{intake.GradePremium, intake.GradeStandard},
		}).
		Where(squirrel.Gt{"yield_litres": 0}).
		OrderBy("recorded_at", "id")
	rows, err := r.yields.List(ctx, postgres.ForUpdate(q))
	if err != nil {
		return nil, err
	}
	out := make([]production.TankYield, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

// ApplyDeductions writes the remaining litres of every drawn yield in one
// round-trip. Must run inside the transaction that locked the yields.
func (r *Repo) ApplyDeductions(ctx context.Context, plan []production.Deduction) error {
	queries := make([]postgres.BatchQuery, 0, len(plan))
	for _, d := range plan {
		q, err := postgres.Queue(postgres.Builder().
			Update(r.yields.Name()).
			Set("yield_litres", d.Remaining).
			Where(squirrel.Eq{"id": d.YieldID}), 1)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("apply tank deductions: %w", err)
	}
	return nil
}
