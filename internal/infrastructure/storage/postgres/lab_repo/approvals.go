// Package lab_repo persists lab approvals of production batches.
package lab_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/lab"
	"dairyops/internal/infrastructure/storage/postgres"
)

// Repo implements lab.Repository.
type Repo struct {
	approvals *postgres.Table[lab.Approval]
}

var _ lab.Repository = (*Repo)(nil)

// New creates the approval repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		approvals: postgres.NewTable[lab.Approval](txm, "lab_batch_approvals", "lab approval"),
	}
}

func (r *Repo) FindByBatch(ctx context.Context, batchID id.ID) (*lab.Approval, error) {
	return r.approvals.Find(ctx, r.approvals.Select().Where(squirrel.Eq{"production_batch_id": batchID}))
}

func (r *Repo) FindByBatchForUpdate(ctx context.Context, batchID id.ID) (*lab.Approval, error) {
	q := postgres.ForUpdate(r.approvals.Select().Where(squirrel.Eq{"production_batch_id": batchID}))
	return r.approvals.Find(ctx, q)
}

// Save inserts the approval or rewrites the one already held by its batch.
func (r *Repo) Save(ctx context.Context, a *lab.Approval) error {
	q := postgres.Builder().
		Insert(r.approvals.Name()).
		SetMap(postgres.StructToMap(a)).
		Suffix(`ON CONFLICT (production_batch_id) DO UPDATE SET
			overall_result = EXCLUDED.overall_result,
			expiry_date = EXCLUDED.expiry_date,
			approved_by = EXCLUDED.approved_by,
			approved_at = EXCLUDED.approved_at,
			remarks = EXCLUDED.remarks
		RETURNING id`)
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build approval upsert: %w", err)
	}
	if err := r.approvals.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&a.ID); err != nil {
		return fmt.Errorf("save lab approval: %w", err)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, result lab.Result) ([]*lab.Approval, error) {
	q := r.approvals.Select().OrderBy("approved_at DESC")
	if result != "" {
		q = q.Where(squirrel.Eq{"overall_result": result})
	}
	return r.approvals.List(ctx, q)
}
