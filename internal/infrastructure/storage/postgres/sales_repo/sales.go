// Package sales_repo persists sales and their lines.
package sales_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/id"
	"dairyops/internal/domain/sales"
	"dairyops/internal/infrastructure/storage/postgres"
)

const uniqueNumberConstraint = "sales_transactions_number_key"

// Repo implements sales.Repository.
type Repo struct {
	sales *postgres.Table[sales.Sale]
	items *postgres.Table[sales.Item]
	batch *postgres.BatchExecutor
}

var _ sales.Repository = (*Repo)(nil)

// New creates the sales repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		sales: postgres.NewTable[sales.Sale](txm, "sales_transactions", "sale"),
		items: postgres.NewTable[sales.Item](txm, "sales_items", "sale item"),
		batch: postgres.NewBatchExecutor(txm),
	}
}

// Create writes the sale header and its lines. Must run inside a transaction.
func (r *Repo) Create(ctx context.Context, s *sales.Sale) error {
	if err := r.sales.Insert(ctx, s); err != nil {
		if postgres.IsUniqueViolation(err, uniqueNumberConstraint) {
			return apperror.NewDuplicate("sale", "number", s.Number)
		}
		return err
	}

	queries := make([]postgres.BatchQuery, 0, len(s.Items))
	for _, item := range s.Items {
		item.SaleID = s.ID
		q, err := postgres.Queue(postgres.Builder().Insert(r.items.Name()).SetMap(postgres.StructToMap(item)), 1)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.withItems(ctx, r.sales.Select().Where(squirrel.Eq{"id": saleID}), saleID)
}

func (r *Repo) GetForUpdate(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.withItems(ctx, postgres.ForUpdate(r.sales.Select().Where(squirrel.Eq{"id": saleID})), saleID)
}

func (r *Repo) withItems(ctx context.Context, q squirrel.SelectBuilder, saleID id.ID) (*sales.Sale, error) {
	s, err := r.sales.Get(ctx, q, saleID)
	if err != nil {
		return nil, err
	}
	s.Items, err = r.items.List(ctx, r.items.Select().Where(squirrel.Eq{"sale_id": saleID}).OrderBy("id"))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, saleID id.ID, status sales.PaymentStatus) error {
	q := postgres.Builder().
		Update(r.sales.Name()).
		Set("payment_status", status).
		Where(squirrel.Eq{"id": saleID})
	tag, err := r.sales.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", saleID)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, limit int) ([]*sales.Sale, error) {
	return r.sales.List(ctx, r.sales.Select().OrderBy("created_at DESC").Limit(uint64(limit)))
}
