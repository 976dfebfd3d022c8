// Package inventory_repo persists finished-goods items and their movements.
package inventory_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/inventory"
	"dairyops/internal/infrastructure/storage/postgres"
)

// Repo implements inventory.Repository.
type Repo struct {
	items *postgres.Table[inventory.Item]
	txns  *postgres.Table[inventory.Transaction]
}

var _ inventory.Repository = (*Repo)(nil)

// New creates the inventory repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		items: postgres.NewTable[inventory.Item](txm, "inventory_items", "inventory item"),
		txns:  postgres.NewTable[inventory.Transaction](txm, "inventory_transactions", "inventory transaction"),
	}
}

func (r *Repo) Get(ctx context.Context, itemID id.ID) (*inventory.Item, error) {
	return r.items.Get(ctx, r.items.Select().Where(squirrel.Eq{"id": itemID}), itemID)
}

func (r *Repo) GetForUpdate(ctx context.Context, itemID id.ID) (*inventory.Item, error) {
	return r.items.Get(ctx, postgres.ForUpdate(r.items.Select().Where(squirrel.Eq{"id": itemID})), itemID)
}

func (r *Repo) FindBySKUForUpdate(ctx context.Context, sku string) (*inventory.Item, error) {
	return r.items.Find(ctx, postgres.ForUpdate(r.items.Select().Where(squirrel.Eq{"sku": sku})))
}

func (r *Repo) List(ctx context.Context) ([]*inventory.Item, error) {
	return r.items.List(ctx, r.items.Select().OrderBy("name"))
}

func (r *Repo) Create(ctx context.Context, item *inventory.Item) error {
	return r.items.Insert(ctx, item)
}

func (r *Repo) Update(ctx context.Context, item *inventory.Item) error {
	return r.items.Update(ctx, item.ID, item)
}

func (r *Repo) CreateTransaction(ctx context.Context, t *inventory.Transaction) error {
	return r.txns.Insert(ctx, t)
}

func (r *Repo) ListTransactions(ctx context.Context, itemID id.ID, limit int) ([]*inventory.Transaction, error) {
	q := r.txns.Select().
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	return r.txns.List(ctx, q)
}
