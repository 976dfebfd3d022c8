package inventory

import (
	"context"

	"dairyops/internal/core/id"
)

// Repository persists items and their transactions.
type Repository interface {
	Get(ctx context.Context, itemID id.ID) (*Item, error)
	GetForUpdate(ctx context.Context, itemID id.ID) (*Item, error)
	// FindBySKUForUpdate returns nil, nil when no item has the SKU.
	FindBySKUForUpdate(ctx context.Context, sku string) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error

	CreateTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, itemID id.ID, limit int) ([]*Transaction, error)
}
