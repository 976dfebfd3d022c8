package inventory

import (
	"context"
	"fmt"

	"dairyops/internal/core/clock"
	"dairyops/internal/core/id"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/pkg/logger"
)

// Service maintains item stock.
type Service struct {
	repo  Repository
	txm   tx.Manager
	clock clock.Clock
}

// NewService creates the inventory service.
func NewService(repo Repository, txm tx.Manager, clk clock.Clock) *Service {
	return &Service{repo: repo, txm: txm, clock: clk}
}

// Get returns an item.
func (s *Service) Get(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.repo.Get(ctx, itemID)
}

// List returns all items ordered by name.
func (s *Service) List(ctx context.Context) ([]*Item, error) {
	var items []*Item
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.List(ctx)
		return err
	})
	return items, err
}

// Transactions returns the latest movements of an item.
func (s *Service) Transactions(ctx context.Context, itemID id.ID, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListTransactions(ctx, itemID, limit)
}

// ApplyStorageTotal sets the SKU's item quantity to the cold storage total
// and logs the difference. A missing item is created when storage holds
// stock of a known batch. The returned transaction is nil when nothing moved.
func (s *Service) ApplyStorageTotal(ctx context.Context, snap StorageSnapshot, reason string) (*Item, *Transaction, error) {
	if snap.SKU == "" {
		return nil, nil, nil
	}
	today := clock.Today(s.clock)

	var (
		item *Item
		txn  *Transaction
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.FindBySKUForUpdate(ctx, snap.SKU)
		if err != nil {
			return err
		}

		if item == nil {
			if !snap.Total.IsPositive() || snap.LatestBatchID == nil {
				return nil
			}
			item = &Item{
				ID:              id.New(),
				Name:            snap.ProductName,
				SKU:             snap.SKU,
				Unit:            UnitPieces,
				CurrentQuantity: snap.Total,
				ProductCategory: snap.ProductCategory,
				IsProcessed:     true,
				BatchID:         snap.LatestBatchID,
				ExpiryDate:      snap.EarliestExpiry,
				LastRestocked:   &today,
			}
			if item.Name == "" {
				item.Name = snap.SKU
			}
			if err := s.repo.Create(ctx, item); err != nil {
				return fmt.Errorf("create item %s: %w", snap.SKU, err)
			}
			txn = s.newTransaction(item, snap.Total, reason)
			return s.repo.CreateTransaction(ctx, txn)
		}

		delta := snap.Total.Sub(item.CurrentQuantity)
		item.CurrentQuantity = snap.Total
		if snap.LatestBatchID != nil {
			item.BatchID = snap.LatestBatchID
		}
		if snap.EarliestExpiry != nil {
			item.ExpiryDate = snap.EarliestExpiry
		}
		item.LastRestocked = &today
		if err := s.repo.Update(ctx, item); err != nil {
			return fmt.Errorf("update item %s: %w", snap.SKU, err)
		}
		if delta.IsZero() {
			return nil
		}
		txn = s.newTransaction(item, delta, reason)
		return s.repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, nil, err
	}

	if txn != nil {
		logger.Info(ctx, "inventory synced from storage",
			"sku", snap.SKU, "quantity", snap.Total, "delta", txn.Quantity, "reason", reason)
	}
	return item, txn, nil
}

// Consume takes amount of an item out of stock and logs it. The item row is
// locked for the duration of the caller's transaction.
func (s *Service) Consume(ctx context.Context, itemID id.ID, amount types.Quantity, reason string) (*Item, error) {
	var item *Item
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.Consume(amount, clock.Today(s.clock)); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, item); err != nil {
			return fmt.Errorf("update item %s: %w", item.SKU, err)
		}
		return s.repo.CreateTransaction(ctx, s.newTransaction(item, amount.Neg(), reason))
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Restock returns amount of an item to stock and logs it.
func (s *Service) Restock(ctx context.Context, itemID id.ID, amount types.Quantity, reason string) (*Item, error) {
	var item *Item
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		txn := s.newTransaction(item, amount, reason)
		if err := txn.Apply(item, clock.Today(s.clock)); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, item); err != nil {
			return fmt.Errorf("update item %s: %w", item.SKU, err)
		}
		return s.repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) newTransaction(item *Item, qty types.Quantity, reason string) *Transaction {
	return &Transaction{
		ID:        id.New(),
		ItemID:    item.ID,
		Quantity:  qty,
		Reason:    reason,
		CreatedAt: s.clock.Now(),
		BatchID:   item.BatchID,
	}
}
