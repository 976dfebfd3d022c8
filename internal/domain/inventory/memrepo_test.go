package inventory

import (
	"context"
	"sort"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/id"
)

type memRepo struct {
	items map[id.ID]*Item
	txns  []*Transaction
}

func newMemRepo(items ...*Item) *memRepo {
	m := &memRepo{items: map[id.ID]*Item{}}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *memRepo) Get(_ context.Context, itemID id.ID) (*Item, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("inventory item", itemID)
	}
	cp := *it
	return &cp, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*Item, error) {
	return m.Get(ctx, itemID)
}

func (m *memRepo) FindBySKUForUpdate(_ context.Context, sku string) (*Item, error) {
	for _, it := range m.items {
		if it.SKU == sku {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) List(_ context.Context) ([]*Item, error) {
	out := make([]*Item, 0, len(m.items))
	for _, it := range m.items {
		cp := *it
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) Create(_ context.Context, item *Item) error {
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, item *Item) error {
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memRepo) CreateTransaction(_ context.Context, t *Transaction) error {
	m.txns = append(m.txns, t)
	return nil
}

func (m *memRepo) ListTransactions(_ context.Context, itemID id.ID, limit int) ([]*Transaction, error) {
	var out []*Transaction
	for i := len(m.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txns[i].ItemID == itemID {
			out = append(out, m.txns[i])
		}
	}
	return out, nil
}

var _ Repository = (*memRepo)(nil)
