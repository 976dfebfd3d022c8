package storage

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/id"
	"dairyops/internal/domain/inventory"
	"dairyops/internal/domain/production"
)

type batchMap map[id.ID]*production.Batch

func (b batchMap) Get(_ context.Context, batchID id.ID) (*production.Batch, error) {
	pb, ok := b[batchID]
	if !ok {
		return nil, apperror.NewNotFound("production batch", batchID)
	}
	cp := *pb
	return &cp, nil
}

type memRepo struct {
	batches   batchMap
	locations map[id.ID]*Location
	packaging map[string]*Packaging
	lots      map[id.ID]*Lot
	expired   []*ExpiredRecord
}

func newMemRepo(batches batchMap) *memRepo {
	return &memRepo{
		batches:   batches,
		locations: map[id.ID]*Location{},
		packaging: map[string]*Packaging{},
		lots:      map[id.ID]*Lot{},
	}
}

func (m *memRepo) GetLocation(_ context.Context, locationID id.ID) (*Location, error) {
	l, ok := m.locations[locationID]
	if !ok {
		return nil, apperror.NewNotFound("storage location", locationID)
	}
	return l, nil
}

func (m *memRepo) ListLocations(_ context.Context) ([]*Location, error) {
	out := make([]*Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	return out, nil
}

func (m *memRepo) FindPackagingForSKU(_ context.Context, sku string) (*Packaging, error) {
	return m.packaging[sku], nil
}

func (m *memRepo) withPackaging(l *Lot) *Lot {
	cp := *l
	cp.Packaging = nil
	if cp.PackagingID != nil {
		for _, p := range m.packaging {
			if p.ID == *cp.PackagingID {
				cp.Packaging = p
			}
		}
	}
	return &cp
}

func (m *memRepo) GetLot(_ context.Context, lotID id.ID) (*Lot, error) {
	l, ok := m.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("cold storage lot", lotID)
	}
	return m.withPackaging(l), nil
}

func (m *memRepo) GetLotForUpdate(ctx context.Context, lotID id.ID) (*Lot, error) {
	return m.GetLot(ctx, lotID)
}

func (m *memRepo) FindLotByBatch(_ context.Context, batchID id.ID) (*Lot, error) {
	for _, l := range m.lots {
		if l.ProductionBatchID == batchID {
			return m.withPackaging(l), nil
		}
	}
	return nil, nil
}

func (m *memRepo) FindLotByBatchForUpdate(ctx context.Context, batchID id.ID) (*Lot, error) {
	return m.FindLotByBatch(ctx, batchID)
}

func (m *memRepo) ListLots(_ context.Context) ([]*Lot, error) {
	out := make([]*Lot, 0, len(m.lots))
	for _, l := range m.lots {
		out = append(out, m.withPackaging(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (m *memRepo) CreateLot(_ context.Context, lot *Lot) error {
	cp := *lot
	m.lots[lot.ID] = &cp
	return nil
}

func (m *memRepo) UpdateLot(_ context.Context, lot *Lot) error {
	if _, ok := m.lots[lot.ID]; !ok {
		return apperror.NewNotFound("cold storage lot", lot.ID)
	}
	cp := *lot
	m.lots[lot.ID] = &cp
	return nil
}

func (m *memRepo) DeleteLot(_ context.Context, lotID id.ID) error {
	delete(m.lots, lotID)
	return nil
}

func (m *memRepo) StorageForSKU(ctx context.Context, sku string) (SKUStorage, error) {
	all, err := m.StorageBySKU(ctx)
	if err != nil {
		return SKUStorage{}, err
	}
	for _, agg := range all {
		if agg.SKU == sku {
			return agg, nil
		}
	}
	return SKUStorage{SKU: sku, Total: decimal.Zero}, nil
}

func (m *memRepo) StorageBySKU(_ context.Context) ([]SKUStorage, error) {
	bySKU := map[string]*SKUStorage{}
	latest := map[string]time.Time{}
	for _, l := range m.lots {
		b := m.batches[l.ProductionBatchID]
		agg, ok := bySKU[b.SKU]
		if !ok {
			agg = &SKUStorage{SKU: b.SKU, Total: decimal.Zero}
			bySKU[b.SKU] = agg
		}
		agg.Total = agg.Total.Add(decimal.NewFromInt(int64(m.withPackaging(l).TotalUnits())))
		if agg.EarliestExpiry == nil || l.ExpiryDate.Before(*agg.EarliestExpiry) {
			exp := l.ExpiryDate
			agg.EarliestExpiry = &exp
		}
		if b.ProducedAt.After(latest[b.SKU]) {
			latest[b.SKU] = b.ProducedAt
			bid := b.ID
			agg.LatestBatchID = &bid
			agg.ProductType = string(b.ProductType)
		}
	}
	out := make([]SKUStorage, 0, len(bySKU))
	for _, agg := range bySKU {
		out = append(out, *agg)
	}
	return out, nil
}

func (m *memRepo) CreateExpiredRecord(_ context.Context, r *ExpiredRecord) error {
	m.expired = append(m.expired, r)
	return nil
}

// fakeInventory keeps one item per SKU and records every applied snapshot.
type fakeInventory struct {
	items   map[string]*inventory.Item
	reasons []string
}

func newFakeInventory(items ...*inventory.Item) *fakeInventory {
	f := &fakeInventory{items: map[string]*inventory.Item{}}
	for _, it := range items {
		f.items[it.SKU] = it
	}
	return f
}

func (f *fakeInventory) ApplyStorageTotal(_ context.Context, snap inventory.StorageSnapshot, reason string) (*inventory.Item, *inventory.Transaction, error) {
	item, ok := f.items[snap.SKU]
	if !ok {
		if !snap.Total.IsPositive() || snap.LatestBatchID == nil {
			return nil, nil, nil
		}
		item = &inventory.Item{ID: id.New(), SKU: snap.SKU, Name: snap.ProductName, Unit: inventory.UnitPieces}
		f.items[snap.SKU] = item
	}
	delta := snap.Total.Sub(item.CurrentQuantity)
	item.CurrentQuantity = snap.Total
	if snap.LatestBatchID != nil {
		item.BatchID = snap.LatestBatchID
	}
	f.reasons = append(f.reasons, reason)
	if delta.IsZero() {
		return item, nil, nil
	}
	return item, &inventory.Transaction{ItemID: item.ID, Quantity: delta, Reason: reason}, nil
}

func (f *fakeInventory) List(_ context.Context) ([]*inventory.Item, error) {
	out := make([]*inventory.Item, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

var (
	_ Repository  = (*memRepo)(nil)
	_ BatchReader = batchMap(nil)
	_ Inventory   = (*fakeInventory)(nil)
)
