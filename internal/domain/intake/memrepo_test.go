package intake

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/collection"
)

// memRepo is an in-memory Repository honouring the one-unlocked-batch rule.
type memRepo struct {
	yields  map[id.ID]*MilkYield
	batches []*Batch
	members map[id.ID][]id.ID
	tests   map[id.ID]*BatchTest

	deleted []id.ID
}

func newMemRepo() *memRepo {
	return &memRepo{
		yields:  map[id.ID]*MilkYield{},
		members: map[id.ID][]id.ID{},
		tests:   map[id.ID]*BatchTest{},
	}
}

func (m *memRepo) CreateYield(_ context.Context, y *MilkYield) error {
	for _, other := range m.yields {
		if other.CowID == y.CowID && other.RecordedAt.Equal(y.RecordedAt) {
			return apperror.NewDuplicate("milk yield", "cow and time", y.CowID)
		}
	}
	cp := *y
	m.yields[y.ID] = &cp
	return nil
}

func (m *memRepo) UpdateYield(_ context.Context, y *MilkYield) error {
	cp := *y
	m.yields[y.ID] = &cp
	return nil
}

func (m *memRepo) DeleteYield(_ context.Context, yieldID id.ID) error {
	delete(m.yields, yieldID)
	m.deleted = append(m.deleted, yieldID)
	return nil
}

func (m *memRepo) GetYield(_ context.Context, yieldID id.ID) (*MilkYield, error) {
	y, ok := m.yields[yieldID]
	if !ok {
		return nil, apperror.NewNotFound("milk yield", yieldID)
	}
	cp := *y
	return &cp, nil
}

func (m *memRepo) SumTankVolume(_ context.Context, tank Tank, from, to time.Time, exclude id.ID) (types.Litres, error) {
	total := decimal.Zero
	for _, y := range m.yields {
		if y.ID == exclude || y.StorageTank != tank {
			continue
		}
		if y.RecordedAt.Before(from) || !y.RecordedAt.Before(to) {
			continue
		}
		total = total.Add(y.YieldLitres)
	}
	return total, nil
}

func (m *memRepo) LatestBatch(_ context.Context, session collection.Session, date time.Time) (*Batch, error) {
	var latest *Batch
	for _, b := range m.batches {
		if b.Session != session || !b.CollectionDate.Equal(date) {
			continue
		}
		if latest == nil || !b.CreatedAt.Before(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memRepo) CreateBatch(_ context.Context, b *Batch) (*Batch, error) {
	for _, existing := range m.batches {
		if existing.Session == b.Session && existing.CollectionDate.Equal(b.CollectionDate) && !existing.IsLocked() {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *b
	m.batches = append(m.batches, &cp)
	out := cp
	return &out, nil
}

func (m *memRepo) find(batchID id.ID) (*Batch, error) {
	for _, b := range m.batches {
		if b.ID == batchID {
			return b, nil
		}
	}
	return nil, apperror.NewNotFound("batch", batchID)
}

func (m *memRepo) GetBatch(_ context.Context, batchID id.ID) (*Batch, error) {
	b, err := m.find(batchID)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (m *memRepo) GetBatchForUpdate(ctx context.Context, batchID id.ID) (*Batch, error) {
	return m.GetBatch(ctx, batchID)
}

func (m *memRepo) UpdateBatch(_ context.Context, b *Batch) error {
	stored, err := m.find(b.ID)
	if err != nil {
		return err
	}
	*stored = *b
	return nil
}

func (m *memRepo) ListOpenAutoManaged(_ context.Context) ([]*Batch, error) {
	var out []*Batch
	for _, b := range m.batches {
		if b.IsOpen() && b.AutoManaged {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) AttachYield(_ context.Context, batchID, yieldID id.ID) error {
	m.members[batchID] = append(m.members[batchID], yieldID)
	return nil
}

func (m *memRepo) BatchVolume(_ context.Context, batchID id.ID) (types.Litres, error) {
	total := decimal.Zero
	for _, yid := range m.members[batchID] {
		if y, ok := m.yields[yid]; ok {
			total = total.Add(y.YieldLitres)
		}
	}
	return total, nil
}

func (m *memRepo) SetBatchTank(_ context.Context, batchID id.ID, tank Tank) error {
	for _, yid := range m.members[batchID] {
		if y, ok := m.yields[yid]; ok {
			y.StorageTank = tank
		}
	}
	return nil
}

func (m *memRepo) FindTest(_ context.Context, batchID id.ID) (*BatchTest, error) {
	t, ok := m.tests[batchID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) SaveTest(_ context.Context, t *BatchTest) error {
	cp := *t
	m.tests[t.BatchID] = &cp
	return nil
}

var _ Repository = (*memRepo)(nil)
