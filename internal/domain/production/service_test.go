package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	"dairyops/internal/core/id"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/intake"
)

type memRepo struct {
	batches map[id.ID]*Batch
	yields  map[intake.Tank][]TankYield
	applied int
}

func (m *memRepo) Create(_ context.Context, b *Batch) error {
	cp := *b
	m.batches[b.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, batchID id.ID) (*Batch, error) {
	b, ok := m.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("production batch", batchID)
	}
	cp := *b
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, b *Batch) error {
	cp := *b
	m.batches[b.ID] = &cp
	return nil
}

func (m *memRepo) ListConsumableYieldsForUpdate(_ context.Context, tank intake.Tank) ([]TankYield, error) {
	return append([]TankYield(nil), m.yields[tank]...), nil
}

func (m *memRepo) ApplyDeductions(_ context.Context, plan []Deduction) error {
	for _, d := range plan {
		for tank, ys := range m.yields {
			for i := range ys {
				if ys[i].ID == d.YieldID {
					m.yields[tank][i].YieldLitres = d.Remaining
				}
			}
		}
	}
	m.applied++
	return nil
}

func newService(repo *memRepo) *Service {
	clk := &clock.Fixed{At: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}
	return NewService(repo, tx.Passthrough{}, clk, audit.Nop{})
}

func TestService_Create(t *testing.T) {
	repo := &memRepo{batches: map[id.ID]*Batch{}, yields: map[intake.Tank][]TankYield{intake.TankA: tankYields()}}
	svc := newService(repo)

	b, plan, err := svc.Create(context.Background(), CreateInput{
		SourceTank:       intake.TankA,
		ProductType:      ProductMala,
		SKU:              " mala-cl-500 ",
		QuantityProduced: types.Must("24"),
		LitersUsed:       types.Must("12"),
	})
	require.NoError(t, err)
	assert.Equal(t, "MALA-CL-500", b.SKU)
	assert.True(t, b.MovedToLab)
	assert.Equal(t, StatusPendingLab, b.Status)
	assert.Len(t, plan, 2)

	left := repo.yields[intake.TankA]
	assert.True(t, left[0].YieldLitres.IsZero())
	assert.True(t, left[1].YieldLitres.Equal(types.Must("3")))
	assert.True(t, left[2].YieldLitres.Equal(types.Must("3")), "low grade untouched")

	_, err = repo.Get(context.Background(), b.ID)
	assert.NoError(t, err)
}

func TestService_CreateInsufficientLeavesTankUntouched(t *testing.T) {
	repo := &memRepo{batches: map[id.ID]*Batch{}, yields: map[intake.Tank][]TankYield{intake.TankA: tankYields()}}
	svc := newService(repo)

	_, _, err := svc.Create(context.Background(), CreateInput{
		SourceTank:       intake.TankA,
		ProductType:      ProductYogurt,
		SKU:              "YOG-PL-250",
		QuantityProduced: types.Must("40"),
		LitersUsed:       types.Must("20"),
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Zero(t, repo.applied)
	assert.Empty(t, repo.batches)
	assert.True(t, repo.yields[intake.TankA][0].YieldLitres.Equal(types.Must("10")))
}

func TestService_CreateRejectsUnassignedTank(t *testing.T) {
	repo := &memRepo{batches: map[id.ID]*Batch{}, yields: map[intake.Tank][]TankYield{}}
	svc := newService(repo)

	_, _, err := svc.Create(context.Background(), CreateInput{
		SourceTank:       intake.TankUnassigned,
		ProductType:      ProductATM,
		SKU:              "ATM-TOWN",
		QuantityProduced: types.Must("1"),
		LitersUsed:       types.Must("1"),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
