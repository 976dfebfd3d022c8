package intake

import (
	"context"
	"time"

	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/collection"
)

// Repository persists yields, batches and batch tests.
// Get methods return apperror NotFound when the row is missing; Latest and
// Find methods return nil, nil instead.
type Repository interface {
	CreateYield(ctx context.Context, y *MilkYield) error
	UpdateYield(ctx context.Context, y *MilkYield) error
	DeleteYield(ctx context.Context, yieldID id.ID) error
	GetYield(ctx context.Context, yieldID id.ID) (*MilkYield, error)

	// SumTankVolume totals yields in tank recorded in [from, to), excluding one yield.
	SumTankVolume(ctx context.Context, tank Tank, from, to time.Time, exclude id.ID) (types.Litres, error)

	// LatestBatch returns the most recently created batch for (session, date).
	LatestBatch(ctx context.Context, session collection.Session, date time.Time) (*Batch, error)
	// CreateBatch inserts b unless another unlocked batch exists for the same
	// (session, date); it returns whichever batch is now current.
	CreateBatch(ctx context.Context, b *Batch) (*Batch, error)
	GetBatch(ctx context.Context, batchID id.ID) (*Batch, error)
	GetBatchForUpdate(ctx context.Context, batchID id.ID) (*Batch, error)
	UpdateBatch(ctx context.Context, b *Batch) error
	ListOpenAutoManaged(ctx context.Context) ([]*Batch, error)

	AttachYield(ctx context.Context, batchID, yieldID id.ID) error
	BatchVolume(ctx context.Context, batchID id.ID) (types.Litres, error)
	SetBatchTank(ctx context.Context, batchID id.ID, tank Tank) error

	FindTest(ctx context.Context, batchID id.ID) (*BatchTest, error)
	SaveTest(ctx context.Context, t *BatchTest) error
}
