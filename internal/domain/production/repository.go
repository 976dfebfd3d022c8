package production

import (
	"context"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/intake"
)

// Repository persists production runs and applies tank draws.
type Repository interface {
	Create(ctx context.Context, b *Batch) error
	Get(ctx context.Context, batchID id.ID) (*Batch, error)
	Update(ctx context.Context, b *Batch) error

	// ListConsumableYieldsForUpdate row-locks the premium and standard yields
	// of tank, oldest first.
	ListConsumableYieldsForUpdate(ctx context.Context, tank intake.Tank) ([]TankYield, error)
	ApplyDeductions(ctx context.Context, plan []Deduction) error
}
