package sales

import (
	"context"

	"dairyops/internal/core/id"
)

// Repository persists sales with their lines.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	Get(ctx context.Context, saleID id.ID) (*Sale, error)
	GetForUpdate(ctx context.Context, saleID id.ID) (*Sale, error)
	UpdateStatus(ctx context.Context, saleID id.ID, status PaymentStatus) error
	// List returns the latest sales without their lines.
	List(ctx context.Context, limit int) ([]*Sale, error)
}
