package lab

import (
	"context"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/production"
	"dairyops/internal/domain/storage"
)

// Repository persists approvals. One approval exists per production batch.
type Repository interface {
	// FindByBatch returns nil, nil when the batch has no approval yet.
	FindByBatch(ctx context.Context, batchID id.ID) (*Approval, error)
	FindByBatchForUpdate(ctx context.Context, batchID id.ID) (*Approval, error)
	Save(ctx context.Context, a *Approval) error
	// List returns approvals newest first, filtered by result when set.
	List(ctx context.Context, result Result) ([]*Approval, error)
}

// ProductionBatches loads and updates the batches under review.
type ProductionBatches interface {
	Get(ctx context.Context, batchID id.ID) (*production.Batch, error)
	Update(ctx context.Context, b *production.Batch) error
}

// StorageAssigner releases approved batches into cold storage.
type StorageAssigner interface {
	LotForBatch(ctx context.Context, batchID id.ID) (*storage.Lot, error)
	AssignLot(ctx context.Context, in storage.AssignInput) (*storage.Lot, error)
}
