package storage

import (
	"context"
	"time"

	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
)

// SKUStorage aggregates the lots of one SKU.
type SKUStorage struct {
	SKU            string         `db:"sku"`
	Total          types.Quantity `db:"total_units"`
	EarliestExpiry *time.Time     `db:"earliest_expiry"`
	// LatestBatchID is the most recently produced batch of the SKU.
	LatestBatchID *id.ID `db:"latest_batch_id"`
	ProductType   string `db:"product_type"`
}

// Repository persists locations, packaging rules and lots.
// Find methods return nil, nil when nothing matches; lots come back with
// their packaging loaded.
type Repository interface {
	GetLocation(ctx context.Context, locationID id.ID) (*Location, error)
	ListLocations(ctx context.Context) ([]*Location, error)
	// FindPackagingForSKU returns the largest pack size configured for the SKU.
	FindPackagingForSKU(ctx context.Context, sku string) (*Packaging, error)

	GetLot(ctx context.Context, lotID id.ID) (*Lot, error)
	GetLotForUpdate(ctx context.Context, lotID id.ID) (*Lot, error)
	FindLotByBatch(ctx context.Context, batchID id.ID) (*Lot, error)
	FindLotByBatchForUpdate(ctx context.Context, batchID id.ID) (*Lot, error)
	ListLots(ctx context.Context) ([]*Lot, error)
	CreateLot(ctx context.Context, lot *Lot) error
	UpdateLot(ctx context.Context, lot *Lot) error
	DeleteLot(ctx context.Context, lotID id.ID) error

	StorageForSKU(ctx context.Context, sku string) (SKUStorage, error)
	StorageBySKU(ctx context.Context) ([]SKUStorage, error)

	CreateExpiredRecord(ctx context.Context, r *ExpiredRecord) error
}
