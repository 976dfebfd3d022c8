// Package storage_repo persists cold storage locations, packaging and lots.
package storage_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/storage"
	"dairyops/internal/infrastructure/storage/postgres"
)

const batchesTable = "production_batches"

// lotUnits totals the units of a lot row aliased l joined to packaging p.
const lotUnits = "CASE WHEN COALESCE(p.packets_per_carton, 0) > 0 " +
	"THEN l.cartons * p.packets_per_carton ELSE 0 END + l.loose_units"

// Repo implements storage.Repository.
type Repo struct {
	locations *postgres.Table[storage.Location]
	packaging *postgres.Table[storage.Packaging]
	lots      *postgres.Table[storage.Lot]
	expired   *postgres.Table[storage.ExpiredRecord]
}

var _ storage.Repository = (*Repo)(nil)

// New creates the storage repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		locations: postgres.NewTable[storage.Location](txm, "storage_locations", "storage location"),
		packaging: postgres.NewTable[storage.Packaging](txm, "product_packaging", "packaging"),
		lots:      postgres.NewTable[storage.Lot](txm, "cold_storage_lots", "cold storage lot"),
		expired:   postgres.NewTable[storage.ExpiredRecord](txm, "expired_stock_records", "expired stock record"),
	}
}

// --- Locations and packaging ---

func (r *Repo) GetLocation(ctx context.Context, locationID id.ID) (*storage.Location, error) {
	return r.locations.Get(ctx, r.locations.Select().Where(squirrel.Eq{"id": locationID}), locationID)
}

func (r *Repo) ListLocations(ctx context.Context) ([]*storage.Location, error) {
	return r.locations.List(ctx, r.locations.Select().OrderBy("name"))
}

func (r *Repo) FindPackagingForSKU(ctx context.Context, sku string) (*storage.Packaging, error) {
	q := postgres.Builder().
		Select(prefixed("p", r.packaging.Columns())...).
		From(r.packaging.Name() + " p").
		Join("inventory_items i ON i.id = p.inventory_item_id").
		Where(squirrel.Eq{"i.sku": sku}).
		OrderBy("p.pack_size_ml DESC").
		Limit(1)
	return r.packaging.Find(ctx, q)
}

// --- Lots ---

func (r *Repo) GetLot(ctx context.Context, lotID id.ID) (*storage.Lot, error) {
	lot, err := r.lots.Get(ctx, r.lots.Select().Where(squirrel.Eq{"id": lotID}), lotID)
	if err != nil {
		return nil, err
	}
	return lot, r.loadPackaging(ctx, lot)
}

func (r *Repo) GetLotForUpdate(ctx context.Context, lotID id.ID) (*storage.Lot, error) {
	lot, err := r.lots.Get(ctx, postgres.ForUpdate(r.lots.Select().Where(squirrel.Eq{"id": lotID})), lotID)
	if err != nil {
		return nil, err
	}
	return lot, r.loadPackaging(ctx, lot)
}

func (r *Repo) FindLotByBatch(ctx context.Context, batchID id.ID) (*storage.Lot, error) {
	return r.findLot(ctx, r.lots.Select().Where(squirrel.Eq{"production_batch_id": batchID}))
}

func (r *Repo) FindLotByBatchForUpdate(ctx context.Context, batchID id.ID) (*storage.Lot, error) {
	return r.findLot(ctx, postgres.ForUpdate(r.lots.Select().Where(squirrel.Eq{"production_batch_id": batchID})))
}

func (r *Repo) findLot(ctx context.Context, q squirrel.SelectBuilder) (*storage.Lot, error) {
	lot, err := r.lots.Find(ctx, q)
	if err != nil || lot == nil {
		return nil, err
	}
	return lot, r.loadPackaging(ctx, lot)
}

func (r *Repo) ListLots(ctx context.Context) ([]*storage.Lot, error) {
	lots, err := r.lots.List(ctx, r.lots.Select().OrderBy("expiry_date", "id"))
	if err != nil {
		return nil, err
	}
	return lots, r.loadPackaging(ctx, lots...)
}

func (r *Repo) CreateLot(ctx context.Context, lot *storage.Lot) error {
	return r.lots.Insert(ctx, lot)
}

func (r *Repo) UpdateLot(ctx context.Context, lot *storage.Lot) error {
	return r.lots.Update(ctx, lot.ID, lot, "production_batch_id")
}

func (r *Repo) DeleteLot(ctx context.Context, lotID id.ID) error {
	return r.lots.Delete(ctx, lotID)
}

// loadPackaging fills Lot.Packaging with one query for all lots.
func (r *Repo) loadPackaging(ctx context.Context, lots ...*storage.Lot) error {
	var ids []id.ID
	for _, l := range lots {
		if l.PackagingID != nil {
			ids = append(ids, *l.PackagingID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.packaging.List(ctx, r.packaging.Select().Where(squirrel.Eq{"id": ids}))
	if err != nil {
		return fmt.Errorf("load lot packaging: %w", err)
	}
	byID := make(map[id.ID]*storage.Packaging, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	for _, l := range lots {
		if l.PackagingID != nil {
			l.Packaging = byID[*l.PackagingID]
		}
	}
	return nil
}

// --- Aggregates ---

func (r *Repo) aggregate() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(
			"b.sku",
			"COALESCE(SUM("+lotUnits+"), 0) AS total_units",
			"MIN(l.expiry_date) AS earliest_expiry",
			"(array_agg(b.id ORDER BY b.produced_at DESC))[1] AS latest_batch_id",
			"(array_agg(b.product_type ORDER BY b.produced_at DESC))[1] AS product_type",
		).
		From(r.lots.Name() + " l").
		Join(batchesTable + " b ON b.id = l.production_batch_id").
		LeftJoin(r.packaging.Name() + " p ON p.id = l.packaging_id").
		GroupBy("b.sku")
}

func (r *Repo) StorageForSKU(ctx context.Context, sku string) (storage.SKUStorage, error) {
	rows, err := r.selectAggregates(ctx, r.aggregate().Where(squirrel.Eq{"b.sku": sku}))
	if err != nil {
		return storage.SKUStorage{}, err
	}
	if len(rows) == 0 {
		return storage.SKUStorage{SKU: sku, Total: decimal.Zero}, nil
	}
	return rows[0], nil
}

func (r *Repo) StorageBySKU(ctx context.Context) ([]storage.SKUStorage, error) {
	return r.selectAggregates(ctx, r.aggregate().OrderBy("b.sku"))
}

func (r *Repo) selectAggregates(ctx context.Context, q squirrel.SelectBuilder) ([]storage.SKUStorage, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build storage aggregate: %w", err)
	}
	var rows []storage.SKUStorage
	if err := pgxscan.Select(ctx, r.lots.Querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("aggregate storage by sku: %w", err)
	}
	return rows, nil
}

// --- Expired stock ---

func (r *Repo) CreateExpiredRecord(ctx context.Context, rec *storage.ExpiredRecord) error {
	return r.expired.Insert(ctx, rec)
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
