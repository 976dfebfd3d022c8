package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/inventory"
	"dairyops/internal/domain/production"
	"dairyops/pkg/logger"
)

// Inventory transaction reasons written by storage.
const (
	ReasonLotCreated  = "Storage lot created"
	ReasonLotUpdated  = "Storage lot updated"
	ReasonLotRemoved  = "Storage lot removed"
	ReasonInitialSync = "Initial sync from storage"
	ReasonResync      = "Sync from storage reconciliation"
)

// DefaultTolerance is the largest inventory/storage difference not reported.
var DefaultTolerance = decimal.RequireFromString("0.01")

// BatchReader loads production batches.
type BatchReader interface {
	Get(ctx context.Context, batchID id.ID) (*production.Batch, error)
}

// Inventory is the part of the inventory service storage drives.
type Inventory interface {
	ApplyStorageTotal(ctx context.Context, snap inventory.StorageSnapshot, reason string) (*inventory.Item, *inventory.Transaction, error)
	List(ctx context.Context) ([]*inventory.Item, error)
}

// Service manages cold storage lots. Every lot write re-syncs the SKU's
// inventory item in the same transaction.
type Service struct {
	repo      Repository
	batches   BatchReader
	inventory Inventory
	txm       tx.Manager
	clock     clock.Clock
	audit     audit.Recorder
	tolerance decimal.Decimal
}

// NewService creates the storage service.
func NewService(repo Repository, batches BatchReader, inv Inventory, txm tx.Manager, clk clock.Clock, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		batches:   batches,
		inventory: inv,
		txm:       txm,
		clock:     clk,
		audit:     rec,
		tolerance: DefaultTolerance,
	}
}

// WithTolerance sets the reconciliation tolerance.
func (s *Service) WithTolerance(t decimal.Decimal) *Service {
	s.tolerance = t
	return s
}

// Locations lists storage locations.
func (s *Service) Locations(ctx context.Context) ([]*Location, error) {
	return s.repo.ListLocations(ctx)
}

// Lots lists all lots ordered by expiry.
func (s *Service) Lots(ctx context.Context) ([]*Lot, error) {
	var lots []*Lot
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		lots, err = s.repo.ListLots(ctx)
		return err
	})
	return lots, err
}

// LotForBatch returns the lot of a production batch, or nil.
func (s *Service) LotForBatch(ctx context.Context, batchID id.ID) (*Lot, error) {
	return s.repo.FindLotByBatch(ctx, batchID)
}

// PackagingForSKU returns the packaging rule of a SKU, or nil.
func (s *Service) PackagingForSKU(ctx context.Context, sku string) (*Packaging, error) {
	return s.repo.FindPackagingForSKU(ctx, NormalizeSKU(sku))
}

// SaveLot creates a lot when it has no ID and updates it otherwise, then
// syncs the SKU inventory.
func (s *Service) SaveLot(ctx context.Context, lot *Lot) error {
	created := id.IsNil(lot.ID)
	if created {
		lot.ID = id.New()
		lot.LastRestocked = s.clock.Now()
	}
	if lot.Status == "" {
		lot.Status = StatusForExpiry(lot.ExpiryDate, clock.Today(s.clock))
	}
	if err := lot.Validate(ctx); err != nil {
		return err
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		reason := ReasonLotUpdated
		if created {
			reason = ReasonLotCreated
			if err := s.repo.CreateLot(ctx, lot); err != nil {
				return fmt.Errorf("create lot: %w", err)
			}
		} else if err := s.repo.UpdateLot(ctx, lot); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
		return s.syncBatchSKU(ctx, lot.ProductionBatchID, reason)
	})
}

// DeleteLot removes a lot and syncs the SKU inventory.
func (s *Service) DeleteLot(ctx context.Context, lotID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err := s.repo.GetLotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		return s.removeLot(ctx, lot)
	})
}

func (s *Service) removeLot(ctx context.Context, lot *Lot) error {
	if err := s.repo.DeleteLot(ctx, lot.ID); err != nil {
		return fmt.Errorf("delete lot: %w", err)
	}
	if err := s.audit.LogChange(ctx, audit.EntityColdStorageLot, lot.ID, audit.ActionDelete, map[string]any{
		"production_batch_id": lot.ProductionBatchID,
		"total_units":         lot.TotalUnits(),
	}); err != nil {
		return err
	}
	return s.syncBatchSKU(ctx, lot.ProductionBatchID, ReasonLotRemoved)
}

// syncBatchSKU pushes the storage total of the batch's SKU into inventory.
func (s *Service) syncBatchSKU(ctx context.Context, batchID id.ID, reason string) error {
	b, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load production batch: %w", err)
	}
	if b.SKU == "" {
		return nil
	}
	agg, err := s.repo.StorageForSKU(ctx, b.SKU)
	if err != nil {
		return fmt.Errorf("aggregate storage for %s: %w", b.SKU, err)
	}
	snap := inventory.StorageSnapshot{
		SKU:             b.SKU,
		Total:           agg.Total,
		EarliestExpiry:  agg.EarliestExpiry,
		LatestBatchID:   &b.ID,
		ProductCategory: string(b.ProductType),
		ProductName:     b.ProductType.Label(),
	}
	_, _, err = s.inventory.ApplyStorageTotal(ctx, snap, reason)
	return err
}

// AssignInput places an approved production batch into storage.
type AssignInput struct {
	Batch      *production.Batch
	LocationID id.ID
	// Packets is the packet count; when nil it is inferred from Litres or
	// taken from the existing lot.
	Packets    *int
	Litres     *types.Litres
	Expiry     *time.Time
	Status     LotStatus
	AuditNotes string
}

// AssignLot creates or updates the lot of a production batch.
func (s *Service) AssignLot(ctx context.Context, in AssignInput) (*Lot, error) {
	if in.Batch == nil {
		return nil, apperror.NewValidation("production batch is required")
	}
	var lot *Lot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetLocation(ctx, in.LocationID); err != nil {
			return err
		}
		pkg, err := s.repo.FindPackagingForSKU(ctx, in.Batch.SKU)
		if err != nil {
			return err
		}
		lot, err = s.repo.FindLotByBatchForUpdate(ctx, in.Batch.ID)
		if err != nil {
			return err
		}

		total, ok := packetsFor(in, pkg, lot)
		if !ok {
			return apperror.NewFieldErrors(map[string]string{
				"storageQuantity": "Enter the quantity moving into storage.",
			})
		}

		if lot == nil {
			lot = &Lot{ProductionBatchID: in.Batch.ID}
		}
		if pkg != nil {
			lot.PackagingID = &pkg.ID
		}
		lot.Packaging = pkg
		lot.LocationID = in.LocationID
		lot.ExpiryDate = types.DateOf(in.Batch.ProducedAt, s.clock.Location())
		if in.Expiry != nil {
			lot.ExpiryDate = *in.Expiry
		}
		lot.Status = in.Status
		if lot.Status == "" {
			lot.Status = LotInStorage
		}
		lot.AuditNotes = in.AuditNotes
		lot.SetTotalUnits(total)
		return s.SaveLot(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "production batch stored",
		"batch_id", in.Batch.ID, "lot_id", lot.ID, "units", lot.TotalUnits(), "location_id", lot.LocationID)
	return lot, nil
}

func packetsFor(in AssignInput, pkg *Packaging, existing *Lot) (int, bool) {
	switch {
	case in.Packets != nil && *in.Packets > 0:
		return *in.Packets, true
	case in.Litres != nil && in.Litres.IsPositive():
		n := pkg.PacketsFromLitres(*in.Litres)
		return n, n > 0
	case existing != nil && existing.TotalUnits() > 0:
		return existing.TotalUnits(), true
	}
	return 0, false
}

// AdjustForInventoryItem applies delta packets to the lot of the item's
// batch: negative for stock leaving storage, positive for returns. The lot
// is deleted when nothing is left. Lots hold whole packets, so a fractional
// delta is rejected. Reports whether a lot was changed.
func (s *Service) AdjustForInventoryItem(ctx context.Context, item *inventory.Item, delta decimal.Decimal) (bool, error) {
	if item == nil || item.BatchID == nil || delta.IsZero() {
		return false, nil
	}
	if !delta.Equal(delta.Truncate(0)) {
		return false, apperror.NewValidation(fmt.Sprintf("%s is stored in whole packets, got %s", item.SKU, delta.Abs()))
	}

	changed := false
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err := s.repo.FindLotByBatchForUpdate(ctx, *item.BatchID)
		if err != nil || lot == nil {
			return err
		}

		changed = true

		before := lot.TotalUnits()
		newTotal := before + int(delta.IntPart())
		if newTotal <= 0 {
			return s.removeLot(ctx, lot)
		}

		lot.SetTotalUnits(newTotal)
		lot.LastRestocked = s.clock.Now()
		lot.RefreshStatus(clock.Today(s.clock))
		if err := s.repo.UpdateLot(ctx, lot); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
		if err := s.audit.LogChange(ctx, audit.EntityColdStorageLot, lot.ID, audit.ActionAdjust, map[string]any{
			"from": before,
			"to":   newTotal,
			"sku":  item.SKU,
		}); err != nil {
			return err
		}
		return s.syncBatchSKU(ctx, lot.ProductionBatchID, ReasonLotUpdated)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// RefreshStatuses recomputes every lot status for today and returns how
// many changed.
func (s *Service) RefreshStatuses(ctx context.Context) (int, error) {
	lots, err := s.repo.ListLots(ctx)
	if err != nil {
		return 0, err
	}
	today := clock.Today(s.clock)
	changed := 0
	for _, lot := range lots {
		if !lot.RefreshStatus(today) {
			continue
		}
		if err := s.repo.UpdateLot(ctx, lot); err != nil {
			return changed, fmt.Errorf("update lot %s: %w", lot.ID, err)
		}
		changed++
	}
	if changed > 0 {
		logger.Info(ctx, "lot statuses refreshed", "changed", changed)
	}
	return changed, nil
}

// MoveToExpired writes the lot's stock off into the expired register and
// leaves the lot empty with status expired.
func (s *Service) MoveToExpired(ctx context.Context, lotID id.ID) (*ExpiredRecord, error) {
	var rec *ExpiredRecord
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err := s.repo.GetLotForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		b, err := s.batches.Get(ctx, lot.ProductionBatchID)
		if err != nil {
			return fmt.Errorf("load production batch: %w", err)
		}
		now := s.clock.Now()
		rec = &ExpiredRecord{
			ID:          id.New(),
			LotID:       lot.ID,
			SKU:         b.SKU,
			PackagingID: lot.PackagingID,
			Cartons:     lot.Cartons,
			LooseUnits:  lot.LooseUnits,
			ExpiryDate:  lot.ExpiryDate,
			BatchID:     lot.ProductionBatchID,
			LocationID:  lot.LocationID,
			RemovedAt:   now,
			AuditNotes: fmt.Sprintf("Expired stock moved by %s on %s",
				appctx.GetOperatorID(ctx), now.Format(time.DateOnly)),
		}
		if err := s.repo.CreateExpiredRecord(ctx, rec); err != nil {
			return fmt.Errorf("create expired record: %w", err)
		}
		lot.Cartons, lot.LooseUnits = 0, 0
		lot.Status = LotExpired
		if err := s.repo.UpdateLot(ctx, lot); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
		if err := s.audit.LogChange(ctx, audit.EntityColdStorageLot, lot.ID, audit.ActionExpire, map[string]any{
			"cartons":     rec.Cartons,
			"loose_units": rec.LooseUnits,
			"expiry_date": rec.ExpiryDate.Format(time.DateOnly),
		}); err != nil {
			return err
		}
		return s.syncBatchSKU(ctx, lot.ProductionBatchID, ReasonLotUpdated)
	})
	if err != nil {
		return nil, err
	}
	logger.Warn(ctx, "lot written off as expired", "lot_id", lotID, "sku", rec.SKU,
		"cartons", rec.Cartons, "loose_units", rec.LooseUnits)
	return rec, nil
}
