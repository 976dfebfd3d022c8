package storage

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/inventory"
	"dairyops/internal/domain/production"
	"dairyops/pkg/logger"
)

// MissingLink is an inventory item without a production batch.
type MissingLink struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// Mismatch is a SKU whose inventory differs from its storage total.
type Mismatch struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	InventoryQty decimal.Decimal `json:"inventoryQty"`
	StorageQty   decimal.Decimal `json:"storageQty"`
}

// Report is the outcome of a reconciliation run.
type Report struct {
	DryRun       bool          `json:"dryRun"`
	MissingLinks []MissingLink `json:"missingLinks"`
	Mismatches   []Mismatch    `json:"mismatches"`
	// LotsRemoved lists empty lots, deleted unless DryRun.
	LotsRemoved []id.ID `json:"lotsRemoved"`
}

// Reconcile compares inventory items with storage totals by SKU and finds
// empty lots. With apply the empty lots are deleted.
func (s *Service) Reconcile(ctx context.Context, apply bool) (*Report, error) {
	report := &Report{DryRun: !apply}

	var (
		totals map[string]SKUStorage
		items  []*inventory.Item
		lots   []*Lot
	)
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if totals, items, err = s.readTotalsAndItems(ctx); err != nil {
			return err
		}
		lots, err = s.repo.ListLots(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.BatchID == nil {
			report.MissingLinks = append(report.MissingLinks, MissingLink{SKU: item.SKU, Name: item.Name})
			continue
		}
		stored := decimal.Zero
		if agg, ok := totals[item.SKU]; ok {
			stored = agg.Total
		}
		if stored.Sub(item.CurrentQuantity).Abs().GreaterThan(s.tolerance) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				SKU:          item.SKU,
				Name:         item.Name,
				InventoryQty: item.CurrentQuantity,
				StorageQty:   stored,
			})
		}
	}

	for _, lot := range lots {
		if lot.TotalUnits() > 0 {
			continue
		}
		if apply {
			if err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
				return s.removeLot(ctx, lot)
			}); err != nil {
				return nil, fmt.Errorf("remove empty lot %s: %w", lot.ID, err)
			}
		}
		report.LotsRemoved = append(report.LotsRemoved, lot.ID)
	}

	logger.Info(ctx, "storage reconciled",
		"dry_run", report.DryRun,
		"missing_links", len(report.MissingLinks),
		"mismatches", len(report.Mismatches),
		"empty_lots", len(report.LotsRemoved))
	return report, nil
}

func (s *Service) readTotalsAndItems(ctx context.Context) (map[string]SKUStorage, []*inventory.Item, error) {
	totals, err := s.storageTotals(ctx)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.inventory.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list inventory: %w", err)
	}
	return totals, items, nil
}

func (s *Service) storageTotals(ctx context.Context) (map[string]SKUStorage, error) {
	rows, err := s.repo.StorageBySKU(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate storage: %w", err)
	}
	totals := make(map[string]SKUStorage, len(rows))
	for _, r := range rows {
		if r.SKU == "" {
			continue
		}
		totals[r.SKU] = r
	}
	return totals, nil
}

// Render writes the report the way the reconcile command prints it.
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder
	if len(r.MissingLinks) > 0 {
		b.WriteString("Inventory items missing batch linkage:\n")
		for _, m := range r.MissingLinks {
			fmt.Fprintf(&b, "  - %s: %s\n", m.SKU, m.Name)
		}
	} else {
		b.WriteString("All inventory items have batch IDs.\n")
	}

	if len(r.Mismatches) > 0 {
		b.WriteString("Quantity mismatches detected (by SKU):\n")
		for _, m := range r.Mismatches {
			fmt.Fprintf(&b, "  - %s: inventory=%s vs storage=%s\n", m.SKU, m.InventoryQty, m.StorageQty)
		}
	} else {
		b.WriteString("No quantity mismatches detected.\n")
	}

	switch {
	case len(r.LotsRemoved) == 0:
		b.WriteString("No zero-quantity lots found.\n")
	case r.DryRun:
		fmt.Fprintf(&b, "Lots that would be removed (dry-run): %s\n", joinIDs(r.LotsRemoved))
	default:
		fmt.Fprintf(&b, "Removed zero-quantity lots: %s\n", joinIDs(r.LotsRemoved))
	}

	if r.DryRun {
		b.WriteString("Dry-run complete. Re-run with --apply to persist deletions.\n")
	} else {
		b.WriteString("Reconciliation complete.\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func joinIDs(ids []id.ID) string {
	parts := make([]string, len(ids))
	for i, v := range ids {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// SyncCreate is an inventory item the sync will create.
type SyncCreate struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	BatchID  *id.ID          `json:"batchId,omitempty"`
	Expiry   *time.Time      `json:"expiry,omitempty"`
	Category string          `json:"category"`
}

// SyncUpdate is an inventory item the sync will change.
type SyncUpdate struct {
	SKU     string          `json:"sku"`
	OldQty  decimal.Decimal `json:"oldQty"`
	NewQty  decimal.Decimal `json:"newQty"`
	BatchID *id.ID          `json:"batchId,omitempty"`
}

// Delta is the signed quantity change.
func (u SyncUpdate) Delta() decimal.Decimal {
	return u.NewQty.Sub(u.OldQty)
}

// SyncPlan lists the inventory changes that bring items in line with storage.
type SyncPlan struct {
	DryRun  bool         `json:"dryRun"`
	Creates []SyncCreate `json:"creates"`
	Updates []SyncUpdate `json:"updates"`
}

// SyncInventoryFromStorage sets every SKU's inventory item to its storage
// total, linking the most recently produced batch. Items are created for SKUs
// that have none. Without apply only the plan is returned.
func (s *Service) SyncInventoryFromStorage(ctx context.Context, apply bool) (*SyncPlan, error) {
	var (
		totals map[string]SKUStorage
		items  []*inventory.Item
	)
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		totals, items, err = s.readTotalsAndItems(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	bySKU := make(map[string]*inventory.Item, len(items))
	for _, item := range items {
		bySKU[item.SKU] = item
	}

	plan := &SyncPlan{DryRun: !apply}
	for _, sku := range sortedKeys(totals) {
		agg := totals[sku]
		item, ok := bySKU[sku]
		if !ok {
			name := production.ProductType(agg.ProductType).Label()
			if agg.LatestBatchID == nil {
				name = sku
			}
			plan.Creates = append(plan.Creates, SyncCreate{
				SKU:      sku,
				Name:     name,
				Quantity: agg.Total,
				BatchID:  agg.LatestBatchID,
				Expiry:   agg.EarliestExpiry,
				Category: agg.ProductType,
			})
			continue
		}
		if agg.Total.Equal(item.CurrentQuantity) && sameID(item.BatchID, agg.LatestBatchID) {
			continue
		}
		plan.Updates = append(plan.Updates, SyncUpdate{
			SKU:     sku,
			OldQty:  item.CurrentQuantity,
			NewQty:  agg.Total,
			BatchID: agg.LatestBatchID,
		})
	}

	if !apply {
		return plan, nil
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, c := range plan.Creates {
			snap := inventory.StorageSnapshot{
				SKU:             c.SKU,
				Total:           c.Quantity,
				EarliestExpiry:  c.Expiry,
				LatestBatchID:   c.BatchID,
				ProductCategory: c.Category,
				ProductName:     c.Name,
			}
			if _, _, err := s.inventory.ApplyStorageTotal(ctx, snap, ReasonInitialSync); err != nil {
				return fmt.Errorf("create %s: %w", c.SKU, err)
			}
		}
		for _, u := range plan.Updates {
			agg := totals[u.SKU]
			snap := inventory.StorageSnapshot{
				SKU:            u.SKU,
				Total:          u.NewQty,
				EarliestExpiry: agg.EarliestExpiry,
				LatestBatchID:  u.BatchID,
			}
			if _, _, err := s.inventory.ApplyStorageTotal(ctx, snap, ReasonResync); err != nil {
				return fmt.Errorf("update %s: %w", u.SKU, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory synced from storage", "created", len(plan.Creates), "updated", len(plan.Updates))
	return plan, nil
}

// Render writes the plan the way the sync command prints it.
func (p *SyncPlan) Render(w io.Writer) error {
	var b strings.Builder
	if len(p.Creates) > 0 {
		b.WriteString("Inventory items to create:\n")
		for _, c := range p.Creates {
			fmt.Fprintf(&b, "  + %s: %s qty=%s\n", c.SKU, c.Name, c.Quantity)
		}
	} else {
		b.WriteString("No new inventory items needed.\n")
	}

	if len(p.Updates) > 0 {
		b.WriteString("Inventory items to update:\n")
		for _, u := range p.Updates {
			delta := u.Delta()
			sign := ""
			if !delta.IsNegative() {
				sign = "+"
			}
			fmt.Fprintf(&b, "  ~ %s: %s -> %s (delta %s%s)\n", u.SKU, u.OldQty, u.NewQty, sign, delta)
		}
	} else {
		b.WriteString("All existing items already in sync.\n")
	}

	if p.DryRun {
		b.WriteString("Dry-run complete. Re-run with --apply to persist.\n")
	} else {
		b.WriteString("Sync complete.\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func sameID(a, b *id.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortedKeys(m map[string]SKUStorage) []string {
	return slices.Sorted(maps.Keys(m))
}
