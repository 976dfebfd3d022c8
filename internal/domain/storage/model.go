// Package storage tracks packaged product lots in cold storage and keeps the
// SKU inventory in line with them.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/entity"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
)

// LocationType classifies storage areas.
type LocationType string

const (
	LocationColdRoom     LocationType = "cold_room"
	LocationFermentation LocationType = "fermentation_zone"
	LocationATMs         LocationType = "atms_Storage"
	LocationAmbient      LocationType = "ambient_store"
	LocationBlastChiller LocationType = "blast_chiller"
	LocationDryStore     LocationType = "dry_store"
	LocationQuarantine   LocationType = "quarantine"
)

// Location is a physical storage area.
type Location struct {
	ID           id.ID          `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	LocationType LocationType   `db:"location_type" json:"locationType"`
	Description  string         `db:"description" json:"description"`
	Capacity     types.Quantity `db:"capacity" json:"capacity"`
}

// Packaging maps a product to its pack size and carton size.
type Packaging struct {
	ID                 id.ID            `db:"id" json:"id"`
	ProductID          id.ID            `db:"inventory_item_id" json:"productId"`
	PackSizeML         int              `db:"pack_size_ml" json:"packSizeMl"`
	PacketsPerCarton   int              `db:"packets_per_carton" json:"packetsPerCarton"`
	BulkPricePerCarton *decimal.Decimal `db:"bulk_price_per_carton" json:"bulkPricePerCarton,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// PacketsFromLitres returns how many whole packets the volume fills.
func (p *Packaging) PacketsFromLitres(litres types.Litres) int {
	if p == nil || p.PackSizeML <= 0 {
		return int(litres.Floor().IntPart())
	}
	ml := litres.Mul(decimal.NewFromInt(1000))
	return int(ml.Div(decimal.NewFromInt(int64(p.PackSizeML))).Floor().IntPart())
}

// LotStatus is derived from the expiry date.
type LotStatus string

const (
	LotInStorage  LotStatus = "in_storage"
	LotNearExpiry LotStatus = "near_expiry"
	LotExpired    LotStatus = "expired"
)

// Valid reports whether s is a known status.
func (s LotStatus) Valid() bool {
	return s == LotInStorage || s == LotNearExpiry || s == LotExpired
}

// NearExpiryDays is how close an expiry date must be to flag a lot.
const NearExpiryDays = 3

// StatusForExpiry derives a lot status on the given day.
func StatusForExpiry(expiry, today time.Time) LotStatus {
	days := types.DaysBetween(today, expiry)
	switch {
	case days < 0:
		return LotExpired
	case days <= NearExpiryDays:
		return LotNearExpiry
	default:
		return LotInStorage
	}
}

// SplitUnits divides packets into full cartons and loose packets.
// Without a carton size everything is loose.
func SplitUnits(total, perCarton int) (cartons, loose int) {
	if total <= 0 {
		return 0, 0
	}
	if perCarton <= 0 {
		return 0, total
	}
	return total / perCarton, total % perCarton
}

// Lot is the stock of one production batch in cold storage.
type Lot struct {
	ID                id.ID     `db:"id" json:"id"`
	ProductionBatchID id.ID     `db:"production_batch_id" json:"productionBatchId"`
	PackagingID       *id.ID    `db:"packaging_id" json:"packagingId,omitempty"`
	ExpiryDate        time.Time `db:"expiry_date" json:"expiryDate"`
	Cartons           int       `db:"cartons" json:"cartons"`
	LooseUnits        int       `db:"loose_units" json:"looseUnits"`
	LocationID        id.ID     `db:"location_id" json:"locationId"`
	Status            LotStatus `db:"status" json:"status"`
	LastRestocked     time.Time `db:"last_restocked" json:"lastRestocked"`
	AuditNotes        string    `db:"audit_notes" json:"auditNotes"`

	// Packaging is loaded with the lot when PackagingID is set.
	Packaging *Packaging `db:"-" json:"packaging,omitempty"`
}

func (l *Lot) perCarton() int {
	if l.Packaging == nil {
		return 0
	}
	return l.Packaging.PacketsPerCarton
}

// TotalUnits returns the packets in the lot.
func (l *Lot) TotalUnits() int {
	if pc := l.perCarton(); pc > 0 {
		return l.Cartons*pc + l.LooseUnits
	}
	return l.LooseUnits
}

// SetTotalUnits stores total packets as cartons and loose packets.
func (l *Lot) SetTotalUnits(total int) {
	l.Cartons, l.LooseUnits = SplitUnits(total, l.perCarton())
}

// RefreshStatus recomputes the status on the given day.
func (l *Lot) RefreshStatus(today time.Time) bool {
	next := StatusForExpiry(l.ExpiryDate, today)
	changed := next != l.Status
	l.Status = next
	return changed
}

// Validate implements entity.Validatable.
func (l *Lot) Validate(_ context.Context) error {
	if id.IsNil(l.ProductionBatchID) {
		return apperror.NewValidation("production batch is required").WithDetail("field", "productionBatchId")
	}
	if id.IsNil(l.LocationID) {
		return apperror.NewValidation("Pick a storage location for approved batches.").WithDetail("field", "locationId")
	}
	if l.ExpiryDate.IsZero() {
		return apperror.NewValidation("expiry date is required").WithDetail("field", "expiryDate")
	}
	if l.Cartons < 0 || l.LooseUnits < 0 {
		return apperror.NewValidation("quantities cannot be negative").WithDetail("field", "cartons")
	}
	if !l.Status.Valid() {
		return apperror.NewValidation("unknown storage status").WithDetail("field", "status")
	}
	return nil
}

// ExpiredRecord keeps stock written off from a lot.
type ExpiredRecord struct {
	ID          id.ID     `db:"id" json:"id"`
	LotID       id.ID     `db:"lot_id" json:"lotId"`
	SKU         string    `db:"sku" json:"sku"`
	PackagingID *id.ID    `db:"packaging_id" json:"packagingId,omitempty"`
	Cartons     int       `db:"cartons" json:"cartons"`
	LooseUnits  int       `db:"loose_units" json:"looseUnits"`
	ExpiryDate  time.Time `db:"expiry_date" json:"expiryDate"`
	BatchID     id.ID     `db:"production_batch_id" json:"batchId"`
	LocationID  id.ID     `db:"location_id" json:"locationId"`
	RemovedAt   time.Time `db:"removed_at" json:"removedAt"`
	AuditNotes  string    `db:"audit_notes" json:"auditNotes"`
}

// NormalizeSKU trims and upper-cases a SKU.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

var _ entity.Validatable = (*Lot)(nil)
