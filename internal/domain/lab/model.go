// Package lab records the lab verdict on production batches, issues expiry
// dates and releases approved batches into cold storage.
package lab

import (
	"time"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/intake"
	"dairyops/internal/domain/production"
	"dairyops/internal/domain/storage"
)

// Result is the lab verdict on a production batch.
type Result string

const (
	ResultPending  Result = "pending"
	ResultApproved Result = "approved"
	ResultRejected Result = "rejected"
)

// Valid reports whether r is a known verdict.
func (r Result) Valid() bool {
	return r == ResultPending || r == ResultApproved || r == ResultRejected
}

// Approval is the lab decision for one production batch.
type Approval struct {
	ID                id.ID      `db:"id" json:"id"`
	ProductionBatchID id.ID      `db:"production_batch_id" json:"productionBatchId"`
	OverallResult     Result     `db:"overall_result" json:"overallResult"`
	ExpiryDate        *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	ApprovedBy        string     `db:"approved_by" json:"approvedBy"`
	ApprovedAt        time.Time  `db:"approved_at" json:"approvedAt"`
	Remarks           string     `db:"remarks" json:"remarks"`
}

// DesiredStatus is the production status implied by the approval.
func (a *Approval) DesiredStatus() production.Status {
	if a.OverallResult == ResultApproved {
		if a.ExpiryDate != nil {
			return production.StatusReadyForStore
		}
		return production.StatusLabApproved
	}
	return production.StatusPendingLab
}

// SyncProductionBatchState moves the batch to the status implied by the
// approval and marks it as handed to the lab. Reports whether b changed.
func SyncProductionBatchState(a *Approval, b *production.Batch) bool {
	if a == nil || b == nil {
		return false
	}
	changed := false
	if want := a.DesiredStatus(); b.Status != want {
		b.Status = want
		changed = true
	}
	if !b.MovedToLab {
		b.MovedToLab = true
		changed = true
	}
	return changed
}

// FallbackShelfLifeDays applies to SKUs without a configured shelf life.
const FallbackShelfLifeDays = 7

// DefaultShelfLife maps SKUs to shelf life in days.
var DefaultShelfLife = map[string]int{
	"MALA-CL-500": 14,
	"YOG-PL-250":  10,
	"ESL-VAN-500": 21,
	"ESL-STR-500": 21,
	"GHEE-PR-250": 180,
	"ATM-TOWN":    3,
}

// ShelfLifeFor returns the default shelf life of a SKU.
func ShelfLifeFor(sku string) int {
	if d, ok := DefaultShelfLife[storage.NormalizeSKU(sku)]; ok {
		return d
	}
	return FallbackShelfLifeDays
}

// SetExpiry dates the approval days after today.
func (a *Approval) SetExpiry(today time.Time, days int) {
	exp := today.AddDate(0, 0, days)
	a.ExpiryDate = &exp
}

// Shelf-life bounds accepted on approval.
const (
	MinShelfLifeDays = 1
	MaxShelfLifeDays = 365
)

// SaveApprovalInput is the lab decision plus the storage release details.
type SaveApprovalInput struct {
	BatchID       id.ID
	Result        Result
	ExpiryDate    *time.Time
	ShelfLifeDays *int
	Remarks       string

	LocationID      *id.ID
	Packets         *int
	Litres          *types.Litres
	StorageStatus   storage.LotStatus
	DestinationTank intake.Tank
	AuditNotes      string
}

func (in *SaveApprovalInput) hasQuantity() bool {
	return (in.Packets != nil && *in.Packets > 0) || (in.Litres != nil && in.Litres.IsPositive())
}

// Validate collects every field problem. hasLot reports an existing storage
// lot, which supplies the quantity when none is given.
func (in *SaveApprovalInput) Validate(hasLot bool) error {
	fields := map[string]string{}
	if !in.Result.Valid() {
		fields["overallResult"] = "Select a valid choice."
	}
	if in.ShelfLifeDays != nil && (*in.ShelfLifeDays < MinShelfLifeDays || *in.ShelfLifeDays > MaxShelfLifeDays) {
		fields["shelfLifeDays"] = "Ensure shelf-life days are between 1 and 365."
	}
	if in.Packets != nil && *in.Packets < 0 {
		fields["storageQuantity"] = "Quantity cannot be negative."
	}
	if in.StorageStatus != "" && !in.StorageStatus.Valid() {
		fields["storageStatus"] = "Select a valid choice."
	}

	if in.Result == ResultApproved {
		if in.LocationID == nil || id.IsNil(*in.LocationID) {
			fields["storageLocation"] = "Pick a storage location for approved batches."
		}
		if !in.hasQuantity() && !hasLot {
			fields["storageQuantity"] = "Enter the quantity moving into storage."
		}
		if in.ExpiryDate == nil && in.ShelfLifeDays == nil {
			fields["expiryDate"] = "Provide an expiry date or shelf-life days."
		}
		if in.DestinationTank == "" {
			fields["storageTank"] = "Assign the tank that will hold this batch."
		}
	}
	if in.DestinationTank != "" && !in.DestinationTank.Active() {
		fields["storageTank"] = "Select a valid certified tank."
	}

	if len(fields) == 0 {
		return nil
	}
	return apperror.NewFieldErrors(fields)
}
