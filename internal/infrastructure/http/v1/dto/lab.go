package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/intake"
	"dairyops/internal/domain/lab"
	"dairyops/internal/domain/storage"
)

// SaveApprovalRequest records the lab verdict of a production batch and,
// when approved, its release into cold storage.
type SaveApprovalRequest struct {
	OverallResult   lab.Result        `json:"overallResult" binding:"required"`
	ExpiryDate      *time.Time        `json:"expiryDate,omitempty"`
	ShelfLifeDays   *int              `json:"shelfLifeDays,omitempty"`
	Remarks         string            `json:"remarks,omitempty"`
	LocationID      *id.ID            `json:"storageLocationId,omitempty"`
	Packets         *int              `json:"packets,omitempty"`
	Litres          *decimal.Decimal  `json:"litres,omitempty"`
	StorageStatus   storage.LotStatus `json:"storageStatus,omitempty"`
	DestinationTank intake.Tank       `json:"storageTank,omitempty"`
	AuditNotes      string            `json:"auditNotes,omitempty"`
}

// ToInput converts the request for batchID.
func (r *SaveApprovalRequest) ToInput(batchID id.ID) lab.SaveApprovalInput {
	return lab.SaveApprovalInput{
		BatchID:         batchID,
		Result:          r.OverallResult,
		ExpiryDate:      r.ExpiryDate,
		ShelfLifeDays:   r.ShelfLifeDays,
		Remarks:         r.Remarks,
		LocationID:      r.LocationID,
		Packets:         r.Packets,
		Litres:          r.Litres,
		StorageStatus:   r.StorageStatus,
		DestinationTank: r.DestinationTank,
		AuditNotes:      r.AuditNotes,
	}
}

// SetExpiryRequest sets shelf life; zero days uses the SKU default.
type SetExpiryRequest struct {
	Days int `json:"days"`
}
