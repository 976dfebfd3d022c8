package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/collection"
	"dairyops/internal/domain/intake"
)

// SetWindowRequest overrides the bounds of one collection session.
// Times are "HH:MM".
type SetWindowRequest struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

// Bounds parses the requested times.
func (r *SetWindowRequest) Bounds() (collection.TimeOfDay, collection.TimeOfDay, error) {
	start, err := collection.ParseTimeOfDay(r.Start)
	if err != nil {
		return collection.TimeOfDay{}, collection.TimeOfDay{}, err
	}
	end, err := collection.ParseTimeOfDay(r.End)
	if err != nil {
		return collection.TimeOfDay{}, collection.TimeOfDay{}, err
	}
	return start, end, nil
}

// RecordYieldRequest records one cow's milk reading.
type RecordYieldRequest struct {
	CowID        string             `json:"cowId" binding:"required"`
	RecordedAt   *time.Time         `json:"recordedAt,omitempty"`
	Session      collection.Session `json:"session,omitempty"`
	YieldLitres  decimal.Decimal    `json:"yieldLitres" binding:"required"`
	StorageTank  intake.Tank        `json:"storageTank" binding:"required"`
	QualityGrade intake.Grade       `json:"qualityGrade" binding:"required"`
	QualityNotes string             `json:"qualityNotes,omitempty"`
}

// ToInput converts the request.
func (r *RecordYieldRequest) ToInput() intake.RecordYieldInput {
	return intake.RecordYieldInput{
		CowID:        r.CowID,
		RecordedAt:   r.RecordedAt,
		Session:      r.Session,
		YieldLitres:  r.YieldLitres,
		StorageTank:  r.StorageTank,
		QualityGrade: r.QualityGrade,
		QualityNotes: r.QualityNotes,
	}
}

// EditYieldRequest corrects a reading; omitted fields are kept.
type EditYieldRequest struct {
	YieldLitres  *decimal.Decimal `json:"yieldLitres,omitempty"`
	StorageTank  *intake.Tank     `json:"storageTank,omitempty"`
	QualityGrade *intake.Grade    `json:"qualityGrade,omitempty"`
	QualityNotes *string          `json:"qualityNotes,omitempty"`
}

// ToInput converts the request.
func (r *EditYieldRequest) ToInput() intake.EditYieldInput {
	return intake.EditYieldInput{
		YieldLitres:  r.YieldLitres,
		StorageTank:  r.StorageTank,
		QualityGrade: r.QualityGrade,
		QualityNotes: r.QualityNotes,
	}
}

// BatchTestRequest records the quality test of an intake batch.
type BatchTestRequest struct {
	FatPercentage decimal.Decimal   `json:"fatPercentage"`
	SNFPercentage decimal.Decimal   `json:"snfPercentage"`
	Acidity       decimal.Decimal   `json:"acidity"`
	Contaminants  string            `json:"contaminants,omitempty"`
	Result        intake.TestResult `json:"result,omitempty"`
	StorageTank   intake.Tank       `json:"storageTank,omitempty"`
}

// ToInput converts the request for batchID.
func (r *BatchTestRequest) ToInput(batchID id.ID) intake.RecordBatchTestInput {
	return intake.RecordBatchTestInput{
		BatchID:       batchID,
		FatPercentage: r.FatPercentage,
		SNFPercentage: r.SNFPercentage,
		Acidity:       r.Acidity,
		Contaminants:  r.Contaminants,
		Result:        r.Result,
		StorageTank:   r.StorageTank,
	}
}

// RejectTestRequest carries the reason of a rejection.
type RejectTestRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// BatchVolumeResponse is the volume recorded into a batch.
type BatchVolumeResponse struct {
	BatchID id.ID           `json:"batchId"`
	Litres  decimal.Decimal `json:"litres"`
}

// SessionAvailabilityResponse answers whether a session still accepts yields.
type SessionAvailabilityResponse struct {
	Session   collection.Session `json:"session"`
	At        time.Time          `json:"at"`
	Available bool               `json:"available"`
}
