// Package intake records raw milk yields and groups them into session batches
// that the lab tests and locks.
package intake

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/entity"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/collection"
)

// Tank is a named raw milk vessel.
type Tank string

const (
	TankUnassigned Tank = "Unassigned"
	TankA          Tank = "Tank A"
	TankB          Tank = "Tank B"
	TankC          Tank = "Tank C"
	TankSpoilt     Tank = "Spoilt Tank"
)

var tankCapacity = map[Tank]decimal.Decimal{
	TankUnassigned: decimal.Zero,
	TankA:          decimal.NewFromInt(500),
	TankB:          decimal.NewFromInt(750),
	TankC:          decimal.NewFromInt(1000),
	TankSpoilt:     decimal.NewFromInt(500),
}

// Tanks lists every tank in display order.
func Tanks() []Tank {
	return []Tank{TankUnassigned, TankA, TankB, TankC, TankSpoilt}
}

// Capacity returns the tank capacity in litres; unknown tanks have none.
func (t Tank) Capacity() types.Litres {
	return tankCapacity[t]
}

// Known reports whether t is a configured tank.
func (t Tank) Known() bool {
	_, ok := tankCapacity[t]
	return ok
}

// Active reports whether t can hold milk for production or approved product.
func (t Tank) Active() bool {
	return t.Known() && t != TankUnassigned
}

// Certified reports whether t may receive lab-tested raw milk.
func (t Tank) Certified() bool {
	return t == TankA || t == TankB || t == TankC
}

// Grade is the clerk's quality assessment of a yield.
type Grade string

const (
	GradePremium  Grade = "premium"
	GradeStandard Grade = "standard"
	GradeLow      Grade = "low"
)

var gradeScores = map[Grade]int{
	GradePremium:  98,
	GradeStandard: 85,
	GradeLow:      70,
}

// DefaultQualityScore applies to grades without a score.
const DefaultQualityScore = 85

// Score maps a grade to its quality score.
func (g Grade) Score() int {
	if s, ok := gradeScores[g]; ok {
		return s
	}
	return DefaultQualityScore
}

// Consumable reports whether production may draw milk of this grade.
func (g Grade) Consumable() bool {
	return g == GradePremium || g == GradeStandard
}

// MilkYield is one milking reading of one cow.
type MilkYield struct {
	ID                     id.ID              `db:"id" json:"id"`
	CowID                  string             `db:"cow_id" json:"cowId"`
	RecordedBy             string             `db:"recorded_by" json:"recordedBy"`
	RecordedAt             time.Time          `db:"recorded_at" json:"recordedAt"`
	Session                collection.Session `db:"session" json:"session"`
	WindowStart            *time.Time         `db:"collection_window_start" json:"collectionWindowStart,omitempty"`
	WindowEnd              *time.Time         `db:"collection_window_end" json:"collectionWindowEnd,omitempty"`
	YieldLitres            types.Litres       `db:"yield_litres" json:"yieldLitres"`
	TotalYield             types.Litres       `db:"total_yield" json:"totalYield"`
	StorageTank            Tank               `db:"storage_tank" json:"storageTank"`
	StorageLevelPercentage int                `db:"storage_level_percentage" json:"storageLevelPercentage"`
	QualityGrade           Grade              `db:"quality_grade" json:"qualityGrade"`
	QualityScore           int                `db:"quality_score" json:"qualityScore"`
	QualityNotes           string             `db:"quality_notes" json:"qualityNotes"`
	CreatedAt              time.Time          `db:"created_at" json:"createdAt"`
}

// Validate implements entity.Validatable.
func (y *MilkYield) Validate(_ context.Context) error {
	if y.CowID == "" {
		return apperror.NewValidation("cow is required").WithDetail("field", "cowId")
	}
	if !y.YieldLitres.IsPositive() {
		return apperror.NewValidation("yield must be greater than zero").WithDetail("field", "yieldLitres")
	}
	if !y.StorageTank.Known() {
		return apperror.NewValidation("unknown storage tank").
			WithDetail("field", "storageTank").
			WithDetail("value", y.StorageTank)
	}
	switch y.QualityGrade {
	case GradePremium, GradeStandard, GradeLow:
	default:
		return apperror.NewValidation("unknown quality grade").
			WithDetail("field", "qualityGrade").
			WithDetail("value", y.QualityGrade)
	}
	if y.Session != "" && !y.Session.Valid() {
		return apperror.NewValidation("unknown collection session").WithDetail("field", "session")
	}
	return nil
}

// applyDerived fills the computed fields. sameDayTankTotal excludes this yield.
func (y *MilkYield) applyDerived(sameDayTankTotal types.Litres) {
	y.TotalYield = y.YieldLitres
	y.QualityScore = y.QualityGrade.Score()
	y.StorageLevelPercentage = StorageLevel(y.StorageTank, sameDayTankTotal.Add(y.YieldLitres))
}

// StorageLevel returns the fill percentage of tank holding total litres,
// capped at 100. Tanks without capacity report 0.
func StorageLevel(tank Tank, total types.Litres) int {
	return types.Percent(total, tank.Capacity())
}

// BatchState is the lifecycle state of an intake batch.
type BatchState string

const (
	BatchOpen   BatchState = "open"
	BatchClosed BatchState = "closed"
	BatchLocked BatchState = "locked"
)

// Batch groups the yields of one session on one date.
type Batch struct {
	ID             id.ID              `db:"id" json:"id"`
	Session        collection.Session `db:"session" json:"session"`
	CollectionDate time.Time          `db:"collection_date" json:"collectionDate"`
	State          BatchState         `db:"state" json:"state"`
	AutoManaged    bool               `db:"auto_managed" json:"autoManaged"`
	OpenedAt       time.Time          `db:"opened_at" json:"openedAt"`
	ReopenedAt     *time.Time         `db:"reopened_at" json:"reopenedAt,omitempty"`
	ClosedAt       *time.Time         `db:"closed_at" json:"closedAt,omitempty"`
	OpenedBy       *string            `db:"opened_by" json:"openedBy,omitempty"`
	ClosedBy       *string            `db:"closed_by" json:"closedBy,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"createdAt"`
}

// NewBatch creates an open, auto-managed batch.
func NewBatch(session collection.Session, date, now time.Time) *Batch {
	return &Batch{
		ID:             id.New(),
		Session:        session,
		CollectionDate: date,
		State:          BatchOpen,
		AutoManaged:    true,
		OpenedAt:       now,
		CreatedAt:      now,
	}
}

func (b *Batch) IsOpen() bool   { return b.State == BatchOpen }
func (b *Batch) IsLocked() bool { return b.State == BatchLocked }

// Open reopens the batch. A locked batch stays locked.
func (b *Batch) Open(operator string, now time.Time) error {
	if b.IsLocked() {
		return apperror.NewWorkflow(apperror.CodeBatchLocked,
			"Batch is locked after lab approval and cannot be reopened.").
			WithDetail("batch_id", b.ID)
	}
	b.State = BatchOpen
	b.ClosedAt = nil
	b.ClosedBy = nil
	b.ReopenedAt = &now
	if operator != "" {
		b.OpenedBy = &operator
	}
	return nil
}

// Close stops intake into the batch until it is reopened.
func (b *Batch) Close(operator string, now time.Time) error {
	if b.IsLocked() {
		return apperror.NewWorkflow(apperror.CodeBatchLocked,
			"Batch is already locked for lab processing.").
			WithDetail("batch_id", b.ID)
	}
	b.State = BatchClosed
	b.ClosedAt = &now
	if operator != "" {
		b.ClosedBy = &operator
	}
	return nil
}

// Lock freezes the batch permanently.
func (b *Batch) Lock() {
	b.State = BatchLocked
}

// TestResult is the verdict of a lab test.
type TestResult string

const (
	ResultPending  TestResult = "pending"
	ResultApproved TestResult = "approved"
	ResultRejected TestResult = "rejected"
)

// Valid reports whether r is a known verdict.
func (r TestResult) Valid() bool {
	return r == ResultPending || r == ResultApproved || r == ResultRejected
}

// BatchTest is the raw milk lab test of an intake batch.
type BatchTest struct {
	ID            id.ID           `db:"id" json:"id"`
	BatchID       id.ID           `db:"batch_id" json:"batchId"`
	TestedAt      time.Time       `db:"tested_at" json:"testedAt"`
	TestedBy      string          `db:"tested_by" json:"testedBy"`
	FatPercentage decimal.Decimal `db:"fat_percentage" json:"fatPercentage"`
	SNFPercentage decimal.Decimal `db:"snf_percentage" json:"snfPercentage"`
	Acidity       decimal.Decimal `db:"acidity" json:"acidity"`
	Contaminants  *string         `db:"contaminants" json:"contaminants,omitempty"`
	Result        TestResult      `db:"result" json:"result"`
}

// Validate implements entity.Validatable.
func (t *BatchTest) Validate(_ context.Context) error {
	if id.IsNil(t.BatchID) {
		return apperror.NewValidation("batch is required").WithDetail("field", "batchId")
	}
	if !t.Result.Valid() {
		return apperror.NewValidation("unknown test result").WithDetail("field", "result")
	}
	for field, v := range map[string]decimal.Decimal{
		"fatPercentage": t.FatPercentage,
		"snfPercentage": t.SNFPercentage,
		"acidity":       t.Acidity,
	} {
		if v.IsNegative() {
			return apperror.NewValidation("measurement cannot be negative").WithDetail("field", field)
		}
	}
	return nil
}

// Approve records a passing verdict.
func (t *BatchTest) Approve() {
	t.Result = ResultApproved
}

// Reject records a failing verdict; a non-empty reason replaces contaminants.
func (t *BatchTest) Reject(reason string) {
	t.Result = ResultRejected
	if reason != "" {
		t.Contaminants = &reason
	}
}

var (
	_ entity.Validatable = (*MilkYield)(nil)
	_ entity.Validatable = (*BatchTest)(nil)
)
