// Package production tracks finished-product runs that draw raw milk from tanks.
package production

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/entity"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/intake"
)

// ProductType is the kind of product a run makes.
type ProductType string

const (
	ProductATM    ProductType = "atm"
	ProductRaw    ProductType = "raw"
	ProductESL    ProductType = "esl"
	ProductYogurt ProductType = "yogurt"
	ProductMala   ProductType = "mala"
	ProductGhee   ProductType = "ghee"
)

var productLabels = map[ProductType]string{
	ProductATM:    "Fresh Milk ATM",
	ProductRaw:    "Raw Milk (Bulk)",
	ProductESL:    "ESL Milk",
	ProductYogurt: "Yogurt",
	ProductMala:   "Mala",
	ProductGhee:   "Ghee",
}

// Label returns the display name of the product type.
func (p ProductType) Label() string {
	if l, ok := productLabels[p]; ok {
		return l
	}
	return string(p)
}

// Valid reports whether p is a known product type.
func (p ProductType) Valid() bool {
	_, ok := productLabels[p]
	return ok
}

// Status is where a run stands in the lab pipeline.
type Status string

const (
	StatusPendingLab    Status = "pending_lab"
	StatusLabApproved   Status = "lab_approved"
	StatusReadyForStore Status = "ready_for_store"
)

// Batch is one production run.
type Batch struct {
	ID               id.ID          `db:"id" json:"id"`
	SourceTank       intake.Tank    `db:"source_tank" json:"sourceTank"`
	ProductType      ProductType    `db:"product_type" json:"productType"`
	SKU              string         `db:"sku" json:"sku"`
	QuantityProduced types.Quantity `db:"quantity_produced" json:"quantityProduced"`
	LitersUsed       types.Litres   `db:"liters_used" json:"litersUsed"`
	ProducedAt       time.Time      `db:"produced_at" json:"producedAt"`
	ProcessedBy      string         `db:"processed_by" json:"processedBy"`
	MovedToLab       bool           `db:"moved_to_lab" json:"movedToLab"`
	Status           Status         `db:"status" json:"status"`
}

// Validate implements entity.Validatable.
func (b *Batch) Validate(_ context.Context) error {
	if !b.SourceTank.Active() {
		return apperror.NewValidation("Select a valid source tank.").WithDetail("field", "sourceTank")
	}
	if !b.ProductType.Valid() {
		return apperror.NewValidation("unknown product type").WithDetail("field", "productType")
	}
	if strings.TrimSpace(b.SKU) == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if !b.QuantityProduced.IsPositive() {
		return apperror.NewValidation("quantity produced must be greater than zero").
			WithDetail("field", "quantityProduced")
	}
	return nil
}

// TankYield is a raw milk reading that production may draw from.
type TankYield struct {
	ID           id.ID        `db:"id"`
	RecordedAt   time.Time    `db:"recorded_at"`
	YieldLitres  types.Litres `db:"yield_litres"`
	QualityGrade intake.Grade `db:"quality_grade"`
}

// Deduction is the litres taken from one yield.
type Deduction struct {
	YieldID   id.ID        `json:"yieldId"`
	Litres    types.Litres `json:"litres"`
	Remaining types.Litres `json:"remaining"`
}

// PlanConsumption draws needed litres from consumable yields oldest first.
// Nothing is planned unless the whole amount is available.
func PlanConsumption(yields []TankYield, needed types.Litres) ([]Deduction, error) {
	if !needed.IsPositive() {
		return nil, apperror.NewValidation("Liters used must be greater than zero before consuming milk").
			WithDetail("field", "litersUsed")
	}

	usable := make([]TankYield, 0, len(yields))
	available := decimal.Zero
	for _, y := range yields {
		if !y.QualityGrade.Consumable() || !y.YieldLitres.IsPositive() {
			continue
		}
		usable = append(usable, y)
		available = available.Add(y.YieldLitres)
	}
	if available.LessThan(needed) {
		return nil, apperror.NewInsufficientStock("Not enough milk in tank for this production batch",
			needed.String(), available.String())
	}
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].RecordedAt.Before(usable[j].RecordedAt) })

	remaining := needed
	plan := make([]Deduction, 0)
	for _, y := range usable {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, y.YieldLitres)
		plan = append(plan, Deduction{YieldID: y.ID, Litres: take, Remaining: y.YieldLitres.Sub(take)})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}

// ConsumeMilk plans the draw for the run and hands it to the lab queue.
func (b *Batch) ConsumeMilk(yields []TankYield) ([]Deduction, error) {
	plan, err := PlanConsumption(yields, b.LitersUsed)
	if err != nil {
		return nil, err
	}
	b.MovedToLab = true
	b.Status = StatusPendingLab
	return plan, nil
}

var _ entity.Validatable = (*Batch)(nil)
