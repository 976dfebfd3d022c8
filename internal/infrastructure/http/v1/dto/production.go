package dto

import (
	"github.com/shopspring/decimal"

	"dairyops/internal/domain/intake"
	"dairyops/internal/domain/production"
)

// CreateProductionRequest records a production run.
type CreateProductionRequest struct {
	SourceTank       intake.Tank            `json:"sourceTank" binding:"required"`
	ProductType      production.ProductType `json:"productType" binding:"required"`
	SKU              string                 `json:"sku" binding:"required"`
	QuantityProduced decimal.Decimal        `json:"quantityProduced"`
	LitersUsed       decimal.Decimal        `json:"litersUsed"`
}

// ToInput converts the request.
func (r *CreateProductionRequest) ToInput() production.CreateInput {
	return production.CreateInput{
		SourceTank:       r.SourceTank,
		ProductType:      r.ProductType,
		SKU:              r.SKU,
		QuantityProduced: r.QuantityProduced,
		LitersUsed:       r.LitersUsed,
	}
}

// ProductionResponse is a stored run with its tank draws.
type ProductionResponse struct {
	Batch      *production.Batch      `json:"batch"`
	Deductions []production.Deduction `json:"deductions"`
}
