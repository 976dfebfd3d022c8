package dto

import (
	"github.com/shopspring/decimal"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/sales"
)

// RecordSaleRequest records a counter sale.
type RecordSaleRequest struct {
	CustomerName     string              `json:"customerName,omitempty"`
	CustomerPhone    string              `json:"customerPhone,omitempty"`
	PaymentMode      sales.PaymentMode   `json:"paymentMode,omitempty"`
	PaymentStatus    sales.PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentReference string              `json:"paymentReference,omitempty"`
	Lines            []SaleLineRequest   `json:"lines" binding:"required,min=1,dive"`
}

// SaleLineRequest is one product line; price defaults to the item price.
type SaleLineRequest struct {
	InventoryItemID id.ID            `json:"inventoryItemId" binding:"required"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Price           *decimal.Decimal `json:"pricePerUnit,omitempty"`
}

// ToInput converts the request.
func (r *RecordSaleRequest) ToInput() sales.RecordInput {
	in := sales.RecordInput{
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		PaymentMode:      r.PaymentMode,
		PaymentStatus:    r.PaymentStatus,
		PaymentReference: r.PaymentReference,
		Lines:            make([]sales.LineInput, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, sales.LineInput{
			InventoryItemID: l.InventoryItemID,
			Quantity:        l.Quantity,
			Price:           l.Price,
		})
	}
	return in
}
