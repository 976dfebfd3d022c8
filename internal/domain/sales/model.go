// Package sales records counter sales of finished stock and their refunds.
package sales

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

// PaymentStatus of a sale.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMode of a sale.
type PaymentMode string

const (
	ModeCash  PaymentMode = "cash"
	ModeMpesa PaymentMode = "mpesa"
	ModeCard  PaymentMode = "card"
)

// Valid reports whether m is a known mode.
func (m PaymentMode) Valid() bool {
	return m == ModeCash || m == ModeMpesa || m == ModeCard
}

// Sale is one counter transaction.
type Sale struct {
	ID               id.ID         `db:"id" json:"id"`
	Number           string        `db:"number" json:"number"`
	CustomerName     string        `db:"customer_name" json:"customerName"`
	CustomerPhone    string        `db:"customer_phone" json:"customerPhone"`
	TotalAmount      types.Money   `db:"total_amount" json:"totalAmount"`
	PaymentStatus    PaymentStatus `db:"payment_status" json:"paymentStatus"`
	PaymentMode      PaymentMode   `db:"payment_mode" json:"paymentMode"`
	PaymentReference string        `db:"payment_reference" json:"paymentReference"`
	CreatedBy        string        `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`

	Items []*Item `db:"-" json:"items"`
}

// Item is one line of a sale.
type Item struct {
	ID              id.ID          `db:"id" json:"id"`
	SaleID          id.ID          `db:"sale_id" json:"saleId"`
	InventoryItemID id.ID          `db:"inventory_item_id" json:"inventoryItemId"`
	SKU             string         `db:"sku" json:"sku"`
	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	PricePerUnit    types.Money    `db:"price_per_unit" json:"pricePerUnit"`
}

// LineTotal is quantity times unit price.
func (i *Item) LineTotal() types.Money {
	return i.Quantity.Mul(i.PricePerUnit)
}

// Recalculate sets TotalAmount from the lines.
func (s *Sale) Recalculate() {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.LineTotal())
	}
	s.TotalAmount = total.Round(2)
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(_ context.Context) error {
	if len(s.Items) == 0 {
		return apperror.NewValidation("a sale needs at least one item").WithDetail("field", "items")
	}
	if !s.PaymentMode.Valid() {
		return apperror.NewValidation("unknown payment mode").WithDetail("field", "paymentMode")
	}
	if len(strings.TrimSpace(s.CustomerPhone)) > 20 {
		return apperror.NewValidation("phone number is too long").WithDetail("field", "customerPhone")
	}
	for i, it := range s.Items {
		if !it.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be greater than zero").
				WithDetail("field", "items").WithDetail("line", i+1)
		}
		if it.PricePerUnit.IsNegative() {
			return apperror.NewValidation("price cannot be negative").
				WithDetail("field", "items").WithDetail("line", i+1)
		}
	}
	return nil
}

var _ entity.Validatable = (*Sale)(nil)
