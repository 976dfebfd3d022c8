// Package inventory keeps SKU-level stock of finished and bought-in goods.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/entity"
	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
)

// Unit is the stock-keeping unit of an item.
type Unit string

const (
	UnitLitres    Unit = "L"
	UnitKilograms Unit = "KG"
	UnitPieces    Unit = "UNIT"
)

// Item is the stock record of one SKU.
type Item struct {
	ID               id.ID          `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	SKU              string         `db:"sku" json:"sku"`
	Unit             Unit           `db:"unit" json:"unit"`
	CurrentQuantity  types.Quantity `db:"current_quantity" json:"currentQuantity"`
	ReorderThreshold types.Quantity `db:"reorder_threshold" json:"reorderThreshold"`
	ReorderQuantity  types.Quantity `db:"reorder_quantity" json:"reorderQuantity"`
	LastRestocked    *time.Time     `db:"last_restocked" json:"lastRestocked,omitempty"`
	SupplierName     string         `db:"supplier_name" json:"supplierName"`
	DefaultPrice     types.Money    `db:"default_price" json:"defaultPrice"`
	ProductCategory  string         `db:"product_category" json:"productCategory"`
	IsProcessed      bool           `db:"is_processed" json:"isProcessed"`
	ExpiryDate       *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
	// BatchID links the item to the production batch its stock came from.
	BatchID *id.ID `db:"batch_id" json:"batchId,omitempty"`
}

// Validate implements entity.Validatable.
func (i *Item) Validate(_ context.Context) error {
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if strings.TrimSpace(i.SKU) == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	switch i.Unit {
	case UnitLitres, UnitKilograms, UnitPieces:
	default:
		return apperror.NewValidation("unknown unit").WithDetail("field", "unit")
	}
	if i.CurrentQuantity.IsNegative() {
		return apperror.NewValidation("quantity cannot be negative").WithDetail("field", "currentQuantity")
	}
	return nil
}

// NeedsReorder reports stock at or below the reorder threshold.
func (i *Item) NeedsReorder() bool {
	return i.CurrentQuantity.LessThanOrEqual(i.ReorderThreshold)
}

// IsExpired reports an expiry date before today.
func (i *Item) IsExpired(today time.Time) bool {
	return i.ExpiryDate != nil && types.DaysBetween(today, *i.ExpiryDate) < 0
}

// IsNearExpiry reports an expiry date at most two days away.
func (i *Item) IsNearExpiry(today time.Time) bool {
	return i.ExpiryDate != nil && types.DaysBetween(today, *i.ExpiryDate) <= 2
}

// StockPercentage is current stock relative to the reorder threshold.
func (i *Item) StockPercentage() decimal.Decimal {
	if !i.ReorderThreshold.IsPositive() {
		return decimal.Zero
	}
	return i.CurrentQuantity.Div(i.ReorderThreshold).Mul(decimal.NewFromInt(100)).Round(1)
}

// Consume takes amount out of stock.
func (i *Item) Consume(amount types.Quantity, today time.Time) error {
	if amount.GreaterThan(i.CurrentQuantity) {
		return apperror.NewInsufficientStock(fmt.Sprintf("Not enough stock for %s", i.Name),
			amount.String(), i.CurrentQuantity.String()).WithDetail("sku", i.SKU)
	}
	if i.IsExpired(today) {
		return apperror.NewWorkflow(apperror.CodeExpiredStock,
			fmt.Sprintf("Cannot consume expired stock for %s", i.Name)).WithDetail("sku", i.SKU)
	}
	i.CurrentQuantity = i.CurrentQuantity.Sub(amount)
	return nil
}

// Transaction is a signed stock movement of an item.
type Transaction struct {
	ID        id.ID          `db:"id" json:"id"`
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Reason    string         `db:"reason" json:"reason"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	BatchID   *id.ID         `db:"batch_id" json:"batchId,omitempty"`
}

// Apply moves the transaction quantity into the item. Expired stock is never
// restocked and dispatches cannot exceed stock.
func (t *Transaction) Apply(item *Item, today time.Time) error {
	if t.Quantity.IsPositive() && item.IsExpired(today) {
		return apperror.NewWorkflow(apperror.CodeExpiredStock,
			fmt.Sprintf("Cannot restock expired batch for %s", item.Name))
	}
	if t.Quantity.IsNegative() && t.Quantity.Abs().GreaterThan(item.CurrentQuantity) {
		return apperror.NewInsufficientStock(fmt.Sprintf("Not enough stock to dispatch %s", item.Name),
			t.Quantity.Abs().String(), item.CurrentQuantity.String())
	}
	item.CurrentQuantity = item.CurrentQuantity.Add(t.Quantity)
	item.LastRestocked = &today
	return nil
}

// StorageSnapshot is the cold storage position of one SKU.
type StorageSnapshot struct {
	SKU            string
	Total          types.Quantity
	EarliestExpiry *time.Time
	LatestBatchID  *id.ID
	// ProductCategory and ProductName describe the latest batch; used when
	// the item has to be created.
	ProductCategory string
	ProductName     string
}

var _ entity.Validatable = (*Item)(nil)
