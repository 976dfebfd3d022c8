package sales

import (
	"context"
	"fmt"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/internal/core/numerator"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/inventory"
	"dairyops/pkg/logger"
)

// NumberPrefix starts every sale number.
const NumberPrefix = "SL"

// Stock is the inventory side of a sale.
type Stock interface {
	Get(ctx context.Context, itemID id.ID) (*inventory.Item, error)
	Consume(ctx context.Context, itemID id.ID, amount types.Quantity, reason string) (*inventory.Item, error)
	Restock(ctx context.Context, itemID id.ID, amount types.Quantity, reason string) (*inventory.Item, error)
}

// StorageAdjuster moves cold storage lots with the inventory.
type StorageAdjuster interface {
	AdjustForInventoryItem(ctx context.Context, item *inventory.Item, delta types.Quantity) (bool, error)
}

// Service records sales.
type Service struct {
	repo    Repository
	stock   Stock
	storage StorageAdjuster
	numbers numerator.Generator
	txm     tx.Manager
	clock   clock.Clock
	audit   audit.Recorder
}

// NewService creates the sales service.
func NewService(repo Repository, stock Stock, st StorageAdjuster, numbers numerator.Generator, txm tx.Manager, clk clock.Clock, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, stock: stock, storage: st, numbers: numbers, txm: txm, clock: clk, audit: rec}
}

// LineInput is one requested line. Price falls back to the item default.
type LineInput struct {
	InventoryItemID id.ID
	Quantity        types.Quantity
	Price           *types.Money
}

// RecordInput describes a sale.
type RecordInput struct {
	CustomerName     string
	CustomerPhone    string
	PaymentMode      PaymentMode
	PaymentStatus    PaymentStatus
	PaymentReference string
	Lines            []LineInput
}

// Record numbers the sale, takes every line out of inventory and cold
// storage and stores the sale. Any failing line rolls the whole sale back.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Sale, error) {
	sale := &Sale{
		ID:               id.New(),
		CustomerName:     in.CustomerName,
		CustomerPhone:    in.CustomerPhone,
		PaymentMode:      in.PaymentMode,
		PaymentStatus:    in.PaymentStatus,
		PaymentReference: in.PaymentReference,
		CreatedBy:        appctx.GetOperatorID(ctx),
		CreatedAt:        s.clock.Now(),
	}
	if sale.PaymentMode == "" {
		sale.PaymentMode = ModeCash
	}
	if sale.PaymentStatus == "" {
		sale.PaymentStatus = PaymentPending
	}
	for _, l := range in.Lines {
		sale.Items = append(sale.Items, &Item{ID: id.New(), SaleID: sale.ID, InventoryItemID: l.InventoryItemID, Quantity: l.Quantity})
	}
	if err := sale.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numbers.Next(ctx, numerator.DefaultConfig(NumberPrefix), sale.CreatedAt)
		if err != nil {
			return fmt.Errorf("number sale: %w", err)
		}
		sale.Number = number
		reason := "Sale " + number

		for i, line := range sale.Items {
			item, err := s.stock.Get(ctx, line.InventoryItemID)
			if err != nil {
				return err
			}
			line.SKU = item.SKU
			line.PricePerUnit = item.DefaultPrice
			if p := in.Lines[i].Price; p != nil {
				line.PricePerUnit = *p
			} else {
				logger.Debug(ctx, "sale priced from item default", "sku", item.SKU, "price", item.DefaultPrice)
			}

			item, err = s.stock.Consume(ctx, line.InventoryItemID, line.Quantity, reason)
			if err != nil {
				return err
			}
			if _, err := s.storage.AdjustForInventoryItem(ctx, item, line.Quantity.Neg()); err != nil {
				return fmt.Errorf("adjust storage for %s: %w", item.SKU, err)
			}
		}
		sale.Recalculate()
		if err := sale.Validate(ctx); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		return s.audit.LogChange(ctx, audit.EntitySale, sale.ID, audit.ActionCreate, map[string]any{
			"number": sale.Number,
			"total":  sale.TotalAmount,
			"lines":  len(sale.Items),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale recorded", "number", sale.Number, "total", sale.TotalAmount, "lines", len(sale.Items))
	return sale, nil
}

// Refund returns every line to stock and marks the sale refunded.
func (s *Service) Refund(ctx context.Context, saleID id.ID) (*Sale, error) {
	var sale *Sale
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.PaymentStatus == PaymentRefunded {
			return apperror.NewWorkflow(apperror.CodeInvalidState, "Sale has already been refunded.").
				WithDetail("number", sale.Number)
		}

		reason := "Refund " + sale.Number
		for _, line := range sale.Items {
			item, err := s.stock.Restock(ctx, line.InventoryItemID, line.Quantity, reason)
			if err != nil {
				return err
			}
			if _, err := s.storage.AdjustForInventoryItem(ctx, item, line.Quantity); err != nil {
				return fmt.Errorf("adjust storage for %s: %w", item.SKU, err)
			}
		}

		sale.PaymentStatus = PaymentRefunded
		if err := s.repo.UpdateStatus(ctx, sale.ID, sale.PaymentStatus); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		return s.audit.LogChange(ctx, audit.EntitySale, sale.ID, audit.ActionRefund, map[string]any{
			"number": sale.Number,
			"total":  sale.TotalAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale refunded", "number", sale.Number)
	return sale, nil
}

// Get returns a sale with its lines.
func (s *Service) Get(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.Get(ctx, saleID)
}

// List returns the latest sales.
func (s *Service) List(ctx context.Context, limit int) ([]*Sale, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit)
}
