package production

import (
	"context"
	"fmt"
	"strings"

	"dairyops/internal/core/clock"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/intake"
	"dairyops/pkg/logger"
)

// Service creates production runs.
type Service struct {
	repo  Repository
	txm   tx.Manager
	clock clock.Clock
	audit audit.Recorder
}

// NewService creates the production service.
func NewService(repo Repository, txm tx.Manager, clk clock.Clock, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, txm: txm, clock: clk, audit: rec}
}

// CreateInput describes a new run.
type CreateInput struct {
	SourceTank       intake.Tank
	ProductType      ProductType
	SKU              string
	QuantityProduced types.Quantity
	LitersUsed       types.Litres
}

// Create validates the run, draws its milk from the source tank and stores it.
// Either every deduction and the run are stored or nothing is.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Batch, []Deduction, error) {
	b := &Batch{
		ID:               id.New(),
		SourceTank:       in.SourceTank,
		ProductType:      in.ProductType,
		SKU:              strings.ToUpper(strings.TrimSpace(in.SKU)),
		QuantityProduced: in.QuantityProduced,
		LitersUsed:       in.LitersUsed,
		ProducedAt:       s.clock.Now(),
		ProcessedBy:      appctx.GetOperatorID(ctx),
		Status:           StatusPendingLab,
	}
	if err := b.Validate(ctx); err != nil {
		return nil, nil, err
	}

	var plan []Deduction
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		yields, err := s.repo.ListConsumableYieldsForUpdate(ctx, b.SourceTank)
		if err != nil {
			return fmt.Errorf("list tank yields: %w", err)
		}
		plan, err = b.ConsumeMilk(yields)
		if err != nil {
			return err
		}
		if err := s.repo.ApplyDeductions(ctx, plan); err != nil {
			return fmt.Errorf("apply deductions: %w", err)
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return fmt.Errorf("create production batch: %w", err)
		}
		return s.audit.LogChange(ctx, audit.EntityProductionBatch, b.ID, audit.ActionConsume, map[string]any{
			"tank":       b.SourceTank,
			"litres":     b.LitersUsed,
			"deductions": plan,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "production batch created",
		"batch_id", b.ID,
		"sku", b.SKU,
		"tank", b.SourceTank,
		"litres", b.LitersUsed,
		"yields_drawn", len(plan),
	)
	return b, plan, nil
}

// Get returns a production run.
func (s *Service) Get(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.repo.Get(ctx, batchID)
}
