package lab

import (
	"context"
	"fmt"
	"time"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/internal/core/tx"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/production"
	"dairyops/internal/domain/storage"
	"dairyops/pkg/logger"
)

// Service records lab approvals.
type Service struct {
	repo    Repository
	batches ProductionBatches
	storage StorageAssigner
	txm     tx.Manager
	clock   clock.Clock
	audit   audit.Recorder
}

// NewService creates the lab approval service.
func NewService(repo Repository, batches ProductionBatches, st StorageAssigner, txm tx.Manager, clk clock.Clock, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, batches: batches, storage: st, txm: txm, clock: clk, audit: rec}
}

// Outcome is what SaveApproval wrote.
type Outcome struct {
	Approval *Approval         `json:"approval"`
	Batch    *production.Batch `json:"batch"`
	// Lot is set when the batch was released into storage.
	Lot *storage.Lot `json:"lot,omitempty"`
}

// Get returns the approval of a batch.
func (s *Service) Get(ctx context.Context, batchID id.ID) (*Approval, error) {
	a, err := s.repo.FindByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperror.NewNotFound("lab approval", batchID)
	}
	return a, nil
}

// List returns approvals, optionally filtered by result.
func (s *Service) List(ctx context.Context, result Result) ([]*Approval, error) {
	return s.repo.List(ctx, result)
}

// SaveApproval records the lab verdict on a production batch. All input
// problems are reported together before anything is written. An approval
// with a storage location releases the batch into cold storage and a
// destination tank different from the source moves the batch.
func (s *Service) SaveApproval(ctx context.Context, in SaveApprovalInput) (*Outcome, error) {
	out := &Outcome{}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		batch, err := s.batches.Get(ctx, in.BatchID)
		if err != nil {
			return err
		}
		lot, err := s.storage.LotForBatch(ctx, batch.ID)
		if err != nil {
			return err
		}
		if err := in.Validate(lot != nil); err != nil {
			return err
		}

		approval, err := s.repo.FindByBatchForUpdate(ctx, batch.ID)
		if err != nil {
			return err
		}
		if approval == nil {
			approval = &Approval{ID: id.New(), ProductionBatchID: batch.ID}
		}
		approval.OverallResult = in.Result
		approval.ExpiryDate = in.ExpiryDate
		approval.Remarks = in.Remarks
		approval.ApprovedBy = appctx.GetOperatorID(ctx)
		approval.ApprovedAt = s.clock.Now()
		if in.Result == ResultApproved && in.ExpiryDate == nil && in.ShelfLifeDays != nil {
			approval.SetExpiry(clock.Today(s.clock), *in.ShelfLifeDays)
		}
		if err := s.repo.Save(ctx, approval); err != nil {
			return fmt.Errorf("save approval: %w", err)
		}

		fromTank := batch.SourceTank
		changed := SyncProductionBatchState(approval, batch)
		if in.DestinationTank != "" && in.DestinationTank != batch.SourceTank {
			batch.SourceTank = in.DestinationTank
			changed = true
		}
		if changed {
			if err := s.batches.Update(ctx, batch); err != nil {
				return fmt.Errorf("update production batch: %w", err)
			}
		}

		if in.Result == ResultApproved && in.LocationID != nil {
			out.Lot, err = s.storage.AssignLot(ctx, storage.AssignInput{
				Batch:      batch,
				LocationID: *in.LocationID,
				Packets:    in.Packets,
				Litres:     in.Litres,
				Expiry:     approval.ExpiryDate,
				Status:     in.StorageStatus,
				AuditNotes: in.AuditNotes,
			})
			if err != nil {
				return err
			}
		}

		out.Approval, out.Batch = approval, batch
		return s.audit.LogChange(ctx, audit.EntityLabApproval, approval.ID, actionFor(in.Result), map[string]any{
			"production_batch_id": batch.ID,
			"result":              approval.OverallResult,
			"expiry_date":         formatDate(approval.ExpiryDate),
			"status":              batch.Status,
			"from_tank":           fromTank,
			"to_tank":             batch.SourceTank,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lab approval saved",
		"batch_id", out.Batch.ID, "result", out.Approval.OverallResult, "status", out.Batch.Status,
		"stored", out.Lot != nil)
	return out, nil
}

// SetExpiry dates an existing approval days from today. Non-positive days
// fall back to the SKU's default shelf life.
func (s *Service) SetExpiry(ctx context.Context, batchID id.ID, days int) (*Approval, error) {
	var approval *Approval
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		batch, err := s.batches.Get(ctx, batchID)
		if err != nil {
			return err
		}
		approval, err = s.repo.FindByBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if approval == nil {
			return apperror.NewNotFound("lab approval", batchID)
		}
		if days <= 0 {
			days = ShelfLifeFor(batch.SKU)
		}
		approval.SetExpiry(clock.Today(s.clock), days)
		if err := s.repo.Save(ctx, approval); err != nil {
			return fmt.Errorf("save approval: %w", err)
		}
		if SyncProductionBatchState(approval, batch) {
			if err := s.batches.Update(ctx, batch); err != nil {
				return fmt.Errorf("update production batch: %w", err)
			}
		}
		return s.audit.LogChange(ctx, audit.EntityLabApproval, approval.ID, audit.ActionUpdate, map[string]any{
			"expiry_date": formatDate(approval.ExpiryDate),
			"status":      batch.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	return approval, nil
}

func actionFor(r Result) audit.Action {
	switch r {
	case ResultApproved:
		return audit.ActionApprove
	case ResultRejected:
		return audit.ActionReject
	}
	return audit.ActionUpdate
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
