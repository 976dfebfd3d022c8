package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/collection"
	"dairyops/pkg/logger"
)

const (
	msgIntakeClosed = "Milk collection is currently closed outside the configured intake windows."
	msgWindowClosed = "The selected batch window is closed. Ask the lab team to reopen it before recording more yields."
	msgBatchClosed  = "The selected batch is closed. Reopen it before recording new yields."
)

// Service runs the intake workflow: yield recording, batch lifecycle and
// raw milk testing.
type Service struct {
	repo     Repository
	resolver *collection.Resolver
	txm      tx.Manager
	clock    clock.Clock
	audit    audit.Recorder
}

// NewService creates the intake service.
func NewService(repo Repository, resolver *collection.Resolver, txm tx.Manager, clk clock.Clock, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, resolver: resolver, txm: txm, clock: clk, audit: rec}
}

// RecordYieldInput is a clerk's milk reading.
type RecordYieldInput struct {
	CowID        string
	RecordedAt   *time.Time
	Session      collection.Session
	YieldLitres  types.Litres
	StorageTank  Tank
	QualityGrade Grade
	QualityNotes string
}

// RecordYield validates and stores a reading and attaches it to the current
// batch of its session. A reading that cannot be batched is removed again.
func (s *Service) RecordYield(ctx context.Context, in RecordYieldInput) (*MilkYield, *Batch, error) {
	recordedAt := s.clock.Now()
	if in.RecordedAt != nil {
		recordedAt = *in.RecordedAt
	}
	if in.StorageTank == "" {
		in.StorageTank = TankUnassigned
	}
	if in.QualityGrade == "" {
		in.QualityGrade = GradeStandard
	}

	y := &MilkYield{
		ID:           id.New(),
		CowID:        in.CowID,
		RecordedBy:   appctx.GetOperatorID(ctx),
		RecordedAt:   recordedAt,
		Session:      in.Session,
		YieldLitres:  in.YieldLitres,
		StorageTank:  in.StorageTank,
		QualityGrade: in.QualityGrade,
		QualityNotes: in.QualityNotes,
		CreatedAt:    s.clock.Now(),
	}
	if err := y.Validate(ctx); err != nil {
		return nil, nil, err
	}

	var batch *Batch
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.assignSession(ctx, y); err != nil {
			return err
		}
		if err := s.deriveFields(ctx, y); err != nil {
			return err
		}
		if err := s.repo.CreateYield(ctx, y); err != nil {
			return err
		}

		b, err := s.EnsureYieldAssignment(ctx, y)
		if err != nil {
			if delErr := s.repo.DeleteYield(ctx, y.ID); delErr != nil {
				return fmt.Errorf("remove unbatched yield %s: %w", y.ID, delErr)
			}
			logger.Warn(ctx, "yield removed after batch assignment failed",
				"yield_id", y.ID, "session", y.Session, "error", err)
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "milk yield recorded",
		"yield_id", y.ID,
		"cow_id", y.CowID,
		"session", y.Session,
		"litres", y.YieldLitres,
		"tank", y.StorageTank,
	)
	return y, batch, nil
}

// assignSession sets the session and window bounds of y from its timestamp,
// falling back to the declared session while its batch is still open.
func (s *Service) assignSession(ctx context.Context, y *MilkYield) error {
	resolved, ok, err := s.resolver.Resolve(ctx, y.RecordedAt)
	if err != nil {
		return err
	}
	if ok {
		y.Session = resolved
	} else {
		if y.Session == "" {
			return apperror.NewWorkflow(apperror.CodeIntakeClosed, msgIntakeClosed)
		}
		available, err := s.IsSessionAvailable(ctx, y.Session, y.RecordedAt)
		if err != nil {
			return err
		}
		if !available {
			return apperror.NewWorkflow(apperror.CodeIntakeClosed, msgWindowClosed).
				WithDetail("session", y.Session)
		}
	}

	start, end, found, err := s.resolver.Bounds(ctx, y.RecordedAt, y.Session)
	if err != nil {
		return err
	}
	if found {
		y.WindowStart, y.WindowEnd = &start, &end
	}
	return nil
}

func (s *Service) deriveFields(ctx context.Context, y *MilkYield) error {
	day := types.DateOf(y.RecordedAt, s.resolver.Location())
	existing, err := s.repo.SumTankVolume(ctx, y.StorageTank, day, day.AddDate(0, 0, 1), y.ID)
	if err != nil {
		return fmt.Errorf("sum tank volume: %w", err)
	}
	y.applyDerived(existing)
	return nil
}

// EditYieldInput carries the editable fields of a yield.
type EditYieldInput struct {
	YieldLitres  *types.Litres
	StorageTank  *Tank
	QualityGrade *Grade
	QualityNotes *string
}

// EditYield corrects a recorded yield and recomputes its derived fields.
// Session and batch membership stay unchanged.
func (s *Service) EditYield(ctx context.Context, yieldID id.ID, in EditYieldInput) (*MilkYield, error) {
	var y *MilkYield
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		y, err = s.repo.GetYield(ctx, yieldID)
		if err != nil {
			return err
		}
		if in.YieldLitres != nil {
			y.YieldLitres = *in.YieldLitres
		}
		if in.StorageTank != nil {
			y.StorageTank = *in.StorageTank
		}
		if in.QualityGrade != nil {
			y.QualityGrade = *in.QualityGrade
		}
		if in.QualityNotes != nil {
			y.QualityNotes = *in.QualityNotes
		}
		if err := y.Validate(ctx); err != nil {
			return err
		}
		if err := s.deriveFields(ctx, y); err != nil {
			return err
		}
		return s.repo.UpdateYield(ctx, y)
	})
	if err != nil {
		return nil, err
	}
	return y, nil
}

// IsSessionAvailable reports whether late readings may still join the
// session's batch on the local date of t: true when no batch exists yet or
// the current batch is open.
func (s *Service) IsSessionAvailable(ctx context.Context, session collection.Session, t time.Time) (bool, error) {
	if session == "" {
		return false, nil
	}
	b, err := s.repo.LatestBatch(ctx, session, types.DateOf(t, s.resolver.Location()))
	if err != nil {
		return false, err
	}
	return b == nil || b.IsOpen(), nil
}

// ForSession returns the most recent batch for (session, date), creating an
// open one when none exists and create is set.
func (s *Service) ForSession(ctx context.Context, session collection.Session, date time.Time, create bool) (*Batch, error) {
	if !session.Valid() {
		return nil, apperror.NewValidation("Select a valid collection window before performing this action.").
			WithDetail("session", session)
	}
	date = types.DateOf(date, s.resolver.Location())
	b, err := s.repo.LatestBatch(ctx, session, date)
	if err != nil {
		return nil, err
	}
	if b != nil || !create {
		return b, nil
	}
	return s.createBatch(ctx, session, date)
}

func (s *Service) createBatch(ctx context.Context, session collection.Session, date time.Time) (*Batch, error) {
	b, err := s.repo.CreateBatch(ctx, NewBatch(session, date, s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	logger.Debug(ctx, "intake batch current", "batch_id", b.ID, "session", session, "date", date.Format(time.DateOnly))
	return b, nil
}

// EnsureYieldAssignment attaches y to the current batch of its session and
// local date. A locked batch is never reused: a fresh batch is started.
// A closed batch rejects the yield until it is reopened.
func (s *Service) EnsureYieldAssignment(ctx context.Context, y *MilkYield) (*Batch, error) {
	if y.Session == "" {
		return nil, nil
	}
	date := types.DateOf(y.RecordedAt, s.resolver.Location())

	b, err := s.repo.LatestBatch(ctx, y.Session, date)
	if err != nil {
		return nil, err
	}
	if b == nil || b.IsLocked() {
		if b, err = s.createBatch(ctx, y.Session, date); err != nil {
			return nil, err
		}
	}
	if !b.IsOpen() {
		return nil, apperror.NewWorkflow(apperror.CodeBatchClosed, msgBatchClosed).
			WithDetail("batch_id", b.ID)
	}
	if err := s.repo.AttachYield(ctx, b.ID, y.ID); err != nil {
		return nil, fmt.Errorf("attach yield to batch: %w", err)
	}
	return b, nil
}

// OpenBatch reopens a closed batch.
func (s *Service) OpenBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.transition(ctx, batchID, audit.ActionOpen, func(b *Batch) error {
		return b.Open(appctx.GetOperatorID(ctx), s.clock.Now())
	})
}

// CloseBatch stops intake into a batch.
func (s *Service) CloseBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.transition(ctx, batchID, audit.ActionClose, func(b *Batch) error {
		return b.Close(appctx.GetOperatorID(ctx), s.clock.Now())
	})
}

// LockBatch freezes a batch permanently.
func (s *Service) LockBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	return s.transition(ctx, batchID, audit.ActionLock, func(b *Batch) error {
		b.Lock()
		return nil
	})
}

func (s *Service) transition(ctx context.Context, batchID id.ID, action audit.Action, apply func(*Batch) error) (*Batch, error) {
	var b *Batch
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repo.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		from := b.State
		if err := apply(b); err != nil {
			return err
		}
		if err := s.repo.UpdateBatch(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return s.audit.LogChange(ctx, audit.EntityBatch, b.ID, action, map[string]any{
			"from": from,
			"to":   b.State,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "intake batch transition", "batch_id", b.ID, "action", action, "state", b.State)
	return b, nil
}

// BatchVolume returns the litres recorded into a batch.
func (s *Service) BatchVolume(ctx context.Context, batchID id.ID) (types.Litres, error) {
	return s.repo.BatchVolume(ctx, batchID)
}

// AutoCloseElapsed closes open auto-managed batches whose intake window has
// ended. Returns the number of batches closed.
func (s *Service) AutoCloseElapsed(ctx context.Context) (int, error) {
	batches, err := s.repo.ListOpenAutoManaged(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	ctx = appctx.WithOperator(ctx, &appctx.OperatorContext{OperatorID: appctx.SystemOperator})

	closed := 0
	for _, b := range batches {
		w, ok, err := s.resolver.Window(ctx, b.Session)
		if err != nil {
			return closed, err
		}
		if !ok {
			continue
		}
		loc := s.resolver.Location()
		closesAt := w.End.On(types.CalendarDate(b.CollectionDate, loc), loc)
		if w.Wraps() {
			closesAt = closesAt.AddDate(0, 0, 1)
		}
		if now.Before(closesAt) {
			continue
		}
		if _, err := s.CloseBatch(ctx, b.ID); err != nil {
			if apperror.HasCode(err, apperror.CodeBatchLocked) {
				continue
			}
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// RecordBatchTestInput carries a raw milk lab test.
type RecordBatchTestInput struct {
	BatchID       id.ID
	FatPercentage decimal.Decimal
	SNFPercentage decimal.Decimal
	Acidity       decimal.Decimal
	Contaminants  string
	Result        TestResult
	// StorageTank optionally moves all batch yields to a certified tank.
	StorageTank Tank
}

// RecordBatchTest saves the batch's test. An open batch is closed first;
// any verdict other than pending locks the batch.
func (s *Service) RecordBatchTest(ctx context.Context, in RecordBatchTestInput) (*BatchTest, error) {
	if in.Result == "" {
		in.Result = ResultPending
	}
	if in.StorageTank != "" && !in.StorageTank.Certified() {
		return nil, apperror.NewValidation("Select a valid certified tank before saving the test.").
			WithDetail("field", "storageTank")
	}

	var test *BatchTest
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBatchForUpdate(ctx, in.BatchID)
		if err != nil {
			return err
		}
		existing, err := s.repo.FindTest(ctx, b.ID)
		if err != nil {
			return err
		}
		if b.IsLocked() && existing == nil {
			return apperror.NewWorkflow(apperror.CodeBatchLocked,
				"This batch has already been locked by another tester.").
				WithDetail("batch_id", b.ID)
		}

		test = existing
		if test == nil {
			test = &BatchTest{ID: id.New(), BatchID: b.ID, TestedAt: s.clock.Now()}
		}
		test.TestedBy = appctx.GetOperatorID(ctx)
		test.FatPercentage = in.FatPercentage
		test.SNFPercentage = in.SNFPercentage
		test.Acidity = in.Acidity
		test.Result = in.Result
		test.Contaminants = nil
		if in.Contaminants != "" {
			c := in.Contaminants
			test.Contaminants = &c
		}
		if err := test.Validate(ctx); err != nil {
			return err
		}

		if b.IsOpen() {
			if err := b.Close(test.TestedBy, s.clock.Now()); err != nil {
				return err
			}
		}
		if in.StorageTank != "" {
			if err := s.repo.SetBatchTank(ctx, b.ID, in.StorageTank); err != nil {
				return fmt.Errorf("move batch yields: %w", err)
			}
		}

		switch test.Result {
		case ResultApproved:
			test.Approve()
		case ResultRejected:
			test.Reject(in.Contaminants)
		}
		if err := s.repo.SaveTest(ctx, test); err != nil {
			return fmt.Errorf("save batch test: %w", err)
		}

		action := audit.ActionCreate
		if test.Result != ResultPending {
			b.Lock()
			if test.Result == ResultApproved {
				action = audit.ActionApprove
			} else {
				action = audit.ActionReject
			}
		}
		if err := s.repo.UpdateBatch(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return s.audit.LogChange(ctx, audit.EntityBatchTest, test.ID, action, map[string]any{
			"batch_id":     b.ID,
			"result":       test.Result,
			"batch_state":  b.State,
			"contaminants": in.Contaminants,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch test recorded", "batch_id", in.BatchID, "result", test.Result)
	return test, nil
}

// ApproveBatchTest marks an existing test approved and locks its batch.
func (s *Service) ApproveBatchTest(ctx context.Context, batchID id.ID) (*BatchTest, error) {
	return s.verdict(ctx, batchID, func(t *BatchTest) { t.Approve() }, audit.ActionApprove)
}

// RejectBatchTest marks an existing test rejected and locks its batch.
func (s *Service) RejectBatchTest(ctx context.Context, batchID id.ID, reason string) (*BatchTest, error) {
	return s.verdict(ctx, batchID, func(t *BatchTest) { t.Reject(reason) }, audit.ActionReject)
}

func (s *Service) verdict(ctx context.Context, batchID id.ID, apply func(*BatchTest), action audit.Action) (*BatchTest, error) {
	var test *BatchTest
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		test, err = s.repo.FindTest(ctx, batchID)
		if err != nil {
			return err
		}
		if test == nil {
			return apperror.NewNotFound("batch test", batchID)
		}
		apply(test)
		if err := s.repo.SaveTest(ctx, test); err != nil {
			return fmt.Errorf("save batch test: %w", err)
		}
		b.Lock()
		if err := s.repo.UpdateBatch(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return s.audit.LogChange(ctx, audit.EntityBatchTest, test.ID, action, map[string]any{
			"batch_id": b.ID,
			"result":   test.Result,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "batch test verdict", "batch_id", batchID, "result", test.Result)
	return test, nil
}
