package scheduler

import (
	"context"

	"dairyops/internal/infrastructure/config"
)

// Job names.
const (
	JobAutoCloseBatches = "intake.auto_close"
	JobRefreshStatuses  = "storage.refresh_statuses"
	JobPurgeIdempotency = "idempotency.purge"
)

// BatchCloser closes intake batches whose window has ended.
type BatchCloser interface {
	AutoCloseElapsed(ctx context.Context) (int, error)
}

// StatusRefresher recomputes lot statuses from stock and expiry.
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (int, error)
}

// KeyPurger deletes expired idempotency keys.
type KeyPurger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Jobs are the services the dairy jobs call. Nil members are not scheduled.
type Jobs struct {
	Batches     BatchCloser
	Storage     StatusRefresher
	Idempotency KeyPurger
}

// Register schedules every configured job.
func Register(s *Scheduler, cfg config.SchedulerConfig, jobs Jobs) error {
	if jobs.Batches != nil {
		if err := s.Add(JobAutoCloseBatches, cfg.AutoCloseCron, jobs.Batches.AutoCloseElapsed); err != nil {
			return err
		}
	}
	if jobs.Storage != nil {
		if err := s.Add(JobRefreshStatuses, cfg.StatusRefresh, jobs.Storage.RefreshStatuses); err != nil {
			return err
		}
	}
	if jobs.Idempotency != nil {
		purge := func(ctx context.Context) (int, error) {
			n, err := jobs.Idempotency.CleanupExpired(ctx)
			return int(n), err
		}
		if err := s.Add(JobPurgeIdempotency, cfg.IdempotencyPurge, purge); err != nil {
			return err
		}
	}
	return nil
}
