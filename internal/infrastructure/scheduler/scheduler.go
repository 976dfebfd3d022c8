// Package scheduler runs the periodic dairy jobs: closing elapsed intake
// batches, refreshing cold storage statuses and purging idempotency keys.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/id"
	"dairyops/pkg/logger"
)

// SystemOperator is recorded as the actor of scheduled changes.
const SystemOperator = "scheduler"

const defaultJobTimeout = 5 * time.Minute

// JobFunc is one run of a job. The count is logged as "affected".
type JobFunc func(ctx context.Context) (int, error)

type job struct {
	name string
	spec string
	fn   JobFunc
}

// Scheduler wraps a cron runner that executes jobs in the dairy timezone.
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]job
}

// New creates a scheduler. Overlapping runs of the same job are skipped.
func New(loc *time.Location, timeout time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	log = log.WithComponent("scheduler")
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, log: log, timeout: timeout, jobs: make(map[string]job)}
}

// Add registers fn under name on a standard five-field cron spec or a
// descriptor such as "@hourly".
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	j := job{name: name, spec: spec, fn: fn}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(j) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = j
	return nil
}

// RunNow executes a registered job once, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.run(j)
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.log.Infow("starting scheduler", "jobs", len(s.jobs))
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.log.Infow("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warnw("scheduler stopped with jobs still running")
	}
}

func (s *Scheduler) run(j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(id.New().String()))
	ctx = appctx.WithOperator(ctx, &appctx.OperatorContext{OperatorID: SystemOperator, Role: "system"})
	ctx = logger.WithLogger(ctx, s.log)

	start := time.Now()
	n, err := j.fn(ctx)
	if err != nil {
		logger.Error(ctx, "scheduled job failed", "job", j.name, "error", err)
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logger.Info(ctx, "scheduled job finished",
		"job", j.name, "affected", n, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
