// Package main is the entry point for the dairy background worker. It runs
// the scheduled jobs: intake auto-close, storage status refresh and
// idempotency key purge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dairyops/internal/app"
	"dairyops/internal/infrastructure/cache"
	"dairyops/internal/infrastructure/config"
	"dairyops/internal/infrastructure/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting dairyops worker")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	// Auto-close reads window overrides edited through the server.
	listener := cache.NewWindowListener(a.Pool.Pool, a.Collection.Resolver())
	listener.Start(ctx)
	defer listener.Stop()

	s := scheduler.New(a.Clock.Location(), cfg.Scheduler.JobTimeout, log)
	err = scheduler.Register(s, cfg.Scheduler, scheduler.Jobs{
		Batches:     a.Intake,
		Storage:     a.Storage,
		Idempotency: a.Idempotency,
	})
	if err != nil {
		log.Fatalw("failed to schedule jobs", "error", err)
	}

	// Batches whose window ended while the worker was down close right away.
	if err := s.RunNow(scheduler.JobAutoCloseBatches); err != nil {
		log.Warnw("initial auto-close failed", "error", err)
	}

	s.Start()
	<-ctx.Done()

	log.Info("shutting down worker...")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	s.Stop(stopCtx)
	log.Info("worker stopped")
}
