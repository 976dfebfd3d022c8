// Package main compares inventory with cold storage and prints the result.
//
// Usage:
//
//	reconcile [-apply]          report mismatches; -apply removes empty lots
//	reconcile -sync [-apply]    plan inventory updates from storage totals; -apply writes them
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dairyops/internal/app"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/infrastructure/config"
)

func main() {
	apply := flag.Bool("apply", false, "write changes instead of a dry run")
	sync := flag.Bool("sync", false, "sync inventory items from storage totals")
	operator := flag.String("operator", "reconcile", "operator recorded in the audit log")
	flag.Parse()

	if err := run(*apply, *sync, *operator); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}
}

func run(apply, sync bool, operator string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = appctx.WithOperator(ctx, &appctx.OperatorContext{OperatorID: operator, Role: "system"})

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if sync {
		plan, err := a.Storage.SyncInventoryFromStorage(ctx, apply)
		if err != nil {
			return err
		}
		return plan.Render(os.Stdout)
	}

	report, err := a.Storage.Reconcile(ctx, apply)
	if err != nil {
		return err
	}
	return report.Render(os.Stdout)
}
