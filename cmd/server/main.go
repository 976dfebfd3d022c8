// Package main is the entry point for the dairy operations API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dairyops/internal/app"
	"dairyops/internal/infrastructure/cache"
	"dairyops/internal/infrastructure/config"
	v1 "dairyops/internal/infrastructure/http/v1"
)

var version = "dev"

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting dairyops server", "env", cfg.App.Env, "version", version)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	// Window overrides changed by other instances arrive over LISTEN/NOTIFY.
	listener := cache.NewWindowListener(a.Pool.Pool, a.Collection.Resolver())
	listener.Start(ctx)
	defer listener.Stop()

	router := v1.NewRouter(v1.RouterConfig{
		Logger:      log,
		Clock:       a.Clock,
		Version:     version,
		Database:    a.Pool,
		Idempotency: a.Idempotency,
		Collection:  a.Collection,
		Intake:      a.Intake,
		Production:  a.Production,
		Lab:         a.Lab,
		Storage:     a.Storage,
		Inventory:   a.Inventory,
		Sales:       a.Sales,
		Audit:       a.Audit,
		Development: !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Errorw("server failed", "error", err)
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
