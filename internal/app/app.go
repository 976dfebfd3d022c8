// Package app wires configuration, the database and the dairy services
// together for the commands under cmd/.
package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"dairyops/internal/core/clock"
	"dairyops/internal/domain/collection"
	"dairyops/internal/domain/intake"
	"dairyops/internal/domain/inventory"
	"dairyops/internal/domain/lab"
	"dairyops/internal/domain/production"
	"dairyops/internal/domain/sales"
	"dairyops/internal/domain/storage"
	"dairyops/internal/infrastructure/config"
	"dairyops/internal/infrastructure/storage/postgres"
	"dairyops/internal/infrastructure/storage/postgres/collection_repo"
	"dairyops/internal/infrastructure/storage/postgres/intake_repo"
	"dairyops/internal/infrastructure/storage/postgres/inventory_repo"
	"dairyops/internal/infrastructure/storage/postgres/lab_repo"
	"dairyops/internal/infrastructure/storage/postgres/production_repo"
	"dairyops/internal/infrastructure/storage/postgres/sales_repo"
	"dairyops/internal/infrastructure/storage/postgres/storage_repo"
	"dairyops/pkg/logger"
)

// App holds the shared infrastructure and every domain service.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Clock     clock.System

	Audit       *postgres.AuditRecorder
	Idempotency *postgres.IdempotencyStore

	Collection *collection.Service
	Intake     *intake.Service
	Production *production.Service
	Inventory  *inventory.Service
	Storage    *storage.Service
	Lab        *lab.Service
	Sales      *sales.Service
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
}

// New connects to the database and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	clk, err := clock.NewSystem(cfg.Collection.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	if cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}
	poolCfg.AppName = cfg.App.Name

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.Database.StatementTimeout)

	rec, err := postgres.NewAuditRecorder(txm)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit recorder: %w", err)
	}

	a := &App{
		Config:      cfg,
		Log:         log,
		Pool:        pool,
		TxManager:   txm,
		Clock:       clk,
		Audit:       rec,
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.HTTP.IdempotencyTTL),
	}

	overrides := collection_repo.NewOverrideRepo(txm)
	resolver := collection.NewResolver(overrides, clk.Location())
	a.Collection = collection.NewService(overrides, resolver, txm, overrides)
	a.Intake = intake.NewService(intake_repo.New(txm), resolver, txm, clk, rec)

	productionRepo := production_repo.New(txm)
	a.Production = production.NewService(productionRepo, txm, clk, rec)
	a.Inventory = inventory.NewService(inventory_repo.New(txm), txm, clk)
	a.Storage = storage.NewService(storage_repo.New(txm), a.Production, a.Inventory, txm, clk, rec).
		WithTolerance(decimal.NewFromFloat(cfg.Reconcile.Tolerance))
	a.Lab = lab.NewService(lab_repo.New(txm), productionRepo, a.Storage, txm, clk, rec)
	a.Sales = sales.NewService(sales_repo.New(txm), a.Inventory, a.Storage, sales_repo.NewNumbers(txm), txm, clk, rec)

	log.Infow("services initialized",
		"timezone", clk.Location().String(),
		"max_conns", poolCfg.MaxConns,
		"statement_timeout", cfg.Database.StatementTimeout,
	)
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}
