// Package numerator issues document numbers from the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "dairyops/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for ctx, typically the open transaction.
type QuerierFunc func(ctx context.Context) Querier

// Service bumps the counter row for every number. Run inside the caller's
// transaction the sequence has no gaps: a rollback releases the number.
type Service struct {
	querier QuerierFunc
}

// New creates a numerator that runs on the querier carried by ctx.
func New(querier QuerierFunc) *Service {
	return &Service{querier: querier}
}

var _ corenumerator.Generator = (*Service)(nil)

const nextSQL = `
	INSERT INTO sys_sequences (key, current_val)
	VALUES ($1, 1)
	ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
	RETURNING current_val`

// Next generates the next number, e.g. SL-2025-00001.
func (s *Service) Next(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := cfg.Key(period)
	var num int64
	if err := s.querier(ctx).QueryRow(ctx, nextSQL, key).Scan(&num); err != nil {
		return "", fmt.Errorf("next %s: %w", key, err)
	}
	return cfg.Format(period, num), nil
}
