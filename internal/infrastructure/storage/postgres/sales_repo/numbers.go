package sales_repo

import (
	"context"

	"dairyops/internal/infrastructure/storage/postgres"
	"dairyops/pkg/numerator"
)

// NewNumbers returns a sale numerator that bumps sys_sequences inside the
// caller's transaction, so a rolled back sale releases its number.
func NewNumbers(txm *postgres.TxManager) *numerator.Service {
	return numerator.New(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})
}
