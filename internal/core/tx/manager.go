// Package tx defines the transaction boundary that domain services depend on.
// The postgres implementation stores the open transaction in the context and
// repositories pick it up from there.
package tx

import (
	"context"
)

// Manager runs fn inside a database transaction. Nested calls reuse the
// transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// ReadOnly runs fn in a transaction that rejects writes and reads one
	// snapshot. Inside an open transaction it joins it.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Passthrough runs fn directly. Used by in-memory repositories in tests and
// by tooling that has no database.
type Passthrough struct{}

// RunInTransaction implements Manager.
func (Passthrough) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ReadOnly implements Manager.
func (Passthrough) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
