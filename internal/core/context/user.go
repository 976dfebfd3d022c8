// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// SystemOperator is recorded as the actor for scheduler-driven transitions.
const SystemOperator = "system"

// OperatorContext identifies the staff member performing an operation.
// Authentication happens outside the core; the value is trusted as given.
type OperatorContext struct {
	OperatorID string
	Role       string
}

type operatorContextKey struct{}

// WithOperator adds OperatorContext to context.
func WithOperator(ctx context.Context, op *OperatorContext) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// GetOperator returns OperatorContext from context.
func GetOperator(ctx context.Context) *OperatorContext {
	if v, ok := ctx.Value(operatorContextKey{}).(*OperatorContext); ok {
		return v
	}
	return nil
}

// GetOperatorID returns the operator ID from context, falling back to
// SystemOperator for background jobs.
func GetOperatorID(ctx context.Context) string {
	if op := GetOperator(ctx); op != nil && op.OperatorID != "" {
		return op.OperatorID
	}
	return SystemOperator
}
