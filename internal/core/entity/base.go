// Package entity holds contracts shared by domain records.
package entity

import "context"

// Validatable is implemented by records that check their own invariants
// before they are persisted. Validation never touches the database.
type Validatable interface {
	Validate(ctx context.Context) error
}
