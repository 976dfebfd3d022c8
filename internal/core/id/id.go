// Package id generates identifiers for yields, batches, lots and sales.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type used by every persisted record.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7 so rows sort by creation.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error. Tests only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
