// Package clock abstracts the current time so workflows can be tested at
// fixed instants and evaluated in the dairy's local timezone.
package clock

import (
	"time"

	"dairyops/internal/core/types"
)

// Clock reports the current instant and the business timezone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Today returns local midnight for c.
func Today(c Clock) time.Time {
	return types.DateOf(c.Now(), c.Location())
}

// System is the wall clock in a fixed location.
type System struct {
	Loc *time.Location
}

// NewSystem loads the named IANA zone. An empty name means UTC.
func NewSystem(zone string) (System, error) {
	if zone == "" {
		return System{Loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return System{}, err
	}
	return System{Loc: loc}, nil
}

func (s System) Now() time.Time { return time.Now().In(s.Location()) }

func (s System) Location() *time.Location {
	if s.Loc == nil {
		return time.UTC
	}
	return s.Loc
}

// Fixed always returns the same instant.
type Fixed struct {
	At time.Time
}

func (f *Fixed) Now() time.Time { return f.At }

func (f *Fixed) Location() *time.Location { return f.At.Location() }

// Advance moves the fixed instant forward.
func (f *Fixed) Advance(d time.Duration) { f.At = f.At.Add(d) }
