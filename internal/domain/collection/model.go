// Package collection maps timestamps to the dairy's daily intake windows.
package collection

import (
	"fmt"
	"time"

	"dairyops/internal/core/apperror"
)

// Session is the key of an intake window.
type Session string

const (
	Morning   Session = "morning"
	Afternoon Session = "afternoon"
	Evening   Session = "evening"
)

// Label returns the display name of the session.
func (s Session) Label() string {
	switch s {
	case Morning:
		return "Morning"
	case Afternoon:
		return "Afternoon"
	case Evening:
		return "Evening"
	}
	return string(s)
}

// Valid reports whether s is one of the configured session keys.
func (s Session) Valid() bool {
	for _, d := range defaultWindows {
		if d.Session == s {
			return true
		}
	}
	return false
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay builds a TimeOfDay.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, apperror.NewValidation(fmt.Sprintf("invalid time of day %q", s))
}

// TimeOfDayOf returns the wall-clock time of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// Before reports t < o.
func (t TimeOfDay) Before(o TimeOfDay) bool { return t.minutes() < o.minutes() }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On combines t with the calendar date of day in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Window is the effective [Start, End) intake window of a session.
// End <= Start means the window wraps midnight.
type Window struct {
	Session      Session    `json:"key"`
	Label        string     `json:"label"`
	Start        TimeOfDay  `json:"start"`
	End          TimeOfDay  `json:"end"`
	DefaultStart TimeOfDay  `json:"default_start"`
	DefaultEnd   TimeOfDay  `json:"default_end"`
	Overridden   bool       `json:"override"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	UpdatedBy    string     `json:"updated_by,omitempty"`
}

// Wraps reports whether the window crosses midnight.
func (w Window) Wraps() bool {
	return !w.Start.Before(w.End)
}

// Contains reports whether the wall-clock time t falls inside the window.
func (w Window) Contains(t TimeOfDay) bool {
	if !w.Wraps() {
		return !t.Before(w.Start) && t.Before(w.End)
	}
	return !t.Before(w.Start) || t.Before(w.End)
}

// Override replaces the default bounds of one session.
type Override struct {
	SessionKey Session   `db:"session_key"`
	StartTime  string    `db:"start_time"`
	EndTime    string    `db:"end_time"`
	UpdatedBy  string    `db:"updated_by"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Bounds parses the stored start and end times.
func (o Override) Bounds() (TimeOfDay, TimeOfDay, error) {
	start, err := ParseTimeOfDay(o.StartTime)
	if err != nil {
		return TimeOfDay{}, TimeOfDay{}, err
	}
	end, err := ParseTimeOfDay(o.EndTime)
	if err != nil {
		return TimeOfDay{}, TimeOfDay{}, err
	}
	return start, end, nil
}

// Validate checks the override before it is stored.
func (o Override) Validate() error {
	if !o.SessionKey.Valid() {
		return apperror.NewValidation("Unknown collection session").
			WithDetail("session_key", o.SessionKey)
	}
	start, end, err := o.Bounds()
	if err != nil {
		return err
	}
	if start == end {
		return apperror.NewValidation("Start and end time cannot be identical.").
			WithDetail("session_key", o.SessionKey)
	}
	return nil
}

var defaultWindows = []Window{
	{Session: Morning, Start: NewTimeOfDay(0, 0), End: NewTimeOfDay(6, 0)},
	{Session: Afternoon, Start: NewTimeOfDay(12, 0), End: NewTimeOfDay(15, 0)},
	{Session: Evening, Start: NewTimeOfDay(16, 0), End: NewTimeOfDay(19, 0)},
}

// DefaultWindows returns the built-in schedule with no overrides applied.
func DefaultWindows() []Window {
	out := make([]Window, len(defaultWindows))
	for i, w := range defaultWindows {
		w.Label = w.Session.Label()
		w.DefaultStart, w.DefaultEnd = w.Start, w.End
		out[i] = w
	}
	return out
}
