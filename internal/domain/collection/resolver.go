package collection

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Resolver holds the effective windows for a process. Windows are loaded
// lazily from the override store and kept until Invalidate or Refresh.
// A Resolver is safe for concurrent use.
type Resolver struct {
	store OverrideStore
	loc   *time.Location

	mu      sync.RWMutex
	windows []Window
}

// NewResolver creates a resolver evaluating wall-clock times in loc.
// A nil store means defaults only.
func NewResolver(store OverrideStore, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{store: store, loc: loc}
}

// Location returns the collection timezone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Invalidate drops cached windows; the next read reloads them.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.windows = nil
	r.mu.Unlock()
}

// Refresh reloads windows from the store.
func (r *Resolver) Refresh(ctx context.Context) error {
	windows, err := r.load(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.windows = windows
	r.mu.Unlock()
	return nil
}

// Windows returns a copy of the effective windows in morning, afternoon,
// evening order.
func (r *Resolver) Windows(ctx context.Context) ([]Window, error) {
	r.mu.RLock()
	cached := r.windows
	r.mu.RUnlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.windows), nil
}

func (r *Resolver) load(ctx context.Context) ([]Window, error) {
	windows := DefaultWindows()
	if r.store == nil {
		return windows, nil
	}
	overrides, err := r.store.ListOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("list window overrides: %w", err)
	}
	byKey := make(map[Session]Override, len(overrides))
	for _, o := range overrides {
		byKey[o.SessionKey] = o
	}
	for i := range windows {
		o, ok := byKey[windows[i].Session]
		if !ok {
			continue
		}
		start, end, err := o.Bounds()
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", o.SessionKey, err)
		}
		updatedAt := o.UpdatedAt
		windows[i].Start = start
		windows[i].End = end
		windows[i].Overridden = true
		windows[i].UpdatedAt = &updatedAt
		windows[i].UpdatedBy = o.UpdatedBy
	}
	return windows, nil
}

// Window returns the effective window of a session.
func (r *Resolver) Window(ctx context.Context, session Session) (Window, bool, error) {
	if session == "" {
		return Window{}, false, nil
	}
	windows, err := r.Windows(ctx)
	if err != nil {
		return Window{}, false, err
	}
	for _, w := range windows {
		if w.Session == session {
			return w, true, nil
		}
	}
	return Window{}, false, nil
}

// Resolve returns the session whose window contains t in local time.
// ok is false when t is outside every window.
func (r *Resolver) Resolve(ctx context.Context, t time.Time) (Session, bool, error) {
	windows, err := r.Windows(ctx)
	if err != nil {
		return "", false, err
	}
	tod := TimeOfDayOf(t.In(r.loc))
	for _, w := range windows {
		if w.Contains(tod) {
			return w.Session, true, nil
		}
	}
	return "", false, nil
}

// Bounds returns the absolute start and end of the session's window that t
// belongs to. For a window wrapping midnight, a time before the end belongs to
// the window that started the previous day; otherwise the end moves to the
// next day.
func (r *Resolver) Bounds(ctx context.Context, t time.Time, session Session) (start, end time.Time, ok bool, err error) {
	w, found, err := r.Window(ctx, session)
	if err != nil || !found {
		return time.Time{}, time.Time{}, false, err
	}
	local := t.In(r.loc)
	start = w.Start.On(local, r.loc)
	end = w.End.On(local, r.loc)
	if w.Wraps() {
		if TimeOfDayOf(local).Before(w.End) {
			start = start.AddDate(0, 0, -1)
		} else {
			end = end.AddDate(0, 0, 1)
		}
	}
	return start, end, true, nil
}
