package collection

import "context"

// OverrideStore persists window overrides.
type OverrideStore interface {
	ListOverrides(ctx context.Context) ([]Override, error)
	UpsertOverride(ctx context.Context, o *Override) error
	DeleteOverride(ctx context.Context, session Session) error
}

// ChangeNotifier tells other processes that overrides changed.
type ChangeNotifier interface {
	NotifyWindowsChanged(ctx context.Context) error
}
