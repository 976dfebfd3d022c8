// Package collection_repo stores intake window overrides in PostgreSQL.
package collection_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"dairyops/internal/domain/collection"
	"dairyops/internal/infrastructure/storage/postgres"
)

// WindowsChangedChannel is the NOTIFY channel raised after overrides change.
const WindowsChangedChannel = "collection_windows_changed"

// OverrideRepo implements collection.OverrideStore and collection.ChangeNotifier.
type OverrideRepo struct {
	table *postgres.Table[collection.Override]
}

var (
	_ collection.OverrideStore  = (*OverrideRepo)(nil)
	_ collection.ChangeNotifier = (*OverrideRepo)(nil)
)

// NewOverrideRepo creates the repository.
func NewOverrideRepo(txm *postgres.TxManager) *OverrideRepo {
	return &OverrideRepo{
		table: postgres.NewTable[collection.Override](txm, "collection_window_overrides", "collection window"),
	}
}

func (r *OverrideRepo) ListOverrides(ctx context.Context) ([]collection.Override, error) {
	rows, err := r.table.List(ctx, r.table.Select().OrderBy("session_key"))
	if err != nil {
		return nil, err
	}
	out := make([]collection.Override, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *OverrideRepo) UpsertOverride(ctx context.Context, o *collection.Override) error {
	data := postgres.StructToMap(o)
	data["created_at"] = squirrel.Expr("now()")
	data["updated_at"] = squirrel.Expr("now()")

	q := postgres.Builder().
		Insert(r.table.Name()).
		SetMap(data).
		Suffix(`ON CONFLICT (session_key) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`)
	if _, err := r.table.Exec(ctx, q); err != nil {
		return fmt.Errorf("upsert window override: %w", err)
	}
	return nil
}

func (r *OverrideRepo) DeleteOverride(ctx context.Context, session collection.Session) error {
	q := postgres.Builder().Delete(r.table.Name()).Where(squirrel.Eq{"session_key": session})
	if _, err := r.table.Exec(ctx, q); err != nil {
		return fmt.Errorf("delete window override: %w", err)
	}
	return nil
}

// NotifyWindowsChanged raises the change notification. Inside a transaction
// listeners receive it on commit.
func (r *OverrideRepo) NotifyWindowsChanged(ctx context.Context) error {
	if _, err := r.table.Querier(ctx).Exec(ctx, "SELECT pg_notify($1, '')", WindowsChangedChannel); err != nil {
		return fmt.Errorf("notify %s: %w", WindowsChangedChannel, err)
	}
	return nil
}
