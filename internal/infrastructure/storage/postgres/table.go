package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/id"
)

// PostgreSQL error codes mapped to application errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Table provides the CRUD plumbing shared by the repositories of one table.
// Columns come from the "db" tags of T.
type Table[T any] struct {
	txm    *TxManager
	name   string
	entity string
	cols   []string
}

// NewTable describes table name holding rows of T. entity names the row in
// not-found errors.
func NewTable[T any](txm *TxManager, name, entity string) *Table[T] {
	return &Table[T]{txm: txm, name: name, entity: entity, cols: ExtractDBColumns[T]()}
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Columns returns the selected columns.
func (t *Table[T]) Columns() []string { return t.cols }

// Querier returns the transaction in ctx or the pool.
func (t *Table[T]) Querier(ctx context.Context) Querier {
	return t.txm.GetQuerier(ctx)
}

// Select starts a SELECT of all columns.
func (t *Table[T]) Select() squirrel.SelectBuilder {
	return Builder().Select(t.cols...).From(t.name)
}

// Insert writes row.
func (t *Table[T]) Insert(ctx context.Context, row *T) error {
	q := Builder().Insert(t.name).SetMap(StructToMap(row))
	if _, err := t.Exec(ctx, q); err != nil {
		return t.mapError(err, "insert")
	}
	return nil
}

// UpdateQuery builds an UPDATE of every column but the key and the listed
// immutable ones.
func (t *Table[T]) UpdateQuery(rowID id.ID, row *T, immutable ...string) squirrel.UpdateBuilder {
	data := StructToMap(row)
	delete(data, "id")
	for _, col := range immutable {
		delete(data, col)
	}
	return Builder().Update(t.name).SetMap(data).Where(squirrel.Eq{"id": rowID})
}

// Update rewrites every column but the key and the listed immutable ones.
func (t *Table[T]) Update(ctx context.Context, rowID id.ID, row *T, immutable ...string) error {
	tag, err := t.Exec(ctx, t.UpdateQuery(rowID, row, immutable...))
	if err != nil {
		return t.mapError(err, "update")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(t.entity, rowID.String())
	}
	return nil
}

// Delete removes a row by id.
func (t *Table[T]) Delete(ctx context.Context, rowID id.ID) error {
	tag, err := t.Exec(ctx, Builder().Delete(t.name).Where(squirrel.Eq{"id": rowID}))
	if err != nil {
		return t.mapError(err, "delete")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(t.entity, rowID.String())
	}
	return nil
}

// Get returns the single row q selects, or a not-found error naming key.
func (t *Table[T]) Get(ctx context.Context, q squirrel.SelectBuilder, key any) (*T, error) {
	row, err := t.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperror.NewNotFound(t.entity, key)
	}
	return row, nil
}

// Find returns the single row q selects, or nil.
func (t *Table[T]) Find(ctx context.Context, q squirrel.SelectBuilder) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	row := new(T)
	if err := pgxscan.Get(ctx, t.Querier(ctx), row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select %s: %w", t.name, err)
	}
	return row, nil
}

// List returns every row q selects.
func (t *Table[T]) List(ctx context.Context, q squirrel.SelectBuilder) ([]*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []*T
	if err := pgxscan.Select(ctx, t.Querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", t.name, err)
	}
	return rows, nil
}

// Exec runs a built statement.
func (t *Table[T]) Exec(ctx context.Context, q squirrel.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build statement: %w", err)
	}
	return t.Querier(ctx).Exec(ctx, sql, args...)
}

func (t *Table[T]) mapError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.NewConflict(fmt.Sprintf("%s already exists", t.entity)).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewConflict(fmt.Sprintf("%s references a missing or used record", t.entity)).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, t.name, err)
}

// ForUpdate locks the selected rows until the transaction ends.
func ForUpdate(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	return q.Suffix("FOR UPDATE")
}

// IsUniqueViolation reports whether err comes from the named unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}

// Scalar runs q and scans its single column into dest.
func Scalar(ctx context.Context, q Querier, b squirrel.Sqlizer, dest any) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return q.QueryRow(ctx, sql, args...).Scan(dest)
}
