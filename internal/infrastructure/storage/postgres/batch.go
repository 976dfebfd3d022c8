package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// BatchExecutor sends several statements in one round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery is one queued statement.
type BatchQuery struct {
	SQL  string
	Args []any
	// ExpectRows fails the batch when the statement touches fewer rows.
	ExpectRows int64
}

// Queue builds q into a BatchQuery.
func Queue(q squirrel.Sqlizer, expectRows int64) (BatchQuery, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return BatchQuery{}, fmt.Errorf("build batch statement: %w", err)
	}
	return BatchQuery{SQL: sql, Args: args, ExpectRows: expectRows}, nil
}

// ExecuteBatch runs the queries inside the transaction carried by ctx.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) error {
	t := e.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("ExecuteBatch requires transaction context")
	}
	if len(queries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()

	for i, q := range queries {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("batch query %d failed: %w", i, err)
		}
		if tag.RowsAffected() < q.ExpectRows {
			return fmt.Errorf("batch query %d: %d rows affected, want %d", i, tag.RowsAffected(), q.ExpectRows)
		}
	}
	return nil
}
