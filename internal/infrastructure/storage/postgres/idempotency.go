package postgres

import (
	"context"
	"fmt"
	"time"

	"dairyops/internal/core/apperror"
)

// IdempotencyStatus is the state of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyPending IdempotencyStatus = "pending"
	IdempotencySuccess IdempotencyStatus = "success"
	IdempotencyFailed  IdempotencyStatus = "failed"
)

// stalePending is how long a pending key blocks retries before it is reclaimed.
const stalePending = time.Minute

// IdempotencyRecord is one row of sys_idempotency.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	OperatorID  string            `db:"operator_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// IdempotencyReplay is a stored response served again for a repeated key.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore guards POST endpoints against double submission, such as
// a till resending a sale after a timeout.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a store keeping keys for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

const acquireSQL = `
	INSERT INTO sys_idempotency (idempotency_key, operator_id, operation, status, request_hash, created_at, updated_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
	ON CONFLICT (idempotency_key) DO UPDATE SET updated_at = sys_idempotency.updated_at
	RETURNING operator_id, operation, status, request_hash, COALESCE(response, ''::bytea),
		COALESCE(response_status, 0), COALESCE(response_content_type, ''), created_at, updated_at,
		(xmax = 0) AS inserted`

// AcquireKey claims key for a request. It returns nil, nil when the caller
// owns the key and should run the request, or the stored response when the
// request already completed.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, operatorID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.now()

	var (
		rec      IdempotencyRecord
		inserted bool
	)
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, acquireSQL,
		key, operatorID, operation, IdempotencyPending, requestHash, now, now.Add(s.ttl),
	).Scan(&rec.OperatorID, &rec.Operation, &rec.Status, &rec.RequestHash, &rec.Response,
		&rec.StatusCode, &rec.ContentType, &rec.CreatedAt, &rec.UpdatedAt, &inserted)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if rec.OperatorID != operatorID || rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.NewConflict("Idempotency key was already used for a different request").
			WithDetail("idempotency_key", key)
	}

	switch rec.Status {
	case IdempotencySuccess, IdempotencyFailed:
		return &IdempotencyReplay{
			StatusCode:  rec.StatusCode,
			ContentType: rec.ContentType,
			Body:        rec.Response,
		}, nil
	}

	if now.Sub(rec.UpdatedAt) <= stalePending {
		return nil, apperror.NewConflict("Request with this idempotency key is still in progress").
			WithDetail("idempotency_key", key)
	}
	// The previous holder most likely crashed; take the key over.
	_, err = s.txManager.GetQuerier(ctx).Exec(ctx,
		`UPDATE sys_idempotency SET updated_at = $1 WHERE idempotency_key = $2 AND status = $3`,
		now, key, IdempotencyPending)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale idempotency key: %w", err)
	}
	return nil, nil
}

// Complete stores the response of a finished request.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	status := IdempotencySuccess
	if statusCode >= 400 {
		status = IdempotencyFailed
	}
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		status, body, statusCode, contentType, s.now(), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets a pending key so the request can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2`, key, IdempotencyPending)
	return err
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
