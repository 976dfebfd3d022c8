// Package cache keeps per-process caches in step with the database through
// PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dairyops/internal/infrastructure/storage/postgres/collection_repo"
	"dairyops/pkg/logger"
)

// Refresher reloads a cached view. *collection.Resolver implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
	Invalidate()
}

// WindowListener refreshes the collection window resolver of this process
// whenever another process changes an override.
type WindowListener struct {
	pool     *pgxpool.Pool
	target   Refresher
	retry    time.Duration
	pollWait time.Duration

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewWindowListener creates a listener for target.
func NewWindowListener(pool *pgxpool.Pool, target Refresher) *WindowListener {
	return &WindowListener{
		pool:     pool,
		target:   target,
		retry:    time.Second,
		pollWait: 30 * time.Second,
	}
}

// Start begins listening in the background. Calling Start twice is a no-op.
func (l *WindowListener) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.listenLoop(ctx)
	logger.Info(ctx, "collection window listener started")
}

// Stop ends listening and waits for the loop to exit.
func (l *WindowListener) Stop() {
	l.lifecycleMu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}

func (l *WindowListener) listenLoop(ctx context.Context) {
	defer l.wg.Done()

	for ctx.Err() == nil {
		conn, err := l.pool.Acquire(ctx)
		if err != nil {
			logger.Error(ctx, "failed to acquire connection for LISTEN", "error", err)
			l.sleep(ctx)
			continue
		}

		if _, err := conn.Exec(ctx, "LISTEN "+collection_repo.WindowsChangedChannel); err != nil {
			logger.Error(ctx, "failed to LISTEN", "channel", collection_repo.WindowsChangedChannel, "error", err)
			conn.Release()
			l.sleep(ctx)
			continue
		}

		// Changes made while disconnected were not delivered.
		l.HandleNotification(ctx)

		l.waitForNotifications(ctx, conn)
		conn.Release()
	}
}

func (l *WindowListener) waitForNotifications(ctx context.Context, conn *pgxpool.Conn) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, l.pollWait)
		_, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				continue
			}
			logger.Warn(ctx, "LISTEN connection lost", "error", err)
			return
		}
		l.HandleNotification(ctx)
	}
}

// HandleNotification reloads the windows, or drops them so the next read
// reloads when the store is unreachable.
func (l *WindowListener) HandleNotification(ctx context.Context) {
	if err := l.target.Refresh(ctx); err != nil {
		logger.Warn(ctx, "failed to refresh collection windows", "error", err)
		l.target.Invalidate()
		return
	}
	logger.Debug(ctx, "collection windows refreshed")
}

func (l *WindowListener) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(l.retry):
	}
}
