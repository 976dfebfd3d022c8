package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "dairyops/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences.
type mockQuerier struct {
	mu    sync.Mutex
	rows  map[string]int64
	calls int
	err   error
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	if m.rows == nil {
		m.rows = map[string]int64{}
	}
	key := args[0].(string)
	m.rows[key]++
	return &mockRow{val: m.rows[key]}
}

func static(q Querier) *Service {
	return New(func(context.Context) Querier { return q })
}

var period = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestNext_Sequential(t *testing.T) {
	q := &mockQuerier{}
	svc := static(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("SL")

	first, err := svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	second, err := svc.Next(ctx, cfg, period)
	require.NoError(t, err)

	assert.Equal(t, "SL-2025-00001", first)
	assert.Equal(t, "SL-2025-00002", second)
	assert.Equal(t, 2, q.calls)
}

func TestNext_NewYearRestarts(t *testing.T) {
	svc := static(&mockQuerier{})
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("SL")

	_, err := svc.Next(ctx, cfg, period)
	require.NoError(t, err)
	n, err := svc.Next(ctx, cfg, period.AddDate(1, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, "SL-2026-00001", n)
}

func TestNext_Concurrent(t *testing.T) {
	svc := static(&mockQuerier{})
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("SL")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.Next(ctx, cfg, period)
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50, "numbers are unique")
}

func TestNext_QueryError(t *testing.T) {
	svc := static(&mockQuerier{err: errors.New("connection reset")})

	_, err := svc.Next(context.Background(), corenumerator.DefaultConfig("SL"), period)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SL_2025")
}

func TestNext_NilService(t *testing.T) {
	var svc *Service
	_, err := svc.Next(context.Background(), corenumerator.DefaultConfig("SL"), period)
	assert.Error(t, err)
}
