package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeRefresher struct {
	err         error
	refreshed   int
	invalidated int
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.refreshed++
	return f.err
}

func (f *fakeRefresher) Invalidate() { f.invalidated++ }

func TestWindowListener_HandleNotification(t *testing.T) {
	target := &fakeRefresher{}
	l := NewWindowListener(nil, target)

	l.HandleNotification(context.Background())

	assert.Equal(t, 1, target.refreshed)
	assert.Zero(t, target.invalidated)
}

func TestWindowListener_HandleNotification_RefreshFails(t *testing.T) {
	target := &fakeRefresher{err: errors.New("connection refused")}
	l := NewWindowListener(nil, target)

	l.HandleNotification(context.Background())

	assert.Equal(t, 1, target.refreshed)
	assert.Equal(t, 1, target.invalidated)
}

func TestWindowListener_StopWithoutStart(t *testing.T) {
	l := NewWindowListener(nil, &fakeRefresher{})
	assert.NotPanics(t, l.Stop)
}
