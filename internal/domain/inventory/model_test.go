package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/types"
)

var today = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func dateIn(days int) *time.Time {
	d := today.AddDate(0, 0, days)
	return &d
}

func TestItem_ExpiryFlags(t *testing.T) {
	tests := []struct {
		name    string
		expiry  *time.Time
		expired bool
		near    bool
	}{
		{"no expiry", nil, false, false},
		{"yesterday", dateIn(-1), true, true},
		{"today", dateIn(0), false, true},
		{"in two days", dateIn(2), false, true},
		{"in three days", dateIn(3), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := &Item{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.expired, it.IsExpired(today))
			assert.Equal(t, tt.near, it.IsNearExpiry(today))
		})
	}
}

func TestItem_NeedsReorder(t *testing.T) {
	it := &Item{CurrentQuantity: types.Must("10"), ReorderThreshold: types.Must("10")}
	assert.True(t, it.NeedsReorder())
	it.CurrentQuantity = types.Must("10.5")
	assert.False(t, it.NeedsReorder())
	assert.Equal(t, "105", it.StockPercentage().String())
}

func TestItem_Consume(t *testing.T) {
	it := &Item{Name: "Mala", CurrentQuantity: types.Must("5")}

	err := it.Consume(types.Must("6"), today)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "Not enough stock for Mala", appErr.Message)

	it.ExpiryDate = dateIn(-1)
	err = it.Consume(types.Must("1"), today)
	require.Error(t, err)
	appErr, _ = apperror.AsAppError(err)
	assert.Equal(t, "Cannot consume expired stock for Mala", appErr.Message)
	assert.True(t, it.CurrentQuantity.Equal(types.Must("5")))

	it.ExpiryDate = dateIn(5)
	require.NoError(t, it.Consume(types.Must("2"), today))
	assert.True(t, it.CurrentQuantity.Equal(types.Must("3")))
}

func TestTransaction_Apply(t *testing.T) {
	it := &Item{Name: "Ghee", CurrentQuantity: types.Must("4"), ExpiryDate: dateIn(-2)}

	err := (&Transaction{Quantity: types.Must("3")}).Apply(it, today)
	assert.True(t, apperror.HasCode(err, apperror.CodeExpiredStock))

	err = (&Transaction{Quantity: types.Must("-5")}).Apply(it, today)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	require.NoError(t, (&Transaction{Quantity: types.Must("-4")}).Apply(it, today))
	assert.True(t, it.CurrentQuantity.IsZero())
	assert.Equal(t, today, *it.LastRestocked)
}
