package production_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyops/internal/core/id"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/intake"
	"dairyops/internal/domain/production"
)

func TestUpdateWritesSourceTank(t *testing.T) {
	r := New(nil)
	b := &production.Batch{
		ID:               id.New(),
		SourceTank:       intake.TankB,
		ProductType:      production.ProductMala,
		SKU:              "MALA-CL-500",
		QuantityProduced: types.Must("10"),
		LitersUsed:       types.Must("5"),
		ProducedAt:       time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
		Status:           production.StatusLabApproved,
	}

	sql, args, err := r.batches.UpdateQuery(b.ID, b, batchImmutable...).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE production_batches SET ")
	assert.Contains(t, sql, "source_tank = $")
	assert.Contains(t, sql, "status = $")
	assert.NotContains(t, sql, "produced_at")
	assert.Contains(t, args, intake.TankB)
	assert.Equal(t, b.ID, args[len(args)-1])
}
