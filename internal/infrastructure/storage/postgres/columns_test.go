package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dairyops/internal/core/id"
	"dairyops/internal/domain/storage"
)

type stamped struct {
	CreatedAt time.Time `db:"created_at"`
}

type sampleRow struct {
	stamped
	ID      id.ID  `db:"id"`
	Name    string `db:"name"`
	Skipped string `db:"-"`
	Plain   string
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t, []string{"created_at", "id", "name"}, ExtractDBColumns[sampleRow]())

	cols := ExtractDBColumns[storage.Lot]()
	assert.Contains(t, cols, "production_batch_id")
	assert.Contains(t, cols, "loose_units")
	assert.NotContains(t, cols, "-")
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC)
	row := &sampleRow{stamped: stamped{CreatedAt: now}, ID: id.New(), Name: "Cold Room 1", Skipped: "x"}

	m := StructToMap(row)

	assert.Len(t, m, 3)
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, "Cold Room 1", m["name"])

	var nilRow *sampleRow
	assert.Nil(t, StructToMap(nilRow))
	assert.Nil(t, StructToMap(42))
}
