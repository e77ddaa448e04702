package database

import (
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
)

func TestSetFlavorForDriver(t *testing.T) {
	t.Cleanup(func() { SetFlavorForDriver(DriverPostgres) })

	SetFlavorForDriver(DriverSQLite)
	assert.Equal(t, sqlbuilder.SQLite, Flavor())

	SetFlavorForDriver(DriverPostgres)
	assert.Equal(t, sqlbuilder.PostgreSQL, Flavor())

	SetFlavorForDriver("something-else")
	assert.Equal(t, sqlbuilder.PostgreSQL, Flavor())
}

func TestInsertBuilderConflictClauses(t *testing.T) {
	t.Run("DoNothingWithColumns", func(t *testing.T) {
		ib := NewInsertBuilder()
		ib.InsertInto("cases")
		ib.Cols("case_uid", "case_name")
		ib.Values("abc", "Case")
		ib.OnConflictDoNothing("case_uid")

		query, args := ib.Build()
		assert.Contains(t, query, "ON CONFLICT (case_uid) DO NOTHING")
		assert.Len(t, args, 2)
	})

	t.Run("DoNothingBare", func(t *testing.T) {
		ib := NewInsertBuilder()
		ib.InsertInto("cases")
		ib.Cols("case_uid")
		ib.Values("abc")
		ib.OnConflictDoNothing()

		query, _ := ib.Build()
		assert.Contains(t, query, "ON CONFLICT DO NOTHING")
	})

	t.Run("DoUpdateWithExcluded", func(t *testing.T) {
		ib := NewInsertBuilder()
		ib.InsertInto("db_info")
		ib.Cols("name", "value")
		ib.Values("SCHEMA_MAJOR_VERSION", "1")
		ib.OnConflictDoUpdate("name", "value = "+Excluded("value"))

		query, _ := ib.Build()
		assert.Contains(t, query, "ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value")
	})

	t.Run("Returning", func(t *testing.T) {
		ib := NewInsertBuilder()
		ib.InsertInto("reference_sets")
		ib.Cols("set_name")
		ib.Values("NSRL")
		ib.Returning("id")

		query, _ := ib.Build()
		assert.Contains(t, query, "RETURNING id")
	})
}
