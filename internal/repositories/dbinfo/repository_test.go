package dbinfo

import (
	"context"
	"testing"

	"github.com/Ramsey-B/juniper/internal/repositories/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBInfo(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	t.Run("SchemaVersionIsSeeded", func(t *testing.T) {
		value, err := repo.GetValue(ctx, "SCHEMA_MAJOR_VERSION")
		require.NoError(t, err)
		require.NotNil(t, value)
		assert.Equal(t, "1", *value)
	})

	t.Run("MissingNameReturnsNil", func(t *testing.T) {
		value, err := repo.GetValue(ctx, "NO_SUCH_KEY")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("SetThenUpdate", func(t *testing.T) {
		require.NoError(t, repo.SetValue(ctx, "LAST_IMPORT", "12345"))
		require.NoError(t, repo.SetValue(ctx, "LAST_IMPORT", "67890"))

		value, err := repo.GetValue(ctx, "LAST_IMPORT")
		require.NoError(t, err)
		require.NotNil(t, value)
		assert.Equal(t, "67890", *value)
	})
}
