package correlationtype

import (
	"context"
	"testing"

	"github.com/Ramsey-B/juniper/internal/repositories/dbtest"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationTypes(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	t.Run("SeededTypesMatchDefaults", func(t *testing.T) {
		types, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, types, 5)
		assert.Equal(t, models.DefaultCorrelationTypes(), types)
	})

	t.Run("GetByID", func(t *testing.T) {
		ct, err := repo.GetByID(ctx, models.EmailTypeID)
		require.NoError(t, err)
		require.NotNil(t, ct)
		assert.Equal(t, "email_address", ct.DBTableName)
		assert.Equal(t, "email_address_instances", ct.InstanceTableName())
	})

	t.Run("UnknownIDReturnsNil", func(t *testing.T) {
		ct, err := repo.GetByID(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, ct)
	})

	t.Run("DisableType", func(t *testing.T) {
		ct, err := repo.GetByID(ctx, models.USBIDTypeID)
		require.NoError(t, err)
		ct.Enabled = false
		require.NoError(t, repo.Update(ctx, *ct))

		enabled, err := repo.ListEnabled(ctx)
		require.NoError(t, err)
		assert.Len(t, enabled, 4)
		for _, e := range enabled {
			assert.NotEqual(t, models.USBIDTypeID, e.ID)
		}
	})

	t.Run("UpdateUnknownTypeFails", func(t *testing.T) {
		err := repo.Update(ctx, models.CorrelationType{ID: 42, DisplayName: "Nope"})
		require.Error(t, err)
	})
}
