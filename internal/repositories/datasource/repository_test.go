package datasource

import (
	"context"
	"testing"

	"github.com/Ramsey-B/juniper/internal/repositories/correlationcase"
	"github.com/Ramsey-B/juniper/internal/repositories/dbtest"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSources(t *testing.T) {
	db := dbtest.NewDB(t)
	logger := dbtest.NewLogger()
	cases := correlationcase.NewRepository(db, logger)
	repo := NewRepository(db, logger)
	ctx := context.Background()

	case1, err := cases.CreateCase(ctx, models.CorrelationCase{CaseUUID: "case-1", DisplayName: "Case 1"})
	require.NoError(t, err)
	case2, err := cases.CreateCase(ctx, models.CorrelationCase{CaseUUID: "case-2", DisplayName: "Case 2"})
	require.NoError(t, err)

	t.Run("RegistersDataSource", func(t *testing.T) {
		ds, err := repo.CreateDataSource(ctx, models.CorrelationDataSource{
			CaseID:   case1.ID,
			DeviceID: "device-1",
			Name:     "laptop image",
		})
		require.NoError(t, err)
		assert.NotZero(t, ds.ID)
		assert.Equal(t, case1.ID, ds.CaseID)
	})

	t.Run("DuplicateDevicePairFails", func(t *testing.T) {
		first, err := repo.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case1.ID, DeviceID: "device-2", Name: "usb"})
		require.NoError(t, err)
		require.NotZero(t, first.ID)

		_, err = repo.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case1.ID, DeviceID: "device-2", Name: "other"})
		require.Error(t, err)
		assert.True(t, errs.IsRepository(err))

		kept, err := repo.GetDataSource(ctx, case1.ID, "device-2")
		require.NoError(t, err)
		assert.Equal(t, "usb", kept.Name)
	})

	t.Run("UnknownCaseFails", func(t *testing.T) {
		_, err := repo.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case2.ID + 1000, DeviceID: "device-x"})
		require.Error(t, err)
		assert.True(t, errs.IsRepository(err))
	})

	t.Run("SameDeviceInAnotherCaseIsDistinct", func(t *testing.T) {
		inCase1, err := repo.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case1.ID, DeviceID: "shared-device", Name: "img"})
		require.NoError(t, err)
		inCase2, err := repo.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case2.ID, DeviceID: "shared-device", Name: "img"})
		require.NoError(t, err)
		assert.NotEqual(t, inCase1.ID, inCase2.ID)
	})

	t.Run("MissingDataSourceReturnsNil", func(t *testing.T) {
		ds, err := repo.GetDataSource(ctx, case1.ID, "nope")
		require.NoError(t, err)
		assert.Nil(t, ds)
	})

	t.Run("EmptyDeviceIDFailsValidation", func(t *testing.T) {
		_, err := repo.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case1.ID, DeviceID: " "})
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("ListsForCase", func(t *testing.T) {
		sources, err := repo.GetDataSourcesForCase(ctx, case1.ID)
		require.NoError(t, err)
		assert.Len(t, sources, 3)
	})

	t.Run("CountsAllDataSources", func(t *testing.T) {
		count, err := repo.CountUniqueDataSources(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("Rename", func(t *testing.T) {
		ds, err := repo.GetDataSource(ctx, case1.ID, "device-1")
		require.NoError(t, err)
		require.NoError(t, repo.UpdateDataSourceName(ctx, ds.ID, "renamed"))

		reloaded, err := repo.GetDataSourceByID(ctx, ds.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", reloaded.Name)
	})
}
