package instance

import (
	"context"
	"fmt"
	"testing"

	"github.com/Ramsey-B/juniper/internal/repositories/correlationcase"
	"github.com/Ramsey-B/juniper/internal/repositories/datasource"
	"github.com/Ramsey-B/juniper/internal/repositories/dbtest"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo  *Repository
	case1 *models.CorrelationCase
	case2 *models.CorrelationCase
	ds1   *models.CorrelationDataSource
	ds2   *models.CorrelationDataSource
}

func newFixture(t *testing.T) fixture {
	db := dbtest.NewDB(t)
	logger := dbtest.NewLogger()
	cases := correlationcase.NewRepository(db, logger)
	sources := datasource.NewRepository(db, logger)
	ctx := context.Background()

	case1, err := cases.CreateCase(ctx, models.CorrelationCase{CaseUUID: "case-1", DisplayName: "Case 1"})
	require.NoError(t, err)
	case2, err := cases.CreateCase(ctx, models.CorrelationCase{CaseUUID: "case-2", DisplayName: "Case 2"})
	require.NoError(t, err)

	ds1, err := sources.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case1.ID, DeviceID: "dev-1", Name: "image 1"})
	require.NoError(t, err)
	ds2, err := sources.CreateDataSource(ctx, models.CorrelationDataSource{CaseID: case2.ID, DeviceID: "dev-2", Name: "image 2"})
	require.NoError(t, err)

	return fixture{
		repo:  NewRepository(db, logger),
		case1: case1,
		case2: case2,
		ds1:   ds1,
		ds2:   ds2,
	}
}

func domainType() models.CorrelationType {
	return models.DefaultCorrelationTypes()[models.DomainTypeID]
}

func TestAddInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("NormalizesOnWrite", func(t *testing.T) {
		err := f.repo.AddInstance(ctx, domainType(), models.CorrelationAttributeInstance{
			Value:        "WWW.Example.COM",
			CaseID:       f.case1.ID,
			DataSourceID: f.ds1.ID,
			FilePath:     "/history/1",
		})
		require.NoError(t, err)

		instances, err := f.repo.GetInstancesByValue(ctx, domainType(), "www.example.com")
		require.NoError(t, err)
		require.Len(t, instances, 1)
		assert.Equal(t, "www.example.com", instances[0].Value)
		assert.Equal(t, models.DomainTypeID, instances[0].TypeID)
		assert.NotZero(t, instances[0].CreatedDate)
	})

	t.Run("DuplicateTupleIsNoOp", func(t *testing.T) {
		err := f.repo.AddInstance(ctx, domainType(), models.CorrelationAttributeInstance{
			Value:        "www.example.com",
			CaseID:       f.case1.ID,
			DataSourceID: f.ds1.ID,
			FilePath:     "/history/1",
		})
		require.NoError(t, err)

		count, err := f.repo.CountInstancesByValue(ctx, domainType(), "www.example.com")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("MalformedValueFailsValidation", func(t *testing.T) {
		err := f.repo.AddInstance(ctx, domainType(), models.CorrelationAttributeInstance{
			Value:        "http://www.example.com/path",
			CaseID:       f.case1.ID,
			DataSourceID: f.ds1.ID,
		})
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("MissingCaseFailsValidation", func(t *testing.T) {
		err := f.repo.AddInstance(ctx, domainType(), models.CorrelationAttributeInstance{
			Value:        "example.com",
			DataSourceID: f.ds1.ID,
		})
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})
}

func TestCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the same domain seen in two cases, plus noise
	for i, target := range []struct {
		caseID int64
		dsID   int64
		path   string
	}{
		{f.case1.ID, f.ds1.ID, "/a"},
		{f.case1.ID, f.ds1.ID, "/b"},
		{f.case2.ID, f.ds2.ID, "/c"},
	} {
		err := f.repo.AddInstance(ctx, domainType(), models.CorrelationAttributeInstance{
			Value:        "shared.example.com",
			CaseID:       target.caseID,
			DataSourceID: target.dsID,
			FilePath:     target.path,
		})
		require.NoError(t, err, "instance %d", i)
	}
	err := f.repo.AddInstance(ctx, domainType(), models.CorrelationAttributeInstance{
		Value: "other.example.com", CaseID: f.case1.ID, DataSourceID: f.ds1.ID, FilePath: "/d",
	})
	require.NoError(t, err)

	t.Run("CountInstances", func(t *testing.T) {
		count, err := f.repo.CountInstancesByValue(ctx, domainType(), "SHARED.example.com")
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})

	t.Run("CountCaseDataSourceTuples", func(t *testing.T) {
		count, err := f.repo.CountCaseDataSourcesByValue(ctx, domainType(), "shared.example.com")
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})
}

func TestBulkAddInstances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	instances := make([]models.CorrelationAttributeInstance, 0, 30)
	for i := 0; i < 30; i++ {
		instances = append(instances, models.CorrelationAttributeInstance{
			Value:        fmt.Sprintf("host%d.example.com", i),
			CaseID:       f.case1.ID,
			DataSourceID: f.ds1.ID,
			FilePath:     "/cache",
		})
	}

	count, err := f.repo.BulkAddInstances(ctx, domainType(), instances, 8)
	require.NoError(t, err)
	assert.Equal(t, 30, count)

	n, err := f.repo.CountInstancesByValue(ctx, domainType(), "host29.example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSetInstanceKnownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.AddInstance(ctx, domainType(), models.CorrelationAttributeInstance{
		Value: "flagme.example.com", CaseID: f.case1.ID, DataSourceID: f.ds1.ID, FilePath: "/x",
	}))

	instances, err := f.repo.GetInstancesByValue(ctx, domainType(), "flagme.example.com")
	require.NoError(t, err)
	require.Len(t, instances, 1)

	require.NoError(t, f.repo.SetInstanceKnownStatus(ctx, domainType(), instances[0].ID, models.KnownStatusNotable, "seen in phishing kit"))

	reloaded, err := f.repo.GetInstancesByValue(ctx, domainType(), "flagme.example.com")
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, models.KnownStatusNotable, reloaded[0].KnownStatus)
	assert.Equal(t, "seen in phishing kit", reloaded[0].Comment)

	t.Run("MissingInstanceFails", func(t *testing.T) {
		err := f.repo.SetInstanceKnownStatus(ctx, domainType(), 99999, models.KnownStatusKnown, "")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}
