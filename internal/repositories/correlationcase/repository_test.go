package correlationcase

import (
	"context"
	"fmt"
	"testing"

	"github.com/Ramsey-B/juniper/internal/repositories/dbtest"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCase(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	t.Run("RegistersCase", func(t *testing.T) {
		created, err := repo.CreateCase(ctx, models.CorrelationCase{
			CaseUUID:    "case-uuid-1",
			DisplayName: "Case One",
			CaseNumber:  "2026-001",
		})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.NotZero(t, created.ID)
		assert.Equal(t, "case-uuid-1", created.CaseUUID)
		assert.Equal(t, "Case One", created.DisplayName)
		assert.NotZero(t, created.CreationDate)
	})

	t.Run("ReRegisteringReturnsExistingRow", func(t *testing.T) {
		first, err := repo.CreateCase(ctx, models.CorrelationCase{CaseUUID: "case-uuid-2", DisplayName: "Original"})
		require.NoError(t, err)

		second, err := repo.CreateCase(ctx, models.CorrelationCase{CaseUUID: "case-uuid-2", DisplayName: "Replacement"})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Original", second.DisplayName)
	})

	t.Run("EmptyUUIDFailsValidation", func(t *testing.T) {
		_, err := repo.CreateCase(ctx, models.CorrelationCase{CaseUUID: "  "})
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
	})
}

func TestGetCaseByUUID(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	t.Run("MissingCaseReturnsNil", func(t *testing.T) {
		c, err := repo.GetCaseByUUID(ctx, "never-registered")
		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestUpdateCase(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	created, err := repo.CreateCase(ctx, models.CorrelationCase{CaseUUID: "case-uuid-3", DisplayName: "Before"})
	require.NoError(t, err)

	t.Run("UpdatesMutableFields", func(t *testing.T) {
		updated, err := repo.UpdateCase(ctx, models.CorrelationCase{
			CaseUUID:     "case-uuid-3",
			DisplayName:  "After",
			ExaminerName: "jdoe",
			Notes:        "reviewed",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "After", updated.DisplayName)
		assert.Equal(t, "jdoe", updated.ExaminerName)
		assert.Equal(t, created.CreationDate, updated.CreationDate)
	})

	t.Run("UnknownUUIDFails", func(t *testing.T) {
		_, err := repo.UpdateCase(ctx, models.CorrelationCase{CaseUUID: "missing"})
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestGetCases(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	for _, uid := range []string{"a", "b", "c"} {
		_, err := repo.CreateCase(ctx, models.CorrelationCase{CaseUUID: uid, DisplayName: "Case " + uid})
		require.NoError(t, err)
	}

	cases, err := repo.GetCases(ctx)
	require.NoError(t, err)
	assert.Len(t, cases, 3)
}

func TestBulkCreateCases(t *testing.T) {
	db := dbtest.NewDB(t)
	repo := NewRepository(db, dbtest.NewLogger())
	ctx := context.Background()

	t.Run("RegistersInBatches", func(t *testing.T) {
		cases := make([]models.CorrelationCase, 0, 7)
		for i := 0; i < 7; i++ {
			cases = append(cases, models.CorrelationCase{
				CaseUUID:    fmt.Sprintf("bulk-%d", i),
				DisplayName: fmt.Sprintf("Bulk Case %d", i),
			})
		}

		written, err := repo.BulkCreateCases(ctx, cases, 3)
		require.NoError(t, err)
		assert.Equal(t, 7, written)

		all, err := repo.GetCases(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 7)
	})

	t.Run("ReRegisteringSkipsExistingRows", func(t *testing.T) {
		written, err := repo.BulkCreateCases(ctx, []models.CorrelationCase{
			{CaseUUID: "bulk-0"},
			{CaseUUID: "bulk-new", DisplayName: "New"},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, written)
	})

	t.Run("BlankUUIDAbortsBatch", func(t *testing.T) {
		_, err := repo.BulkCreateCases(ctx, []models.CorrelationCase{
			{CaseUUID: "bulk-ok"},
			{CaseUUID: "  "},
		}, 0)
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))

		c, err := repo.GetCaseByUUID(ctx, "bulk-ok")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("EmptySliceIsNoOp", func(t *testing.T) {
		written, err := repo.BulkCreateCases(ctx, nil, 0)
		require.NoError(t, err)
		assert.Zero(t, written)
	})
}
