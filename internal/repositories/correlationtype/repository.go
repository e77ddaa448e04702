// Package correlationtype manages the registry of identifier categories.
// The built-in types are seeded by migrations; custom types may be appended
// but existing IDs and table names never change.
package correlationtype

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

type CorrelationTypeRepository interface {
	List(ctx context.Context) ([]models.CorrelationType, error)
	ListEnabled(ctx context.Context) ([]models.CorrelationType, error)
	GetByID(ctx context.Context, id int) (*models.CorrelationType, error)
	Update(ctx context.Context, ct models.CorrelationType) error
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "correlation_types"

var columns = []string{"id", "display_name", "db_table_name", "supported", "enabled"}

// List returns every registered correlation type ordered by id.
func (r *Repository) List(ctx context.Context) ([]models.CorrelationType, error) {
	return r.list(ctx, false)
}

// ListEnabled returns the correlation types available for correlation.
func (r *Repository) ListEnabled(ctx context.Context) ([]models.CorrelationType, error) {
	return r.list(ctx, true)
}

func (r *Repository) list(ctx context.Context, enabledOnly bool) ([]models.CorrelationType, error) {
	ctx, span := tracing.StartSpan(ctx, "CorrelationTypeRepository.List")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	if enabledOnly {
		sb.Where(sb.Equal("enabled", true))
	}
	sb.OrderBy("id")

	query, args := sb.Build()

	var types []models.CorrelationType
	if err := r.db.SelectContext(ctx, &types, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list correlation types")
		return nil, fmt.Errorf("failed to list correlation types: %w", err)
	}

	return types, nil
}

// GetByID returns the correlation type with the given id, or nil when it
// does not exist.
func (r *Repository) GetByID(ctx context.Context, id int) (*models.CorrelationType, error) {
	ctx, span := tracing.StartSpan(ctx, "CorrelationTypeRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var ct models.CorrelationType
	err := r.db.GetContext(ctx, &ct, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get correlation type")
		return nil, fmt.Errorf("failed to get correlation type: %w", err)
	}

	return &ct, nil
}

// Update changes the display name and flags of an existing type. The table
// name is immutable because instance tables are named after it.
func (r *Repository) Update(ctx context.Context, ct models.CorrelationType) error {
	ctx, span := tracing.StartSpan(ctx, "CorrelationTypeRepository.Update")
	defer span.End()

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(
		ub.Assign("display_name", ct.DisplayName),
		ub.Assign("supported", ct.Supported),
		ub.Assign("enabled", ct.Enabled),
	)
	ub.Where(ub.Equal("id", ct.ID))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update correlation type")
		return fmt.Errorf("failed to update correlation type: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update correlation type: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("correlation type %d does not exist", ct.ID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":      ct.ID,
		"enabled": ct.Enabled,
	}).Info("updated correlation type")

	return nil
}
