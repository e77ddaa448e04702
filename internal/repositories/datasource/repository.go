// Package datasource registers data sources within a case. A device id is
// unique per case only; the same device may appear in many cases.
package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

type DataSourceRepository interface {
	CreateDataSource(ctx context.Context, ds models.CorrelationDataSource) (*models.CorrelationDataSource, error)
	GetDataSource(ctx context.Context, caseID int64, deviceID string) (*models.CorrelationDataSource, error)
	GetDataSourceByID(ctx context.Context, id int64) (*models.CorrelationDataSource, error)
	GetDataSourcesForCase(ctx context.Context, caseID int64) ([]models.CorrelationDataSource, error)
	UpdateDataSourceName(ctx context.Context, id int64, name string) error
	CountUniqueDataSources(ctx context.Context) (int64, error)
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

const tableName = "data_sources"

var columns = []string{"id", "case_id", "device_id", "name"}

// CreateDataSource registers a data source in its case. (case, device id)
// is unique; registering the same device twice in a case fails.
func (r *Repository) CreateDataSource(ctx context.Context, ds models.CorrelationDataSource) (*models.CorrelationDataSource, error) {
	ctx, span := tracing.StartSpan(ctx, "DataSourceRepository.CreateDataSource")
	defer span.End()

	if ds.CaseID == 0 {
		return nil, errs.NewValidationError("data source", ds.DeviceID, errs.ReasonEmpty, "case id is required")
	}
	if strings.TrimSpace(ds.DeviceID) == "" {
		return nil, errs.NewValidationError("data source", ds.DeviceID, errs.ReasonEmpty, "device id is required")
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols("case_id", "device_id", "name")
	ib.Values(ds.CaseID, ds.DeviceID, ds.Name)
	ib.Returning("id")

	query, args := ib.Build()

	// A duplicate (case_id, device_id) pair or an unknown case id is an
	// integrity violation, not a lookup miss.
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&ds.ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create data source")
		return nil, errs.NewRepositoryError("create data source", err)
	}

	return &ds, nil
}

// GetDataSource returns the data source registered under (caseID, deviceID),
// or nil when it has not been registered.
func (r *Repository) GetDataSource(ctx context.Context, caseID int64, deviceID string) (*models.CorrelationDataSource, error) {
	ctx, span := tracing.StartSpan(ctx, "DataSourceRepository.GetDataSource")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("case_id", caseID),
		sb.Equal("device_id", deviceID),
	)

	query, args := sb.Build()

	var ds models.CorrelationDataSource
	err := r.db.GetContext(ctx, &ds, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get data source")
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}

	return &ds, nil
}

// GetDataSourceByID returns the data source row with the given id, or nil.
func (r *Repository) GetDataSourceByID(ctx context.Context, id int64) (*models.CorrelationDataSource, error) {
	ctx, span := tracing.StartSpan(ctx, "DataSourceRepository.GetDataSourceByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var ds models.CorrelationDataSource
	err := r.db.GetContext(ctx, &ds, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get data source by id")
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}

	return &ds, nil
}

// GetDataSourcesForCase returns every data source registered in the case.
func (r *Repository) GetDataSourcesForCase(ctx context.Context, caseID int64) ([]models.CorrelationDataSource, error) {
	ctx, span := tracing.StartSpan(ctx, "DataSourceRepository.GetDataSourcesForCase")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("case_id", caseID))
	sb.OrderBy("id")

	query, args := sb.Build()

	var sources []models.CorrelationDataSource
	if err := r.db.SelectContext(ctx, &sources, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list data sources")
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}

	return sources, nil
}

// UpdateDataSourceName renames a data source.
func (r *Repository) UpdateDataSourceName(ctx context.Context, id int64, name string) error {
	ctx, span := tracing.StartSpan(ctx, "DataSourceRepository.UpdateDataSourceName")
	defer span.End()

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(ub.Assign("name", name))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update data source name")
		return fmt.Errorf("failed to update data source name: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update data source name: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("data source %d: %w", id, errs.ErrNotFound)
	}

	return nil
}

// CountUniqueDataSources returns the number of registered data sources across
// all cases.
func (r *Repository) CountUniqueDataSources(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "DataSourceRepository.CountUniqueDataSources")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(tableName)

	query, args := sb.Build()

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count data sources")
		return 0, fmt.Errorf("failed to count data sources: %w", err)
	}

	return count, nil
}
