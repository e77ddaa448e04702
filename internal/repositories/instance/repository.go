// Package instance stores correlation attribute instances, one table per
// correlation type. Values are normalized on write and on query so lookups
// meet stored rows regardless of input formatting.
package instance

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/normalizers"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

type InstanceRepository interface {
	AddInstance(ctx context.Context, ct models.CorrelationType, inst models.CorrelationAttributeInstance) error
	BulkAddInstances(ctx context.Context, ct models.CorrelationType, instances []models.CorrelationAttributeInstance, batchSize int) (int, error)
	GetInstancesByValue(ctx context.Context, ct models.CorrelationType, value string) ([]models.CorrelationAttributeInstance, error)
	CountInstancesByValue(ctx context.Context, ct models.CorrelationType, value string) (int64, error)
	CountCaseDataSourcesByValue(ctx context.Context, ct models.CorrelationType, value string) (int64, error)
	SetInstanceKnownStatus(ctx context.Context, ct models.CorrelationType, id int64, status models.KnownStatus, comment string) error
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

var columns = []string{
	"id", "case_id", "data_source_id", "account_id", "value",
	"file_path", "known_status", "comment", "created_date",
}

// DefaultInsertBatchSize bounds multi-row inserts during bulk ingestion.
const DefaultInsertBatchSize = 250

func (r *Repository) normalize(ct models.CorrelationType, inst models.CorrelationAttributeInstance) (models.CorrelationAttributeInstance, error) {
	value, err := normalizers.Normalize(ct.ID, inst.Value)
	if err != nil {
		return inst, err
	}
	inst.Value = value
	if inst.CaseID == 0 {
		return inst, errs.NewValidationError(ct.DisplayName, inst.Value, errs.ReasonEmpty, "case id is required")
	}
	if inst.DataSourceID == 0 {
		return inst, errs.NewValidationError(ct.DisplayName, inst.Value, errs.ReasonEmpty, "data source id is required")
	}
	if inst.CreatedDate == 0 {
		inst.CreatedDate = time.Now().UnixMilli()
	}
	return inst, nil
}

// AddInstance normalizes and stores a single observation. Re-adding the
// same (case, data source, value, path) tuple is a no-op.
func (r *Repository) AddInstance(ctx context.Context, ct models.CorrelationType, inst models.CorrelationAttributeInstance) error {
	ctx, span := tracing.StartSpan(ctx, "InstanceRepository.AddInstance")
	defer span.End()

	inst, err := r.normalize(ct, inst)
	if err != nil {
		return err
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(ct.InstanceTableName())
	ib.Cols("case_id", "data_source_id", "account_id", "value", "file_path", "known_status", "comment", "created_date")
	ib.Values(inst.CaseID, inst.DataSourceID, inst.AccountID, inst.Value, inst.FilePath, inst.KnownStatus, inst.Comment, inst.CreatedDate)
	ib.OnConflictDoNothing("case_id", "data_source_id", "value", "file_path")

	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to add attribute instance")
		return fmt.Errorf("failed to add attribute instance: %w", err)
	}

	return nil
}

// BulkAddInstances normalizes and stores observations in batches inside one
// transaction. A value that fails normalization aborts the whole batch.
func (r *Repository) BulkAddInstances(ctx context.Context, ct models.CorrelationType, instances []models.CorrelationAttributeInstance, batchSize int) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "InstanceRepository.BulkAddInstances")
	defer span.End()

	if len(instances) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}

	normalized := make([]models.CorrelationAttributeInstance, 0, len(instances))
	for _, inst := range instances {
		inst, err := r.normalize(ct, inst)
		if err != nil {
			return 0, err
		}
		normalized = append(normalized, inst)
	}

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for start := 0; start < len(normalized); start += batchSize {
		end := start + batchSize
		if end > len(normalized) {
			end = len(normalized)
		}

		ib := database.NewInsertBuilder()
		ib.InsertInto(ct.InstanceTableName())
		ib.Cols("case_id", "data_source_id", "account_id", "value", "file_path", "known_status", "comment", "created_date")
		for _, inst := range normalized[start:end] {
			ib.Values(inst.CaseID, inst.DataSourceID, inst.AccountID, inst.Value, inst.FilePath, inst.KnownStatus, inst.Comment, inst.CreatedDate)
		}
		ib.OnConflictDoNothing("case_id", "data_source_id", "value", "file_path")

		query, args := ib.Build()

		if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to bulk add attribute instances")
			return 0, errs.NewRepositoryError("bulk add attribute instances", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"count": len(normalized),
		"table": ct.InstanceTableName(),
	}).Info("added attribute instances")

	return len(normalized), nil
}

// GetInstancesByValue returns every stored observation of the normalized
// value.
func (r *Repository) GetInstancesByValue(ctx context.Context, ct models.CorrelationType, value string) ([]models.CorrelationAttributeInstance, error) {
	ctx, span := tracing.StartSpan(ctx, "InstanceRepository.GetInstancesByValue")
	defer span.End()

	normalized, err := normalizers.Normalize(ct.ID, value)
	if err != nil {
		return nil, err
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(ct.InstanceTableName())
	sb.Where(sb.Equal("value", normalized))
	sb.OrderBy("id")

	query, args := sb.Build()

	var instances []models.CorrelationAttributeInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get attribute instances")
		return nil, fmt.Errorf("failed to get attribute instances: %w", err)
	}

	for i := range instances {
		instances[i].TypeID = ct.ID
	}

	return instances, nil
}

// CountInstancesByValue returns how many observations of the normalized
// value exist across all cases.
func (r *Repository) CountInstancesByValue(ctx context.Context, ct models.CorrelationType, value string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "InstanceRepository.CountInstancesByValue")
	defer span.End()

	normalized, err := normalizers.Normalize(ct.ID, value)
	if err != nil {
		return 0, err
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(ct.InstanceTableName())
	sb.Where(sb.Equal("value", normalized))

	query, args := sb.Build()

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count attribute instances")
		return 0, fmt.Errorf("failed to count attribute instances: %w", err)
	}

	return count, nil
}

// CountCaseDataSourcesByValue returns how many distinct (case, data source)
// pairs have observed the normalized value.
func (r *Repository) CountCaseDataSourcesByValue(ctx context.Context, ct models.CorrelationType, value string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "InstanceRepository.CountCaseDataSourcesByValue")
	defer span.End()

	normalized, err := normalizers.Normalize(ct.ID, value)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT DISTINCT case_id, data_source_id FROM %s WHERE value = $1) AS tuples",
		ct.InstanceTableName(),
	)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, normalized); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count case data source tuples")
		return 0, fmt.Errorf("failed to count case data source tuples: %w", err)
	}

	return count, nil
}

// SetInstanceKnownStatus updates the vetting status of one stored
// observation, optionally replacing its comment.
func (r *Repository) SetInstanceKnownStatus(ctx context.Context, ct models.CorrelationType, id int64, status models.KnownStatus, comment string) error {
	ctx, span := tracing.StartSpan(ctx, "InstanceRepository.SetInstanceKnownStatus")
	defer span.End()

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(ct.InstanceTableName())
	assignments := []string{ub.Assign("known_status", status)}
	if comment != "" {
		assignments = append(assignments, ub.Assign("comment", comment))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to set instance known status")
		return fmt.Errorf("failed to set instance known status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set instance known status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("attribute instance %d: %w", id, errs.ErrNotFound)
	}

	return nil
}
