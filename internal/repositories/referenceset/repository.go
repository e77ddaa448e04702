// Package referenceset manages named collections of known values and the
// membership queries against them. Only the file type has a backing value
// table; writes and lookups for other types fail with ErrNoBackingStorage.
package referenceset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/normalizers"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

type ReferenceSetRepository interface {
	CreateReferenceSet(ctx context.Context, set models.ReferenceSet) (*models.ReferenceSet, error)
	GetReferenceSetByID(ctx context.Context, id int64) (*models.ReferenceSet, error)
	GetReferenceSetsByType(ctx context.Context, typeID int) ([]models.ReferenceSet, error)
	GetAllReferenceSets(ctx context.Context) ([]models.ReferenceSet, error)
	ReferenceSetExists(ctx context.Context, name, version string) (bool, error)
	ReferenceSetIsValid(ctx context.Context, id int64, name, version string) (bool, error)
	GetReferenceSetOrganization(ctx context.Context, setID int64) (*models.Organization, error)
	DeleteReferenceSet(ctx context.Context, id int64) error
	AddReferenceInstance(ctx context.Context, ct models.CorrelationType, inst models.ReferenceInstance) error
	BulkAddReferenceInstances(ctx context.Context, ct models.CorrelationType, instances []models.ReferenceInstance, batchSize int) (int, error)
	IsValueInReferenceSet(ctx context.Context, ct models.CorrelationType, setID int64, value string) (bool, error)
	GetReferenceInstancesByValue(ctx context.Context, ct models.CorrelationType, value string) ([]models.ReferenceInstance, error)
	IsValueKnownBad(ctx context.Context, ct models.CorrelationType, value string) (bool, error)
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

const setTableName = "reference_sets"

var setColumns = []string{
	"id", "org_id", "set_name", "version", "known_status", "read_only", "type_id", "import_date",
}

var instanceColumns = []string{"id", "reference_set_id", "value", "known_status", "comment"}

// DefaultImportBatchSize bounds multi-row inserts during bulk imports.
const DefaultImportBatchSize = 500

// CreateReferenceSet inserts a new set. (name, version) must be unique and
// the owning organization must exist.
func (r *Repository) CreateReferenceSet(ctx context.Context, set models.ReferenceSet) (*models.ReferenceSet, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.CreateReferenceSet")
	defer span.End()

	if strings.TrimSpace(set.Name) == "" {
		return nil, errs.NewValidationError("reference set", set.Name, errs.ReasonEmpty, "set name is required")
	}
	if set.ImportDate == 0 {
		set.ImportDate = time.Now().UnixMilli()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(setTableName)
	ib.Cols("org_id", "set_name", "version", "known_status", "read_only", "type_id", "import_date")
	ib.Values(set.OrgID, set.Name, set.Version, set.KnownStatus, set.ReadOnly, set.TypeID, set.ImportDate)
	ib.Returning("id")

	query, args := ib.Build()

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create reference set")
		return nil, fmt.Errorf("failed to create reference set %q: %w", set.Name, err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":       id,
		"set_name": set.Name,
		"version":  set.Version,
	}).Info("created reference set")

	return r.GetReferenceSetByID(ctx, id)
}

// GetReferenceSetByID returns the set with the given id, or nil.
func (r *Repository) GetReferenceSetByID(ctx context.Context, id int64) (*models.ReferenceSet, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.GetReferenceSetByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(setColumns...)
	sb.From(setTableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var set models.ReferenceSet
	err := r.db.GetContext(ctx, &set, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get reference set")
		return nil, fmt.Errorf("failed to get reference set: %w", err)
	}

	return &set, nil
}

// GetReferenceSetsByType returns every set holding values of typeID.
func (r *Repository) GetReferenceSetsByType(ctx context.Context, typeID int) ([]models.ReferenceSet, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.GetReferenceSetsByType")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(setColumns...)
	sb.From(setTableName)
	sb.Where(sb.Equal("type_id", typeID))
	sb.OrderBy("id")

	return r.listSets(ctx, sb)
}

// GetAllReferenceSets returns every set regardless of type.
func (r *Repository) GetAllReferenceSets(ctx context.Context) ([]models.ReferenceSet, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.GetAllReferenceSets")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(setColumns...)
	sb.From(setTableName)
	sb.OrderBy("id")

	return r.listSets(ctx, sb)
}

func (r *Repository) listSets(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]models.ReferenceSet, error) {
	query, args := sb.Build()

	var sets []models.ReferenceSet
	if err := r.db.SelectContext(ctx, &sets, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list reference sets")
		return nil, fmt.Errorf("failed to list reference sets: %w", err)
	}

	return sets, nil
}

// DeleteReferenceSet removes the set and its values.
func (r *Repository) DeleteReferenceSet(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.DeleteReferenceSet")
	defer span.End()

	db := sqlbuilder.NewDeleteBuilder()
	db.DeleteFrom(setTableName)
	db.Where(db.Equal("id", id))

	query, args := db.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete reference set")
		return fmt.Errorf("failed to delete reference set: %w", err)
	}

	// Unknown ids are a no-op; the set is equally gone either way.
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("deleted reference set")
	}

	return nil
}

// AddReferenceInstance normalizes and stores a single value in its set.
func (r *Repository) AddReferenceInstance(ctx context.Context, ct models.CorrelationType, inst models.ReferenceInstance) error {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.AddReferenceInstance")
	defer span.End()

	if !ct.HasReferenceTable() {
		return fmt.Errorf("%s: %w", ct.DisplayName, errs.ErrNoBackingStorage)
	}

	value, err := normalizers.Normalize(ct.ID, inst.Value)
	if err != nil {
		return err
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(ct.ReferenceTableName())
	ib.Cols("reference_set_id", "value", "known_status", "comment")
	ib.Values(inst.SetID, value, inst.KnownStatus, inst.Comment)
	ib.OnConflictDoNothing("reference_set_id", "value")

	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to add reference instance")
		return fmt.Errorf("failed to add reference instance: %w", err)
	}

	return nil
}

// BulkAddReferenceInstances normalizes and stores values in batches inside a
// single transaction. Values that fail normalization abort the import.
// Returns the number of values submitted for insert; duplicates within the
// set are skipped by the store.
func (r *Repository) BulkAddReferenceInstances(ctx context.Context, ct models.CorrelationType, instances []models.ReferenceInstance, batchSize int) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.BulkAddReferenceInstances")
	defer span.End()

	if !ct.HasReferenceTable() {
		return 0, fmt.Errorf("%s: %w", ct.DisplayName, errs.ErrNoBackingStorage)
	}
	if len(instances) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}

	normalized := make([]models.ReferenceInstance, 0, len(instances))
	for _, inst := range instances {
		value, err := normalizers.Normalize(ct.ID, inst.Value)
		if err != nil {
			return 0, err
		}
		inst.Value = value
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
		ib.InsertInto(ct.ReferenceTableName())
		ib.Cols("reference_set_id", "value", "known_status", "comment")
		for _, inst := range normalized[start:end] {
			ib.Values(inst.SetID, inst.Value, inst.KnownStatus, inst.Comment)
		}
		ib.OnConflictDoNothing("reference_set_id", "value")

		query, args := ib.Build()

		if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to bulk add reference instances")
			return 0, errs.NewRepositoryError("bulk add reference instances", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"count": len(normalized),
		"table": ct.ReferenceTableName(),
	}).Info("imported reference instances")

	return len(normalized), nil
}

// IsValueInReferenceSet reports whether the normalized value is a member of
// the given set.
func (r *Repository) IsValueInReferenceSet(ctx context.Context, ct models.CorrelationType, setID int64, value string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.IsValueInReferenceSet")
	defer span.End()

	if !ct.HasReferenceTable() {
		return false, fmt.Errorf("%s: %w", ct.DisplayName, errs.ErrNoBackingStorage)
	}
	// A blank value is a member of nothing.
	if strings.TrimSpace(value) == "" {
		return false, nil
	}

	normalized, err := normalizers.Normalize(ct.ID, value)
	if err != nil {
		return false, err
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(ct.ReferenceTableName())
	sb.Where(
		sb.Equal("reference_set_id", setID),
		sb.Equal("value", normalized),
	)

	query, args := sb.Build()

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to check reference set membership")
		return false, fmt.Errorf("failed to check reference set membership: %w", err)
	}

	return count > 0, nil
}

// GetReferenceInstancesByValue returns every stored instance of the
// normalized value across all sets of the type.
func (r *Repository) GetReferenceInstancesByValue(ctx context.Context, ct models.CorrelationType, value string) ([]models.ReferenceInstance, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.GetReferenceInstancesByValue")
	defer span.End()

	if !ct.HasReferenceTable() {
		return nil, fmt.Errorf("%s: %w", ct.DisplayName, errs.ErrNoBackingStorage)
	}

	normalized, err := normalizers.Normalize(ct.ID, value)
	if err != nil {
		return nil, err
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(instanceColumns...)
	sb.From(ct.ReferenceTableName())
	sb.Where(sb.Equal("value", normalized))
	sb.OrderBy("id")

	query, args := sb.Build()

	var instances []models.ReferenceInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get reference instances by value")
		return nil, fmt.Errorf("failed to get reference instances: %w", err)
	}

	return instances, nil
}

// IsValueKnownBad reports whether any set records the normalized value as
// notable.
func (r *Repository) IsValueKnownBad(ctx context.Context, ct models.CorrelationType, value string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.IsValueKnownBad")
	defer span.End()

	if !ct.HasReferenceTable() {
		return false, fmt.Errorf("%s: %w", ct.DisplayName, errs.ErrNoBackingStorage)
	}
	// A blank value is a member of nothing.
	if strings.TrimSpace(value) == "" {
		return false, nil
	}

	normalized, err := normalizers.Normalize(ct.ID, value)
	if err != nil {
		return false, err
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(ct.ReferenceTableName())
	sb.Where(
		sb.Equal("value", normalized),
		sb.Equal("known_status", models.KnownStatusNotable),
	)

	query, args := sb.Build()

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to check notable status")
		return false, fmt.Errorf("failed to check notable status: %w", err)
	}

	return count > 0, nil
}

// ReferenceSetExists reports whether a set with the given name and version is
// registered. Blank names never match.
func (r *Repository) ReferenceSetExists(ctx context.Context, name, version string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.ReferenceSetExists")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return false, nil
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id")
	sb.From(setTableName)
	sb.Where(sb.Equal("set_name", name), sb.Equal("version", version))
	sb.Limit(1)

	query, args := sb.Build()

	var id int64
	err := r.db.GetContext(ctx, &id, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to check reference set existence")
		return false, fmt.Errorf("failed to check reference set existence: %w", err)
	}

	return true, nil
}

// ReferenceSetIsValid reports whether the set with the given id still carries
// the expected name and version. Callers holding a stale id use this before
// trusting cached set metadata.
func (r *Repository) ReferenceSetIsValid(ctx context.Context, id int64, name, version string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.ReferenceSetIsValid")
	defer span.End()

	set, err := r.GetReferenceSetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if set == nil {
		return false, nil
	}

	return set.Name == name && set.Version == version, nil
}

// GetReferenceSetOrganization returns the organization owning the set.
func (r *Repository) GetReferenceSetOrganization(ctx context.Context, setID int64) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "ReferenceSetRepository.GetReferenceSetOrganization")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(
		"organizations.id", "organizations.org_name",
		"organizations.poc_name", "organizations.poc_email", "organizations.poc_phone",
	)
	sb.From(setTableName)
	sb.Join("organizations", "organizations.id = reference_sets.org_id")
	sb.Where(sb.Equal("reference_sets.id", setID))

	query, args := sb.Build()

	var org models.Organization
	err := r.db.GetContext(ctx, &org, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("reference set %d: %w", setID, errs.ErrNotFound)
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get reference set organization")
		return nil, fmt.Errorf("failed to get reference set organization: %w", err)
	}

	return &org, nil
}
