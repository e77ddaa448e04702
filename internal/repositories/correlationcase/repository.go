// Package correlationcase registers cases in the correlation store. Cases
// are keyed by the UUID of the external case database, and registration is
// idempotent: re-registering an existing UUID returns the existing row.
package correlationcase

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
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

type CaseRepository interface {
	CreateCase(ctx context.Context, c models.CorrelationCase) (*models.CorrelationCase, error)
	BulkCreateCases(ctx context.Context, cases []models.CorrelationCase, batchSize int) (int, error)
	GetCaseByUUID(ctx context.Context, caseUUID string) (*models.CorrelationCase, error)
	GetCases(ctx context.Context) ([]models.CorrelationCase, error)
	UpdateCase(ctx context.Context, c models.CorrelationCase) (*models.CorrelationCase, error)
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

const tableName = "cases"

var columns = []string{
	"id", "case_uid", "case_name", "creation_date", "case_number",
	"examiner_name", "examiner_email", "examiner_phone", "notes", "org_id",
}

// CreateCase registers a case. When the UUID is already registered the
// existing row is returned unchanged.
func (r *Repository) CreateCase(ctx context.Context, c models.CorrelationCase) (*models.CorrelationCase, error) {
	ctx, span := tracing.StartSpan(ctx, "CaseRepository.CreateCase")
	defer span.End()

	if strings.TrimSpace(c.CaseUUID) == "" {
		return nil, errs.NewValidationError("case", c.CaseUUID, errs.ReasonEmpty, "case uuid is required")
	}
	if c.CreationDate == 0 {
		c.CreationDate = time.Now().UnixMilli()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols("case_uid", "case_name", "creation_date", "case_number",
		"examiner_name", "examiner_email", "examiner_phone", "notes", "org_id")
	ib.Values(c.CaseUUID, c.DisplayName, c.CreationDate, c.CaseNumber,
		c.ExaminerName, c.ExaminerEmail, c.ExaminerPhone, c.Notes, c.OrgID)
	ib.OnConflictDoNothing("case_uid")

	query, args := ib.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create case")
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"case_uuid": c.CaseUUID,
			"case_name": c.DisplayName,
		}).Info("registered case")
	}

	return r.GetCaseByUUID(ctx, c.CaseUUID)
}

// DefaultInsertBatchSize bounds multi-row inserts during bulk registration.
const DefaultInsertBatchSize = 250

// BulkCreateCases registers many cases in one transaction, batched. Rows
// whose UUID is already registered are skipped. Returns the number of rows
// written. Any case with a blank UUID aborts the whole batch.
func (r *Repository) BulkCreateCases(ctx context.Context, cases []models.CorrelationCase, batchSize int) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "CaseRepository.BulkCreateCases")
	defer span.End()

	if len(cases) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}

	now := time.Now().UnixMilli()
	for i := range cases {
		if strings.TrimSpace(cases[i].CaseUUID) == "" {
			return 0, errs.NewValidationError("case", cases[i].CaseUUID, errs.ReasonEmpty, "case uuid is required")
		}
		if cases[i].CreationDate == 0 {
			cases[i].CreationDate = now
		}
	}

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	written := 0
	for start := 0; start < len(cases); start += batchSize {
		end := start + batchSize
		if end > len(cases) {
			end = len(cases)
		}

		ib := database.NewInsertBuilder()
		ib.InsertInto(tableName)
		ib.Cols("case_uid", "case_name", "creation_date", "case_number",
			"examiner_name", "examiner_email", "examiner_phone", "notes", "org_id")
		for _, c := range cases[start:end] {
			ib.Values(c.CaseUUID, c.DisplayName, c.CreationDate, c.CaseNumber,
				c.ExaminerName, c.ExaminerEmail, c.ExaminerPhone, c.Notes, c.OrgID)
		}
		ib.OnConflictDoNothing("case_uid")

		query, args := ib.Build()

		result, err := tx.ExecContext(txCtx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to bulk register cases")
			return 0, errs.NewRepositoryError("bulk register cases", err)
		}
		if rows, err := result.RowsAffected(); err == nil {
			written += int(rows)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"count":   len(cases),
		"written": written,
	}).Info("bulk registered cases")

	return written, nil
}

// GetCaseByUUID returns the case registered under the UUID, or nil when it
// has not been registered.
func (r *Repository) GetCaseByUUID(ctx context.Context, caseUUID string) (*models.CorrelationCase, error) {
	ctx, span := tracing.StartSpan(ctx, "CaseRepository.GetCaseByUUID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("case_uid", caseUUID))

	query, args := sb.Build()

	var c models.CorrelationCase
	err := r.db.GetContext(ctx, &c, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get case by uuid")
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return &c, nil
}

// GetCases returns every registered case.
func (r *Repository) GetCases(ctx context.Context) ([]models.CorrelationCase, error) {
	ctx, span := tracing.StartSpan(ctx, "CaseRepository.GetCases")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.OrderBy("id")

	query, args := sb.Build()

	var cases []models.CorrelationCase
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list cases")
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	return cases, nil
}

// UpdateCase replaces the mutable details of the case registered under
// c.CaseUUID. The UUID and creation date are never updated.
func (r *Repository) UpdateCase(ctx context.Context, c models.CorrelationCase) (*models.CorrelationCase, error) {
	ctx, span := tracing.StartSpan(ctx, "CaseRepository.UpdateCase")
	defer span.End()

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(
		ub.Assign("case_name", c.DisplayName),
		ub.Assign("case_number", c.CaseNumber),
		ub.Assign("examiner_name", c.ExaminerName),
		ub.Assign("examiner_email", c.ExaminerEmail),
		ub.Assign("examiner_phone", c.ExaminerPhone),
		ub.Assign("notes", c.Notes),
		ub.Assign("org_id", c.OrgID),
	)
	ub.Where(ub.Equal("case_uid", c.CaseUUID))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update case")
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("case %q: %w", c.CaseUUID, errs.ErrNotFound)
	}

	return r.GetCaseByUUID(ctx, c.CaseUUID)
}
