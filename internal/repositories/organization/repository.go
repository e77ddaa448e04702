// Package organization manages the organizations that own reference sets
// and cases.
package organization

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

type OrganizationRepository interface {
	CreateOrganization(ctx context.Context, org models.Organization) (*models.Organization, error)
	GetOrganizationByID(ctx context.Context, id int64) (*models.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error)
	GetOrganizations(ctx context.Context) ([]models.Organization, error)
	UpdateOrganization(ctx context.Context, org models.Organization) error
	DeleteOrganization(ctx context.Context, id int64) error
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

const tableName = "organizations"

var columns = []string{"id", "org_name", "poc_name", "poc_email", "poc_phone"}

// CreateOrganization inserts a new organization. The name must be unique.
func (r *Repository) CreateOrganization(ctx context.Context, org models.Organization) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "OrganizationRepository.CreateOrganization")
	defer span.End()

	if strings.TrimSpace(org.Name) == "" {
		return nil, errs.NewValidationError("organization", org.Name, errs.ReasonEmpty, "organization name is required")
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols("org_name", "poc_name", "poc_email", "poc_phone")
	ib.Values(org.Name, org.POCName, org.POCEmail, org.POCPhone)

	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create organization")
		return nil, fmt.Errorf("failed to create organization %q: %w", org.Name, err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"org_name": org.Name}).Info("created organization")

	return r.GetOrganizationByName(ctx, org.Name)
}

// GetOrganizationByID returns the organization with the given id, or nil.
func (r *Repository) GetOrganizationByID(ctx context.Context, id int64) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "OrganizationRepository.GetOrganizationByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb)
}

// GetOrganizationByName returns the organization with the given name, or nil.
func (r *Repository) GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "OrganizationRepository.GetOrganizationByName")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("org_name", name))

	return r.getOne(ctx, sb)
}

func (r *Repository) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Organization, error) {
	query, args := sb.Build()

	var org models.Organization
	err := r.db.GetContext(ctx, &org, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get organization")
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// GetOrganizations returns every organization.
func (r *Repository) GetOrganizations(ctx context.Context) ([]models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "OrganizationRepository.GetOrganizations")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.OrderBy("id")

	query, args := sb.Build()

	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list organizations")
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// UpdateOrganization replaces the name and point-of-contact details.
func (r *Repository) UpdateOrganization(ctx context.Context, org models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "OrganizationRepository.UpdateOrganization")
	defer span.End()

	if strings.TrimSpace(org.Name) == "" {
		return errs.NewValidationError("organization", org.Name, errs.ReasonEmpty, "organization name is required")
	}

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(tableName)
	ub.Set(
		ub.Assign("org_name", org.Name),
		ub.Assign("poc_name", org.POCName),
		ub.Assign("poc_email", org.POCEmail),
		ub.Assign("poc_phone", org.POCPhone),
	)
	ub.Where(ub.Equal("id", org.ID))

	query, args := ub.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update organization")
		return fmt.Errorf("failed to update organization: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("organization %d: %w", org.ID, errs.ErrNotFound)
	}

	return nil
}

// DeleteOrganization removes an organization. Deletion fails with ErrInUse
// while any reference set or case still points at it.
func (r *Repository) DeleteOrganization(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "OrganizationRepository.DeleteOrganization")
	defer span.End()

	inUse, err := r.isInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("organization %d has reference sets or cases: %w", id, errs.ErrInUse)
	}

	db := sqlbuilder.NewDeleteBuilder()
	db.DeleteFrom(tableName)
	db.Where(db.Equal("id", id))

	query, args := db.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete organization")
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	// Unknown ids are a no-op.
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("deleted organization")
	}

	return nil
}

func (r *Repository) isInUse(ctx context.Context, id int64) (bool, error) {
	for _, table := range []string{"reference_sets", "cases"} {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Select("COUNT(*)")
		sb.From(table)
		sb.Where(sb.Equal("org_id", id))

		query, args := sb.Build()

		var count int64
		if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to check organization usage")
			return false, fmt.Errorf("failed to check organization usage: %w", err)
		}
		if count > 0 {
			return true, nil
		}
	}

	return false, nil
}
