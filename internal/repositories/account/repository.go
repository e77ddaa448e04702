// Package account manages the case-independent registry of typed
// identifiers. Creation is get-or-create: concurrent callers racing on the
// same identifier all land on the same row.
package account

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/errs"
	"github.com/Ramsey-B/juniper/pkg/models"
	"github.com/Ramsey-B/juniper/pkg/normalizers"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

type AccountRepository interface {
	GetOrCreateAccount(ctx context.Context, accountType models.AccountType, identifier string) (*models.Account, error)
	GetAccount(ctx context.Context, accountType models.AccountType, identifier string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetAccountTypes(ctx context.Context) ([]models.AccountType, error)
	GetAccountTypeByName(ctx context.Context, typeName string) (*models.AccountType, error)
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

const tableName = "accounts"
const typeTableName = "account_types"

var columns = []string{"id", "account_type_id", "account_unique_identifier"}
var typeColumns = []string{"id", "type_name", "display_name", "correlation_type_id"}

// GetOrCreateAccount returns the account for the normalized identifier,
// creating it on first sight. The insert-then-select keeps concurrent
// callers from ever seeing a duplicate-key failure.
func (r *Repository) GetOrCreateAccount(ctx context.Context, accountType models.AccountType, identifier string) (*models.Account, error) {
	ctx, span := tracing.StartSpan(ctx, "AccountRepository.GetOrCreateAccount")
	defer span.End()

	normalized, err := normalizers.Normalize(accountType.CorrelationTypeID, identifier)
	if err != nil {
		return nil, err
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols("account_type_id", "account_unique_identifier")
	ib.Values(accountType.ID, normalized)
	ib.OnConflictDoNothing("account_type_id", "account_unique_identifier")

	query, args := ib.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create account")
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"account_type": accountType.TypeName,
		}).Debug("created account")
	}

	account, err := r.getByIdentifier(ctx, accountType.ID, normalized)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %q vanished after insert: %w", normalized, errs.ErrNotFound)
	}

	return account, nil
}

// GetAccount returns the account for the normalized identifier, or nil when
// no observation has created it yet.
func (r *Repository) GetAccount(ctx context.Context, accountType models.AccountType, identifier string) (*models.Account, error) {
	ctx, span := tracing.StartSpan(ctx, "AccountRepository.GetAccount")
	defer span.End()

	normalized, err := normalizers.Normalize(accountType.CorrelationTypeID, identifier)
	if err != nil {
		return nil, err
	}

	return r.getByIdentifier(ctx, accountType.ID, normalized)
}

func (r *Repository) getByIdentifier(ctx context.Context, typeID int, identifier string) (*models.Account, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("account_type_id", typeID),
		sb.Equal("account_unique_identifier", identifier),
	)

	query, args := sb.Build()

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get account")
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetAccountByID returns the account row with the given id, or nil.
func (r *Repository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	ctx, span := tracing.StartSpan(ctx, "AccountRepository.GetAccountByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get account by id")
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetAccountTypes returns every registered account type.
func (r *Repository) GetAccountTypes(ctx context.Context) ([]models.AccountType, error) {
	ctx, span := tracing.StartSpan(ctx, "AccountRepository.GetAccountTypes")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(typeColumns...)
	sb.From(typeTableName)
	sb.OrderBy("id")

	query, args := sb.Build()

	var types []models.AccountType
	if err := r.db.SelectContext(ctx, &types, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list account types")
		return nil, fmt.Errorf("failed to list account types: %w", err)
	}

	return types, nil
}

// GetAccountTypeByName returns the account type registered under typeName,
// or nil.
func (r *Repository) GetAccountTypeByName(ctx context.Context, typeName string) (*models.AccountType, error) {
	ctx, span := tracing.StartSpan(ctx, "AccountRepository.GetAccountTypeByName")
	defer span.End()

	typeName = strings.ToUpper(strings.TrimSpace(typeName))

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(typeColumns...)
	sb.From(typeTableName)
	sb.Where(sb.Equal("type_name", typeName))

	query, args := sb.Build()

	var at models.AccountType
	err := r.db.GetContext(ctx, &at, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get account type")
		return nil, fmt.Errorf("failed to get account type: %w", err)
	}

	return &at, nil
}
