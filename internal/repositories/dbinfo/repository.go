// Package dbinfo stores schema-level name/value pairs such as the schema
// version the database was created with.
package dbinfo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/Ramsey-B/juniper/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

type DBInfoRepository interface {
	GetValue(ctx context.Context, name string) (*string, error)
	SetValue(ctx context.Context, name, value string) error
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

const tableName = "db_info"

// GetValue returns the value stored under name, or nil when the name has
// never been set.
func (r *Repository) GetValue(ctx context.Context, name string) (*string, error) {
	ctx, span := tracing.StartSpan(ctx, "DBInfoRepository.GetValue")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("value")
	sb.From(tableName)
	sb.Where(sb.Equal("name", name))

	query, args := sb.Build()

	var value string
	err := r.db.GetContext(ctx, &value, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get db info value")
		return nil, fmt.Errorf("failed to get db info value: %w", err)
	}

	return &value, nil
}

// SetValue inserts or replaces the value stored under name.
func (r *Repository) SetValue(ctx context.Context, name, value string) error {
	ctx, span := tracing.StartSpan(ctx, "DBInfoRepository.SetValue")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(tableName)
	ib.Cols("name", "value")
	ib.Values(name, value)
	ib.OnConflictDoUpdate("name", "value = "+database.Excluded("value"))

	query, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to set db info value")
		return fmt.Errorf("failed to set db info value: %w", err)
	}

	return nil
}
