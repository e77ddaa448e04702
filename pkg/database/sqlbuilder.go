package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

func init() {
	sqlbuilder.DefaultFlavor = sqlbuilder.PostgreSQL
}

// SetFlavorForDriver selects the builder dialect for the connected driver.
// Connect calls this once at startup, before any repository builds a query.
func SetFlavorForDriver(driver string) {
	switch driver {
	case DriverSQLite:
		sqlbuilder.DefaultFlavor = sqlbuilder.SQLite
	default:
		sqlbuilder.DefaultFlavor = sqlbuilder.PostgreSQL
	}
}

func Flavor() sqlbuilder.Flavor {
	return sqlbuilder.DefaultFlavor
}

// Excluded references the conflicting row's value inside an ON CONFLICT DO
// UPDATE clause. Valid in both postgres and sqlite.
func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder() *InsertBuilder {
	return &InsertBuilder{Flavor().NewInsertBuilder()}
}

// OnConflictDoUpdate appends an upsert clause. Assignments are raw SQL
// fragments, typically built with Excluded.
func (b *InsertBuilder) OnConflictDoUpdate(conflictColumns string, assignments ...string) *InsertBuilder {
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", conflictColumns, strings.Join(assignments, ", ")))
	return b
}

func (b *InsertBuilder) OnConflictDoNothing(columns ...string) *InsertBuilder {
	if len(columns) == 0 {
		b.SQL("ON CONFLICT DO NOTHING")
	} else {
		b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(columns, ", ")))
	}
	return b
}

// Returning appends a RETURNING clause. Supported by postgres and by sqlite
// since 3.35, which modernc.org/sqlite ships.
func (b *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	b.SQL(fmt.Sprintf("RETURNING %s", strings.Join(columns, ", ")))
	return b
}

func (b *InsertBuilder) Cols(col ...string) *InsertBuilder {
	return &InsertBuilder{b.InsertBuilder.Cols(col...)}
}

func (b *InsertBuilder) InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{b.InsertBuilder.InsertInto(table)}
}

func (b *InsertBuilder) Values(value ...interface{}) *InsertBuilder {
	return &InsertBuilder{b.InsertBuilder.Values(value...)}
}

type UpdateBuilder struct {
	*sqlbuilder.UpdateBuilder
}

func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{Flavor().NewUpdateBuilder()}
}

type DeleteBuilder struct {
	*sqlbuilder.DeleteBuilder
}

func NewDeleteBuilder() *DeleteBuilder {
	return &DeleteBuilder{Flavor().NewDeleteBuilder()}
}

type SelectBuilder struct {
	*sqlbuilder.SelectBuilder
}

func NewSelectBuilder() *SelectBuilder {
	return &SelectBuilder{Flavor().NewSelectBuilder()}
}

type Struct struct {
	*sqlbuilder.Struct
}

func (s *Struct) SelectFrom(table string) *SelectBuilder {
	return &SelectBuilder{s.Struct.SelectFrom(table)}
}

func (s *Struct) InsertInto(table string, v ...any) *InsertBuilder {
	return &InsertBuilder{s.Struct.InsertInto(table, v...)}
}

func (s *Struct) Update(table string, v any) *UpdateBuilder {
	return &UpdateBuilder{s.Struct.Update(table, v)}
}

func (s *Struct) DeleteFrom(table string) *DeleteBuilder {
	return &DeleteBuilder{s.Struct.DeleteFrom(table)}
}

func NewStruct(v any) *Struct {
	return &Struct{sqlbuilder.NewStruct(v).For(Flavor())}
}
