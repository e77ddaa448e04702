// Package dbtest provides an embedded sqlite database with the full schema
// applied, for repository tests.
package dbtest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/juniper/pkg/database"
	"github.com/stretchr/testify/require"
)

// NewLogger returns a logger that discards output.
func NewLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// NewDB opens a fresh sqlite database in a test temp dir and runs all
// migrations against it. The handle is closed when the test finishes.
func NewDB(t *testing.T) database.DB {
	t.Helper()

	logger := NewLogger()
	db, err := database.Connect(context.Background(), database.ConnectConfig{
		Driver:   database.DriverSQLite,
		Name:     t.Name(),
		FilePath: filepath.Join(t.TempDir(), "juniper.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: migrationRoot(),
	})
	require.NoError(t, migrations.MigrateDatabase(db, "juniper"))

	return db
}

func migrationRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "db")
}
