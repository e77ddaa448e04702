package database

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

type MigrationConfig struct {
	// MigrationFolderPath is the root of the migration tree. Per-driver
	// scripts live in a subdirectory named after the driver.
	MigrationFolderPath string
	Version             uint
	Force               int
	AutoRollback        bool // attempt to roll the schema back to the previous version on failure
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

func (ms *MigrationService) resolveMigrationFolder(driverName string) string {
	migrationFolder := filepath.Join(ms.config.MigrationFolderPath, driverName)
	if _, err := os.Stat(migrationFolder); err == nil {
		return migrationFolder
	}
	workingDirectory, _ := os.Getwd()
	return filepath.Join(workingDirectory, migrationFolder)
}

// MigrateDatabase applies the migration scripts for db's driver. The schema
// is shared across drivers except for dialect differences kept in the
// per-driver script directories.
func (ms *MigrationService) MigrateDatabase(db DB, databaseName string) error {
	instance, ok := db.(*DatabaseInstance)
	if !ok {
		return fmt.Errorf("unsupported database handle %T", db)
	}

	var driver migratedb.Driver
	var err error
	switch db.DriverName() {
	case DriverPostgres:
		driver, err = pgmigrate.WithInstance(instance.DB.DB, &pgmigrate.Config{})
	case DriverSQLite:
		driver, err = sqlitemigrate.WithInstance(instance.DB.DB, &sqlitemigrate.Config{})
	default:
		return fmt.Errorf("no migration driver for %q", db.DriverName())
	}
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	return ms.Migrate(db.DriverName(), databaseName, driver)
}

func (ms *MigrationService) Migrate(driverName, databaseName string, databaseInstance migratedb.Driver) error {
	migrationFolder := ms.resolveMigrationFolder(driverName)
	if _, err := os.Stat(migrationFolder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", migrationFolder))
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationFolder, databaseName, databaseInstance)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.runMigration(m, migrationFolder)
}

func (ms *MigrationService) runMigration(m *migrate.Migrate, migrationFolder string) error {
	if ms.config.Force != 0 {
		err := m.Force(ms.config.Force)
		if err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	version, _, versionErr := m.Version()
	if versionErr != nil {
		version = 0
	}

	done := make(chan bool)
	go ms.logProgress(done)

	startTime := time.Now()

	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}

	done <- true

	ms.logger.Infof("Database migrations completed in %v", time.Since(startTime))

	return ms.handleMigrationError(m, migrationErr, version, migrationFolder)
}

func (ms *MigrationService) logProgress(done chan bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	dots := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			dots = (dots + 1) % 4
			ms.logger.Debugf("Executing database migrations%s", strings.Repeat(".", dots))
		}
	}
}

func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, err error, previousVersion uint, migrationFolder string) error {
	if err == nil {
		ms.logger.Info("Successfully applied migrations")
		return nil
	}

	if err == migrate.ErrNoChange {
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	// the recorded schema version is newer than any script on disk. This is
	// usually the result of a code rollback.
	if strings.Contains(err.Error(), "no migration found for version") {
		latest, latestErr := getLatestVersion(migrationFolder)
		if latestErr != nil {
			ms.logger.WithError(latestErr).Error("Failed to get latest migration version")
			return err
		}
		ms.logger.Warnf("No migration found for version %d. Latest version is %d", previousVersion, latest)
		if forceErr := m.Force(latest); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", latest)
			return forceErr
		}
		return nil
	}

	ms.logger.WithError(err).Errorf("Migration failed with error: %v", err)

	version, dirty, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	} else if ms.config.AutoRollback {
		if previousVersion == 0 {
			previousVersion = version - 1
		}

		if dirty {
			ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, previousVersion)

			if forceErr := m.Force(int(previousVersion)); forceErr != nil {
				ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", previousVersion)
				return forceErr
			}
		}

		// still fail startup even after a successful rollback
		return err
	}

	ms.logger.WithError(err).Errorf("Failed to apply migrations. Database version is dirty=%t at version %d", dirty, version)
	return err
}

func getLatestVersion(folderPath string) (int, error) {
	files, err := os.ReadDir(folderPath)
	if err != nil {
		return 0, err
	}

	var versions []int
	re := regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := re.FindStringSubmatch(file.Name())
		if len(matches) > 1 {
			version, err := strconv.Atoi(matches[1])
			if err != nil {
				return 0, err
			}
			versions = append(versions, version)
		}
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}

	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
