package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"       // postgres driver
	_ "modernc.org/sqlite"      // pure go sqlite driver
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB is the database handle passed to every repository. It narrows sqlx.DB
// to what the repositories use plus context-transaction support.
type DB interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	PingContext(ctx context.Context) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	Rebind(query string) string
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	SetConnMaxIdleTime(d time.Duration)
	SetConnMaxLifetime(d time.Duration)
	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	Stats() sql.DBStats
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

func (db *DatabaseInstance) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return GetTx(ctx, db.logger, db, opts)
}

// ConnectConfig carries what Connect needs to open a database.
type ConnectConfig struct {
	Driver          string
	Host            string
	Port            string
	UserName        string
	Password        string
	Name            string
	SSLMode         string
	FilePath        string // sqlite only
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens a database for the configured driver, verifies connectivity,
// and selects the matching SQL builder flavor.
func Connect(ctx context.Context, cfg ConnectConfig, logger ectologger.Logger) (DB, error) {
	var dsn string
	switch cfg.Driver {
	case DriverPostgres:
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.UserName, cfg.Password, cfg.Name, cfg.SSLMode)
	case DriverSQLite:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("sqlite driver requires a file path")
		}
		// backing relational semantics require enforced foreign keys
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.FilePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	SetFlavorForDriver(cfg.Driver)

	logger.WithContext(ctx).WithFields(map[string]any{
		"driver": cfg.Driver,
		"name":   cfg.Name,
	}).Info("database connection established")

	return NewDatabaseInstance(db, logger), nil
}
