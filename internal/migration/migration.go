package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// versionTable keeps the schema version apart from other tools sharing the
// database.
const versionTable = "sellerflow_schema_migrations"

// ErrDirtySchema means a previous run stopped halfway through a migration and
// the schema needs a manual fix before the service can start.
var ErrDirtySchema = errors.New("schema is dirty")

// Result reports the schema version before and after a run.
type Result struct {
	From    uint
	To      uint
	Applied bool
}

// RunMigrations brings the postgres schema up to the newest embedded version.
// It leaves db open since the caller shares it with gorm.
func RunMigrations(db *sql.DB, log *zap.Logger) (Result, error) {
	if db == nil {
		return Result{}, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	src, err := newSource()
	if err != nil {
		return Result{}, err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: versionTable})
	if err != nil {
		return Result{}, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return Result{}, fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrateLogger{log: log}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return Result{}, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return Result{From: from, To: from}, fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return Result{From: from, To: from}, nil
		}
		return Result{From: from}, fmt.Errorf("apply migrations: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return Result{From: from}, fmt.Errorf("read schema version: %w", err)
	}
	return Result{From: from, To: to, Applied: true}, nil
}

func newSource() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

type migrateLogger struct {
	log *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}
