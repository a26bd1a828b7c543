package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"ms-vitotrips/internal/logger"
)

// Runner applies the SQL files in a directory to a postgres database. It owns
// the *sql.DB it is given, so pass a dedicated handle rather than the pool the
// service queries through.
type Runner struct {
	db       *sql.DB
	dir      string
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *sql.DB, dir string, log *logger.Logger) *Runner {
	return &Runner{db: db, dir: dir, log: log}
}

func (r *Runner) init() error {
	if r.migrator != nil {
		return nil
	}

	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.dir)
	}
	abs, err := filepath.Abs(r.dir)
	if err != nil {
		return fmt.Errorf("resolve migrations directory: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	r.migrator = migrator
	return nil
}

// Up applies all pending migrations. A dirty schema is reported, not forced.
func (r *Runner) Up() error {
	if err := r.init(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty; fix it and run `migrate force`", version)
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	r.logVersion()
	return nil
}

// Down rolls back steps migrations; steps <= 0 rolls back everything.
func (r *Runner) Down(steps int) error {
	if err := r.init(); err != nil {
		return err
	}

	var err error
	if steps <= 0 {
		err = r.migrator.Down()
	} else {
		err = r.migrator.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	r.logVersion()
	return nil
}

// Force sets the recorded version without running anything, clearing the dirty flag.
func (r *Runner) Force(version int) error {
	if err := r.init(); err != nil {
		return err
	}
	if err := r.migrator.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (r *Runner) Version() (uint, bool, error) {
	if err := r.init(); err != nil {
		return 0, false, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (r *Runner) logVersion() {
	version, dirty, err := r.migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		r.log.Info("MIGRATE", "No migrations applied")
	case err != nil:
		r.log.Warn("MIGRATE", fmt.Sprintf("Could not read schema version: %v", err))
	default:
		r.log.Info("MIGRATE", fmt.Sprintf("Current schema version: %d (dirty=%t)", version, dirty))
	}
}

// Close releases the source and the database handle given to NewRunner; the
// postgres driver closes the *sql.DB it was built from.
func (r *Runner) Close() error {
	if r.migrator == nil {
		return r.db.Close()
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
