package postgres

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"io/fs"
	"sort"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations over an existing pool.
type Migrator struct {
	db     *sql.DB
	logger logging.Logger
}

// NewMigrator returns a Migrator bound to db.
func NewMigrator(db *sql.DB, log logging.Logger) *Migrator {
	return &Migrator{db: db, logger: logging.OrNop(log)}
}

// MigrationFiles lists the embedded migration file names in order.
func MigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// open builds a migrate instance on a dedicated connection.  Closing the
// instance releases that connection but leaves the pool open.
func (m *Migrator) open(ctx context.Context) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMigrationError, "failed to open embedded migrations")
	}
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMigrationError, "failed to acquire migration connection")
	}
	driver, err := pgmigrate.WithConnection(ctx, conn, &pgmigrate.Config{})
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, errors.ErrCodeMigrationError, "failed to create migration driver")
	}
	mg, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return nil, errors.Wrap(err, errors.ErrCodeMigrationError, "failed to create migrate instance")
	}
	return mg, nil
}

// Up applies all pending migrations.  An up-to-date schema is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	mg, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.Version()
		return errors.Wrapf(err, errors.ErrCodeMigrationError, "failed to run migrations (current version: %d)", version)
	}
	version, dirty, err := mg.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		m.logger.Warn("failed to read migration version", logging.Err(err))
	}
	m.logger.Info("database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty))
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeBadRequest, "steps must be greater than 0, got %d", steps)
	}
	mg, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeMigrationError, "no migrations to roll back")
		}
		return errors.Wrapf(err, errors.ErrCodeMigrationError, "failed to roll back %d step(s)", steps)
	}
	return nil
}

// Status returns the applied version and whether a previous run left the
// schema dirty.  A database without migrations reports version 0.
func (m *Migrator) Status(ctx context.Context) (version uint, dirty bool, err error) {
	mg, err := m.open(ctx)
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err = mg.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeMigrationError, "failed to read migration version")
	}
	return version, dirty, nil
}

// Force sets the recorded version without running migrations, to recover
// from a dirty state.
func (m *Migrator) Force(ctx context.Context, version int) error {
	mg, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Force(version); err != nil {
		return errors.Wrapf(err, errors.ErrCodeMigrationError, "failed to force version %d", version)
	}
	m.logger.Warn("migration version forced", logging.Int("version", version))
	return nil
}
