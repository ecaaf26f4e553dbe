package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/banshee-data/scopedb/internal/config"
	"github.com/banshee-data/scopedb/internal/monitoring"
)

//go:embed migrations/sqlite/*.sql migrations/pgx/*.sql
var migrationsFS embed.FS

// ApplySchema brings the database at dsn up to the embedded baseline schema.
// It runs on its own short-lived handle because the migrate drivers close the
// handle they are given.
func ApplySchema(driver, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return wrap("open for schema", err)
	}

	m, err := newMigrate(db, driver)
	if err != nil {
		db.Close()
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			monitoring.Logf("[migrate] close: source=%v database=%v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied schema version. It returns 0 when no
// schema has been applied yet.
func SchemaVersion(driver, dsn string) (version uint, dirty bool, err error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return 0, false, wrap("open for schema", err)
	}
	m, err := newMigrate(db, driver)
	if err != nil {
		db.Close()
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(db *sql.DB, driver string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var instance database.Driver
	switch driver {
	case config.DriverSQLite:
		instance, err = sqlite.WithInstance(db, &sqlite.Config{})
	case config.DriverPostgres:
		instance, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migration driver: %w", driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on top of monitoring.Logf.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
