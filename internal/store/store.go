// Package store is the gateway to the waveform database. It owns the
// transactional scan write, scan deletion and the three read queries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/scopedb/internal/config"
	"github.com/banshee-data/scopedb/internal/monitoring"
)

// ErrNotOwner is returned when a gateway opened with the readwrite role is
// asked to delete a scan.
var ErrNotOwner = errors.New("operation requires the owner role")

// StoreError wraps a failure reported by the database engine.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Gateway executes reads and writes against one *sql.DB. Callers that need
// parallelism open one Gateway each.
type Gateway struct {
	db      *sql.DB
	dialect dialect
	role    string
}

// Open connects to the store described by cfg. When cfg asks for it the
// embedded schema is applied first.
func Open(ctx context.Context, cfg *config.StoreConfig) (*Gateway, error) {
	if cfg == nil {
		cfg = config.EmptyStoreConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	driver, dsn := cfg.GetDriver(), cfg.DSN()
	if cfg.GetApplySchema() {
		if err := ApplySchema(driver, dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, wrap("open", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, wrap("ping", err)
	}
	if err := applyPragmas(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}

	monitoring.Logf("[store] opened %s store as %s", driver, cfg.GetRole())
	return New(db, driver, cfg.GetRole())
}

// sqlitePragmas run on the single pooled connection. foreign_keys must be on
// for scan deletes to cascade, whatever the DSN says.
var sqlitePragmas = []string{
	"PRAGMA foreign_keys=ON",
}

func applyPragmas(ctx context.Context, db *sql.DB, driver string) error {
	if driver != config.DriverSQLite {
		return nil
	}
	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return wrap("pragma", fmt.Errorf("%s: %w", pragma, err))
		}
	}
	return nil
}

// New wraps an already open handle. driver selects the SQL dialect.
func New(db *sql.DB, driver, role string) (*Gateway, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	switch role {
	case config.RoleReadWrite, config.RoleOwner:
	default:
		return nil, fmt.Errorf("unsupported role %q", role)
	}
	return &Gateway{db: db, dialect: d, role: role}, nil
}

// Role returns the role the gateway was opened with.
func (g *Gateway) Role() string { return g.role }

// Close releases the underlying handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// DeleteScan removes a scan and, through ON DELETE CASCADE, every waveform
// and metadata row under it. It returns the number of scan rows deleted.
func (g *Gateway) DeleteScan(ctx context.Context, id int64) (int64, error) {
	if g.role != config.RoleOwner {
		return 0, fmt.Errorf("delete scan %d: %w", id, ErrNotOwner)
	}

	res, err := g.db.ExecContext(ctx, g.dialect.rebind("DELETE FROM scan WHERE id = ?"), id)
	if err != nil {
		return 0, wrap("delete scan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("delete scan", err)
	}
	monitoring.Logf("[store] deleted scan %d (%d rows)", id, n)
	return n, nil
}
