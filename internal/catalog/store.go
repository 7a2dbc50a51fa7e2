package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Config selects the catalog database. The catalog may live in the same
// MySQL instance as the baseline, in a dedicated Postgres, or (the default,
// and what tests use) in a local SQLite file.
type Config struct {
	// Driver is "sqlite", "mysql", or "postgres".
	Driver string
	// DSN is the driver-specific connection string. Ignored for sqlite
	// when DataDir is set.
	DSN string
	// DataDir is the directory for the SQLite catalog file. Empty means
	// in-memory (tests).
	DataDir string
}

// Store persists the three catalog tables: schema_definitions,
// migration_history, and migration_locks. It exclusively owns schema
// definition rows and lock records; history is append-only.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects the catalog store and runs table migrations.
func Open(cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	var dsn string
	switch driver {
	case "sqlite":
		dsn = cfg.DSN
		if dsn == "" {
			if cfg.DataDir == "" {
				dsn = ":memory:?_journal_mode=WAL"
			} else {
				if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
					return nil, fmt.Errorf("create data dir: %w", err)
				}
				dsn = filepath.Join(cfg.DataDir, "schemafleet.db") + "?_journal_mode=WAL&_busy_timeout=5000"
			}
		}
	case "mysql", "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("catalog driver %q requires a DSN", driver)
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported catalog driver: %s", driver)
	}

	sqlDriver := driver
	if driver == "postgres" {
		sqlDriver = "pgx"
	}
	db, err := sqlx.Connect(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the catalog connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind translates ?-style placeholders into the driver's dialect.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// insertReturningID runs an INSERT and returns the generated row ID across
// all three supported drivers. Postgres has no LastInsertId, so the query is
// extended with RETURNING id there; the query must not already carry one.
func (s *Store) insertReturningID(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		q := s.rebind(query + " RETURNING id")
		var err error
		if tx != nil {
			err = tx.QueryRowxContext(ctx, q, args...).Scan(&id)
		} else {
			err = s.db.QueryRowxContext(ctx, q, args...).Scan(&id)
		}
		return id, err
	}

	var res interface {
		LastInsertId() (int64, error)
	}
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, s.rebind(query), args...)
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(query), args...)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// isDuplicateKey reports whether err is a unique-constraint violation on any
// of the supported drivers.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// modernc.org/sqlite reports constraint failures by message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// now returns catalog timestamps in UTC, truncated to whole seconds so the
// value round-trips identically through all three drivers.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
