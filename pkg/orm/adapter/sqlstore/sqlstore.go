// Package sqlstore implements the adapter contract over database/sql for
// PostgreSQL (pgx or lib/pq) and SQLite.
//
// Records are keyed by attribute name. Columns are the snake_case form of
// attribute names and are aliased back when selected:
//
//	SELECT "id", "created_at" AS "createdAt" FROM "cat" WHERE "name" = $1
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
)

// Dialect selects placeholder and statement flavors
type Dialect int

const (
	// Postgres uses $n placeholders and TRUNCATE
	Postgres Dialect = iota
	// SQLite uses ? placeholders and DELETE for truncation
	SQLite
)

// String returns the dialect name
func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Store is the relational adapter
type Store struct {
	db      *sql.DB
	dialect Dialect

	closeOnce sync.Once
	closeErr  error
}

var _ adapter.Adapter = (*Store)(nil)

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open connects to the database described by cfg and checks the connection
func Open(ctx context.Context, cfg adapter.Config) (*Store, error) {
	driverName, dialect, err := driverFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(dialect, cfg)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &ConnectionError{Config: cfg.Redacted(), Err: err}
	}

	if dialect == SQLite {
		// in-memory databases are private to their connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Config: cfg.Redacted(), Err: err}
	}

	return New(db, dialect), nil
}

// Factory opens a store from its storage configuration
func Factory(ctx context.Context, cfg adapter.Config) (adapter.Adapter, error) {
	s, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func driverFor(driver string) (string, Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return "pgx", Postgres, nil
	case "pq":
		return "postgres", Postgres, nil
	case "sqlite3", "sqlite":
		return "sqlite3", SQLite, nil
	}
	return "", 0, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

func buildDSN(dialect Dialect, cfg adapter.Config) string {
	if dialect == SQLite {
		if cfg.Database == "" {
			return ":memory:"
		}
		return cfg.Database
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=disable",
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	return u.String()
}

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's SQL dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Destroy closes the connection pool. Calling it again returns the first result.
func (s *Store) Destroy(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// withTransaction runs fn inside a transaction, committing when fn succeeds
func (s *Store) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
