// Package sqlite implements the storage interface on an embedded SQLite
// database. The driver is WASM-based, so the cache needs no cgo and no
// system SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/skillmeat/skillmeat/internal/debug"
	"github.com/skillmeat/skillmeat/internal/storage"
)

func init() {
	// Cap the embedded SQLite WASM memory. Collection caches are small;
	// 256 MiB leaves generous headroom for FTS merges.
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithMemoryLimitPages(4096)
}

// busyTimeoutMS is how long a connection waits on a locked database before
// returning SQLITE_BUSY. Shared workstation databases see short-lived
// contention from watchers and concurrent CLI invocations.
const busyTimeoutMS = 10000

// SQLiteStorage implements storage.Storage backed by a single SQLite file.
type SQLiteStorage struct {
	db   *sql.DB
	path string
	fts  bool // artifact_search virtual table available
}

var _ storage.Storage = (*SQLiteStorage)(nil)

func connString(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_time_format=sqlite",
		path, busyTimeoutMS)
}

// New opens (creating if necessary) the database at dbPath, applies the
// schema, and runs pending migrations. Use ":memory:" for ephemeral
// databases; note the pool is then pinned to one connection so every
// query sees the same memory database.
func New(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", connString(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStorage{db: db, path: dbPath}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// FTS5 may be absent from the linked SQLite build; search then
	// degrades to substring matching.
	if _, err := db.ExecContext(ctx, searchSchema); err != nil {
		debug.Logf("sqlite: full-text index unavailable, falling back to substring search: %v", err)
		s.fts = false
	} else {
		s.fts = true
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// UnderlyingDB returns the underlying *sql.DB connection.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}

// UnderlyingConn returns a single pooled connection for scoped use.
// The caller must close it.
func (s *SQLiteStorage) UnderlyingConn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}

// FTSAvailable reports whether the full-text index was created.
func (s *SQLiteStorage) FTSAvailable() bool {
	return s.fts
}

// RunInTransaction executes fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection. The write lock is taken up front so two importers
// serialize instead of deadlocking mid-flight.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
				debug.Errorf("sqlite: rollback failed: %v", rbErr)
			}
		}
	}()

	tx := &sqliteTx{q: conn, fts: s.fts}
	if err := fn(tx); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// querier is the common surface of *sql.DB and *sql.Conn. Row helpers are
// written against it once and shared by the store and its transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
