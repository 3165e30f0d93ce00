package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const defaultTableName = "chitchat_preferences"

// Dialect selects placeholder and upsert syntax.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// SQLStore keeps values in a two-column table:
//
//	CREATE TABLE chitchat_preferences (
//	    key TEXT PRIMARY KEY,
//	    value TEXT NOT NULL,
//	    updated_at TIMESTAMP
//	);
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   Dialect
	closed    atomic.Bool
}

type SQLOption func(*SQLStore)

func WithTableName(name string) SQLOption {
	return func(s *SQLStore) {
		s.tableName = name
	}
}

// NewSQLStore wraps an open database. The table is not created; call
// InitSchema when the caller owns the schema.
func NewSQLStore(db *sql.DB, dialect Dialect, opts ...SQLOption) *SQLStore {
	s := &SQLStore{
		db:        db,
		tableName: defaultTableName,
		dialect:   dialect,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLite opens (creating if needed) a database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection serializes writers; sqlite locks the file anyway.
	db.SetMaxOpenConns(1)

	return initStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to connStr with the lib/pq driver.
func OpenPostgres(ctx context.Context, connStr string) (*SQLStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return initStore(ctx, db, DialectPostgres)
}

func initStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewSQLStore(db, dialect)
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP
		)`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.tableName, err)
	}
	return nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}

	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = %s`, s.tableName, s.placeholder(1))

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	var query string
	switch s.dialect {
	case DialectPostgres:
		query = fmt.Sprintf(`
			INSERT INTO %s (key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = NOW()
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (key, value, updated_at)
			VALUES (?, ?, datetime('now'))
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
