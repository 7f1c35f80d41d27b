package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/tarkovremote/go/internal/sqlutil"
)

// Supported database/sql drivers. The caller registers the driver with a blank import.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore persists values in a single key/value table
type SQLStore struct {
	db      *sql.DB
	driver  string
	getSQL  string
	saveSQL string
}

// NewSQLStore prepares the remote_kv table on db and returns a store using it
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	var table string
	s := &SQLStore{db: db, driver: driver}

	switch driver {
	case DriverSQLite:
		table = `CREATE TABLE IF NOT EXISTS remote_kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
		s.getSQL = `SELECT value FROM remote_kv WHERE key = ?`
		s.saveSQL = `INSERT INTO remote_kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	case DriverPostgres:
		table = `CREATE TABLE IF NOT EXISTS remote_kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`
		s.getSQL = `SELECT value FROM remote_kv WHERE key = $1`
		s.saveSQL = `INSERT INTO remote_kv (key, value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	index := `CREATE INDEX IF NOT EXISTS remote_kv_updated_at ON remote_kv (updated_at)`
	if err := sqlutil.ExecAll(ctx, db, table, index); err != nil {
		return nil, fmt.Errorf("create remote_kv table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.saveSQL, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
