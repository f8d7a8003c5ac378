package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores lists in a single key/value table. Deployments that already
// ship sqlite for other state use this instead of loose files.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the backing database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("open sqlite store: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_lists (
			key   TEXT    NOT NULL,
			idx   INTEGER NOT NULL,
			value TEXT    NOT NULL,
			PRIMARY KEY (key, idx)
		)`)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create kv_lists table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}

	return nil
}

// ReadList returns the values stored under key in insertion order.
func (s *SQLite) ReadList(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM kv_lists WHERE key = ? ORDER BY idx`, key)
	if err != nil {
		return nil, fmt.Errorf("read list %q: %w", key, err)
	}
	defer func() { _ = rows.Close() }()

	var values []string

	for rows.Next() {
		var v string

		err = rows.Scan(&v)
		if err != nil {
			return nil, fmt.Errorf("read list %q: scan: %w", key, err)
		}

		values = append(values, v)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("read list %q: %w", key, err)
	}

	return values, nil
}

// WriteList replaces the values stored under key in one transaction.
func (s *SQLite) WriteList(ctx context.Context, key string, values []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write list %q: begin: %w", key, err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM kv_lists WHERE key = ?`, key)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("write list %q: clear: %w", key, err)
	}

	for i, v := range values {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO kv_lists (key, idx, value) VALUES (?, ?, ?)`, key, i, v)
		if err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("write list %q: insert: %w", key, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("write list %q: commit: %w", key, err)
	}

	return nil
}
