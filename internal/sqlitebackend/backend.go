// Package sqlitebackend provides a SQLite-backed persist.Backend.
package sqlitebackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS store_snapshots (
	name       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Backend persists one snapshot row per store name.
type Backend struct {
	sqlDB *sql.DB
	name  string
}

// Open opens (or creates) the database at path and prepares the schema.
// name selects the row this backend reads and writes.
func Open(path, name string) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("store name is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Backend{sqlDB: sqlDB, name: name}, nil
}

// Close closes the SQLite handle.
func (b *Backend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}

// Save upserts the snapshot row.
func (b *Backend) Save(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || b.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := b.sqlDB.ExecContext(ctx,
		`INSERT INTO store_snapshots (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		b.name, text, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot row's body. ok is false when no row exists.
func (b *Backend) Load(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if b == nil || b.sqlDB == nil {
		return "", false, fmt.Errorf("storage is not configured")
	}
	var body string
	err := b.sqlDB.QueryRowContext(ctx, `SELECT body FROM store_snapshots WHERE name = ?`, b.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load snapshot: %w", err)
	}
	return body, true, nil
}

// Has reports whether a snapshot row exists.
func (b *Backend) Has(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if b == nil || b.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := b.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM store_snapshots WHERE name = ?`, b.name).Scan(&count); err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return count > 0, nil
}
