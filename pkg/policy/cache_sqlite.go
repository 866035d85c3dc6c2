package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// SQLiteCache persists validated policy document bytes keyed by path
// and content hash, so a warm cache survives process restarts.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (creating if absent) a SQLite database at dsn
// and ensures its schema exists.
func NewSQLiteCache(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("policy: open sqlite cache %s: %w", dsn, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS policy_cache (
	path TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	document BLOB NOT NULL,
	PRIMARY KEY (path, content_hash)
)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("policy: migrate sqlite cache: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Close() error { return c.db.Close() }

func (c *SQLiteCache) Get(ctx context.Context, key CacheKey) ([]byte, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT document FROM policy_cache WHERE path = ? AND content_hash = ?`,
		key.Path, key.ContentHash)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("policy: sqlite cache lookup: %w", err)
	}
	return raw, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, key CacheKey, raw []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO policy_cache (path, content_hash, document) VALUES (?, ?, ?)`,
		key.Path, key.ContentHash, raw)
	if err != nil {
		return fmt.Errorf("policy: sqlite cache write: %w", err)
	}
	return nil
}
