package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/ahrav/go-tourney/internal/ports"
)

const responseSchema = `
CREATE TABLE IF NOT EXISTS responses (
	key        TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

type responseRow struct {
	Key       string    `db:"key"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// ResponseCache stores competitor responses in SQLite, keyed by the
// string form of a tournament cache key.
type ResponseCache struct {
	db *sqlx.DB
}

var _ ports.ResponseCache = (*ResponseCache)(nil)

// OpenResponseCache opens or creates the cache database at path.
func OpenResponseCache(ctx context.Context, path string) (*ResponseCache, error) {
	// WAL lets concurrent readers proceed while a response is written.
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, ports.NewCacheError(path, "open", corrupted(err))
	}
	if _, err := db.ExecContext(ctx, responseSchema); err != nil {
		db.Close()
		return nil, ports.NewCacheError(path, "migrate", corrupted(err))
	}
	return &ResponseCache{db: db}, nil
}

// Get returns the cached response for key.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool, error) {
	var row responseRow
	err := c.db.GetContext(ctx, &row, `SELECT key, content, created_at FROM responses WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ports.NewCacheError(key, "get", corrupted(err))
	}
	return row.Content, true, nil
}

// corrupted marks SQLite's damaged-file errors with ports.ErrCacheCorrupted.
func corrupted(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrCorrupt || se.Code == sqlite3.ErrNotADB) {
		return fmt.Errorf("%w: %w", ports.ErrCacheCorrupted, err)
	}
	return err
}

// Put stores response under key, replacing any previous entry.
func (c *ResponseCache) Put(ctx context.Context, key, response string) error {
	_, err := c.db.NamedExecContext(ctx, `
		INSERT INTO responses (key, content, created_at)
		VALUES (:key, :content, :created_at)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, created_at = excluded.created_at
	`, responseRow{Key: key, Content: response, CreatedAt: time.Now().UTC()})
	if err != nil {
		return ports.NewCacheError(key, "put", err)
	}
	return nil
}

// Len counts cached responses.
func (c *ResponseCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM responses`); err != nil {
		return 0, fmt.Errorf("counting responses: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *ResponseCache) Close() error { return c.db.Close() }
