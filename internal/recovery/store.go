// Package recovery keeps a crash-recovery draft of the outline in SQLite.
// Drafts are zstd-compressed and bounded by a byte quota on the compressed
// payload.
package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/checksum"
)

// DefaultKey names the single draft slot the editor uses.
const DefaultKey = "outliner.draft"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS drafts (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	size       INTEGER NOT NULL DEFAULT 0,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Draft is a stored recovery snapshot.
type Draft struct {
	Key       string
	Content   []byte
	Checksum  string
	UpdatedAt time.Time
}

// Slot is the recovery storage the persistence coordinator talks to.
type Slot interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) (*Draft, error)
	Clear(ctx context.Context, key string) error
}

// Verify *Store satisfies Slot at compile time.
var _ Slot = (*Store)(nil)

// Store is a SQLite-backed Slot.
type Store struct {
	conn  *sql.DB
	quota int64
}

// Open opens (or creates) the recovery database. A non-positive quota
// disables the size check.
func Open(dsn string, quota int64) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("recovery: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recovery: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recovery: apply schema: %w", err)
	}
	return &Store{conn: conn, quota: quota}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Put replaces the draft under key. A payload over quota is refused with
// apperr.ErrQuotaExceeded and the previous draft is kept.
func (s *Store) Put(ctx context.Context, key string, content []byte) error {
	packed := compress(content)
	if s.quota > 0 && int64(len(packed)) > s.quota {
		return fmt.Errorf("recovery: draft is %d bytes, quota %d: %w", len(packed), s.quota, apperr.ErrQuotaExceeded)
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO drafts (key, data, size, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data=excluded.data, size=excluded.size,
			checksum=excluded.checksum, updated_at=excluded.updated_at`,
		key, packed, len(content), checksum.Sum(content), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recovery: put %s: %w", key, err)
	}
	return nil
}

// Get returns the draft under key, or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Draft, error) {
	var (
		packed []byte
		d      = Draft{Key: key}
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT data, checksum, updated_at FROM drafts WHERE key = ?`, key,
	).Scan(&packed, &d.Checksum, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recovery: get %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recovery: get %s: %w", key, err)
	}
	content, err := decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("recovery: get %s: %w", key, err)
	}
	if checksum.Sum(content) != d.Checksum {
		return nil, fmt.Errorf("recovery: get %s: checksum mismatch: %w", key, apperr.ErrParse)
	}
	d.Content = content
	return &d, nil
}

// Clear removes the draft under key. Clearing a missing draft is not an
// error.
func (s *Store) Clear(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("recovery: clear %s: %w", key, err)
	}
	return nil
}
