// /internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	st "stash-bot/internal/storagetypes"
)

// Schema is shared with backup snapshots so a snapshot file can be opened as a store.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
	user_id    INTEGER   NOT NULL,
	key        TEXT      NOT NULL,
	value      TEXT      NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, key)
);
CREATE INDEX IF NOT EXISTS idx_entries_user ON entries(user_id);`

// Storage is the per-user key/value store. Mutations are serialized per user id.
type Storage struct {
	db    *sql.DB
	path  string
	locks *userLocks
	now   func() time.Time
}

// New opens (or creates) the store file at filePath.
func New(filePath string) (*Storage, error) {
	if filePath == "" {
		return nil, fmt.Errorf("storage: empty path")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating dir: %w", err)
	}

	db, err := Open(filePath)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", filePath).Msg("Storage initialized")

	return &Storage{
		db:    db,
		path:  filePath,
		locks: newUserLocks(),
		now:   time.Now,
	}, nil
}

// Open opens a sqlite file with the entries schema applied.
func Open(filePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	// one writer; keeps multi-statement reads consistent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return db, nil
}

// Path returns the file backing the store.
func (s *Storage) Path() string {
	return s.path
}

// Name returns the store file name without directory, used to name snapshots.
func (s *Storage) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	log.Info().Msg("Storage connection closed")
	return nil
}

// Snapshot returns every entry, timestamps included, as of a single point in time.
func (s *Storage) Snapshot(ctx context.Context) ([]st.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("snapshot", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT user_id, key, value, created_at, updated_at FROM entries ORDER BY user_id, rowid`)
	if err != nil {
		return nil, storageErr("snapshot", err)
	}
	defer rows.Close()

	var out []st.Entry
	for rows.Next() {
		var e st.Entry
		if err := rows.Scan(&e.UserID, &e.Key, &e.Value, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, storageErr("snapshot", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("snapshot", err)
	}
	return out, nil
}

// userLocks hands out one mutex per user id. Entries are never removed; the set of
// users who ever mutated the store is small.
type userLocks struct {
	mu    sync.Mutex
	locks map[st.UserID]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[st.UserID]*sync.Mutex)}
}

func (l *userLocks) lock(id st.UserID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
