package backup

import (
	"context"
	"fmt"
	"time"

	"stash-bot/internal/storage"
	st "stash-bot/internal/storagetypes"
)

// SQLiteWriter stores a snapshot as a standalone sqlite file with the store's schema.
type SQLiteWriter struct{}

func (SQLiteWriter) Write(ctx context.Context, path string, entries []st.Entry) (err error) {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close snapshot: %w", cerr)
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (user_id, key, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		created, updated := e.CreatedAt, e.UpdatedAt
		if created.IsZero() {
			created = now
		}
		if updated.IsZero() {
			updated = created
		}
		if _, err := stmt.ExecContext(ctx, int64(e.UserID), e.Key, e.Value, created.UTC(), updated.UTC()); err != nil {
			return fmt.Errorf("insert %d/%s: %w", e.UserID, e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
