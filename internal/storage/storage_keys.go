package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	st "stash-bot/internal/storagetypes"
)

// Add stores value under key for the user. An existing key is only replaced when
// overwrite is set; otherwise ErrKeyExists is returned and the old value is kept.
func (s *Storage) Add(ctx context.Context, userID st.UserID, key, value string, overwrite bool) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.TrimSpace(value) == "" {
		return ErrEmptyValue
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("add", err)
	}
	defer tx.Rollback() //nolint:errcheck

	exists, err := keyExists(ctx, tx, userID, key)
	if err != nil {
		return storageErr("add", err)
	}
	if exists && !overwrite {
		return ErrKeyExists
	}

	now := s.now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (user_id, key, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, int64(userID), key, value, now, now)
	if err != nil {
		return storageErr("add", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("add", err)
	}
	return nil
}

// Get returns the value stored under key. ok is false when the user or key is unknown.
func (s *Storage) Get(ctx context.Context, userID st.UserID, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE user_id = ? AND key = ?`, int64(userID), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get", err)
	}
	return value, true, nil
}

// ListKeys returns the user's keys in insertion order.
func (s *Storage) ListKeys(ctx context.Context, userID st.UserID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM entries WHERE user_id = ? ORDER BY rowid`, int64(userID))
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storageErr("list", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return keys, nil
}

// Delete removes key and reports whether it existed.
func (s *Storage) Delete(ctx context.Context, userID st.UserID, key string) (bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE user_id = ? AND key = ?`, int64(userID), key)
	if err != nil {
		return false, storageErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete", err)
	}
	return n > 0, nil
}

// DeleteUser removes every key of the user and reports whether anything was stored.
func (s *Storage) DeleteUser(ctx context.Context, userID st.UserID) (bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE user_id = ?`, int64(userID))
	if err != nil {
		return false, storageErr("delete_user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete_user", err)
	}
	return n > 0, nil
}

// Rename moves oldKey to newKey in one step. It returns ErrNoSuchUser when the user
// has nothing stored, ErrNoSuchKey when oldKey is missing and ErrTargetExists when
// newKey is taken and overwrite is not set.
func (s *Storage) Rename(ctx context.Context, userID st.UserID, oldKey, newKey string, overwrite bool) error {
	if newKey == "" {
		return ErrEmptyKey
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("rename", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE user_id = ?`, int64(userID)).Scan(&count); err != nil {
		return storageErr("rename", err)
	}
	if count == 0 {
		return ErrNoSuchUser
	}

	found, err := keyExists(ctx, tx, userID, oldKey)
	if err != nil {
		return storageErr("rename", err)
	}
	if !found {
		return ErrNoSuchKey
	}
	if oldKey == newKey {
		return nil
	}

	taken, err := keyExists(ctx, tx, userID, newKey)
	if err != nil {
		return storageErr("rename", err)
	}
	if taken {
		if !overwrite {
			return ErrTargetExists
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE user_id = ? AND key = ?`, int64(userID), newKey); err != nil {
			return storageErr("rename", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entries SET key = ?, updated_at = ? WHERE user_id = ? AND key = ?`,
		newKey, s.now().UTC(), int64(userID), oldKey); err != nil {
		return storageErr("rename", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("rename", err)
	}
	return nil
}

// Steal copies sourceID's value at sourceKey into actorID's store under targetKey
// (sourceKey when targetKey is empty). It returns false when the source key does not
// exist and ErrKeyExists when the actor already owns targetKey. The source is never
// modified.
func (s *Storage) Steal(ctx context.Context, actorID, sourceID st.UserID, sourceKey, targetKey string) (bool, error) {
	if targetKey == "" {
		targetKey = sourceKey
	}

	value, ok, err := s.Get(ctx, sourceID, sourceKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.Add(ctx, actorID, targetKey, value, false); err != nil {
		return false, err
	}
	return true, nil
}

func keyExists(ctx context.Context, tx *sql.Tx, userID st.UserID, key string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM entries WHERE user_id = ? AND key = ?`, int64(userID), key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
