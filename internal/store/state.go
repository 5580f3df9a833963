package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PutState stores a sync_state value under key.
func (db *DB) PutState(ctx context.Context, key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetState returns the value stored under key and whether it exists.
func (db *DB) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// DeleteState removes key from sync_state.
func (db *DB) DeleteState(ctx context.Context, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sync_state WHERE key = ?`, key)
	return err
}
