package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/jobboard/internal/model"
)

const userColumns = `id, first_name, last_name, middle_name, email, phone, username, password, photo_id, photo_url`

// DefaultUserSearchLimit caps SearchUsers when no limit is given.
const DefaultUserSearchLimit = 20

// UpsertUser inserts or replaces the user stored under u.ID.
func (db *DB) UpsertUser(ctx context.Context, u model.User) error {
	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			middle_name = excluded.middle_name,
			email = excluded.email,
			phone = excluded.phone,
			username = excluded.username,
			password = excluded.password,
			photo_id = excluded.photo_id,
			photo_url = excluded.photo_url,
			updated_at = excluded.updated_at`,
		u.ID, u.FirstName, u.LastName, u.MiddleName, u.Email, u.Phone, u.Username, u.Password,
		u.PhotoID, u.PhotoURL, now)
	if err != nil {
		return err
	}
	db.changed("users", "upsert", u.ID, res)
	return nil
}

// GetUser returns the user stored under id, or nil if there is none.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return db.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// UserByEmail looks a user up by normalized email.
func (db *DB) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.queryUser(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(trim(email)) = ? ORDER BY id ASC LIMIT 1`, model.Normalize(email))
}

// UserByUsername looks a user up by normalized username.
func (db *DB) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.queryUser(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(trim(username)) = ? ORDER BY id ASC LIMIT 1`, model.Normalize(username))
}

// FindUsersByIdentity returns every row whose normalized email or username
// matches.
func (db *DB) FindUsersByIdentity(ctx context.Context, email, username string) ([]model.User, error) {
	return db.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(trim(email)) = ? OR lower(trim(username)) = ?
		ORDER BY id ASC`, model.Normalize(email), model.Normalize(username))
}

// ListUsers returns all users ordered by username.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	return db.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC, id ASC`)
}

// SearchUsers matches q against username, first name, last name and the
// "first last" full name, case-insensitively.
func (db *DB) SearchUsers(ctx context.Context, q string, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = DefaultUserSearchLimit
	}
	pattern := likeContains(q)
	return db.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username LIKE ? ESCAPE '\'
		   OR first_name LIKE ? ESCAPE '\'
		   OR last_name LIKE ? ESCAPE '\'
		   OR (first_name || ' ' || last_name) LIKE ? ESCAPE '\'
		ORDER BY username ASC, id ASC
		LIMIT ?`, pattern, pattern, pattern, pattern, limit)
}

// DeleteUser removes the user stored under id.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	db.changed("users", "delete", id, res)
	return nil
}

func (db *DB) queryUser(ctx context.Context, q string, args ...any) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) queryUsers(ctx context.Context, q string, args ...any) ([]model.User, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(s scanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.FirstName, &u.LastName, &u.MiddleName, &u.Email, &u.Phone, &u.Username,
		&u.Password, &u.PhotoID, &u.PhotoURL)
	return u, err
}
