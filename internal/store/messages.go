package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matheus3301/jobboard/internal/model"
)

const messageColumns = `id, sender_id, receiver_id, text, timestamp`

// UpsertMessage inserts or replaces the message stored under m.ID.
func (db *DB) UpsertMessage(ctx context.Context, m model.Message) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender_id = excluded.sender_id,
			receiver_id = excluded.receiver_id,
			text = excluded.text,
			timestamp = excluded.timestamp`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Timestamp)
	if err != nil {
		return err
	}
	db.changed("messages", "upsert", m.ID, res)
	return nil
}

// GetMessage returns the message stored under id, or nil if there is none.
func (db *DB) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	var m model.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMessage removes the message stored under id.
func (db *DB) DeleteMessage(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	db.changed("messages", "delete", id, res)
	return nil
}

// ListConversation returns the messages exchanged between a and b, oldest first.
func (db *DB) ListConversation(ctx context.Context, a, b int64) ([]model.Message, error) {
	return db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY timestamp ASC, id ASC`, a, b, b, a)
}

// ListMessagesForUser returns every message sent or received by userID, newest first.
func (db *DB) ListMessagesForUser(ctx context.Context, userID int64) ([]model.Message, error) {
	return db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY timestamp DESC, id DESC`, userID, userID)
}

// MessagesInWindow returns messages with the same content as m whose
// timestamp lies strictly within window milliseconds of m.Timestamp.
func (db *DB) MessagesInWindow(ctx context.Context, m model.Message, windowMs int64) ([]model.Message, error) {
	return db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE sender_id = ? AND receiver_id = ? AND text = ?
		  AND timestamp > ? AND timestamp < ?
		ORDER BY timestamp ASC, id ASC`,
		m.SenderID, m.ReceiverID, m.Text, m.Timestamp-windowMs, m.Timestamp+windowMs)
}

func (db *DB) queryMessages(ctx context.Context, q string, args ...any) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
