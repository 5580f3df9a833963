package store

import (
	"context"
	"time"
)

// QueueNotification adds a notification request to the outbox. Re-queueing
// an existing client id is a no-op.
func (db *DB) QueueNotification(ctx context.Context, n Notification) error {
	now := time.Now().UnixMilli()
	res, err := db.ExecContext(ctx, `
		INSERT INTO notification_outbox (client_id, receiver_id, sender_id, sender_name, text, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?)
		ON CONFLICT(client_id) DO NOTHING`,
		n.ClientID, n.ReceiverID, n.SenderID, n.SenderName, n.Text, now, now)
	if err != nil {
		return err
	}
	db.changed("notification_outbox", "queue", 0, res)
	return nil
}

// MarkNotificationSending updates an outbox entry to 'sending' status.
func (db *DB) MarkNotificationSending(ctx context.Context, clientID string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE notification_outbox SET status = 'sending', attempts = attempts + 1, updated_at = ?
		WHERE client_id = ?`, now, clientID)
	return err
}

// MarkNotificationSent records the remote document created for the entry.
func (db *DB) MarkNotificationSent(ctx context.Context, clientID, remoteID string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE notification_outbox SET status = 'sent', remote_id = ?, error_message = '', updated_at = ?
		WHERE client_id = ?`, remoteID, now, clientID)
	return err
}

// MarkNotificationFailed puts the entry back in the queue, or marks it
// 'failed' once it has been attempted maxAttempts times.
func (db *DB) MarkNotificationFailed(ctx context.Context, clientID, errMsg string, maxAttempts int) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE notification_outbox
		SET status = CASE WHEN attempts >= ? THEN 'failed' ELSE 'queued' END,
		    error_message = ?, updated_at = ?
		WHERE client_id = ?`, maxAttempts, errMsg, now, clientID)
	return err
}

// RequeueSending returns entries stuck in 'sending' to the queue. The
// dispatcher calls it on start, after an unclean shutdown.
func (db *DB) RequeueSending(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE notification_outbox SET status = 'queued' WHERE status = 'sending'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingNotifications returns queued outbox entries, oldest first.
func (db *DB) PendingNotifications(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.queryNotifications(ctx, `
		SELECT id, client_id, receiver_id, sender_id, sender_name, text, status, attempts, error_message, remote_id, created_at
		FROM notification_outbox WHERE status = 'queued' ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
}

// GetNotification returns the outbox entry for clientID, or nil.
func (db *DB) GetNotification(ctx context.Context, clientID string) (*Notification, error) {
	ns, err := db.queryNotifications(ctx, `
		SELECT id, client_id, receiver_id, sender_id, sender_name, text, status, attempts, error_message, remote_id, created_at
		FROM notification_outbox WHERE client_id = ?`, clientID)
	if err != nil || len(ns) == 0 {
		return nil, err
	}
	return &ns[0], nil
}

func (db *DB) queryNotifications(ctx context.Context, q string, args ...any) ([]Notification, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ClientID, &n.ReceiverID, &n.SenderID, &n.SenderName, &n.Text,
			&n.Status, &n.Attempts, &n.ErrorMessage, &n.RemoteID, &n.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, n)
	}
	return entries, rows.Err()
}
