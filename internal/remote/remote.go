// Package remote is the best-effort document mirror: schemaless collections
// of JSON documents addressed by opaque string ids. Backends are chosen by
// DSN scheme in Open.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get and Update when the document does not exist.
	ErrNotFound = errors.New("remote: document not found")
	// ErrClosed is returned by every call on a closed store.
	ErrClosed = errors.New("remote: store closed")
)

// Collections used by the repositories.
const (
	Jobs                 = "jobs"
	Users                = "users"
	Messages             = "messages"
	PendingNotifications = "pending_notifications"
)

// Document is one stored document. Numbers in Data decode as float64.
type Document struct {
	ID   string
	Data map[string]any
}

// Store is a remote document store.
type Store interface {
	// Add stores data under a newly generated id and returns the id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Set replaces the document stored under id, creating it if needed.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Close() error
}

// normalize round-trips data through JSON so every backend hands back the
// same shapes regardless of what the caller passed in.
func normalize(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
