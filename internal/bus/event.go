package bus

import "time"

// Event kinds published by the daemon. Store change kinds are built with
// StoreChanged so subscribers can filter per table.
const (
	KindStatusChanged   = "status.changed"
	KindMessageIncoming = "message.incoming"
	KindOutboxSent      = "outbox.sent"
	KindOutboxFailed    = "outbox.failed"
	KindSyncCheckpoint  = "sync.checkpoint"

	storePrefix = "store."
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// StoreChanged returns the event kind emitted when rows of table change.
func StoreChanged(table string) string {
	return storePrefix + table + ".changed"
}

// StoreNamespace returns the subscription prefix for changes to table.
func StoreNamespace(table string) string {
	return storePrefix + table + "."
}

// Change is the payload of store change events.
type Change struct {
	Table string
	Op    string
	Key   int64
}
