// Package outbox delivers queued push-notification requests to the remote
// store, where the notifier service picks them up.
package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is how often the outbox is drained.
	DefaultInterval = 500 * time.Millisecond
	// MaxAttempts is how many deliveries are tried before an entry fails.
	MaxAttempts = 3
)

// Document renders a notification in the shape the notifier reads from the
// pending_notifications collection.
func Document(n store.Notification) map[string]any {
	return map[string]any{
		"receiverId":  strconv.FormatInt(n.ReceiverID, 10),
		"senderId":    strconv.FormatInt(n.SenderID, 10),
		"senderName":  n.SenderName,
		"messageText": n.Text,
		"sent":        false,
		"createdAt":   n.CreatedAt,
	}
}

// Dispatcher drains the notification outbox while the gate is open.
type Dispatcher struct {
	db       *store.DB
	remote   remote.Store
	gate     gate.Gate
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDispatcher creates a dispatcher. A non-positive interval uses
// DefaultInterval.
func NewDispatcher(db *store.DB, rs remote.Store, g gate.Gate, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Dispatcher{db: db, remote: rs, gate: g, bus: b, logger: logger, interval: interval}
}

// Start requeues entries left in flight by a previous run, then drains the
// outbox on every tick.
func (d *Dispatcher) Start(ctx context.Context) {
	if n, err := d.db.RequeueSending(ctx); err != nil {
		d.logger.Error("failed to requeue outbox", zap.Error(err))
	} else if n > 0 {
		d.logger.Info("requeued interrupted notifications", zap.Int64("count", n))
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.loop(ctx)
}

// Stop stops the loop and waits for an in-flight drain to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Flush(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Flush delivers every queued entry and returns how many were sent. It does
// nothing while the gate is closed.
func (d *Dispatcher) Flush(ctx context.Context) int {
	if d.remote == nil || d.gate == nil || !d.gate.Online(ctx) {
		return 0
	}
	pending, err := d.db.PendingNotifications(ctx, 0)
	if err != nil {
		d.logger.Error("failed to read outbox", zap.Error(err))
		return 0
	}

	sent := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		if d.deliver(ctx, n) {
			sent++
		}
	}
	return sent
}

func (d *Dispatcher) deliver(ctx context.Context, n store.Notification) bool {
	if err := d.db.MarkNotificationSending(ctx, n.ClientID); err != nil {
		d.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_id", n.ClientID))
		return false
	}

	id, err := d.remote.Add(ctx, remote.PendingNotifications, Document(n))
	if err != nil {
		d.logger.Warn("notification delivery failed",
			zap.Error(err), zap.String("client_id", n.ClientID), zap.Int("attempt", n.Attempts+1))
		if merr := d.db.MarkNotificationFailed(ctx, n.ClientID, err.Error(), MaxAttempts); merr != nil {
			d.logger.Error("failed to mark failed", zap.Error(merr), zap.String("client_id", n.ClientID))
		}
		d.bus.Emit(bus.KindOutboxFailed, map[string]string{
			"client_id": n.ClientID,
			"error":     err.Error(),
		})
		return false
	}

	if err := d.db.MarkNotificationSent(ctx, n.ClientID, id); err != nil {
		d.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_id", n.ClientID))
	}
	d.logger.Debug("notification delivered", zap.String("client_id", n.ClientID), zap.String("remote_id", id))
	d.bus.Emit(bus.KindOutboxSent, map[string]string{
		"client_id": n.ClientID,
		"remote_id": id,
	})
	return true
}
