// Package sync runs the background work that keeps the local store in step
// with the remote store: pulling incoming messages and remembering where
// each pull stopped.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/model"
	"github.com/matheus3301/jobboard/internal/repository"
	"github.com/matheus3301/jobboard/internal/status"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is how often incoming messages are pulled.
	DefaultPollInterval = 15 * time.Second
	// InitialLookback bounds the first pull of a user with no checkpoint.
	InitialLookback = time.Hour
)

// Inbox pulls messages addressed to a user.
type Inbox interface {
	Incoming(ctx context.Context, receiver, since int64) (repository.ListResult[model.Message], error)
}

// IncomingMessage is the payload of bus.KindMessageIncoming.
type IncomingMessage struct {
	MessageID  int64
	SenderID   int64
	SenderName string
	Text       string
	Timestamp  int64
}

// Poller periodically pulls messages for the signed-in user and announces
// the new ones on the bus.
type Poller struct {
	inbox      Inbox
	names      repository.NameResolver
	session    *Session
	reconciler *Reconciler
	machine    *status.Machine
	bus        *bus.Bus
	logger     *zap.Logger
	interval   time.Duration
	now        func() time.Time

	mu     stdsync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// PollerConfig wires a Poller. Machine, Bus and Names are optional.
type PollerConfig struct {
	Inbox      Inbox
	Names      repository.NameResolver
	Session    *Session
	Reconciler *Reconciler
	Machine    *status.Machine
	Bus        *bus.Bus
	Logger     *zap.Logger
	Interval   time.Duration
	Now        func() time.Time
}

// NewPoller creates a poller.
func NewPoller(cfg PollerConfig) *Poller {
	p := &Poller{
		inbox:      cfg.Inbox,
		names:      cfg.Names,
		session:    cfg.Session,
		reconciler: cfg.Reconciler,
		machine:    cfg.Machine,
		bus:        cfg.Bus,
		logger:     cfg.Logger,
		interval:   cfg.Interval,
		now:        cfg.Now,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

func checkpointKey(userID int64) string {
	return fmt.Sprintf("incoming.%d", userID)
}

// Start runs Poll every interval until Stop or ctx ends.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop stops the loop and waits for an in-flight poll.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("message poll failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Poll pulls once and returns how many new messages arrived. It does
// nothing without a signed-in user. The checkpoint only advances after a
// pull the remote store answered.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	st, err := p.session.Current(ctx)
	if err != nil {
		return 0, err
	}
	if !st.SignedIn() {
		return 0, nil
	}

	key := checkpointKey(st.UserID)
	since, err := p.reconciler.Checkpoint(ctx, key, p.now().Add(-InitialLookback).UnixMilli())
	if err != nil {
		return 0, err
	}

	syncing := p.machine != nil && p.machine.Swap(status.Online, status.Syncing)
	if syncing {
		defer p.machine.Swap(status.Syncing, status.Online)
	}

	res, err := p.inbox.Incoming(ctx, st.UserID, since)
	if err != nil {
		return 0, err
	}
	if res.Source != repository.SourceRemote {
		return 0, nil
	}

	next := since
	for _, m := range res.Items {
		p.announce(ctx, m)
		next = max(next, m.Timestamp)
	}
	if next != since {
		if err := p.reconciler.SetCheckpoint(ctx, key, next); err != nil {
			return len(res.Items), err
		}
	}
	if len(res.Items) > 0 {
		p.logger.Info("incoming messages", zap.Int64("user", st.UserID), zap.Int("count", len(res.Items)))
		p.bus.Emit(bus.KindSyncCheckpoint, map[string]int64{"user_id": st.UserID, "checkpoint": next})
	}
	return len(res.Items), nil
}

func (p *Poller) announce(ctx context.Context, m model.Message) {
	var name string
	if p.names != nil {
		n, err := p.names.DisplayName(ctx, m.SenderID)
		if err != nil {
			p.logger.Warn("sender name lookup failed", zap.Int64("sender", m.SenderID), zap.Error(err))
		}
		name = n
	}
	p.bus.Emit(bus.KindMessageIncoming, IncomingMessage{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		SenderName: name,
		Text:       m.Text,
		Timestamp:  m.Timestamp,
	})
}
