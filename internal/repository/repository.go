// Package repository holds the reconciliation entry points for jobs, users
// and messages.
//
// The local store is the durable source of truth. The remote store is a
// best-effort mirror consulted only when the gate reports it reachable.
// Remote failures never surface as errors: they degrade to the local path
// and show up as SourceLocalFallback. Errors returned here come from the
// local store or from input validation.
package repository

import (
	"context"
	"time"

	"github.com/matheus3301/jobboard/internal/bus"
	"github.com/matheus3301/jobboard/internal/gate"
	"github.com/matheus3301/jobboard/internal/remote"
	"github.com/matheus3301/jobboard/internal/store"
	"go.uber.org/zap"
)

// Option configures a repository.
type Option func(*base)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithBus attaches the bus that Watch subscriptions listen on.
func WithBus(bb *bus.Bus) Option {
	return func(b *base) { b.bus = bb }
}

// base carries what every repository needs.
type base struct {
	db     *store.DB
	remote remote.Store
	gate   gate.Gate
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

func newBase(db *store.DB, rs remote.Store, g gate.Gate, logger *zap.Logger, opts []Option) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if g == nil {
		g = gate.NewStatic(false)
	}
	b := base{db: db, remote: rs, gate: g, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// online probes the gate. It is called right before every remote attempt.
func (b *base) online(ctx context.Context) bool {
	return b.remote != nil && b.gate.Online(ctx)
}

func (b *base) nowMillis() int64 {
	return b.now().UnixMilli()
}

// remoteFailed logs a swallowed remote error.
func (b *base) remoteFailed(op string, err error, fields ...zap.Field) {
	b.logger.Warn("remote "+op+" failed, using local store", append(fields, zap.Error(err))...)
}

// skipDocument logs a remote document that failed to decode.
func (b *base) skipDocument(collection string, err error) {
	b.logger.Warn("skipping malformed remote document", zap.String("collection", collection), zap.Error(err))
}

// fallback picks the source for a read that consulted the remote store.
func fallback(remoteErr error) Source {
	if remoteErr != nil {
		return SourceLocalFallback
	}
	return SourceRemote
}
