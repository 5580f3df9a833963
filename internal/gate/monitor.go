package gate

import (
	"context"
	"time"

	"github.com/matheus3301/jobboard/internal/status"
	"go.uber.org/zap"
)

// DefaultProbeInterval is how often the Monitor re-probes the remote.
const DefaultProbeInterval = 5 * time.Second

// Monitor periodically probes a gate and mirrors the result into the status
// machine. Request paths still probe on their own; the Monitor only feeds
// status consumers.
type Monitor struct {
	gate     Gate
	machine  *status.Machine
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMonitor creates a monitor. A non-positive interval uses DefaultProbeInterval.
func NewMonitor(g Gate, m *status.Machine, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		gate:     g,
		machine:  m,
		interval: interval,
		logger:   logger,
	}
}

// Start runs one probe synchronously and then keeps probing in the background.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.Probe(ctx)
	go m.loop(ctx)
}

// Stop stops the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// Probe checks the gate once and returns the answer.
func (m *Monitor) Probe(ctx context.Context) bool {
	prev := m.machine.Current()
	online := m.gate.Online(ctx)
	if err := m.machine.SetReachable(online); err != nil {
		m.logger.Warn("status transition rejected", zap.Error(err), zap.Bool("online", online))
		return online
	}
	if cur := m.machine.Current(); cur != prev {
		m.logger.Info("remote connectivity changed",
			zap.String("from", string(prev)),
			zap.String("to", string(cur)),
		)
	}
	return online
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
