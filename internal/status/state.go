package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/jobboard/internal/bus"
)

// State is the daemon's connectivity state as seen by UI consumers.
type State string

const (
	Booting State = "BOOTING"
	Online  State = "ONLINE"
	Offline State = "OFFLINE"
	Syncing State = "SYNCING"
	Error   State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting: {Online, Offline, Error},
	Online:  {Offline, Syncing, Error},
	Offline: {Online, Error},
	Syncing: {Online, Offline, Error},
	Error:   {Booting},
}

// Machine tracks and enforces daemon state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

// SetReachable moves to Online or Offline to match a probe result. It is a
// no-op when the machine already reflects the result, and leaves Syncing
// alone while the remote stays reachable.
func (m *Machine) SetReachable(reachable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case reachable && (m.current == Online || m.current == Syncing):
		return nil
	case !reachable && m.current == Offline:
		return nil
	case reachable:
		return m.transitionLocked(Online)
	default:
		return m.transitionLocked(Offline)
	}
}

// Swap moves from one state to another only when the machine is in from.
// It reports whether the transition happened.
func (m *Machine) Swap(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != from {
		return false
	}
	return m.transitionLocked(to) == nil
}

func (m *Machine) transitionLocked(to State) error {
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
