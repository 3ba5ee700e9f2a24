// Package status tracks the state of the transport connection.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/metrics"
)

// State represents a connection state.
type State string

const (
	Idle         State = "IDLE"
	Connecting   State = "CONNECTING"
	Online       State = "ONLINE"
	Reconnecting State = "RECONNECTING"
	Closed       State = "CLOSED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:         {Connecting, Closed},
	Connecting:   {Online, Reconnecting, Closed},
	Online:       {Reconnecting, Closed},
	Reconnecting: {Connecting, Closed},
	Closed:       {Idle},
}

// Machine tracks and enforces connection state transitions. Entering Online
// publishes conn.online; leaving it publishes conn.lost.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
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

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to

	if to == Online {
		metrics.Connected.Set(1)
	} else if from == Online {
		metrics.Connected.Set(0)
	}

	if m.bus == nil {
		return nil
	}
	now := time.Now()
	m.bus.Publish(bus.Event{
		Kind:      bus.KindConnStatusChanged,
		Timestamp: now,
		Payload:   StatusChange{From: from, To: to},
	})
	switch {
	case to == Online:
		m.bus.Publish(bus.Event{Kind: bus.KindConnOnline, Timestamp: now})
	case from == Online:
		m.bus.Publish(bus.Event{Kind: bus.KindConnLost, Timestamp: now})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
