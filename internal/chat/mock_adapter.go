package chat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAdapter implements Adapter and Reconnector for testing. It records
// emitted intents and allows simulating inbound events and connection
// signals.
type MockAdapter struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	events     chan Event
	signals    chan ConnSignal
	emitted    []Intent
	emitErr    error
	reconnects int
}

// NewMockAdapter creates a MockAdapter with buffered channels.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		events:  make(chan Event, 100),
		signals: make(chan ConnSignal, 100),
	}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound event channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.events, nil
}

// Signals returns the connection signal channel.
func (m *MockAdapter) Signals() <-chan ConnSignal {
	return m.signals
}

// Emit records the outbound intent.
func (m *MockAdapter) Emit(ctx context.Context, intent Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emitErr != nil {
		return m.emitErr
	}
	if !m.connected {
		return fmt.Errorf("mock adapter: not connected")
	}
	m.emitted = append(m.emitted, intent)
	return nil
}

// RequestReconnect implements Reconnector; it counts requests.
func (m *MockAdapter) RequestReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

// Close shuts down the mock adapter and closes its channels.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.events)
	close(m.signals)
	return nil
}

// --- Test helpers ---

// SimulateEvent pushes an event into the inbound channel as if it came
// from the server. Safe to call from any goroutine.
func (m *MockAdapter) SimulateEvent(ev Event) {
	m.events <- ev
}

// SimulateSignal pushes a connection lifecycle signal.
func (m *MockAdapter) SimulateSignal(sig ConnSignal) {
	if sig.At.IsZero() {
		sig.At = time.Now()
	}
	m.signals <- sig
}

// SetEmitError forces Emit to fail with err (nil clears it).
func (m *MockAdapter) SetEmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitErr = err
}

// LastIntent returns the most recently emitted intent.
// Returns the zero value and false if nothing has been emitted.
func (m *MockAdapter) LastIntent() (Intent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.emitted) == 0 {
		return Intent{}, false
	}
	return m.emitted[len(m.emitted)-1], true
}

// AllIntents returns a copy of every emitted intent.
func (m *MockAdapter) AllIntents() []Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Intent, len(m.emitted))
	copy(out, m.emitted)
	return out
}

// IntentsOfKind returns the emitted intents matching kind.
func (m *MockAdapter) IntentsOfKind(kind IntentKind) []Intent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Intent
	for _, in := range m.emitted {
		if in.Kind == kind {
			out = append(out, in)
		}
	}
	return out
}

// ReconnectRequests returns how many reconnect requests were received.
func (m *MockAdapter) ReconnectRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}
