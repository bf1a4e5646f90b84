package chat

import (
	"sync"
	"time"
)

// ConnState is the engine's view of the transport lifecycle.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
)

// Default configuration values for the connection tracker.
const (
	DefaultRetryDelay  = 2 * time.Second
	DefaultMaxFailures = 4
)

// Tracker follows transport lifecycle signals and exposes the current
// connection state to every component that gates its actions on
// connectivity. It owns only the decision to ask the adapter to retry
// after a server-initiated disconnect; the retry loop itself belongs to
// the transport. A connection fault is never fatal — after MaxFailures
// consecutive failures the tracker degrades to a manual-retry state.
type Tracker struct {
	reconnector Reconnector
	retryDelay  time.Duration
	maxFailures int

	mu          sync.Mutex
	state       ConnState
	reason      string
	failures    int
	manualRetry bool
	retryTimer  *time.Timer
	subs        map[int]func(ConnState)
	nextSub     int
}

// TrackerOpts holds parameters for creating a Tracker.
type TrackerOpts struct {
	Reconnector Reconnector   // optional; enables scheduled reconnect requests
	RetryDelay  time.Duration // defaults to DefaultRetryDelay
	MaxFailures int           // defaults to DefaultMaxFailures
}

// NewTracker creates a Tracker in the connecting state.
func NewTracker(opts TrackerOpts) *Tracker {
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	maxFailures := opts.MaxFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	return &Tracker{
		reconnector: opts.Reconnector,
		retryDelay:  delay,
		maxFailures: maxFailures,
		state:       StateConnecting,
		subs:        make(map[int]func(ConnState)),
	}
}

// Apply consumes a transport lifecycle signal and updates the state.
// Subscribers are notified on every signal so connectivity-gated
// components re-evaluate on each transition.
func (t *Tracker) Apply(sig ConnSignal) {
	t.mu.Lock()

	switch sig.Kind {
	case SignalEstablished:
		t.state = StateConnected
		t.failures = 0
		t.manualRetry = false
		t.reason = ""
		t.stopRetryTimerLocked()

	case SignalLost:
		t.failures++
		t.reason = sig.Reason
		t.degradeLocked()

	case SignalServerDisconnect:
		t.failures++
		t.reason = sig.Reason
		t.degradeLocked()
		// The server asked us to go away; schedule one bounded-delay
		// request for the transport to try again.
		if !t.manualRetry && t.reconnector != nil {
			t.stopRetryTimerLocked()
			t.retryTimer = time.AfterFunc(t.retryDelay, t.reconnector.RequestReconnect)
		}

	case SignalRetryAttempted:
		if t.state != StateConnected {
			t.state = StateReconnecting
		}
	}

	state := t.state
	subs := make([]func(ConnState), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// degradeLocked moves to reconnecting, or to disconnected with the
// manual-retry flag once the failure budget is exhausted.
func (t *Tracker) degradeLocked() {
	if t.failures >= t.maxFailures {
		t.state = StateDisconnected
		t.manualRetry = true
		return
	}
	t.state = StateReconnecting
}

func (t *Tracker) stopRetryTimerLocked() {
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
}

// State returns the current connection state.
func (t *Tracker) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CanEmit reports whether outbound intents should be relayed right now.
// While disconnected, emission is skipped, never queued.
func (t *Tracker) CanEmit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateConnected
}

// Reason returns the human-readable reason for the last disconnect.
func (t *Tracker) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// ManualRetryAvailable reports whether automatic recovery has given up and
// the UI should offer a manual retry control.
func (t *Tracker) ManualRetryAvailable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.manualRetry
}

// RetryNow resets the failure budget and asks the adapter to reconnect.
// Used by the manual retry control.
func (t *Tracker) RetryNow() {
	t.mu.Lock()
	t.failures = 0
	t.manualRetry = false
	t.state = StateConnecting
	rc := t.reconnector
	t.mu.Unlock()

	if rc != nil {
		rc.RequestReconnect()
	}
}

// Subscription is a handle for a registered state listener.
type Subscription struct {
	cancel func()
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Subscribe registers fn to run on every state transition. The returned
// handle must be released with Unsubscribe when the observer goes away,
// including on error paths.
func (t *Tracker) Subscribe(fn func(ConnState)) *Subscription {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return &Subscription{cancel: func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}}
}

// Stop cancels any scheduled reconnect request.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopRetryTimerLocked()
}
