package chat

import (
	"sync"
	"testing"
	"time"
)

// countingReconnector records reconnect requests.
type countingReconnector struct {
	mu    sync.Mutex
	count int
}

func (r *countingReconnector) RequestReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *countingReconnector) requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestNewTracker_Defaults(t *testing.T) {
	tr := NewTracker(TrackerOpts{})
	if tr.State() != StateConnecting {
		t.Errorf("initial state = %q, want connecting", tr.State())
	}
	if tr.retryDelay != DefaultRetryDelay {
		t.Errorf("retryDelay = %v, want %v", tr.retryDelay, DefaultRetryDelay)
	}
	if tr.maxFailures != DefaultMaxFailures {
		t.Errorf("maxFailures = %d, want %d", tr.maxFailures, DefaultMaxFailures)
	}
}

func TestTracker_EstablishedConnects(t *testing.T) {
	tr := NewTracker(TrackerOpts{})
	tr.Apply(ConnSignal{Kind: SignalEstablished})
	if tr.State() != StateConnected {
		t.Errorf("state = %q, want connected", tr.State())
	}
	if !tr.CanEmit() {
		t.Error("CanEmit = false after established")
	}
}

func TestTracker_LostReconnecting(t *testing.T) {
	tr := NewTracker(TrackerOpts{})
	tr.Apply(ConnSignal{Kind: SignalEstablished})
	tr.Apply(ConnSignal{Kind: SignalLost, Reason: "read timeout"})

	if tr.State() != StateReconnecting {
		t.Errorf("state = %q, want reconnecting", tr.State())
	}
	if tr.CanEmit() {
		t.Error("CanEmit = true while reconnecting")
	}
	if tr.Reason() != "read timeout" {
		t.Errorf("Reason = %q", tr.Reason())
	}
}

func TestTracker_ManualRetryAfterFailureBudget(t *testing.T) {
	tr := NewTracker(TrackerOpts{MaxFailures: 4})
	for i := 0; i < 4; i++ {
		tr.Apply(ConnSignal{Kind: SignalLost})
	}
	if !tr.ManualRetryAvailable() {
		t.Fatal("ManualRetryAvailable = false after 4 failures")
	}
	if tr.State() != StateDisconnected {
		t.Errorf("state = %q, want disconnected", tr.State())
	}

	// Re-establishment resets the budget and clears the flag.
	tr.Apply(ConnSignal{Kind: SignalEstablished})
	if tr.ManualRetryAvailable() {
		t.Error("ManualRetryAvailable = true after established")
	}
}

func TestTracker_ServerDisconnectSchedulesReconnect(t *testing.T) {
	rc := &countingReconnector{}
	tr := NewTracker(TrackerOpts{Reconnector: rc, RetryDelay: 10 * time.Millisecond})
	tr.Apply(ConnSignal{Kind: SignalEstablished})
	tr.Apply(ConnSignal{Kind: SignalServerDisconnect, Reason: "session replaced"})

	if tr.State() != StateReconnecting {
		t.Errorf("state = %q, want reconnecting", tr.State())
	}

	time.Sleep(50 * time.Millisecond)
	if rc.requests() != 1 {
		t.Errorf("reconnect requests = %d, want 1", rc.requests())
	}
}

func TestTracker_RetryNow(t *testing.T) {
	rc := &countingReconnector{}
	tr := NewTracker(TrackerOpts{Reconnector: rc, MaxFailures: 1})
	tr.Apply(ConnSignal{Kind: SignalLost})
	if !tr.ManualRetryAvailable() {
		t.Fatal("expected manual retry state")
	}

	tr.RetryNow()
	if tr.ManualRetryAvailable() {
		t.Error("ManualRetryAvailable = true after RetryNow")
	}
	if tr.State() != StateConnecting {
		t.Errorf("state = %q, want connecting", tr.State())
	}
	if rc.requests() != 1 {
		t.Errorf("reconnect requests = %d, want 1", rc.requests())
	}
}

func TestTracker_RetryAttemptedKeepsReconnecting(t *testing.T) {
	tr := NewTracker(TrackerOpts{})
	tr.Apply(ConnSignal{Kind: SignalLost})
	tr.Apply(ConnSignal{Kind: SignalRetryAttempted})
	if tr.State() != StateReconnecting {
		t.Errorf("state = %q, want reconnecting", tr.State())
	}
}

func TestTracker_SubscribeUnsubscribe(t *testing.T) {
	tr := NewTracker(TrackerOpts{})

	var mu sync.Mutex
	var seen []ConnState
	sub := tr.Subscribe(func(s ConnState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	tr.Apply(ConnSignal{Kind: SignalEstablished})
	tr.Apply(ConnSignal{Kind: SignalLost})

	mu.Lock()
	n := len(seen)
	mu.Unlock()
	if n != 2 {
		t.Fatalf("notifications = %d, want 2", n)
	}

	sub.Unsubscribe()
	sub.Unsubscribe() // second call is a no-op
	tr.Apply(ConnSignal{Kind: SignalEstablished})

	mu.Lock()
	n = len(seen)
	mu.Unlock()
	if n != 2 {
		t.Errorf("notifications after unsubscribe = %d, want 2", n)
	}
}
