package chat

import (
	"sync"
	"testing"
	"time"
)

// recordingSounder counts Play calls.
type recordingSounder struct {
	mu    sync.Mutex
	plays int
}

func (s *recordingSounder) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
}

func (s *recordingSounder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// recordingNotifier captures raised notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (n *recordingNotifier) Notify(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	n.bodies = append(n.bodies, body)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func newTestDispatcher(clock *fixedClock) (*Dispatcher, *recordingSounder, *recordingNotifier) {
	s := &recordingSounder{}
	n := &recordingNotifier{}
	d := NewDispatcher(DispatcherOpts{Sounder: s, Notifier: n, Now: clock.now})
	d.UnlockSound()
	d.SetNotificationsGranted(true)
	return d, s, n
}

func visitorMsg(id, conv, text string) Message {
	return Message{ID: id, ConversationID: conv, Sender: SenderVisitor, Text: text, Delivery: DeliveryConfirmed}
}

// ---------------------------------------------------------------------------
// Decision table
// ---------------------------------------------------------------------------

func TestDispatcher_VisitorMessageActiveConversation(t *testing.T) {
	d, s, n := newTestDispatcher(newClock())
	dec := d.OnIncomingMessage(visitorMsg("m1", "c1", "hi"), true)
	if dec.Sound || dec.Notified {
		t.Errorf("decision = %+v, want silence for active conversation", dec)
	}
	if s.count() != 0 || n.count() != 0 {
		t.Error("side effects fired for active conversation")
	}
}

func TestDispatcher_VisitorMessageInactiveConversation(t *testing.T) {
	d, s, n := newTestDispatcher(newClock())
	dec := d.OnIncomingMessage(visitorMsg("m1", "c1", "hi"), false)
	if !dec.Sound || !dec.Notified {
		t.Errorf("decision = %+v, want sound and notification", dec)
	}
	if s.count() != 1 || n.count() != 1 {
		t.Errorf("plays = %d, notifications = %d, want 1/1", s.count(), n.count())
	}
}

func TestDispatcher_OperatorEchoStaysSilent(t *testing.T) {
	d, s, n := newTestDispatcher(newClock())
	msg := visitorMsg("m1", "c1", "hi")
	msg.Sender = SenderOperator
	dec := d.OnIncomingMessage(msg, false)
	if dec.Sound || dec.Notified || s.count() != 0 || n.count() != 0 {
		t.Error("operator echo produced side effects")
	}
}

func TestDispatcher_NewConversation(t *testing.T) {
	d, s, n := newTestDispatcher(newClock())
	dec := d.OnNewConversation(Conversation{ID: "c1", DisplayName: "Visitor #9"})
	if !dec.Sound || !dec.Notified {
		t.Errorf("decision = %+v, want both", dec)
	}
	if s.count() != 1 || n.count() != 1 {
		t.Error("side effects missing for new conversation")
	}
	n.mu.Lock()
	body := n.bodies[0]
	n.mu.Unlock()
	if body != "Visitor #9 started a chat" {
		t.Errorf("body = %q", body)
	}
}

// ---------------------------------------------------------------------------
// Capability gates
// ---------------------------------------------------------------------------

func TestDispatcher_LockedSoundSkipsAudioOnly(t *testing.T) {
	s := &recordingSounder{}
	n := &recordingNotifier{}
	d := NewDispatcher(DispatcherOpts{Sounder: s, Notifier: n})
	d.SetNotificationsGranted(true)
	// Sound never unlocked.

	dec := d.OnIncomingMessage(visitorMsg("m1", "c1", "hi"), false)
	if dec.Sound {
		t.Error("sound played while locked")
	}
	if !dec.Notified {
		t.Error("notification suppressed by the sound lock")
	}
	if s.count() != 0 || n.count() != 1 {
		t.Errorf("plays = %d, notifications = %d, want 0/1", s.count(), n.count())
	}
}

func TestDispatcher_PermissionDeniedSkipsNotification(t *testing.T) {
	s := &recordingSounder{}
	n := &recordingNotifier{}
	d := NewDispatcher(DispatcherOpts{Sounder: s, Notifier: n})
	d.UnlockSound()

	dec := d.OnIncomingMessage(visitorMsg("m1", "c1", "hi"), false)
	if !dec.Sound || dec.Notified {
		t.Errorf("decision = %+v, want sound only", dec)
	}
}

// ---------------------------------------------------------------------------
// De-duplication
// ---------------------------------------------------------------------------

func TestDispatcher_DuplicateWithinWindow(t *testing.T) {
	clock := newClock()
	d := NewDispatcher(DispatcherOpts{Now: clock.now})

	if d.Duplicate("m1") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !d.Duplicate("m1") {
		t.Fatal("repeat within window not reported")
	}
}

func TestDispatcher_DuplicateExpiresAfterWindow(t *testing.T) {
	clock := newClock()
	d := NewDispatcher(DispatcherOpts{DedupeWindow: time.Minute, Now: clock.now})

	d.Duplicate("m1")
	clock.advance(2 * time.Minute)
	if d.Duplicate("m1") {
		t.Error("expired entry still reported as duplicate")
	}
}

func TestDispatcher_DuplicateBoundsSetSize(t *testing.T) {
	clock := newClock()
	d := NewDispatcher(DispatcherOpts{DedupeWindow: time.Minute, Now: clock.now})

	for i := 0; i < 100; i++ {
		d.Duplicate(string(rune('a' + i%26)))
		clock.advance(2 * time.Second)
	}
	d.mu.Lock()
	size := len(d.seen)
	d.mu.Unlock()
	if size > 31 {
		t.Errorf("seen set = %d entries, pruning not bounding it", size)
	}
}

func TestDispatcher_EmptyIDNeverDuplicate(t *testing.T) {
	d := NewDispatcher(DispatcherOpts{})
	if d.Duplicate("") || d.Duplicate("") {
		t.Error("empty id treated as duplicate")
	}
}
