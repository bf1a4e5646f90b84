package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPendingLifetime bounds how long an optimistic message waits for
// its server confirmation before being flagged as failed.
const DefaultPendingLifetime = 10 * time.Second

// Timeline holds per-conversation ordered message logs, merging
// REST-fetched history, live-streamed messages, and local optimistic
// entries. Only the selected conversation's history is hydrated; other
// conversations keep at most their unconfirmed pending entries, bounding
// memory.
type Timeline struct {
	pendingLifetime time.Duration
	now             func() time.Time

	mu     sync.Mutex
	msgs   map[string][]Message // conversationID -> createdAt-ordered log
	loaded map[string]bool      // conversations with hydrated history
}

// TimelineOpts holds parameters for creating a Timeline.
type TimelineOpts struct {
	PendingLifetime time.Duration    // defaults to DefaultPendingLifetime
	Now             func() time.Time // test seam; defaults to time.Now
}

// NewTimeline creates an empty Timeline.
func NewTimeline(opts TimelineOpts) *Timeline {
	lifetime := opts.PendingLifetime
	if lifetime <= 0 {
		lifetime = DefaultPendingLifetime
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Timeline{
		pendingLifetime: lifetime,
		now:             now,
		msgs:            make(map[string][]Message),
		loaded:          make(map[string]bool),
	}
}

// LoadHistory replaces the timeline for a conversation with a REST
// history fetch, invoked once per conversation switch. Pending entries
// for that conversation survive the replacement; every other hydrated
// conversation is evicted down to its pending entries.
func (tl *Timeline) LoadHistory(conversationID string, history []Message) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	merged := make([]Message, 0, len(history)+1)
	for _, m := range history {
		m.Delivery = DeliveryConfirmed
		merged = append(merged, m)
	}
	for _, m := range tl.msgs[conversationID] {
		if m.Delivery != DeliveryConfirmed {
			merged = append(merged, m)
		}
	}
	sortByCreatedAt(merged)
	tl.msgs[conversationID] = merged
	tl.loaded[conversationID] = true

	for id := range tl.loaded {
		if id == conversationID {
			continue
		}
		tl.evictLocked(id)
	}
}

// evictLocked drops a conversation's confirmed messages, keeping pending
// and failed entries so in-flight sends are never silently lost.
func (tl *Timeline) evictLocked(conversationID string) {
	kept := tl.msgs[conversationID][:0]
	for _, m := range tl.msgs[conversationID] {
		if m.Delivery != DeliveryConfirmed {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(tl.msgs, conversationID)
	} else {
		tl.msgs[conversationID] = kept
	}
	delete(tl.loaded, conversationID)
}

// Loaded reports whether a conversation's history is hydrated.
func (tl *Timeline) Loaded(conversationID string) bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.loaded[conversationID]
}

// AppendOptimistic creates a pending message with a locally generated ID
// and the current timestamp, and returns it so the caller can correlate
// the eventual confirmation.
func (tl *Timeline) AppendOptimistic(conversationID, text string) Message {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	msg := Message{
		ID:             "local-" + uuid.NewString(),
		ConversationID: conversationID,
		Sender:         SenderOperator,
		Text:           text,
		CreatedAt:      tl.now(),
		Delivery:       DeliveryPending,
	}
	tl.msgs[conversationID] = append(tl.msgs[conversationID], msg)
	return msg
}

// Reconcile applies a server-confirmed message to a conversation's
// timeline. A pending entry with exactly matching text is replaced in
// place, preserving its position. Duplicate confirmed IDs are a no-op —
// this is what keeps the reducer idempotent under event redelivery.
// Messages for a conversation that is not hydrated are ignored; the
// directory summary is updated by the caller instead. Returns whether
// the timeline changed.
func (tl *Timeline) Reconcile(conversationID string, confirmed Message) bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	confirmed.Delivery = DeliveryConfirmed
	log := tl.msgs[conversationID]

	for _, m := range log {
		if m.ID == confirmed.ID {
			return false
		}
	}

	for i, m := range log {
		if m.Delivery == DeliveryPending && m.Text == confirmed.Text {
			log[i] = confirmed
			return true
		}
	}

	if !tl.loaded[conversationID] {
		return false
	}

	log = append(log, confirmed)
	sortByCreatedAt(log)
	tl.msgs[conversationID] = log
	return true
}

// Messages returns a copy of a conversation's timeline in display order.
func (tl *Timeline) Messages(conversationID string) []Message {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]Message, len(tl.msgs[conversationID]))
	copy(out, tl.msgs[conversationID])
	return out
}

// ExpirePending flags pending messages older than the lifetime window as
// failed and returns them. The engine does not auto-retry; the operator
// re-sends.
func (tl *Timeline) ExpirePending() []Message {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	cutoff := tl.now().Add(-tl.pendingLifetime)
	var expired []Message
	for id, log := range tl.msgs {
		for i, m := range log {
			if m.Delivery == DeliveryPending && m.CreatedAt.Before(cutoff) {
				log[i].Delivery = DeliveryFailed
				expired = append(expired, log[i])
			}
		}
		tl.msgs[id] = log
	}
	return expired
}

// sortByCreatedAt orders messages ascending by createdAt. The sort is
// stable: messages sharing a timestamp keep their arrival order.
func sortByCreatedAt(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
