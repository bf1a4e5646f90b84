package chat

import "sync"

// Ledger is the single authority for unread counts, per conversation and
// in aggregate. It reconciles three independent unread signals: full
// snapshots (REST fetch or unread.snapshot push), incremental visitor
// message events, and local mark-read actions. Local mark-read is
// immediate and never rolled back; a later authoritative snapshot is the
// correction path when the relay to the server was lost mid-flight.
type Ledger struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{counts: make(map[string]int)}
}

// Activate zeroes a conversation's count the instant it becomes the
// active selection. Local and optimistic — the caller emits the markRead
// intent separately and does not wait for acknowledgment.
func (l *Ledger) Activate(conversationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[conversationID] = 0
}

// OnVisitorMessage increments a conversation's count by exactly one,
// unless it is the active conversation. Returns the resulting count.
func (l *Ledger) OnVisitorMessage(conversationID string, isActive bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !isActive {
		l.counts[conversationID]++
	}
	return l.counts[conversationID]
}

// Seed records an initial count for a newly created conversation if none
// is tracked yet.
func (l *Ledger) Seed(conversationID string, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.counts[conversationID]; !ok {
		l.counts[conversationID] = count
	}
}

// ApplySnapshot bulk-overwrites counts from an authoritative unread
// snapshot. The snapshot wins over any local increments accumulated
// before it was applied.
func (l *Ledger) ApplySnapshot(counts map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, n := range counts {
		if n < 0 {
			n = 0
		}
		l.counts[id] = n
	}
}

// MergeCounts merges counts from a conversation-list snapshot. Unlike
// ApplySnapshot, local increments accumulated after the snapshot's as-of
// time must survive, so max(local, snapshot) wins until the next
// authoritative unread snapshot arrives.
func (l *Ledger) MergeCounts(counts map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, n := range counts {
		if n > l.counts[id] {
			l.counts[id] = n
		} else if _, ok := l.counts[id]; !ok {
			l.counts[id] = 0
		}
	}
}

// Count returns one conversation's unread count.
func (l *Ledger) Count(conversationID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[conversationID]
}

// Total returns the sum across all conversations, used for the page-level
// badge. Recomputed in O(number of conversations).
func (l *Ledger) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, n := range l.counts {
		total += n
	}
	return total
}

// Counts returns a copy of all per-conversation counts.
func (l *Ledger) Counts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.counts))
	for id, n := range l.counts {
		out[id] = n
	}
	return out
}
