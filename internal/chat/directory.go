package chat

import (
	"log"
	"sort"
	"sync"
)

// Directory is the canonical, de-duplicated mapping of conversation ID to
// conversation summary. It owns every summary field except the unread
// count, which belongs to the Ledger; Ordered composes the two into the
// display order.
type Directory struct {
	mu     sync.Mutex
	convos map[string]*Conversation
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{convos: make(map[string]*Conversation)}
}

// LoadSnapshot merges a full conversation list from a REST fetch.
// The snapshot wins for every summary field, but a conversation already
// known locally is merged rather than replaced: push events applied while
// the fetch was in flight must not be rolled back, so lastMessageAt only
// moves forward.
func (d *Directory) LoadSnapshot(list []Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range list {
		if c.ID == "" {
			continue
		}
		existing, ok := d.convos[c.ID]
		if !ok {
			cp := c
			d.convos[c.ID] = &cp
			continue
		}
		existing.DisplayName = c.DisplayName
		if !c.LastMessageAt.Before(existing.LastMessageAt) {
			existing.LastMessageText = c.LastMessageText
			existing.LastMessageAt = c.LastMessageAt
			existing.LastMessageSender = c.LastMessageSender
		}
	}
}

// UpsertFromNewConversation inserts a conversation on first sight of a
// conversation.created event. Duplicate delivery is a no-op; the return
// value reports whether a new entry was created.
func (d *Directory) UpsertFromNewConversation(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.convos[ev.ConversationID]; ok {
		return false
	}
	d.convos[ev.ConversationID] = &Conversation{
		ID:            ev.ConversationID,
		DisplayName:   ev.DisplayName,
		LastMessageAt: ev.CreatedAt,
	}
	return true
}

// ApplyMessageEvent updates the owning conversation's last-message summary.
// Unknown conversation IDs are logged and ignored (the snapshot or the
// conversation.created event simply hasn't arrived yet). Stale events —
// createdAt behind the current lastMessageAt — never regress the summary.
func (d *Directory) ApplyMessageEvent(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.convos[ev.ConversationID]
	if !ok {
		log.Printf("chat: directory: message for unknown conversation %s", ev.ConversationID)
		return false
	}
	if ev.CreatedAt.Before(c.LastMessageAt) {
		return false
	}
	c.LastMessageText = ev.Text
	c.LastMessageAt = ev.CreatedAt
	c.LastMessageSender = ev.Sender
	return true
}

// Get returns a copy of one conversation summary.
func (d *Directory) Get(id string) (Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.convos[id]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// Len returns the number of known conversations.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.convos)
}

// Ordered returns the display order: unread count descending, then
// lastMessageAt descending, then ID ascending as a deterministic
// tie-break. It is a pure function of the current state and the supplied
// counts — callable any number of times with no side effects.
func (d *Directory) Ordered(unread map[string]int) []Conversation {
	d.mu.Lock()
	out := make([]Conversation, 0, len(d.convos))
	for _, c := range d.convos {
		cp := *c
		cp.UnreadCount = unread[c.ID]
		out = append(out, cp)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UnreadCount != out[j].UnreadCount {
			return out[i].UnreadCount > out[j].UnreadCount
		}
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
