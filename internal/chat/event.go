package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderOperator Sender = "operator"
	SenderVisitor  Sender = "visitor"
)

// DeliveryState tracks a message's journey from optimistic local entry to
// server-confirmed record.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// Conversation is one visitor's chat thread with the operator, as shown in
// the conversation list. UnreadCount is authoritative only in views built
// by the Desk; the Ledger owns the live counts.
type Conversation struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"displayName"`
	LastMessageText   string    `json:"lastMessageText,omitempty"`
	LastMessageAt     time.Time `json:"lastMessageAt"`
	LastMessageSender Sender    `json:"lastMessageSender,omitempty"`
	UnreadCount       int       `json:"unreadCount"`
}

// Message is a single chat message. Pending messages carry a locally
// generated ID until the matching server confirmation arrives.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Sender         Sender        `json:"sender"`
	Text           string        `json:"text"`
	CreatedAt      time.Time     `json:"createdAt"`
	Delivery       DeliveryState `json:"delivery"`
}

// EventKind identifies the kind of push event received from the server.
type EventKind string

const (
	EventConversationCreated EventKind = "conversation.created"
	EventMessageReceived     EventKind = "message.received"
	EventTypingChanged       EventKind = "typing.changed"
	EventUnreadSnapshot      EventKind = "unread.snapshot"
	EventReadAcknowledged    EventKind = "read.acknowledged"
)

// Event is a decoded push event. Kind selects which fields are populated;
// HandleEvent in the Desk is the single exhaustive matcher.
type Event struct {
	Kind EventKind

	// conversation.created and message.received
	ID             string // event/message identifier, used for de-duplication
	ConversationID string
	CreatedAt      time.Time

	// conversation.created
	DisplayName string

	// message.received
	Sender Sender
	Text   string

	// typing.changed
	IsTyping bool

	// unread.snapshot
	Counts map[string]int
}

// ParseEvent decodes a raw push-event payload into an Event. Unknown event
// names return an error; callers log and drop them rather than propagate
// (a malformed event must never halt the stream).
func ParseEvent(name string, data []byte) (Event, error) {
	switch EventKind(name) {
	case EventConversationCreated:
		var p struct {
			ID          string    `json:"id"`
			DisplayName string    `json:"displayName"`
			CreatedAt   time.Time `json:"createdAt"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("chat: parse %s: %w", name, err)
		}
		if p.ID == "" {
			return Event{}, fmt.Errorf("chat: parse %s: missing id", name)
		}
		return Event{
			Kind:           EventConversationCreated,
			ID:             p.ID,
			ConversationID: p.ID,
			DisplayName:    p.DisplayName,
			CreatedAt:      p.CreatedAt,
		}, nil

	case EventMessageReceived:
		var p struct {
			ID             string    `json:"id"`
			ConversationID string    `json:"conversationId"`
			Sender         Sender    `json:"sender"`
			Text           string    `json:"text"`
			CreatedAt      time.Time `json:"createdAt"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("chat: parse %s: %w", name, err)
		}
		if p.ID == "" || p.ConversationID == "" {
			return Event{}, fmt.Errorf("chat: parse %s: missing id or conversationId", name)
		}
		return Event{
			Kind:           EventMessageReceived,
			ID:             p.ID,
			ConversationID: p.ConversationID,
			Sender:         p.Sender,
			Text:           p.Text,
			CreatedAt:      p.CreatedAt,
		}, nil

	case EventTypingChanged:
		var p struct {
			ConversationID string `json:"conversationId"`
			Sender         Sender `json:"sender"`
			IsTyping       bool   `json:"isTyping"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("chat: parse %s: %w", name, err)
		}
		return Event{
			Kind:           EventTypingChanged,
			ConversationID: p.ConversationID,
			Sender:         p.Sender,
			IsTyping:       p.IsTyping,
		}, nil

	case EventUnreadSnapshot:
		var counts map[string]int
		if err := json.Unmarshal(data, &counts); err != nil {
			return Event{}, fmt.Errorf("chat: parse %s: %w", name, err)
		}
		return Event{Kind: EventUnreadSnapshot, Counts: counts}, nil

	case EventReadAcknowledged:
		var p struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("chat: parse %s: %w", name, err)
		}
		return Event{Kind: EventReadAcknowledged, ConversationID: p.ConversationID}, nil
	}

	return Event{}, fmt.Errorf("chat: unknown event type %q", name)
}
