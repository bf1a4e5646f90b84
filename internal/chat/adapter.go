// Package chat implements the live-chat desk synchronization engine: it
// reduces a possibly-reordered, possibly-interrupted stream of push events
// plus REST snapshots into one consistent view of conversations, message
// timelines, and unread counts, while the operator issues optimistic local
// actions that are reconciled against server-confirmed state.
package chat

import (
	"context"
	"time"
)

// Adapter is the interface the push transport must satisfy. The adapter
// owns all wire mechanics (framing, retry loops, backoff); the engine only
// consumes decoded events and connection signals, and emits intents.
type Adapter interface {
	// Connect establishes the transport connection.
	Connect(ctx context.Context) error

	// Listen returns a channel of decoded push events. The channel is
	// closed when the context is cancelled or the adapter is closed.
	// Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan Event, error)

	// Signals returns a channel of connection lifecycle signals.
	Signals() <-chan ConnSignal

	// Emit sends an outbound intent to the server.
	Emit(ctx context.Context, intent Intent) error

	// Close gracefully shuts down the transport.
	Close() error
}

// Reconnector is an optional interface adapters implement to accept
// reconnection requests. The connection tracker decides when to ask; the
// adapter owns the actual retry.
type Reconnector interface {
	RequestReconnect()
}

// SignalKind identifies a connection lifecycle signal from the transport.
type SignalKind string

const (
	SignalEstablished      SignalKind = "established"
	SignalLost             SignalKind = "lost"
	SignalServerDisconnect SignalKind = "server-disconnect"
	SignalRetryAttempted   SignalKind = "retry-attempted"
)

// ConnSignal is a connection lifecycle notification. Reason carries a
// human-readable explanation for server-initiated disconnects.
type ConnSignal struct {
	Kind   SignalKind
	Reason string
	At     time.Time
}

// IntentKind identifies an outbound operator intent.
type IntentKind string

const (
	IntentJoin     IntentKind = "join"
	IntentLeave    IntentKind = "leave"
	IntentSend     IntentKind = "send"
	IntentTyping   IntentKind = "typing"
	IntentMarkRead IntentKind = "markRead"
)

// Intent is an outbound action relayed to the server over the transport.
// Text is set for send intents, IsTyping for typing intents.
type Intent struct {
	Kind           IntentKind
	ConversationID string
	Text           string
	IsTyping       bool
}
