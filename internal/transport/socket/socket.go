// Package socket implements the chat Adapter over a WebSocket connection
// carrying JSON event frames.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackfroglabs/shopdesk/internal/chat"
)

const (
	// baseBackoff is the initial delay between reconnection attempts.
	baseBackoff = time.Second
	// maxBackoff caps the delay between reconnection attempts.
	maxBackoff = 5 * time.Second
	// maxReconnectAttempts limits automatic retries before the adapter
	// waits for an explicit reconnect request.
	maxReconnectAttempts = 5
	// writeTimeout bounds a single outbound frame write.
	writeTimeout = 10 * time.Second
)

// frame is the wire envelope: an event name plus an opaque payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// conn abstracts the websocket.Conn methods we use, enabling test mocks.
type conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// dialer abstracts connection establishment, enabling test mocks.
type dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (conn, error)
}

// realDialer wraps websocket.Dialer to implement the dialer interface.
type realDialer struct {
	d *websocket.Dialer
}

func (r *realDialer) Dial(ctx context.Context, url string, header http.Header) (conn, error) {
	c, _, err := r.d.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Adapter implements chat.Adapter and chat.Reconnector over a WebSocket.
// It owns the read pump and the bounded-retry reconnect loop; the engine
// only sees decoded events and lifecycle signals.
type Adapter struct {
	url    string
	token  string
	dialer dialer

	mu        sync.Mutex
	conn      conn
	connected bool
	closed    bool

	events    chan chat.Event
	signals   chan chat.ConnSignal
	reconnect chan struct{}

	baseBackoff  time.Duration
	maxBackoff   time.Duration
	maxReconnect int
}

// AdapterOpts holds parameters for creating a socket Adapter.
type AdapterOpts struct {
	URL   string // WebSocket endpoint, e.g. wss://host/socket
	Token string // bearer token sent in the handshake header
	// For testing: inject a mock dialer instead of a real WebSocket dialer.
	Dialer dialer
}

// New creates a socket Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("socket: url is required")
	}

	a := &Adapter{
		url:          opts.URL,
		token:        opts.Token,
		events:       make(chan chat.Event, 100),
		signals:      make(chan chat.ConnSignal, 100),
		reconnect:    make(chan struct{}, 1),
		baseBackoff:  baseBackoff,
		maxBackoff:   maxBackoff,
		maxReconnect: maxReconnectAttempts,
	}

	if opts.Dialer != nil {
		a.dialer = opts.Dialer
	} else {
		a.dialer = &realDialer{d: &websocket.Dialer{HandshakeTimeout: 10 * time.Second}}
	}

	return a, nil
}

// Connect establishes the WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("socket: adapter already closed")
	}
	if a.connected {
		return nil
	}

	c, err := a.dial(ctx)
	if err != nil {
		return fmt.Errorf("socket: connect: %w", err)
	}
	a.conn = c
	a.connected = true
	return nil
}

// dial opens a connection with the auth header attached.
func (a *Adapter) dial(ctx context.Context) (conn, error) {
	header := http.Header{}
	if a.token != "" {
		header.Set("Authorization", "Bearer "+a.token)
	}
	return a.dialer.Dial(ctx, a.url, header)
}

// Listen starts the read pump and returns the decoded event channel.
// Must be called after Connect. The channel is closed when the context is
// cancelled or the adapter is closed.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.Event, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("socket: not connected")
	}
	a.mu.Unlock()

	go a.readLoop(ctx)
	return a.events, nil
}

// Signals returns the connection lifecycle channel.
func (a *Adapter) Signals() <-chan chat.ConnSignal {
	return a.signals
}

// Emit sends an outbound intent as a JSON frame.
func (a *Adapter) Emit(ctx context.Context, intent chat.Intent) error {
	a.mu.Lock()
	c := a.conn
	connected := a.connected
	a.mu.Unlock()

	if !connected || c == nil {
		return fmt.Errorf("socket: not connected")
	}

	f, err := encodeIntent(intent)
	if err != nil {
		return err
	}

	// Writes are serialized through the mutex; gorilla connections do not
	// support concurrent writers.
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("socket: not connected")
	}
	if err := a.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("socket: set write deadline: %w", err)
	}
	if err := a.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("socket: write %s: %w", intent.Kind, err)
	}
	return nil
}

// RequestReconnect implements chat.Reconnector. It wakes a read loop that
// has exhausted its automatic retries.
func (a *Adapter) RequestReconnect() {
	select {
	case a.reconnect <- struct{}{}:
	default:
	}
}

// Close gracefully shuts down the adapter.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}

// readLoop pumps frames off the connection, decodes them, and drives the
// reconnect cycle on read failure.
func (a *Adapter) readLoop(ctx context.Context) {
	defer close(a.events)

	for {
		a.mu.Lock()
		c := a.conn
		closed := a.closed
		a.mu.Unlock()
		if closed || c == nil {
			return
		}

		_, payload, err := c.ReadMessage()
		if err != nil {
			if a.isClosed() || ctx.Err() != nil {
				return
			}
			a.handleReadFailure(ctx, err)
			if a.isClosed() || ctx.Err() != nil {
				return
			}
			continue
		}

		ev, ok := decodeFrame(payload)
		if !ok {
			continue
		}

		select {
		case a.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// handleReadFailure signals the loss, then retries the dial with bounded
// backoff. After the attempt budget is spent it blocks until an explicit
// reconnect request arrives.
func (a *Adapter) handleReadFailure(ctx context.Context, readErr error) {
	kind := chat.SignalLost
	reason := readErr.Error()
	if ce, ok := readErr.(*websocket.CloseError); ok && ce.Code == websocket.CloseNormalClosure {
		kind = chat.SignalServerDisconnect
		reason = ce.Text
	}
	a.signal(chat.ConnSignal{Kind: kind, Reason: reason})

	a.mu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.connected = false
	a.mu.Unlock()

	for {
		for attempt := 0; attempt < a.maxReconnect; attempt++ {
			wait := a.baseBackoff * time.Duration(attempt+1)
			if wait > a.maxBackoff {
				wait = a.maxBackoff
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			a.signal(chat.ConnSignal{Kind: chat.SignalRetryAttempted})

			c, err := a.dial(ctx)
			if err != nil {
				log.Printf("socket: reconnect attempt %d/%d: %v", attempt+1, a.maxReconnect, err)
				// Each failed dial counts against the engine's failure
				// budget, so the manual-retry state is reachable.
				a.signal(chat.ConnSignal{Kind: chat.SignalLost, Reason: err.Error()})
				continue
			}

			a.mu.Lock()
			if a.closed {
				a.mu.Unlock()
				c.Close()
				return
			}
			a.conn = c
			a.connected = true
			a.mu.Unlock()

			a.signal(chat.ConnSignal{Kind: chat.SignalEstablished})
			return
		}

		log.Printf("socket: reconnect attempts exhausted, waiting for manual retry")
		select {
		case <-ctx.Done():
			return
		case <-a.reconnect:
		}
	}
}

// signal delivers a lifecycle signal without blocking the read loop.
func (a *Adapter) signal(sig chat.ConnSignal) {
	sig.At = time.Now()
	select {
	case a.signals <- sig:
	default:
		log.Printf("socket: dropping %s signal (consumer backlog)", sig.Kind)
	}
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// decodeFrame parses a wire frame into an engine event. Malformed frames
// and unknown event names are dropped with a log line, never propagated.
func decodeFrame(payload []byte) (chat.Event, bool) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		log.Printf("socket: malformed frame: %v", err)
		return chat.Event{}, false
	}
	ev, err := chat.ParseEvent(f.Event, f.Data)
	if err != nil {
		log.Printf("socket: drop frame %q: %v", f.Event, err)
		return chat.Event{}, false
	}
	return ev, true
}

// encodeIntent translates an engine intent into its wire frame.
func encodeIntent(intent chat.Intent) (frame, error) {
	type roomPayload struct {
		ConversationID string `json:"conversationId"`
	}
	type sendPayload struct {
		ConversationID string `json:"conversationId"`
		Text           string `json:"text"`
	}
	type typingPayload struct {
		ConversationID string `json:"conversationId"`
		IsTyping       bool   `json:"isTyping"`
	}

	var (
		name string
		data interface{}
	)
	switch intent.Kind {
	case chat.IntentJoin:
		name = "conversation.join"
		data = roomPayload{ConversationID: intent.ConversationID}
	case chat.IntentLeave:
		name = "conversation.leave"
		data = roomPayload{ConversationID: intent.ConversationID}
	case chat.IntentSend:
		name = "message.send"
		data = sendPayload{ConversationID: intent.ConversationID, Text: intent.Text}
	case chat.IntentTyping:
		name = "typing.set"
		data = typingPayload{ConversationID: intent.ConversationID, IsTyping: intent.IsTyping}
	case chat.IntentMarkRead:
		name = "conversation.read"
		data = roomPayload{ConversationID: intent.ConversationID}
	default:
		return frame{}, fmt.Errorf("socket: unknown intent kind %q", intent.Kind)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return frame{}, fmt.Errorf("socket: encode %s: %w", intent.Kind, err)
	}
	return frame{Event: name, Data: raw}, nil
}
