package chat

import (
	"sync"
	"time"
)

// Default typing timer values. Visitor indicators expire if no refreshing
// event arrives; local operator typing goes quiet after a short idle gap.
const (
	DefaultTypingExpiry = 3 * time.Second
	DefaultTypingIdle   = time.Second
)

// TypingState tracks the ephemeral per-conversation typing indicator in
// both directions. Visitor typing is set by push events and cleared by an
// expiry timer that resets (not stacks) on every refreshing event. Local
// operator keystrokes emit a typing(true) intent once per burst and a
// typing(false) intent after the idle period or immediately on send.
type TypingState struct {
	expiry time.Duration
	idle   time.Duration
	emit   func(Intent)
	onSet  func(conversationID string, typing bool)

	mu          sync.Mutex
	visitor     map[string]bool
	expiryTimer map[string]*time.Timer
	localActive map[string]bool
	idleTimer   map[string]*time.Timer
	stopped     bool
}

// TypingStateOpts holds parameters for creating a TypingState.
type TypingStateOpts struct {
	Expiry time.Duration // visitor indicator expiry; defaults to DefaultTypingExpiry
	Idle   time.Duration // local idle gap; defaults to DefaultTypingIdle
	Emit   func(Intent)  // outbound typing intents; optional
	OnSet  func(conversationID string, typing bool) // visitor indicator changes; optional
}

// NewTypingState creates a TypingState.
func NewTypingState(opts TypingStateOpts) *TypingState {
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	idle := opts.Idle
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingState{
		expiry:      expiry,
		idle:        idle,
		emit:        opts.Emit,
		onSet:       opts.OnSet,
		visitor:     make(map[string]bool),
		expiryTimer: make(map[string]*time.Timer),
		localActive: make(map[string]bool),
		idleTimer:   make(map[string]*time.Timer),
	}
}

// SetVisitorTyping applies a typing.changed push event for a visitor.
func (ts *TypingState) SetVisitorTyping(conversationID string, isTyping bool) {
	ts.mu.Lock()
	if ts.stopped {
		ts.mu.Unlock()
		return
	}
	changed := ts.visitor[conversationID] != isTyping
	ts.visitor[conversationID] = isTyping

	if t := ts.expiryTimer[conversationID]; t != nil {
		t.Stop()
		delete(ts.expiryTimer, conversationID)
	}
	if isTyping {
		ts.expiryTimer[conversationID] = time.AfterFunc(ts.expiry, func() {
			ts.expire(conversationID)
		})
	}
	onSet := ts.onSet
	ts.mu.Unlock()

	if changed && onSet != nil {
		onSet(conversationID, isTyping)
	}
}

// expire clears a visitor indicator whose refresh window lapsed.
func (ts *TypingState) expire(conversationID string) {
	ts.mu.Lock()
	if ts.stopped || !ts.visitor[conversationID] {
		ts.mu.Unlock()
		return
	}
	ts.visitor[conversationID] = false
	delete(ts.expiryTimer, conversationID)
	onSet := ts.onSet
	ts.mu.Unlock()

	if onSet != nil {
		onSet(conversationID, false)
	}
}

// VisitorTyping reports whether the visitor in a conversation is typing.
func (ts *TypingState) VisitorTyping(conversationID string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.visitor[conversationID]
}

// OperatorInput records a local keystroke. The typing(true) intent is
// emitted only on the first keystroke of a burst; each keystroke resets
// the idle timer that eventually emits typing(false).
func (ts *TypingState) OperatorInput(conversationID string) {
	ts.mu.Lock()
	if ts.stopped {
		ts.mu.Unlock()
		return
	}
	first := !ts.localActive[conversationID]
	ts.localActive[conversationID] = true

	if t := ts.idleTimer[conversationID]; t != nil {
		t.Stop()
	}
	ts.idleTimer[conversationID] = time.AfterFunc(ts.idle, func() {
		ts.operatorIdle(conversationID)
	})
	emit := ts.emit
	ts.mu.Unlock()

	if first && emit != nil {
		emit(Intent{Kind: IntentTyping, ConversationID: conversationID, IsTyping: true})
	}
}

// operatorIdle fires when the keystroke burst has gone quiet.
func (ts *TypingState) operatorIdle(conversationID string) {
	ts.stopLocal(conversationID)
}

// OperatorSent clears the local typing state immediately on send.
func (ts *TypingState) OperatorSent(conversationID string) {
	ts.stopLocal(conversationID)
}

// stopLocal ends the local typing burst and emits typing(false) if a
// burst was active.
func (ts *TypingState) stopLocal(conversationID string) {
	ts.mu.Lock()
	if ts.stopped || !ts.localActive[conversationID] {
		ts.mu.Unlock()
		return
	}
	ts.localActive[conversationID] = false
	if t := ts.idleTimer[conversationID]; t != nil {
		t.Stop()
		delete(ts.idleTimer, conversationID)
	}
	emit := ts.emit
	ts.mu.Unlock()

	if emit != nil {
		emit(Intent{Kind: IntentTyping, ConversationID: conversationID, IsTyping: false})
	}
}

// Stop cancels all timers. The state is unusable afterwards.
func (ts *TypingState) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.stopped = true
	for _, t := range ts.expiryTimer {
		t.Stop()
	}
	for _, t := range ts.idleTimer {
		t.Stop()
	}
	ts.expiryTimer = make(map[string]*time.Timer)
	ts.idleTimer = make(map[string]*time.Timer)
}
