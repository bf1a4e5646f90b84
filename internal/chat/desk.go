package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultSweepInterval is how often pending optimistic messages are
// checked against their confirmation lifetime.
const DefaultSweepInterval = 2 * time.Second

// Backend is the REST collaborator the engine resynchronizes from. The
// engine only needs functions returning the described JSON shapes; routes
// and auth belong to the implementation.
type Backend interface {
	// Conversations returns the full conversation-list snapshot.
	Conversations(ctx context.Context) ([]Conversation, error)

	// Messages returns the ordered message history for one conversation.
	Messages(ctx context.Context, conversationID string) ([]Message, error)

	// UnreadCounts returns the authoritative unread-count snapshot.
	UnreadCounts(ctx context.Context) (map[string]int, error)
}

// Archiver records confirmed messages for the local transcript archive.
// Best-effort: failures are logged and never block event processing.
type Archiver interface {
	Record(conv Conversation, msg Message) error
}

// ChangeKind identifies which slice of desk state an observer update
// refers to.
type ChangeKind string

const (
	ChangeDirectory  ChangeKind = "directory"
	ChangeTimeline   ChangeKind = "timeline"
	ChangeUnread     ChangeKind = "unread"
	ChangeTyping     ChangeKind = "typing"
	ChangeConnection ChangeKind = "connection"
)

// Change is a state-change notification delivered to observers (the
// presentation layer's feed).
type Change struct {
	Kind           ChangeKind
	ConversationID string
}

// ConversationView is a conversation summary composed for display: the
// directory fields, the ledger's unread count, and the typing indicator.
type ConversationView struct {
	Conversation
	VisitorTyping bool `json:"visitorTyping"`
}

// snapshotResult carries an async conversation/unread snapshot fetch back
// into the pump.
type snapshotResult struct {
	list      []Conversation
	counts    map[string]int
	err       error
	countsErr error
}

// historyResult carries an async history fetch back into the pump, tagged
// with the conversation it was issued for so stale responses can be
// discarded.
type historyResult struct {
	conversationID string
	messages       []Message
	err            error
}

// Desk is the conversation synchronization engine. It owns the directory,
// timelines, unread ledger, notification dispatcher, typing state, and
// connection tracker, pumps adapter events through a single processing
// loop, and exposes the operator actions (select, send, type, retry).
type Desk struct {
	adapter  Adapter
	backend  Backend
	archiver Archiver
	out      io.Writer

	conn       *Tracker
	directory  *Directory
	timeline   *Timeline
	ledger     *Ledger
	dispatcher *Dispatcher
	typing     *TypingState

	resyncCron    string
	sweepInterval time.Duration

	snapshots chan snapshotResult
	histories chan historyResult

	mu        sync.Mutex
	activeID  string
	observers map[int]func(Change)
	nextObs   int
}

// DeskOpts holds parameters for creating a Desk.
type DeskOpts struct {
	Adapter  Adapter
	Backend  Backend
	Archiver Archiver  // optional; enables the local transcript archive
	Out      io.Writer // defaults to os.Stdout

	Sounder  Sounder  // optional audio cue
	Notifier Notifier // optional OS notifications

	PendingLifetime time.Duration // optimistic confirmation window
	DedupeWindow    time.Duration // notification recent-ID window
	TypingExpiry    time.Duration // visitor typing indicator expiry
	TypingIdle      time.Duration // local typing idle gap
	RetryDelay      time.Duration // reconnect request delay
	MaxFailures     int           // failures before manual-retry state
	SweepInterval   time.Duration // defaults to DefaultSweepInterval
	ResyncCron      string        // optional 5-field cron for periodic snapshot resync
}

// NewDesk creates a Desk with the given options.
func NewDesk(opts DeskOpts) (*Desk, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: desk: adapter is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("chat: desk: backend is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}

	d := &Desk{
		adapter:       opts.Adapter,
		backend:       opts.Backend,
		archiver:      opts.Archiver,
		out:           out,
		directory:     NewDirectory(),
		timeline:      NewTimeline(TimelineOpts{PendingLifetime: opts.PendingLifetime}),
		ledger:        NewLedger(),
		sweepInterval: sweep,
		resyncCron:    opts.ResyncCron,
		snapshots:     make(chan snapshotResult, 4),
		histories:     make(chan historyResult, 4),
		observers:     make(map[int]func(Change)),
	}

	d.dispatcher = NewDispatcher(DispatcherOpts{
		Sounder:      opts.Sounder,
		Notifier:     opts.Notifier,
		DedupeWindow: opts.DedupeWindow,
	})

	var rc Reconnector
	if r, ok := opts.Adapter.(Reconnector); ok {
		rc = r
	}
	d.conn = NewTracker(TrackerOpts{
		Reconnector: rc,
		RetryDelay:  opts.RetryDelay,
		MaxFailures: opts.MaxFailures,
	})

	d.typing = NewTypingState(TypingStateOpts{
		Expiry: opts.TypingExpiry,
		Idle:   opts.TypingIdle,
		Emit: func(in Intent) {
			d.emitIntent(context.Background(), in)
		},
		OnSet: func(conversationID string, typing bool) {
			d.notifyObservers(Change{Kind: ChangeTyping, ConversationID: conversationID})
		},
	})

	return d, nil
}

// Run connects the adapter and pumps events, connection signals, async
// fetch results, and timers until the context is cancelled. Handlers run
// to completion inside this single loop; snapshot and history fetches are
// the only suspension points and their results are merged on arrival
// rather than overwriting events applied in the meantime.
func (d *Desk) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Desk connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("chat: desk: connect: %w", err)
	}

	events, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("chat: desk: listen: %w", err)
	}
	signals := d.adapter.Signals()

	sweep := time.NewTicker(d.sweepInterval)
	defer sweep.Stop()

	var resyncTimer *time.Timer
	if d.resyncCron != "" {
		if dur := nextCronDuration(d.resyncCron); dur > 0 {
			resyncTimer = time.NewTimer(dur)
			defer resyncTimer.Stop()
		}
	}

	d.refreshSnapshot(ctx)
	fmt.Fprintf(d.out, "Desk online\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Desk shutting down...\n")
			d.typing.Stop()
			d.conn.Stop()
			if err := d.adapter.Close(); err != nil {
				log.Printf("chat: desk: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Desk stopped\n")
			return nil

		case ev, ok := <-events:
			if !ok {
				fmt.Fprintf(d.out, "Desk event stream closed\n")
				d.typing.Stop()
				d.conn.Stop()
				return nil
			}
			d.HandleEvent(ctx, ev)

		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			d.handleSignal(ctx, sig)

		case res := <-d.snapshots:
			d.applySnapshot(res)

		case res := <-d.histories:
			d.applyHistory(res)

		case <-sweep.C:
			d.sweepPending()

		case <-timerChan(resyncTimer):
			d.refreshSnapshot(ctx)
			if dur := nextCronDuration(d.resyncCron); dur > 0 {
				resyncTimer.Reset(dur)
			}
		}
	}
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select, which is the desired behavior
// when no resync schedule is configured.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// HandleEvent is the single exhaustive matcher over the push-event union.
// Unknown kinds are dropped, never propagated — nothing here is allowed
// to halt further event processing.
func (d *Desk) HandleEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventConversationCreated:
		d.handleConversationCreated(ev)
	case EventMessageReceived:
		d.handleMessageReceived(ev)
	case EventTypingChanged:
		if ev.Sender == SenderVisitor {
			d.typing.SetVisitorTyping(ev.ConversationID, ev.IsTyping)
		}
	case EventUnreadSnapshot:
		d.ledger.ApplySnapshot(ev.Counts)
		// Activation is immediate and local; a snapshot raced against a
		// just-selected conversation must not resurrect its badge.
		if c := d.ActiveConversation(); c != "" {
			d.ledger.Activate(c)
		}
		d.notifyObservers(Change{Kind: ChangeUnread})
	case EventReadAcknowledged:
		d.ledger.Activate(ev.ConversationID)
		d.notifyObservers(Change{Kind: ChangeUnread, ConversationID: ev.ConversationID})
	default:
		fmt.Fprintf(d.out, "chat: desk: ignoring unknown event %q\n", ev.Kind)
	}
}

func (d *Desk) handleConversationCreated(ev Event) {
	if d.dispatcher.Duplicate("conv:" + ev.ID) {
		fmt.Fprintf(d.out, "chat: desk: duplicate conversation.created %s dropped\n", ev.ID)
		return
	}
	if !d.directory.UpsertFromNewConversation(ev) {
		return
	}

	seed := 1
	if d.ActiveConversation() == ev.ConversationID {
		seed = 0
	}
	d.ledger.Seed(ev.ConversationID, seed)

	if conv, ok := d.directory.Get(ev.ConversationID); ok {
		d.dispatcher.OnNewConversation(conv)
	}
	d.notifyObservers(Change{Kind: ChangeDirectory, ConversationID: ev.ConversationID})
	d.notifyObservers(Change{Kind: ChangeUnread, ConversationID: ev.ConversationID})
}

func (d *Desk) handleMessageReceived(ev Event) {
	if d.dispatcher.Duplicate("msg:" + ev.ID) {
		fmt.Fprintf(d.out, "chat: desk: duplicate message %s dropped\n", ev.ID)
		return
	}

	active := d.ActiveConversation() == ev.ConversationID
	msg := Message{
		ID:             ev.ID,
		ConversationID: ev.ConversationID,
		Sender:         ev.Sender,
		Text:           ev.Text,
		CreatedAt:      ev.CreatedAt,
		Delivery:       DeliveryConfirmed,
	}

	d.directory.ApplyMessageEvent(ev)
	timelineChanged := d.timeline.Reconcile(ev.ConversationID, msg)

	if ev.Sender == SenderVisitor {
		d.ledger.OnVisitorMessage(ev.ConversationID, active)
		// The visitor's message supersedes their typing indicator.
		d.typing.SetVisitorTyping(ev.ConversationID, false)
		d.dispatcher.OnIncomingMessage(msg, active)
	}

	if d.archiver != nil {
		conv, _ := d.directory.Get(ev.ConversationID)
		if err := d.archiver.Record(conv, msg); err != nil {
			log.Printf("chat: desk: archive message %s: %v", msg.ID, err)
		}
	}

	d.notifyObservers(Change{Kind: ChangeDirectory, ConversationID: ev.ConversationID})
	d.notifyObservers(Change{Kind: ChangeUnread, ConversationID: ev.ConversationID})
	if timelineChanged {
		d.notifyObservers(Change{Kind: ChangeTimeline, ConversationID: ev.ConversationID})
	}
}

// handleSignal applies a connection lifecycle signal. Re-establishment
// after any gap rebuilds state from a fresh snapshot and re-joins the
// active conversation; nothing is persisted across connections.
func (d *Desk) handleSignal(ctx context.Context, sig ConnSignal) {
	d.conn.Apply(sig)

	switch sig.Kind {
	case SignalEstablished:
		d.refreshSnapshot(ctx)
		if c := d.ActiveConversation(); c != "" {
			d.emitIntent(ctx, Intent{Kind: IntentJoin, ConversationID: c})
			d.fetchHistory(ctx, c)
		}
	case SignalServerDisconnect:
		fmt.Fprintf(d.out, "chat: desk: server closed the connection: %s\n", sig.Reason)
	case SignalLost:
		fmt.Fprintf(d.out, "chat: desk: connection lost\n")
	}

	d.notifyObservers(Change{Kind: ChangeConnection})
}

// ---------------------------------------------------------------------------
// Operator actions
// ---------------------------------------------------------------------------

// Select switches the active conversation. The unread count zeroes
// immediately and locally; the markRead relay and the history fetch
// happen behind it and never gate the optimistic effect.
func (d *Desk) Select(ctx context.Context, conversationID string) {
	d.mu.Lock()
	prev := d.activeID
	d.activeID = conversationID
	d.mu.Unlock()

	d.ledger.Activate(conversationID)

	if prev != "" && prev != conversationID {
		d.typing.OperatorSent(prev)
		d.emitIntent(ctx, Intent{Kind: IntentLeave, ConversationID: prev})
	}
	d.emitIntent(ctx, Intent{Kind: IntentJoin, ConversationID: conversationID})
	d.emitIntent(ctx, Intent{Kind: IntentMarkRead, ConversationID: conversationID})

	d.fetchHistory(ctx, conversationID)

	d.notifyObservers(Change{Kind: ChangeUnread, ConversationID: conversationID})
	d.notifyObservers(Change{Kind: ChangeDirectory, ConversationID: conversationID})
}

// Send creates an optimistic pending message in the active conversation
// and relays the send intent. While disconnected the relay is skipped,
// not queued — the pending entry surfaces as failed once its lifetime
// lapses.
func (d *Desk) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("chat: desk: empty message")
	}
	conversationID := d.ActiveConversation()
	if conversationID == "" {
		return Message{}, fmt.Errorf("chat: desk: no active conversation")
	}

	msg := d.timeline.AppendOptimistic(conversationID, text)
	d.typing.OperatorSent(conversationID)
	d.emitIntent(ctx, Intent{Kind: IntentSend, ConversationID: conversationID, Text: text})

	d.notifyObservers(Change{Kind: ChangeTimeline, ConversationID: conversationID})
	return msg, nil
}

// InputActivity records a local keystroke in the active conversation's
// composer, driving the debounced typing intents.
func (d *Desk) InputActivity() {
	if c := d.ActiveConversation(); c != "" {
		d.typing.OperatorInput(c)
	}
}

// RetryNow is the manual retry control for the degraded connection state.
func (d *Desk) RetryNow() {
	d.conn.RetryNow()
	d.notifyObservers(Change{Kind: ChangeConnection})
}

// UnlockSound flips the audio capability flag once the UI's playback
// gate has been satisfied.
func (d *Desk) UnlockSound() { d.dispatcher.UnlockSound() }

// SetNotificationsGranted records the OS notification permission state.
func (d *Desk) SetNotificationsGranted(granted bool) {
	d.dispatcher.SetNotificationsGranted(granted)
}

// ---------------------------------------------------------------------------
// Async fetches
// ---------------------------------------------------------------------------

// refreshSnapshot fetches the conversation list and unread counts without
// blocking the pump; the result is merged when it lands.
func (d *Desk) refreshSnapshot(ctx context.Context) {
	go func() {
		var res snapshotResult
		res.list, res.err = d.backend.Conversations(ctx)
		if res.err == nil {
			res.counts, res.countsErr = d.backend.UnreadCounts(ctx)
		}
		select {
		case d.snapshots <- res:
		default:
			log.Printf("chat: desk: snapshot result dropped (pump backlog)")
		}
	}()
}

// applySnapshot merges a snapshot fetch on top of whatever push events
// arrived while it was in flight: the list merge keeps locally advanced
// summaries, unread counts max-merge from the list and then overwrite
// from the authoritative counts endpoint.
func (d *Desk) applySnapshot(res snapshotResult) {
	if res.err != nil {
		log.Printf("chat: desk: snapshot fetch: %v", res.err)
		return
	}

	d.directory.LoadSnapshot(res.list)

	listCounts := make(map[string]int, len(res.list))
	for _, c := range res.list {
		listCounts[c.ID] = c.UnreadCount
	}
	d.ledger.MergeCounts(listCounts)

	if res.countsErr != nil {
		log.Printf("chat: desk: unread snapshot fetch: %v", res.countsErr)
	} else if res.counts != nil {
		d.ledger.ApplySnapshot(res.counts)
	}

	if c := d.ActiveConversation(); c != "" {
		d.ledger.Activate(c)
	}

	d.notifyObservers(Change{Kind: ChangeDirectory})
	d.notifyObservers(Change{Kind: ChangeUnread})
}

// fetchHistory issues an async history fetch tagged with the conversation
// it was requested for.
func (d *Desk) fetchHistory(ctx context.Context, conversationID string) {
	go func() {
		msgs, err := d.backend.Messages(ctx, conversationID)
		select {
		case d.histories <- historyResult{conversationID: conversationID, messages: msgs, err: err}:
		default:
			log.Printf("chat: desk: history result dropped (pump backlog)")
		}
	}()
}

// applyHistory hydrates the timeline from a history fetch, unless the
// selection moved while the request was in flight — a late result for a
// conversation that is no longer active is discarded.
func (d *Desk) applyHistory(res historyResult) {
	if res.err != nil {
		log.Printf("chat: desk: history fetch %s: %v", res.conversationID, res.err)
		return
	}
	if d.ActiveConversation() != res.conversationID {
		fmt.Fprintf(d.out, "chat: desk: discarding stale history for %s\n", res.conversationID)
		return
	}
	d.timeline.LoadHistory(res.conversationID, res.messages)
	d.notifyObservers(Change{Kind: ChangeTimeline, ConversationID: res.conversationID})
}

// sweepPending flags optimistic messages whose confirmation window
// lapsed. No automatic retry; the operator re-sends.
func (d *Desk) sweepPending() {
	expired := d.timeline.ExpirePending()
	for _, m := range expired {
		fmt.Fprintf(d.out, "chat: desk: message in %s failed to send\n", m.ConversationID)
		d.notifyObservers(Change{Kind: ChangeTimeline, ConversationID: m.ConversationID})
	}
}

// emitIntent relays an intent when connected; while disconnected the
// emission is skipped so nothing queues up behind a dead transport.
func (d *Desk) emitIntent(ctx context.Context, in Intent) {
	if !d.conn.CanEmit() {
		fmt.Fprintf(d.out, "chat: desk: offline, skipping %s intent\n", in.Kind)
		return
	}
	if err := d.adapter.Emit(ctx, in); err != nil {
		log.Printf("chat: desk: emit %s: %v", in.Kind, err)
	}
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

// ActiveConversation returns the currently selected conversation ID.
func (d *Desk) ActiveConversation() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeID
}

// Conversations returns the ordered conversation views for display.
func (d *Desk) Conversations() []ConversationView {
	ordered := d.directory.Ordered(d.ledger.Counts())
	views := make([]ConversationView, len(ordered))
	for i, c := range ordered {
		views[i] = ConversationView{
			Conversation:  c,
			VisitorTyping: d.typing.VisitorTyping(c.ID),
		}
	}
	return views
}

// Messages returns the display-ordered timeline for a conversation.
func (d *Desk) Messages(conversationID string) []Message {
	return d.timeline.Messages(conversationID)
}

// ConnectionState returns the current transport state.
func (d *Desk) ConnectionState() ConnState { return d.conn.State() }

// ConnectionReason returns the last disconnect reason, if any.
func (d *Desk) ConnectionReason() string { return d.conn.Reason() }

// ManualRetryAvailable reports whether automatic recovery has given up.
func (d *Desk) ManualRetryAvailable() bool { return d.conn.ManualRetryAvailable() }

// UnreadTotal returns the aggregate unread count for the page badge.
func (d *Desk) UnreadTotal() int { return d.ledger.Total() }

// Observe registers an observer for state-change notifications. Release
// the handle with Unsubscribe when the observer goes away.
func (d *Desk) Observe(fn func(Change)) *Subscription {
	d.mu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.mu.Unlock()

	return &Subscription{cancel: func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}}
}

func (d *Desk) notifyObservers(ch Change) {
	d.mu.Lock()
	obs := make([]func(Change), 0, len(d.observers))
	for _, fn := range d.observers {
		obs = append(obs, fn)
	}
	d.mu.Unlock()

	for _, fn := range obs {
		fn(ch)
	}
}
