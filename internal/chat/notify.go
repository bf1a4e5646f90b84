package chat

import (
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultDedupeWindow bounds the recent-event set used to drop redelivered
// notifications.
const DefaultDedupeWindow = time.Minute

// Sounder plays the audio cue for an incoming message.
type Sounder interface {
	Play()
}

// Notifier raises an OS-level notification.
type Notifier interface {
	Notify(title, body string)
}

// Decision records which side effects a dispatched event produced, for
// the UI badge path and for tests.
type Decision struct {
	Sound    bool
	Notified bool
}

// Dispatcher decides, per incoming message or visitor event, whether to
// sound an audio cue and/or raise an OS notification. It retains a
// bounded recent-ID set so transport redelivery stays silent, and it
// honors the one-time sound-unlock gate: while locked it skips only the
// audio side effect and queues nothing.
type Dispatcher struct {
	sounder  Sounder
	notifier Notifier
	window   time.Duration
	now      func() time.Time

	mu            sync.Mutex
	soundUnlocked bool
	notifyGranted bool
	seen          map[string]time.Time
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Sounder      Sounder          // optional; nil disables audio entirely
	Notifier     Notifier         // optional; nil disables OS notifications
	DedupeWindow time.Duration    // defaults to DefaultDedupeWindow
	Now          func() time.Time // test seam; defaults to time.Now
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	window := opts.DedupeWindow
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		sounder:  opts.Sounder,
		notifier: opts.Notifier,
		window:   window,
		now:      now,
		seen:     make(map[string]time.Time),
	}
}

// UnlockSound flips the one-time audio capability flag. The surrounding
// UI sets it once the platform's playback gate has been satisfied.
func (d *Dispatcher) UnlockSound() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.soundUnlocked = true
}

// SetNotificationsGranted records whether OS notification permission is
// granted.
func (d *Dispatcher) SetNotificationsGranted(granted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifyGranted = granted
}

// Duplicate records an event ID in the recent set and reports whether it
// was already present within the dedupe window. Repeats are absorbed
// silently; callers log at debug level at most.
func (d *Dispatcher) Duplicate(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	cutoff := now.Add(-d.window)
	for k, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = now
	return false
}

// OnIncomingMessage applies the notification decision table to a
// confirmed message event. Echoes of the operator's own sends and
// messages for the active conversation stay silent.
func (d *Dispatcher) OnIncomingMessage(msg Message, isActive bool) Decision {
	if msg.Sender != SenderVisitor || isActive {
		return Decision{}
	}
	return d.fire("New Message", msg.Text)
}

// OnNewConversation announces a newly created conversation.
func (d *Dispatcher) OnNewConversation(conv Conversation) Decision {
	name := conv.DisplayName
	if name == "" {
		name = conv.ID
	}
	return d.fire("New Visitor", name+" started a chat")
}

// fire performs the side effects permitted by the capability flags.
func (d *Dispatcher) fire(title, body string) Decision {
	d.mu.Lock()
	playSound := d.soundUnlocked && d.sounder != nil
	notify := d.notifyGranted && d.notifier != nil
	d.mu.Unlock()

	var dec Decision
	if playSound {
		d.sounder.Play()
		dec.Sound = true
	}
	if notify {
		d.notifier.Notify(title, body)
		dec.Notified = true
	}
	return dec
}

// CommandSounder plays the audio cue by running a shell command
// (e.g. "paplay /usr/share/sounds/noty.wav"). Best-effort: failures are
// logged, never returned.
type CommandSounder struct {
	Command string
}

// Play runs the configured command.
func (s *CommandSounder) Play() {
	if s.Command == "" {
		return
	}
	cmd := exec.Command("sh", "-c", s.Command)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Printf("chat: sound command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
}

// CommandNotifier raises OS notifications via a shell command template,
// e.g. "notify-send '{{.Title}}' '{{.Body}}'". Best-effort.
type CommandNotifier struct {
	Command string
}

// Notify runs the configured command with the title and body substituted.
func (n *CommandNotifier) Notify(title, body string) {
	if n.Command == "" {
		return
	}
	r := strings.NewReplacer(
		"{{.Title}}", shellQuoteStrip(title),
		"{{.Body}}", shellQuoteStrip(body),
	)
	cmd := exec.Command("sh", "-c", r.Replace(n.Command))
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Printf("chat: notify command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
}

// shellQuoteStrip removes characters that would escape the single-quoted
// template slots.
func shellQuoteStrip(s string) string {
	return strings.NewReplacer("'", "", "`", "", "$", "").Replace(s)
}
