package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 5 * time.Second

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Link is an optional call to action attached to a notification.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Notification is a transient user-facing message.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Message   string    `json:"message"`
	Link      *Link     `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Action tells subscribers what happened to a notification.
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
)

// Event is delivered to subscribers on every change.
type Event struct {
	Action       Action       `json:"action"`
	Notification Notification `json:"notification"`
}

// Notifier holds active notifications and fans out changes to subscribers
// via buffered channels. It is owned by the application root; Close stops
// pending expiry timers and closes every subscription.
type Notifier struct {
	mu      sync.RWMutex
	active  []Notification
	timers  map[string]*time.Timer
	subs    map[chan Event]struct{}
	buffer  int
	ttl     time.Duration
	closed  bool
	onAdded func()
}

// NotifierOption customizes a Notifier.
type NotifierOption func(*Notifier)

// WithTTL overrides the auto-removal delay. Zero disables expiry.
func WithTTL(ttl time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.ttl = ttl
	}
}

// WithBuffer sets the per-subscriber channel size.
func WithBuffer(size int) NotifierOption {
	return func(n *Notifier) {
		if size > 0 {
			n.buffer = size
		}
	}
}

// WithOnAdded registers a hook run after each Add.
func WithOnAdded(fn func()) NotifierOption {
	return func(n *Notifier) {
		n.onAdded = fn
	}
}

// NewNotifier creates an empty notifier.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		timers: make(map[string]*time.Timer),
		subs:   make(map[chan Event]struct{}),
		buffer: 64,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Add publishes a notification and schedules its removal. It returns the id,
// or an empty string once the notifier is closed.
func (n *Notifier) Add(kind Kind, message string, link *Link) string {
	item := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Link:      link,
		CreatedAt: time.Now(),
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ""
	}
	n.active = append(n.active, item)
	if n.ttl > 0 {
		id := item.ID
		n.timers[id] = time.AfterFunc(n.ttl, func() { n.Remove(id) })
	}
	n.publishLocked(Event{Action: ActionAdded, Notification: item})
	n.mu.Unlock()

	if n.onAdded != nil {
		n.onAdded()
	}
	return item.ID
}

// Remove drops a notification. Unknown ids are ignored.
func (n *Notifier) Remove(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if t, ok := n.timers[id]; ok {
		t.Stop()
		delete(n.timers, id)
	}

	for i, item := range n.active {
		if item.ID != id {
			continue
		}
		n.active = append(n.active[:i:i], n.active[i+1:]...)
		n.publishLocked(Event{Action: ActionRemoved, Notification: item})
		return
	}
}

// List returns active notifications, oldest first.
func (n *Notifier) List() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Notification, len(n.active))
	copy(out, n.active)
	return out
}

// Subscribe returns a channel that receives events until Unsubscribe or Close.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, n.buffer)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		close(ch)
		return ch
	}
	n.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes the channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[ch]; ok {
		delete(n.subs, ch)
		close(ch)
	}
}

// Close stops all pending timers and closes every subscription.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true

	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	for ch := range n.subs {
		delete(n.subs, ch)
		close(ch)
	}
}

// publishLocked delivers e to every subscriber, dropping it for slow readers.
func (n *Notifier) publishLocked(e Event) {
	for ch := range n.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
