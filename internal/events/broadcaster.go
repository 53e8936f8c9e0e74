// Package events fans session change notifications out to observers such
// as the web viewer's live feed.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/jb/internal/logging"
	"github.com/hpungsan/jb/internal/metrics"
)

const (
	EventDocumentOpened = "document.opened"
	EventDocumentClosed = "document.closed"
	EventTreeChanged    = "tree.changed"
	EventTabsChanged    = "tabs.changed"
	EventSaveStatus     = "save.status"
)

// Event describes one session change.
type Event struct {
	Type string `json:"type"`
	// Path is the document file path.
	Path string `json:"path,omitempty"`
	// Op names the tree operation for tree.changed events.
	Op     string `json:"op,omitempty"`
	NodeID string `json:"nodeId,omitempty"`
	// State is the save state for save.status events.
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster manages subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	log         *zap.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLogger sets the logger dropped events are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(b *Broadcaster) { b.log = l }
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		log:         logging.Named("events"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unsubscribing
// twice is harmless.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.log.Debug("event dropped for slow subscriber",
				zap.String("type", event.Type),
				zap.Int("buffered", len(ch)),
			)
		}
	}
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
