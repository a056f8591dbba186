package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const subscriberBufSize = 64

// Kind names an event stream.
type Kind string

const (
	// KindControlWindow reports control window opens, focuses and closes.
	KindControlWindow Kind = "control_window"
	// KindService reports the service a query or command was routed to.
	KindService Kind = "service"
	// KindPageSignal reports a page asking for the control window.
	KindPageSignal Kind = "page_signal"
	// KindCommand reports command outcomes.
	KindCommand Kind = "command"
)

// Event is one router notification.
type Event struct {
	Kind    Kind
	At      time.Time
	Payload json.RawMessage
}

// Broker fans router events out to subscribers. A nil *Broker discards
// everything, so callers never need to guard Publish.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan Event)}
}

// Subscribe registers a listener. Slow listeners lose events.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish marshals payload and delivers it without blocking.
func (b *Broker) Publish(kind Kind, payload any) {
	if b == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("event payload not encodable", "kind", kind, "error", err)
		return
	}
	evt := Event{Kind: kind, At: time.Now().UTC(), Payload: raw}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
