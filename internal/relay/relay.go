package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every round trip into the page.
const DefaultTimeout = 2 * time.Second

// pendingRequest is one outstanding ask. resolve is called at most once,
// by whoever removes the entry from the table.
type pendingRequest struct {
	id      string
	resolve func(json.RawMessage)
	created time.Time
}

// Relay ferries requests from the router onto one tab's page bus and pairs
// answers with asks by correlation id.
type Relay struct {
	port    bridge.Port
	timeout time.Duration
	label   string
	onOpen  func()
	newID   func() string

	mu       sync.Mutex
	pending  map[string]*pendingRequest
	unlisten func()
	closed   bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLabel names the relay in logs, usually after its tab.
func WithLabel(label string) Option {
	return func(r *Relay) { r.label = label }
}

// WithControlWindowSignal sets the handler for page-originated requests to
// open the control window. The handler runs on its own goroutine.
func WithControlWindowSignal(fn func()) Option {
	return func(r *Relay) { r.onOpen = fn }
}

// withIDSource replaces the correlation id generator.
func withIDSource(fn func() string) Option {
	return func(r *Relay) { r.newID = fn }
}

// New attaches a relay to port and starts listening for answers.
func New(port bridge.Port, opts ...Option) *Relay {
	r := &Relay{
		port:    port,
		timeout: DefaultTimeout,
		newID:   uuid.NewString,
		pending: make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unlisten = port.Listen(r.onMessage)
	return r
}

// Ask posts one request of type typ into the page and waits for its answer.
// answered is false when nothing matched before the deadline, the caller's
// context ended, or the port refused the message; that is a normal outcome,
// not an error.
func (r *Relay) Ask(ctx context.Context, typ bridge.MessageType, cmd *bridge.Command) (data json.RawMessage, answered bool) {
	ch := make(chan json.RawMessage, 1)
	id, err := r.register(func(d json.RawMessage) { ch <- d })
	if err != nil {
		slog.Debug("relay ask refused", "relay", r.label, "type", typ, "error", err)
		return nil, false
	}

	req := bridge.Request{Direction: bridge.DirectionRequest, ID: id, Type: typ}
	if cmd != nil {
		req.Command = cmd.Verb
		req.Value = cmd.Value
	}
	msg, err := json.Marshal(req)
	if err != nil {
		r.drop(id)
		return nil, false
	}

	// The deadline covers the post as well as the wait.
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.port.Post(ctx, msg); err != nil {
		slog.Debug("relay post failed", "relay", r.label, "id", id, "error", err)
		if r.drop(id) {
			return nil, false
		}
		// An answer raced the failure report; it already owns the entry.
		return <-ch, true
	}

	select {
	case d := <-ch:
		return d, true
	case <-ctx.Done():
	}

	if r.drop(id) {
		slog.Debug("relay ask unanswered", "relay", r.label, "type", typ, "id", id, "timeout", r.timeout)
		return nil, false
	}
	// The answer won the race for the entry and is already buffered.
	return <-ch, true
}

// Pending reports the number of outstanding asks.
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Owns reports whether id is an outstanding ask of this relay.
func (r *Relay) Owns(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	return ok
}

// Close detaches from the port. Outstanding asks still end at their deadline.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unlisten := r.unlisten
	r.mu.Unlock()
	if unlisten != nil {
		unlisten()
	}
}

func (r *Relay) register(resolve func(json.RawMessage)) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", fmt.Errorf("relay closed")
	}
	id := r.newID()
	for attempts := 1; ; attempts++ {
		if _, taken := r.pending[id]; !taken {
			break
		}
		if attempts >= 8 {
			return "", fmt.Errorf("could not allocate a free correlation id")
		}
		id = r.newID()
	}
	r.pending[id] = &pendingRequest{id: id, resolve: resolve, created: time.Now()}
	return id, nil
}

// drop removes id and reports whether this call removed it.
func (r *Relay) drop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return false
	}
	delete(r.pending, id)
	return true
}

func (r *Relay) onMessage(raw []byte) {
	env, ok := bridge.DecodeEnvelope(raw)
	if !ok {
		return
	}

	switch env.Direction {
	case bridge.DirectionResponse:
		r.mu.Lock()
		p, found := r.pending[env.ID]
		if found {
			delete(r.pending, env.ID)
		}
		r.mu.Unlock()
		if !found {
			slog.Debug("relay dropped unmatched response", "relay", r.label, "id", env.ID)
			return
		}
		data := env.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		slog.Debug("relay answered", "relay", r.label, "id", env.ID, "elapsed_ms", time.Since(p.created).Milliseconds())
		p.resolve(data)

	case bridge.DirectionRequest:
		if !env.Type.IsControlWindowSignal() || r.onOpen == nil {
			return
		}
		slog.Info("relay forwarding control window signal", "relay", r.label)
		go r.onOpen()
	}
}
