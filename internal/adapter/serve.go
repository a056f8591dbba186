package adapter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
)

// requestBudget bounds the page work behind one request. The relay gives up
// earlier; the budget only stops abandoned work from piling up.
const requestBudget = 5 * time.Second

// ServeOption configures Serve.
type ServeOption func(*serveConfig)

type serveConfig struct {
	accept func(id string) bool
}

// WithRequestFilter limits Serve to requests whose correlation id accept
// reports as its own. Several hosts can share one page bus this way and
// each request is carried out once.
func WithRequestFilter(accept func(id string) bool) ServeOption {
	return func(c *serveConfig) { c.accept = accept }
}

// Serve answers bridge requests posted on port with a. Each request is
// handled on its own goroutine so a slow read never delays a command.
// Unknown request types are ignored. The returned stop detaches the
// listener and waits for in-flight requests.
func Serve(port bridge.Port, a Adapter, opts ...ServeOption) (stop func()) {
	var cfg serveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	unlisten := port.Listen(func(raw []byte) {
		env, ok := bridge.DecodeEnvelope(raw)
		if !ok || env.Direction != bridge.DirectionRequest || env.ID == "" {
			return
		}
		switch env.Type {
		case bridge.TypeGetState, bridge.TypeGetQueue, bridge.TypeCommand:
		default:
			return
		}
		if cfg.accept != nil && !cfg.accept(env.ID) {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveOne(ctx, port, a, env)
		}()
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unlisten()
			cancel()
			wg.Wait()
		})
	}
}

func serveOne(ctx context.Context, port bridge.Port, a Adapter, env bridge.Envelope) {
	reqCtx, cancel := context.WithTimeout(ctx, requestBudget)
	defer cancel()

	var payload any
	switch env.Type {
	case bridge.TypeGetState:
		if st := a.State(reqCtx); st != nil {
			payload = st
		}
	case bridge.TypeGetQueue:
		if q := a.Queue(reqCtx); q != nil {
			payload = q
		}
	case bridge.TypeCommand:
		payload = a.Execute(reqCtx, env.AsCommand())
	}

	msg, err := bridge.EncodeResponse(env.ID, payload)
	if err != nil {
		slog.Warn("adapter response encode failed", "service", a.Service(), "id", env.ID, "error", err)
		return
	}
	if err := port.Post(ctx, msg); err != nil {
		slog.Debug("adapter response not delivered", "service", a.Service(), "id", env.ID, "error", err)
	}
}
