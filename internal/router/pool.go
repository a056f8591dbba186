package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/musicbridge/internal/adapter"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
	"github.com/dgnsrekt/musicbridge/internal/relay"
)

// attachment is one tab wired up: adapter served on the page bus and a
// relay asking through it.
type attachment struct {
	service string
	tab     Tab
	relay   *relay.Relay
	stop    func()
}

func (a *attachment) close() {
	a.relay.Close()
	a.stop()
	if err := a.tab.Close(); err != nil {
		slog.Debug("router tab close failed", "service", a.service, "error", err)
	}
}

// relayFor returns the relay of the matched tab, attaching on first use.
// A tab that navigated to another service is attached again. The pool lock
// is not held while attaching, so a slow tab never stalls attached ones.
func (r *Router) relayFor(ctx context.Context, m Match) (*relay.Relay, error) {
	id := m.Tab.TargetID
	svc := m.Service.Name

	if rel, ok := r.pooled(id, svc); ok {
		return rel, nil
	}

	a, err := r.attach(ctx, svc, id)
	if err != nil {
		return nil, err
	}

	r.poolMu.Lock()
	cur, ok := r.pool[id]
	if ok && cur.service == svc {
		r.poolMu.Unlock()
		a.close()
		return cur.relay, nil
	}
	r.pool[id] = a
	r.poolMu.Unlock()

	if ok {
		cur.close()
	}
	slog.Info("router tab attached", "service", svc, "target_id", id)
	return a.relay, nil
}

// pooled returns the live relay for id. An attachment for another service
// is detached.
func (r *Router) pooled(id target.ID, svc string) (*relay.Relay, bool) {
	r.poolMu.Lock()
	a, ok := r.pool[id]
	if !ok {
		r.poolMu.Unlock()
		return nil, false
	}
	if a.service == svc {
		r.poolMu.Unlock()
		return a.relay, true
	}
	delete(r.pool, id)
	r.poolMu.Unlock()

	slog.Info("router tab changed service", "target_id", id, "from", a.service, "to", svc)
	a.close()
	return nil, false
}

// attach connects to the tab and serves its adapter on the page bus. The
// adapter answers only asks of its own relay; another process attached to
// the same page serves its own.
func (r *Router) attach(ctx context.Context, svc string, id target.ID) (*attachment, error) {
	tab, err := r.browser.ConnectTab(ctx, id)
	if err != nil {
		return nil, err
	}
	ad, err := adapter.For(svc, tab)
	if err != nil {
		tab.Close()
		return nil, fmt.Errorf("router: %w", err)
	}

	rel := relay.New(tab,
		relay.WithTimeout(r.relayTimeout),
		relay.WithLabel(svc+":"+string(id)),
		relay.WithControlWindowSignal(func() { r.pageSignal(svc, id) }),
	)
	return &attachment{
		service: svc,
		tab:     tab,
		relay:   rel,
		stop:    adapter.Serve(tab, ad, adapter.WithRequestFilter(rel.Owns)),
	}, nil
}

// prune closes relays of tabs that are no longer open.
func (r *Router) prune(tabs []cdpcontrol.TabInfo) {
	open := make(map[target.ID]bool, len(tabs))
	for _, t := range tabs {
		open[t.TargetID] = true
	}

	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	for id, a := range r.pool {
		if open[id] {
			continue
		}
		a.close()
		delete(r.pool, id)
		slog.Info("router tab detached", "service", a.service, "target_id", id)
	}
}

// Attached reports the number of tabs with a live relay.
func (r *Router) Attached() int {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	return len(r.pool)
}

// Close detaches every tab.
func (r *Router) Close() {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	for id, a := range r.pool {
		a.close()
		delete(r.pool, id)
	}
}
