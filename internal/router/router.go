// Package router answers control-panel requests by locating the active
// music tab and forwarding through that tab's relay.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
	"github.com/dgnsrekt/musicbridge/internal/events"
	"github.com/dgnsrekt/musicbridge/internal/relay"
	"github.com/dgnsrekt/musicbridge/internal/service"
)

const (
	DefaultPanelWidth  = 275
	DefaultPanelHeight = 150

	// signalBudget bounds the control-window open triggered by a page.
	signalBudget = 10 * time.Second
)

var (
	errNoTab    = errors.New(bridge.ErrTextNoMusicTab)
	errNoAnswer = errors.New(bridge.ErrTextNoAnswer)
)

// HintStore remembers the last used service across restarts.
type HintStore interface {
	Load() (string, bool)
	Save(name string) error
}

// Match is the outcome of a successful discovery.
type Match struct {
	Service service.Descriptor
	Tab     cdpcontrol.TabInfo
}

// Router owns discovery, the relay pool and the control window.
type Router struct {
	browser      Browser
	state        *State
	hints        HintStore
	events       *events.Broker
	relayTimeout time.Duration
	panelURL     string
	panelWidth   int
	panelHeight  int

	// windowMu serialises control-window open/focus so concurrent callers
	// never create two windows.
	windowMu sync.Mutex

	poolMu sync.Mutex
	pool   map[target.ID]*attachment
}

// Option configures a Router.
type Option func(*Router)

// WithPanel sets the control panel URL and its initial window size.
func WithPanel(url string, width, height int) Option {
	return func(r *Router) {
		r.panelURL = url
		if width > 0 {
			r.panelWidth = width
		}
		if height > 0 {
			r.panelHeight = height
		}
	}
}

// WithRelayTimeout sets the per-ask deadline of every relay.
func WithRelayTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.relayTimeout = d
		}
	}
}

// WithHints persists the last used service in h, so "open music" can reopen
// it after a restart.
func WithHints(h HintStore) Option {
	return func(r *Router) { r.hints = h }
}

// WithEvents publishes router activity, such as service switches and
// control window changes, on b.
func WithEvents(b *events.Broker) Option {
	return func(r *Router) { r.events = b }
}

// New creates a router over b. state is owned by the caller and may be
// inspected at any time.
func New(b Browser, state *State, opts ...Option) *Router {
	if state == nil {
		state = NewState()
	}
	r := &Router{
		browser:      b,
		state:        state,
		relayTimeout: relay.DefaultTimeout,
		panelWidth:   DefaultPanelWidth,
		panelHeight:  DefaultPanelHeight,
		pool:         make(map[target.ID]*attachment),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindActiveServiceTab walks the services in priority order and returns the
// first one with an open tab, preferring an audible tab within it.
func (r *Router) FindActiveServiceTab(ctx context.Context) (Match, bool) {
	tabs, err := r.browser.ListTabs(ctx)
	if err != nil {
		slog.Warn("router tab discovery failed", "error", err)
		return Match{}, false
	}
	r.prune(tabs)

	for _, desc := range service.All() {
		var candidates []cdpcontrol.TabInfo
		for _, t := range tabs {
			if desc.Matches(t.URL) {
				candidates = append(candidates, t)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		chosen := candidates[0]
		for _, t := range candidates {
			audible, err := r.browser.IsAudible(ctx, t.TargetID)
			if err != nil {
				slog.Debug("router audible probe failed", "target_id", t.TargetID, "error", err)
				continue
			}
			if audible {
				chosen = t
				break
			}
		}

		r.noteService(desc.Name)
		slog.Debug("router found music tab", "service", desc.Name, "target_id", chosen.TargetID)
		return Match{Service: desc, Tab: chosen}, true
	}
	return Match{}, false
}

func (r *Router) noteService(name string) {
	if r.state.setLastUsed(name) {
		r.events.Publish(events.KindService, map[string]string{"service": name})
	}
	if r.hints == nil {
		return
	}
	if err := r.hints.Save(name); err != nil {
		slog.Warn("router hint save failed", "service", name, "error", err)
	}
}

// ask discovers the active tab and forwards one request through its relay.
func (r *Router) ask(ctx context.Context, typ bridge.MessageType, cmd *bridge.Command) (Match, json.RawMessage, error) {
	m, ok := r.FindActiveServiceTab(ctx)
	if !ok {
		return Match{}, nil, errNoTab
	}
	rel, err := r.relayFor(ctx, m)
	if err != nil {
		slog.Warn("router attach failed", "service", m.Service.Name, "target_id", m.Tab.TargetID, "error", err)
		return m, nil, err
	}
	data, answered := rel.Ask(ctx, typ, cmd)
	if !answered || len(data) == 0 || string(data) == "null" {
		return m, nil, errNoAnswer
	}
	return m, data, nil
}

// State returns the playback state of the active tab, or a disconnected
// reply when there is no tab or it did not answer.
func (r *Router) State(ctx context.Context) bridge.StateReply {
	m, data, err := r.ask(ctx, bridge.TypeGetState, nil)
	if err != nil {
		return bridge.Disconnected()
	}
	var st bridge.PlaybackState
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("router state undecodable", "service", m.Service.Name, "error", err)
		return bridge.Disconnected()
	}
	return bridge.StateReply{Connected: true, Service: m.Service.Name, PlaybackState: &st}
}

// Queue returns the active tab's queue, or nil when nothing is known.
func (r *Router) Queue(ctx context.Context) *bridge.QueueSnapshot {
	m, data, err := r.ask(ctx, bridge.TypeGetQueue, nil)
	if err != nil {
		return nil
	}
	var q bridge.QueueSnapshot
	if err := json.Unmarshal(data, &q); err != nil {
		slog.Warn("router queue undecodable", "service", m.Service.Name, "error", err)
		return nil
	}
	return &q
}

// Command executes cmd on the active tab.
func (r *Router) Command(ctx context.Context, cmd bridge.Command) bridge.CommandResult {
	res := r.command(ctx, cmd)
	r.events.Publish(events.KindCommand, struct {
		Command string `json:"command"`
		OK      bool   `json:"ok"`
		Error   string `json:"error,omitempty"`
	}{cmd.String(), res.OK, res.Error})
	return res
}

func (r *Router) command(ctx context.Context, cmd bridge.Command) bridge.CommandResult {
	if !cmd.Verb.Known() {
		return bridge.Failure(bridge.ErrTextUnknownCommand)
	}
	m, data, err := r.ask(ctx, bridge.TypeCommand, &cmd)
	if err != nil {
		return bridge.Failure("%s", err.Error())
	}
	var res bridge.CommandResult
	if err := json.Unmarshal(data, &res); err != nil {
		slog.Warn("router command result undecodable", "service", m.Service.Name, "error", err)
		return bridge.Failure(bridge.ErrTextNoAnswer)
	}
	return res
}

// OpenOrSwitch brings the active music tab forward, or opens the last used
// service when none is open.
func (r *Router) OpenOrSwitch(ctx context.Context) error {
	return r.openOrSwitch(ctx, r.fallbackService())
}

// OpenYouTubeMusic is OpenOrSwitch with YouTube Music as the fallback.
func (r *Router) OpenYouTubeMusic(ctx context.Context) error {
	desc, _ := service.ByName(service.YouTube)
	return r.openOrSwitch(ctx, desc)
}

func (r *Router) openOrSwitch(ctx context.Context, fallback service.Descriptor) error {
	if m, ok := r.FindActiveServiceTab(ctx); ok {
		if err := r.browser.ActivateTab(ctx, m.Tab.TargetID); err != nil {
			return fmt.Errorf("router: activate %s tab: %w", m.Service.Name, err)
		}
		return nil
	}
	id, err := r.browser.OpenTab(ctx, fallback.FallbackURL)
	if err != nil {
		return fmt.Errorf("router: open %s: %w", fallback.Name, err)
	}
	slog.Info("router opened service", "service", fallback.Name, "target_id", id)
	return nil
}

func (r *Router) fallbackService() service.Descriptor {
	if desc, ok := service.ByName(r.state.LastUsedService()); ok {
		return desc
	}
	if r.hints != nil {
		if name, ok := r.hints.Load(); ok {
			if desc, ok := service.ByName(name); ok {
				return desc
			}
		}
	}
	return service.Default()
}

// Resize applies a new size to the control window when one is open.
// Failures are logged and never reported.
func (r *Router) Resize(ctx context.Context, width, height int) {
	h, ok := r.state.ControlWindow()
	if !ok || width <= 0 || height <= 0 {
		return
	}
	if err := r.browser.ResizeWindow(ctx, h, width, height); err != nil {
		slog.Warn("router resize failed", "window_id", h.WindowID, "error", err)
		return
	}
	r.events.Publish(events.KindControlWindow, windowEvent{Action: "resized", Window: h, Width: width, Height: height})
}

type windowEvent struct {
	Action string                  `json:"action"`
	Window cdpcontrol.WindowHandle `json:"window"`
	Width  int                     `json:"width,omitempty"`
	Height int                     `json:"height,omitempty"`
}

// OpenOrFocusControlWindow focuses the recorded control window if it still
// exists, otherwise opens a new one at the panel URL.
func (r *Router) OpenOrFocusControlWindow(ctx context.Context) error {
	r.windowMu.Lock()
	defer r.windowMu.Unlock()

	if h, ok := r.state.ControlWindow(); ok {
		exists, err := r.browser.WindowExists(ctx, h)
		if err == nil && exists {
			err := r.browser.FocusWindow(ctx, h)
			if err == nil {
				r.events.Publish(events.KindControlWindow, windowEvent{Action: "focused", Window: h})
				return nil
			}
			slog.Warn("router control window focus failed", "window_id", h.WindowID, "error", err)
		}
		r.state.forgetControlWindow(h)
	}

	if r.panelURL == "" {
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: "control panel URL is not configured"}
	}
	h, err := r.browser.OpenWindow(ctx, r.panelURL, r.panelWidth, r.panelHeight)
	if err != nil {
		return fmt.Errorf("router: open control window: %w", err)
	}
	r.state.setControlWindow(h)
	slog.Info("router control window opened", "window_id", h.WindowID, "target_id", h.TargetID)
	r.events.Publish(events.KindControlWindow, windowEvent{Action: "opened", Window: h, Width: r.panelWidth, Height: r.panelHeight})
	return nil
}

// ControlWindowClosed resets the router state when h was the recorded
// control window.
func (r *Router) ControlWindowClosed(h cdpcontrol.WindowHandle) {
	if !r.state.reset(h) {
		return
	}
	slog.Info("router control window closed", "window_id", h.WindowID)
	r.events.Publish(events.KindControlWindow, windowEvent{Action: "closed", Window: h})
}

// WatchControlWindow polls for the control window until ctx ends and
// reports its disappearance through ControlWindowClosed.
func (r *Router) WatchControlWindow(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkControlWindow(ctx)
		}
	}
}

func (r *Router) checkControlWindow(ctx context.Context) {
	h, ok := r.state.ControlWindow()
	if !ok {
		return
	}
	exists, err := r.browser.WindowExists(ctx, h)
	if err != nil {
		slog.Debug("router control window probe failed", "window_id", h.WindowID, "error", err)
		return
	}
	if !exists {
		r.ControlWindowClosed(h)
	}
}

// pageSignal handles a page asking for the control window.
func (r *Router) pageSignal(svc string, id target.ID) {
	r.events.Publish(events.KindPageSignal, map[string]string{"service": svc, "target_id": string(id)})
	ctx, cancel := context.WithTimeout(context.Background(), signalBudget)
	defer cancel()
	if err := r.OpenOrFocusControlWindow(ctx); err != nil {
		slog.Warn("router control window signal failed", "service", svc, "error", err)
	}
}
