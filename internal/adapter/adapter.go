// Package adapter reads and drives the player of one music service page.
//
// Every adapter is a profile of ordered state sources, queue sources and
// per-verb command strategies evaluated against a Page. Sources and
// strategies are tried in order; the first that yields wins.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/service"
)

// Page is the adapter's view of a service tab.
//
// Eval runs an IIFE that returns the {ok,data,error_code,error_message}
// envelope and decodes data into out; a not-ok envelope is an error.
// Click dispatches a trusted pointer click at viewport coordinates.
type Page interface {
	Eval(ctx context.Context, js string, out any) error
	Click(ctx context.Context, x, y float64) error
}

// Adapter answers the three bridge requests for one service.
type Adapter interface {
	Service() string
	// State returns nil when the player is missing or not ready.
	State(ctx context.Context) *bridge.PlaybackState
	// Queue returns nil when nothing is known about the queue.
	Queue(ctx context.Context) *bridge.QueueSnapshot
	Execute(ctx context.Context, cmd bridge.Command) bridge.CommandResult
}

// For returns the adapter for a canonical service name.
func For(name string, page Page) (Adapter, error) {
	var p *profile
	switch name {
	case service.YouTube:
		p = youtubeProfile()
	case service.Spotify:
		p = spotifyProfile()
	case service.Amazon:
		p = amazonProfile()
	default:
		return nil, fmt.Errorf("adapter: no adapter for service %q", name)
	}
	return &player{profile: p, page: page}, nil
}

// profile is the per-service table the generic player runs.
type profile struct {
	name string

	// stateSources are evaluated in order; each field takes the first
	// source that yields it.
	stateSources []script
	// requiredSource, when set, must yield or State reports no player.
	requiredSource string
	// nominal fills quality fields no source reported.
	nominal reading

	queueSources []script
	// matchCurrentByTitle recovers the playing row from the state title.
	matchCurrentByTitle bool

	commands map[bridge.Verb][]strategy
}

type player struct {
	profile *profile
	page    Page
}

func (p *player) Service() string { return p.profile.name }

func (p *player) State(ctx context.Context) *bridge.PlaybackState {
	var merged reading
	yielded := false
	for _, src := range p.profile.stateSources {
		var r reading
		if err := p.page.Eval(ctx, src.js(nil), &r); err != nil {
			slog.Debug("adapter state source skipped", "service", p.profile.name, "source", src.name, "error", err)
			if src.name == p.profile.requiredSource {
				return nil
			}
			continue
		}
		r.normalize()
		if r.empty() {
			if src.name == p.profile.requiredSource {
				return nil
			}
			continue
		}
		yielded = true
		merged.fill(r)
	}
	if !yielded {
		return nil
	}
	merged.fill(p.profile.nominal)
	st := merged.state()
	return &st
}

func (p *player) Queue(ctx context.Context) *bridge.QueueSnapshot {
	for _, src := range p.profile.queueSources {
		var q queueReading
		if err := p.page.Eval(ctx, src.js(nil), &q); err != nil {
			slog.Debug("adapter queue source skipped", "service", p.profile.name, "source", src.name, "error", err)
			continue
		}
		if len(q.Tracks) == 0 {
			continue
		}
		snap := q.snapshot()
		if snap.CurrentIndex < 0 && p.profile.matchCurrentByTitle {
			if st := p.State(ctx); st != nil {
				snap.CurrentIndex = indexByTitle(snap.Tracks, st.Title)
			}
		}
		return snap
	}

	st := p.State(ctx)
	if st == nil || st.Title == "" {
		return nil
	}
	return &bridge.QueueSnapshot{
		Tracks: []bridge.TrackEntry{{
			Title:         st.Title,
			Artist:        st.Artist,
			DurationLabel: formatClock(st.DurationSeconds),
			PositionIndex: 0,
		}},
		CurrentIndex: 0,
	}
}

func (p *player) Execute(ctx context.Context, cmd bridge.Command) (result bridge.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter command panicked", "service", p.profile.name, "command", cmd.String(), "panic", r)
			result = bridge.Failure("%s failed: internal error", cmd.Verb)
		}
	}()

	if !cmd.Verb.Known() {
		return bridge.Failure(bridge.ErrTextUnknownCommand)
	}
	strategies := p.profile.commands[cmd.Verb]
	if len(strategies) == 0 {
		return bridge.Failure("%s is not supported on %s", cmd.Verb, p.profile.name)
	}

	op, errText := p.prepare(ctx, cmd)
	if errText != "" {
		return bridge.Failure("%s", errText)
	}

	reasons := make([]string, 0, len(strategies))
	for _, s := range strategies {
		err := s.run(ctx, p.page, op)
		if err == nil {
			slog.Debug("adapter command applied", "service", p.profile.name, "command", cmd.String(), "strategy", s.name)
			return bridge.Success()
		}
		reasons = append(reasons, s.name+": "+err.Error())
	}
	slog.Info("adapter command failed", "service", p.profile.name, "command", cmd.String(), "reasons", strings.Join(reasons, "; "))
	return bridge.Failure("%s failed (%s)", cmd.Verb, strings.Join(reasons, "; "))
}

// operand is a validated command argument. Fraction is the position along
// the seek or volume bar for pointer strategies.
type operand struct {
	Value    float64
	Fraction float64
	Duration float64
}

func (p *player) prepare(ctx context.Context, cmd bridge.Command) (operand, string) {
	if cmd.Verb.NeedsOperand() && cmd.Value == nil {
		return operand{}, fmt.Sprintf("%s needs a value", cmd.Verb)
	}
	v := cmd.Operand()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return operand{}, fmt.Sprintf("%s value must be a finite number", cmd.Verb)
	}

	switch cmd.Verb {
	case bridge.VerbSeekTo:
		var duration float64
		if st := p.State(ctx); st != nil {
			duration = st.DurationSeconds
		}
		target := math.Max(v, 0)
		if duration > 0 {
			target = clamp(v, 0, duration)
		}
		op := operand{Value: target, Duration: duration}
		if duration > 0 {
			op.Fraction = target / duration
		}
		return op, ""
	case bridge.VerbSetVolume:
		target := clamp(v, 0, 100)
		return operand{Value: target, Fraction: target / 100}, ""
	case bridge.VerbPlayAt:
		if v < 0 || v != math.Trunc(v) {
			return operand{}, "playAt needs a non-negative integer index"
		}
		return operand{Value: v}, ""
	case bridge.VerbStop:
		return operand{Value: 0, Fraction: 0}, ""
	}
	return operand{Value: v}, ""
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func indexByTitle(tracks []bridge.TrackEntry, title string) int {
	if title == "" {
		return -1
	}
	for i, t := range tracks {
		if t.Title == title {
			return i
		}
	}
	return -1
}
