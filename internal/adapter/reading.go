package adapter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
)

// reading is what one state source could observe. Nil fields were not
// observed; the *Text fields carry clock labels such as "3:45".
type reading struct {
	PlayState    *bridge.PlayState  `json:"playState"`
	Position     *float64           `json:"position"`
	PositionText *string            `json:"positionText"`
	Duration     *float64           `json:"duration"`
	DurationText *string            `json:"durationText"`
	Volume       *float64           `json:"volume"`
	Title        *string            `json:"title"`
	Artist       *string            `json:"artist"`
	Shuffle      *bool              `json:"shuffle"`
	Repeat       *bridge.RepeatMode `json:"repeat"`
	Bitrate      *float64           `json:"bitrate"`
	SampleRate   *float64           `json:"sampleRate"`
}

// normalize folds clock labels into seconds and drops values that do not
// count as observations.
func (r *reading) normalize() {
	if r.Position == nil && r.PositionText != nil {
		if s, ok := parseClock(*r.PositionText); ok {
			r.Position = &s
		}
	}
	if r.Duration == nil && r.DurationText != nil {
		if s, ok := parseClock(*r.DurationText); ok {
			r.Duration = &s
		}
	}
	r.PositionText, r.DurationText = nil, nil

	for _, f := range []**float64{&r.Position, &r.Duration, &r.Volume, &r.Bitrate, &r.SampleRate} {
		if *f != nil && (math.IsNaN(**f) || math.IsInf(**f, 0) || **f < 0) {
			*f = nil
		}
	}
	for _, s := range []**string{&r.Title, &r.Artist} {
		if *s != nil {
			trimmed := strings.TrimSpace(**s)
			if trimmed == "" {
				*s = nil
			} else {
				*s = &trimmed
			}
		}
	}
	if r.PlayState != nil {
		switch *r.PlayState {
		case bridge.Playing, bridge.Paused, bridge.Stopped:
		default:
			r.PlayState = nil
		}
	}
	if r.Repeat != nil {
		switch *r.Repeat {
		case bridge.RepeatOff, bridge.RepeatAll, bridge.RepeatOne:
		default:
			r.Repeat = nil
		}
	}
}

func (r *reading) empty() bool {
	return r.PlayState == nil && r.Position == nil && r.Duration == nil &&
		r.Volume == nil && r.Title == nil && r.Artist == nil &&
		r.Shuffle == nil && r.Repeat == nil && r.Bitrate == nil && r.SampleRate == nil
}

// fill copies every field of o that r has not observed yet.
func (r *reading) fill(o reading) {
	if r.PlayState == nil {
		r.PlayState = o.PlayState
	}
	if r.Position == nil {
		r.Position = o.Position
	}
	if r.Duration == nil {
		r.Duration = o.Duration
	}
	if r.Volume == nil {
		r.Volume = o.Volume
	}
	if r.Title == nil {
		r.Title = o.Title
	}
	if r.Artist == nil {
		r.Artist = o.Artist
	}
	if r.Shuffle == nil {
		r.Shuffle = o.Shuffle
	}
	if r.Repeat == nil {
		r.Repeat = o.Repeat
	}
	if r.Bitrate == nil {
		r.Bitrate = o.Bitrate
	}
	if r.SampleRate == nil {
		r.SampleRate = o.SampleRate
	}
}

// state applies defaults to whatever was not observed.
func (r *reading) state() bridge.PlaybackState {
	st := bridge.PlaybackState{
		PlayState:  bridge.Stopped,
		RepeatMode: bridge.RepeatOff,
	}
	if r.PlayState != nil {
		st.PlayState = *r.PlayState
	}
	if r.Duration != nil {
		st.DurationSeconds = *r.Duration
	}
	if r.Position != nil {
		st.PositionSeconds = *r.Position
		if st.DurationSeconds > 0 && st.PositionSeconds > st.DurationSeconds {
			st.PositionSeconds = st.DurationSeconds
		}
	}
	if r.Volume != nil {
		st.VolumePercent = clamp(*r.Volume, 0, 100)
	}
	if r.Title != nil {
		st.Title = *r.Title
	}
	if r.Artist != nil {
		st.Artist = *r.Artist
	}
	if r.Shuffle != nil {
		st.ShuffleEnabled = *r.Shuffle
	}
	if r.Repeat != nil {
		st.RepeatMode = *r.Repeat
	}
	if r.Bitrate != nil {
		st.BitrateKbps = *r.Bitrate
	}
	if r.SampleRate != nil {
		st.SampleRateKHz = *r.SampleRate
	}
	return st
}

// queueRow is one visible queue row as scraped by a queue source.
type queueRow struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration string `json:"duration"`
}

// queueReading is what one queue source returned. Current is the row index
// the page marked as playing, if any.
type queueReading struct {
	Tracks  []queueRow `json:"tracks"`
	Current *int       `json:"current"`
}

func (q queueReading) snapshot() *bridge.QueueSnapshot {
	snap := &bridge.QueueSnapshot{
		Tracks:       make([]bridge.TrackEntry, len(q.Tracks)),
		CurrentIndex: -1,
	}
	for i, row := range q.Tracks {
		snap.Tracks[i] = bridge.TrackEntry{
			Title:         strings.TrimSpace(row.Title),
			Artist:        strings.TrimSpace(row.Artist),
			DurationLabel: strings.TrimSpace(row.Duration),
			PositionIndex: i,
		}
	}
	if q.Current != nil && *q.Current >= 0 && *q.Current < len(q.Tracks) {
		snap.CurrentIndex = *q.Current
	}
	return snap
}

// parseClock converts "M:SS" or "H:MM:SS" to seconds.
func parseClock(label string) (float64, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}
	parts := strings.Split(label, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// formatClock renders seconds the way service players label durations.
func formatClock(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	s := int(math.Round(seconds))
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
