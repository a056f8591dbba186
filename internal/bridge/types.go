package bridge

import (
	"fmt"
	"strings"
)

// PlayState is the transport state reported by an adapter.
type PlayState string

const (
	Playing PlayState = "playing"
	Paused  PlayState = "paused"
	Stopped PlayState = "stopped"
)

// RepeatMode is the repeat setting reported by an adapter.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// PlaybackState is one fresh reading of a service's player.
type PlaybackState struct {
	PlayState       PlayState  `json:"playState"`
	PositionSeconds float64    `json:"positionSeconds"`
	DurationSeconds float64    `json:"durationSeconds"`
	VolumePercent   float64    `json:"volumePercent"`
	Title           string     `json:"title"`
	Artist          string     `json:"artist"`
	ShuffleEnabled  bool       `json:"shuffleEnabled"`
	RepeatMode      RepeatMode `json:"repeatMode"`
	BitrateKbps     float64    `json:"bitrateKbps"`
	SampleRateKHz   float64    `json:"sampleRateKHz"`
}

// TrackEntry is one visible row of a service's queue.
type TrackEntry struct {
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	DurationLabel string `json:"durationLabel"`
	PositionIndex int    `json:"positionIndex"`
}

// QueueSnapshot lists queue rows in display order. CurrentIndex is -1 when
// the playing row is unknown.
type QueueSnapshot struct {
	Tracks       []TrackEntry `json:"tracks"`
	CurrentIndex int          `json:"currentIndex"`
}

// Verb is a command name from the fixed control vocabulary.
type Verb string

const (
	VerbPlay          Verb = "play"
	VerbPause         Verb = "pause"
	VerbStop          Verb = "stop"
	VerbNext          Verb = "next"
	VerbPrev          Verb = "prev"
	VerbSeekTo        Verb = "seekTo"
	VerbSetVolume     Verb = "setVolume"
	VerbToggleShuffle Verb = "toggleShuffle"
	VerbToggleRepeat  Verb = "toggleRepeat"
	VerbPlayAt        Verb = "playAt"
)

var verbs = []Verb{
	VerbPlay, VerbPause, VerbStop, VerbNext, VerbPrev,
	VerbSeekTo, VerbSetVolume, VerbToggleShuffle, VerbToggleRepeat, VerbPlayAt,
}

// Verbs returns the control vocabulary in a stable order.
func Verbs() []Verb {
	out := make([]Verb, len(verbs))
	copy(out, verbs)
	return out
}

// Known reports whether v belongs to the control vocabulary.
func (v Verb) Known() bool {
	for _, known := range verbs {
		if v == known {
			return true
		}
	}
	return false
}

// NeedsOperand reports whether the verb is meaningless without a value.
func (v Verb) NeedsOperand() bool {
	switch v {
	case VerbSeekTo, VerbSetVolume, VerbPlayAt:
		return true
	}
	return false
}

// Command is a control request. Value's meaning depends on the verb:
// seconds for seekTo, percent for setVolume, visible queue index for playAt.
type Command struct {
	Verb  Verb     `json:"command"`
	Value *float64 `json:"value,omitempty"`
}

// NewCommand builds a command without an operand.
func NewCommand(v Verb) Command {
	return Command{Verb: v}
}

// NewCommandValue builds a command carrying an operand.
func NewCommandValue(v Verb, value float64) Command {
	return Command{Verb: v, Value: &value}
}

// Operand returns the command value, or 0 when none was supplied.
func (c Command) Operand() float64 {
	if c.Value == nil {
		return 0
	}
	return *c.Value
}

func (c Command) String() string {
	if c.Value == nil {
		return string(c.Verb)
	}
	return fmt.Sprintf("%s(%g)", c.Verb, *c.Value)
}

// CommandResult is the outcome of a command. Error is set only when OK is false.
type CommandResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Success is the result of a command that some strategy carried out.
func Success() CommandResult { return CommandResult{OK: true} }

// Failure builds a failed result with a human-readable reason.
func Failure(format string, args ...any) CommandResult {
	return CommandResult{OK: false, Error: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

const (
	// ErrTextUnknownCommand is reported for verbs outside the vocabulary.
	ErrTextUnknownCommand = "unknown command"
	// ErrTextNoMusicTab is reported when no tab of any service is open.
	ErrTextNoMusicTab = "No music tab found"
	// ErrTextNoAnswer is reported when the tab did not answer before the deadline.
	ErrTextNoAnswer = "no answer from music tab"
)
