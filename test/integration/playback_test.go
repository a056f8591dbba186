//go:build integration

package integration

import (
	"math"
	"net/http"
	"testing"
	"time"
)

func TestHealth(t *testing.T) {
	resp := env.GET(t, "/health")
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[struct {
		Status string `json:"status"`
	}](t, resp)
	requireField(t, result.Status, "ok", "status")
}

func TestStateNamesService(t *testing.T) {
	st := env.requireMusicTab(t)
	switch st.Service {
	case "spotify", "youtube", "amazon":
	default:
		t.Fatalf("service = %q; want spotify, youtube or amazon", st.Service)
	}
	switch st.PlayState {
	case "playing", "paused", "stopped":
	default:
		t.Fatalf("playState = %q", st.PlayState)
	}
	if st.VolumePercent < 0 || st.VolumePercent > 100 {
		t.Fatalf("volumePercent = %v; want 0..100", st.VolumePercent)
	}
}

func TestQueueCurrentIndexInRange(t *testing.T) {
	env.requireMusicTab(t)
	resp := env.GET(t, "/api/v1/queue")
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[struct {
		Queue *struct {
			Tracks []struct {
				Title         string `json:"title"`
				PositionIndex int    `json:"positionIndex"`
			} `json:"tracks"`
			CurrentIndex int `json:"currentIndex"`
		} `json:"queue"`
	}](t, resp)
	if result.Queue == nil {
		t.Skip("queue not visible on the music tab")
	}
	q := result.Queue
	if q.CurrentIndex < -1 || q.CurrentIndex >= len(q.Tracks) {
		t.Fatalf("currentIndex = %d with %d tracks", q.CurrentIndex, len(q.Tracks))
	}
	for i, tr := range q.Tracks {
		requireField(t, tr.PositionIndex, i, "positionIndex")
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	got := env.command(t, "dance", nil)
	if got.OK || got.Error == "" {
		t.Fatalf("dance = %+v; want failure", got)
	}
}

func TestGetStateMessage(t *testing.T) {
	resp := env.POST(t, "/api/v1/message", map[string]any{"type": "GET_STATE"})
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[map[string]any](t, resp)
	if _, ok := result["connected"]; !ok {
		t.Fatalf("GET_STATE answer %v has no connected field", result)
	}
}

func TestSetVolume_AndRestore(t *testing.T) {
	original := env.requireMusicTab(t)
	t.Cleanup(func() {
		env.command(t, "setVolume", ptr(original.VolumePercent))
	})

	target := 37.0
	if math.Abs(original.VolumePercent-target) < 5 {
		target = 63
	}
	got := env.command(t, "setVolume", ptr(target))
	if !got.OK {
		t.Fatalf("setVolume(%v) = %+v", target, got)
	}
	st := env.waitState(t, 3*time.Second, func(p playback) bool {
		return math.Abs(p.VolumePercent-target) <= 2
	})
	if math.Abs(st.VolumePercent-target) > 2 {
		t.Fatalf("volumePercent = %v; want %v±2", st.VolumePercent, target)
	}
}

func TestPauseThenPlay_AndRestore(t *testing.T) {
	original := env.requireMusicTab(t)
	t.Cleanup(func() {
		if original.PlayState == "playing" {
			env.command(t, "play", nil)
		} else {
			env.command(t, "pause", nil)
		}
	})

	for _, step := range []struct{ verb, want string }{{"pause", "paused"}, {"play", "playing"}} {
		if got := env.command(t, step.verb, nil); !got.OK {
			t.Fatalf("%s = %+v", step.verb, got)
		}
		st := env.waitState(t, 3*time.Second, func(p playback) bool { return p.PlayState == step.want })
		requireField(t, st.PlayState, step.want, "playState")
	}
}
