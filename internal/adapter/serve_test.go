package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/relay"
	"github.com/dgnsrekt/musicbridge/internal/service"
)

func TestServeAnswersThroughRelay(t *testing.T) {
	port := bridge.NewLocalPort()
	defer port.Close()

	page := newFakePage().
		set("spotify.nowplaying", map[string]any{"title": "Song", "positionText": "3:45", "durationText": "4:20"}).
		set("spotify.click.next", map[string]any{})
	stop := Serve(port, mustAdapter(t, service.Spotify, page))
	defer stop()

	r := relay.New(port, relay.WithTimeout(time.Second))
	defer r.Close()

	data, answered := r.Ask(context.Background(), bridge.TypeGetState, nil)
	if !answered {
		t.Fatal("GET_STATE unanswered")
	}
	var st bridge.PlaybackState
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("json.Unmarshal(state) = %v", err)
	}
	if st.PositionSeconds != 225 || st.DurationSeconds != 260 {
		t.Fatalf("state = %+v; want 225/260", st)
	}

	cmd := bridge.NewCommand(bridge.VerbNext)
	data, answered = r.Ask(context.Background(), bridge.TypeCommand, &cmd)
	if !answered {
		t.Fatal("COMMAND unanswered")
	}
	var res bridge.CommandResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("json.Unmarshal(result) = %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v; want ok", res)
	}
}

func TestServeEncodesMissingReadsAsNull(t *testing.T) {
	port := bridge.NewLocalPort()
	defer port.Close()

	stop := Serve(port, mustAdapter(t, service.Amazon, newFakePage()))
	defer stop()

	r := relay.New(port, relay.WithTimeout(time.Second))
	defer r.Close()

	for _, typ := range []bridge.MessageType{bridge.TypeGetState, bridge.TypeGetQueue} {
		data, answered := r.Ask(context.Background(), typ, nil)
		if !answered {
			t.Fatalf("%s unanswered", typ)
		}
		if string(data) != "null" {
			t.Fatalf("%s data = %s; want null", typ, data)
		}
	}
}

func TestServeIgnoresOtherTypes(t *testing.T) {
	port := bridge.NewLocalPort()
	defer port.Close()

	stop := Serve(port, mustAdapter(t, service.YouTube, newFakePage()))
	defer stop()

	r := relay.New(port, relay.WithTimeout(100*time.Millisecond))
	defer r.Close()

	if _, answered := r.Ask(context.Background(), bridge.MessageType("GET_AUDIO_DATA"), nil); answered {
		t.Fatal("GET_AUDIO_DATA answered; want ignored")
	}
}

func TestServeStopDetaches(t *testing.T) {
	port := bridge.NewLocalPort()
	defer port.Close()

	page := newFakePage().set("spotify.nowplaying", map[string]any{"title": "Song"})
	stop := Serve(port, mustAdapter(t, service.Spotify, page))
	stop()
	stop()

	r := relay.New(port, relay.WithTimeout(100*time.Millisecond))
	defer r.Close()
	if _, answered := r.Ask(context.Background(), bridge.TypeGetState, nil); answered {
		t.Fatal("stopped adapter still answered")
	}
}

func TestServeWithRequestFilterRunsCommandOnce(t *testing.T) {
	port := bridge.NewLocalPort()
	defer port.Close()

	hosts := make([]*fakePage, 2)
	relays := make([]*relay.Relay, 2)
	for i := range hosts {
		hosts[i] = newFakePage().set("spotify.click.next", map[string]any{})
		relays[i] = relay.New(port, relay.WithTimeout(time.Second))
		defer relays[i].Close()
		stop := Serve(port, mustAdapter(t, service.Spotify, hosts[i]), WithRequestFilter(relays[i].Owns))
		defer stop()
	}

	cmd := bridge.NewCommand(bridge.VerbNext)
	if _, answered := relays[0].Ask(context.Background(), bridge.TypeCommand, &cmd); !answered {
		t.Fatal("COMMAND unanswered")
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok := hosts[0].called("spotify.click.next"); !ok {
		t.Fatal("owning host did not run next")
	}
	if _, ok := hosts[1].called("spotify.click.next"); ok {
		t.Fatal("second host ran a command it did not ask for")
	}
}
