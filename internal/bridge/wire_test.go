package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStateReplyDisconnectedShape(t *testing.T) {
	b, err := json.Marshal(Disconnected())
	if err != nil {
		t.Fatalf("json.Marshal() = %v", err)
	}
	if got, want := string(b), `{"connected":false}`; got != want {
		t.Fatalf("disconnected reply = %s; want %s", got, want)
	}
}

func TestStateReplyFlattensPlaybackFields(t *testing.T) {
	reply := StateReply{
		Connected: true,
		Service:   "spotify",
		PlaybackState: &PlaybackState{
			PlayState:       Playing,
			PositionSeconds: 225,
			DurationSeconds: 260,
			RepeatMode:      RepeatOff,
		},
	}
	b, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("json.Marshal() = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("json.Unmarshal() = %v", err)
	}
	if got["connected"] != true || got["service"] != "spotify" {
		t.Fatalf("reply = %s; want connected spotify", b)
	}
	if got["positionSeconds"] != float64(225) || got["durationSeconds"] != float64(260) {
		t.Fatalf("reply = %s; want flattened position/duration", b)
	}
	if _, nested := got["PlaybackState"]; nested {
		t.Fatalf("reply = %s; playback fields must not be nested", b)
	}
}

func TestEncodeResponseNilPayloadIsNull(t *testing.T) {
	b, err := EncodeResponse("abc", nil)
	if err != nil {
		t.Fatalf("EncodeResponse() = %v", err)
	}
	if got, want := string(b), `{"direction":"BRIDGE_RESPONSE","id":"abc","data":null}`; got != want {
		t.Fatalf("EncodeResponse(nil) = %s; want %s", got, want)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		ok     bool
		verb   Verb
		hasVal bool
	}{
		{name: "request with value", raw: `{"direction":"BRIDGE_REQUEST","id":"1","type":"COMMAND","command":"seekTo","value":12}`, ok: true, verb: VerbSeekTo, hasVal: true},
		{name: "response", raw: `{"direction":"BRIDGE_RESPONSE","id":"1","data":null}`, ok: true},
		{name: "foreign page message", raw: `{"source":"react-devtools","payload":{}}`, ok: false},
		{name: "not json", raw: `hello`, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := DecodeEnvelope([]byte(tt.raw))
			if ok != tt.ok {
				t.Fatalf("DecodeEnvelope ok = %v; want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			cmd := env.AsCommand()
			if cmd.Verb != tt.verb {
				t.Fatalf("verb = %q; want %q", cmd.Verb, tt.verb)
			}
			if (cmd.Value != nil) != tt.hasVal {
				t.Fatalf("value present = %v; want %v", cmd.Value != nil, tt.hasVal)
			}
		})
	}
}

func TestVerbKnown(t *testing.T) {
	for _, v := range Verbs() {
		if !v.Known() {
			t.Fatalf("%q.Known() = false; want true", v)
		}
	}
	if Verb("rewind").Known() {
		t.Fatal(`"rewind".Known() = true; want false`)
	}
}

func TestCommandResultFailureOmitsNothing(t *testing.T) {
	b, err := json.Marshal(Failure("no %s button", "next"))
	if err != nil {
		t.Fatalf("json.Marshal() = %v", err)
	}
	if got, want := string(b), `{"ok":false,"error":"no next button"}`; got != want {
		t.Fatalf("failure = %s; want %s", got, want)
	}
	b, _ = json.Marshal(Success())
	if got, want := string(b), `{"ok":true}`; got != want {
		t.Fatalf("success = %s; want %s", got, want)
	}
}

func TestLocalPortBroadcastsToAllListeners(t *testing.T) {
	p := NewLocalPort()
	defer p.Close()

	first := make(chan string, 1)
	second := make(chan string, 1)
	p.Listen(func(msg []byte) { first <- string(msg) })
	p.Listen(func(msg []byte) { second <- string(msg) })

	if err := p.Post(context.Background(), []byte("ping")); err != nil {
		t.Fatalf("Post() = %v", err)
	}
	for _, ch := range []chan string{first, second} {
		select {
		case got := <-ch:
			if got != "ping" {
				t.Fatalf("listener got %q; want ping", got)
			}
		case <-time.After(time.Second):
			t.Fatal("listener never received the message")
		}
	}
}

func TestLocalPortUnlistenAndClose(t *testing.T) {
	p := NewLocalPort()

	got := make(chan string, 4)
	unlisten := p.Listen(func(msg []byte) { got <- string(msg) })
	unlisten()

	if err := p.Post(context.Background(), []byte("ignored")); err != nil {
		t.Fatalf("Post() = %v", err)
	}
	select {
	case msg := <-got:
		t.Fatalf("unlistened handler received %q", msg)
	case <-time.After(50 * time.Millisecond):
	}

	_ = p.Close()
	err := p.Post(context.Background(), []byte("late"))
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("Post after Close = %v; want port closed", err)
	}
}
