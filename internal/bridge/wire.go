package bridge

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates both router-facing messages and page envelopes.
type MessageType string

const (
	TypeGetState          MessageType = "GET_STATE"
	TypeGetQueue          MessageType = "GET_QUEUE"
	TypeCommand           MessageType = "COMMAND"
	TypeResizeWindow      MessageType = "RESIZE_WINDOW"
	TypeOpenMusic         MessageType = "OPEN_MUSIC"
	TypeOpenControlWindow MessageType = "OPEN_WINAMP_CONTROL"

	// Legacy names still sent by older panels and pages.
	TypeOpenYouTubeMusic MessageType = "OPEN_YT_MUSIC"
	TypeOpenWinamp       MessageType = "OPEN_WINAMP"
)

// IsControlWindowSignal reports whether t asks for the control window.
func (t MessageType) IsControlWindowSignal() bool {
	return t == TypeOpenControlWindow || t == TypeOpenWinamp
}

// Envelope directions on the page's message bus.
const (
	DirectionRequest  = "BRIDGE_REQUEST"
	DirectionResponse = "BRIDGE_RESPONSE"
)

// Request is the relay-to-adapter envelope.
type Request struct {
	Direction string      `json:"direction"`
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Command   Verb        `json:"command,omitempty"`
	Value     *float64    `json:"value,omitempty"`
}

// Response is the adapter-to-relay envelope. Data is always present, null
// when the adapter had nothing to report.
type Response struct {
	Direction string          `json:"direction"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
}

// Envelope is the union used to sniff messages seen on a port.
type Envelope struct {
	Direction string          `json:"direction"`
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Command   Verb            `json:"command"`
	Value     *float64        `json:"value"`
	Data      json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a raw port message. Messages that are not bridge
// envelopes return ok=false.
func DecodeEnvelope(raw []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, false
	}
	if env.Direction != DirectionRequest && env.Direction != DirectionResponse {
		return Envelope{}, false
	}
	return env, true
}

// AsCommand returns the command carried by a request envelope.
func (e Envelope) AsCommand() Command {
	return Command{Verb: e.Command, Value: e.Value}
}

// EncodeResponse marshals a response envelope around payload. A nil payload
// is encoded as JSON null.
func EncodeResponse(id string, payload any) ([]byte, error) {
	data := json.RawMessage("null")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("bridge: marshal response data: %w", err)
		}
		data = b
	}
	return json.Marshal(Response{Direction: DirectionResponse, ID: id, Data: data})
}

// Message is a router-facing request from the control panel.
type Message struct {
	Type    MessageType `json:"type"`
	Command Verb        `json:"command,omitempty"`
	Value   *float64    `json:"value,omitempty"`
	Width   int         `json:"width,omitempty"`
	Height  int         `json:"height,omitempty"`
}

// StateReply is the router's answer to GET_STATE. The playback fields are
// flattened next to connected/service and omitted when disconnected.
type StateReply struct {
	Connected bool   `json:"connected"`
	Service   string `json:"service,omitempty"`
	*PlaybackState
}

// Disconnected is the GET_STATE answer when no tab answered.
func Disconnected() StateReply { return StateReply{} }

// Ack is the answer to fire-and-forget window messages.
type Ack struct {
	OK bool `json:"ok"`
}
