package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
)

type stateOutput struct {
	Body bridge.StateReply
}

type queueOutput struct {
	Body struct {
		Queue *bridge.QueueSnapshot `json:"queue" doc:"Visible queue of the active music tab; null when nothing is known"`
	}
}

type commandInput struct {
	Body struct {
		Command bridge.Verb `json:"command" doc:"play, pause, stop, next, prev, seekTo, setVolume, toggleShuffle, toggleRepeat or playAt"`
		Value   *float64    `json:"value,omitempty" doc:"Seconds for seekTo, percent for setVolume, zero-based index for playAt"`
	}
}

type commandOutput struct {
	Body bridge.CommandResult
}

func registerPlaybackHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-state", Method: http.MethodGet, Path: "/api/v1/state", Summary: "Now playing on the active music tab", Tags: []string{"Playback"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			return &stateOutput{Body: svc.State(ctx)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-queue", Method: http.MethodGet, Path: "/api/v1/queue", Summary: "Queue of the active music tab", Tags: []string{"Playback"}},
		func(ctx context.Context, input *struct{}) (*queueOutput, error) {
			out := &queueOutput{}
			out.Body.Queue = svc.Queue(ctx)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "send-command", Method: http.MethodPost, Path: "/api/v1/command", Summary: "Send a transport or queue command", Tags: []string{"Playback"}},
		func(ctx context.Context, input *commandInput) (*commandOutput, error) {
			cmd := bridge.Command{Verb: input.Body.Command, Value: input.Body.Value}
			return &commandOutput{Body: svc.Command(ctx, cmd)}, nil
		})
}
