package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
)

type messageInput struct {
	Body bridge.Message
}

type messageOutput struct {
	Body json.RawMessage
}

func registerMessageHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "post-message", Method: http.MethodPost, Path: "/api/v1/message", Summary: "Send one control-panel wire message", Description: "Accepts GET_STATE, GET_QUEUE, COMMAND, RESIZE_WINDOW, OPEN_MUSIC, OPEN_WINAMP_CONTROL and their legacy aliases, and answers with the exact wire response.", Tags: []string{"Messages"}},
		func(ctx context.Context, input *messageInput) (*messageOutput, error) {
			raw, err := dispatch(ctx, svc, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &messageOutput{Body: raw}, nil
		})
}

// dispatch answers msg and encodes the reply, null included.
func dispatch(ctx context.Context, svc Service, msg bridge.Message) (json.RawMessage, error) {
	reply, err := svc.HandleMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
