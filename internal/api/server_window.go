package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
)

type resizeInput struct {
	Body struct {
		Width  int `json:"width" minimum:"1" doc:"Outer window width in pixels"`
		Height int `json:"height" minimum:"1" doc:"Outer window height in pixels"`
	}
}

type ackOutput struct {
	Body bridge.Ack
}

func registerWindowHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "resize-control-window", Method: http.MethodPost, Path: "/api/v1/window/resize", Summary: "Resize the control window if it is open", Tags: []string{"Window"}},
		func(ctx context.Context, input *resizeInput) (*ackOutput, error) {
			svc.Resize(ctx, input.Body.Width, input.Body.Height)
			return &ackOutput{Body: bridge.Ack{OK: true}}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "open-music", Method: http.MethodPost, Path: "/api/v1/music/open", Summary: "Switch to the music tab or open the last used service", Tags: []string{"Window"}},
		func(ctx context.Context, input *struct{}) (*ackOutput, error) {
			if err := svc.OpenOrSwitch(ctx); err != nil {
				return nil, mapErr(err)
			}
			return &ackOutput{Body: bridge.Ack{OK: true}}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "open-control-window", Method: http.MethodPost, Path: "/api/v1/control/open", Summary: "Open or focus the control window", Tags: []string{"Window"}},
		func(ctx context.Context, input *struct{}) (*ackOutput, error) {
			if err := svc.OpenOrFocusControlWindow(ctx); err != nil {
				return nil, mapErr(err)
			}
			return &ackOutput{Body: bridge.Ack{OK: true}}, nil
		})
}
