package router

import (
	"context"
	"log/slog"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
)

// HandleMessage answers one control-panel wire message with the value to
// encode as its response. Only unknown message types are errors.
func (r *Router) HandleMessage(ctx context.Context, msg bridge.Message) (any, error) {
	switch msg.Type {
	case bridge.TypeGetState:
		return r.State(ctx), nil
	case bridge.TypeGetQueue:
		if q := r.Queue(ctx); q != nil {
			return q, nil
		}
		return nil, nil
	case bridge.TypeCommand:
		return r.Command(ctx, bridge.Command{Verb: msg.Command, Value: msg.Value}), nil
	case bridge.TypeResizeWindow:
		r.Resize(ctx, msg.Width, msg.Height)
		return bridge.Ack{OK: true}, nil
	case bridge.TypeOpenMusic:
		return r.ack("open music", r.OpenOrSwitch(ctx)), nil
	case bridge.TypeOpenYouTubeMusic:
		return r.ack("open youtube music", r.OpenYouTubeMusic(ctx)), nil
	case bridge.TypeOpenControlWindow, bridge.TypeOpenWinamp:
		return r.ack("open control window", r.OpenOrFocusControlWindow(ctx)), nil
	}
	return nil, &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: "unknown message type: " + string(msg.Type)}
}

func (r *Router) ack(action string, err error) bridge.Ack {
	if err != nil {
		slog.Warn("router "+action+" failed", "error", err)
		return bridge.Ack{OK: false}
	}
	return bridge.Ack{OK: true}
}
