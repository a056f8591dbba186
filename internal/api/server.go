package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
	"github.com/dgnsrekt/musicbridge/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is the router surface exposed over HTTP.
type Service interface {
	State(ctx context.Context) bridge.StateReply
	Queue(ctx context.Context) *bridge.QueueSnapshot
	Command(ctx context.Context, cmd bridge.Command) bridge.CommandResult
	Resize(ctx context.Context, width, height int)
	OpenOrSwitch(ctx context.Context) error
	OpenOrFocusControlWindow(ctx context.Context) error
	HandleMessage(ctx context.Context, msg bridge.Message) (any, error)
}

func NewServer(svc Service, broker *events.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("musicbridge API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", htmlPage(docsHTML))
	router.Get("/docs/ws", htmlPage(wsDocsHTML))
	router.Get("/panel", htmlPage(panelHTML))
	router.Get("/api/v1/ws", wsHandler(svc))
	if broker != nil {
		router.Get("/api/v1/events", events.SSEHandler(broker))
	}

	registerHealthHandlers(api)
	registerPlaybackHandlers(api, svc)
	registerWindowHandlers(api, svc)
	registerMessageHandlers(api, svc)

	return router
}

func htmlPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(body)); err != nil {
			slog.Debug("html response write failed", "path", r.URL.Path, "error", err)
		}
	}
}

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpcontrol.CodeTabNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdpcontrol.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpcontrol.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
