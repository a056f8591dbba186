package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteTimeout = 5 * time.Second
	// wsRequestBudget bounds one message, discovery plus relay round trip.
	wsRequestBudget = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The panel is served from this process or loaded from a file; both
	// are local.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is a wire message plus an optional id the client uses to match
// concurrent answers.
type wsRequest struct {
	RequestID string `json:"requestId,omitempty"`
	bridge.Message
}

type wsReply struct {
	RequestID string          `json:"requestId,omitempty"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error,omitempty"`
}

// wsConn serialises writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func wsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		c := &wsConn{conn: conn}
		slog.Info("ws client connected", "remote", r.RemoteAddr)

		// Cancel in-flight requests before waiting for them.
		var inflight sync.WaitGroup
		defer inflight.Wait()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		})

		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := c.ping(); err != nil {
						slog.Debug("ws ping failed", "remote", r.RemoteAddr, "error", err)
						return
					}
				}
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("ws read failed", "remote", r.RemoteAddr, "error", err)
				}
				slog.Info("ws client disconnected", "remote", r.RemoteAddr)
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

			var req wsRequest
			if err := json.Unmarshal(data, &req); err != nil || req.Type == "" {
				if err := c.writeJSON(wsReply{Data: json.RawMessage("null"), Error: "invalid message"}); err != nil {
					slog.Debug("ws write failed", "error", err)
				}
				continue
			}

			inflight.Add(1)
			go func() {
				defer inflight.Done()
				reqCtx, reqCancel := context.WithTimeout(ctx, wsRequestBudget)
				defer reqCancel()

				reply := wsReply{RequestID: req.RequestID, Type: string(req.Type), Data: json.RawMessage("null")}
				raw, err := dispatch(reqCtx, svc, req.Message)
				if err != nil {
					reply.Error = err.Error()
				} else {
					reply.Data = raw
				}
				if err := c.writeJSON(reply); err != nil {
					slog.Debug("ws write failed", "request_id", req.RequestID, "error", err)
				}
			}()
		}
	}
}
