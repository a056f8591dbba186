package cdpcontrol

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
)

// postBudget bounds how long a forwarded page message may wait for room in
// the local queue before it is dropped.
const postBudget = 250 * time.Millisecond

// TabConn is a dedicated session on one tab. It exposes the tab's window
// message bus as a bridge.Port and lets adapters evaluate scripts and click
// inside the page.
type TabConn struct {
	info        TabInfo
	cdp         *rawCDP
	sessionID   string
	evalTimeout time.Duration

	local      *bridge.LocalPort
	unregister func()
	closeOnce  sync.Once
}

// ConnectTab attaches a session to the tab and installs the message shim.
func (c *Client) ConnectTab(ctx context.Context, id target.ID) (*TabConn, error) {
	session, err := c.resolveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	cdp, err := c.connected(ctx)
	if err != nil {
		return nil, err
	}

	sid, err := cdp.attachToTarget(ctx, string(id))
	if err != nil {
		return nil, newError(CodeTabNotFound, "attach to tab failed", err)
	}

	t := &TabConn{
		info:        session.info,
		cdp:         cdp,
		sessionID:   sid,
		evalTimeout: c.evalTimeout,
		local:       bridge.NewLocalPort(),
	}
	t.unregister = cdp.registerEventHandler("Runtime.bindingCalled", t.onBinding)

	if err := t.install(ctx); err != nil {
		t.Close()
		return nil, newError(CodeCDPUnavailable, "install bridge shim failed", err)
	}
	slog.Info("cdpcontrol tab connected", "target_id", id, "session_id", sid, "url", session.info.URL)
	return t, nil
}

func (t *TabConn) install(ctx context.Context) error {
	if err := t.cdp.enableRuntime(ctx, t.sessionID); err != nil {
		return err
	}
	if err := t.cdp.addBinding(ctx, t.sessionID, bindingName); err != nil {
		return err
	}
	shim := jsBridgeShim()
	if err := t.cdp.addScriptOnNewDocument(ctx, t.sessionID, shim); err != nil {
		return err
	}
	_, err := t.cdp.evaluate(ctx, t.sessionID, shim)
	return err
}

func (t *TabConn) onBinding(sessionID string, params json.RawMessage) {
	if sessionID != t.sessionID {
		return
	}
	var call struct {
		Name    string `json:"name"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(params, &call); err != nil || call.Name != bindingName {
		return
	}
	// Runs on the CDP read loop; never block it for long.
	ctx, cancel := context.WithTimeout(context.Background(), postBudget)
	defer cancel()
	if err := t.local.Post(ctx, []byte(call.Payload)); err != nil {
		slog.Warn("cdpcontrol page message dropped", "target_id", t.info.TargetID, "error", err)
	}
}

// Info describes the tab this connection is attached to.
func (t *TabConn) Info() TabInfo { return t.info }

// Post dispatches msg on the page window.
func (t *TabConn) Post(ctx context.Context, msg []byte) error {
	return evaluateEnvelope(ctx, t.cdp, t.sessionID, t.evalTimeout, jsPostMessage(msg), nil)
}

// Listen registers fn for every bridge envelope seen on the page window.
func (t *TabConn) Listen(fn func(msg []byte)) func() {
	return t.local.Listen(fn)
}

// Eval runs an envelope-returning script and decodes its data into out.
func (t *TabConn) Eval(ctx context.Context, js string, out any) error {
	return evaluateEnvelope(ctx, t.cdp, t.sessionID, t.evalTimeout, js, out)
}

// Click dispatches a trusted left click at viewport coordinates.
func (t *TabConn) Click(ctx context.Context, x, y float64) error {
	if err := t.cdp.dispatchMouseClick(ctx, t.sessionID, x, y); err != nil {
		return newError(CodeEvalFailure, "click failed", err)
	}
	return nil
}

// Close detaches the session. The tab itself stays open.
func (t *TabConn) Close() error {
	t.closeOnce.Do(func() {
		if t.unregister != nil {
			t.unregister()
		}
		t.local.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := t.cdp.detachFromTarget(ctx, t.sessionID); err != nil {
			slog.Debug("cdpcontrol tab detach failed", "target_id", t.info.TargetID, "error", err)
		}
	})
	return nil
}
