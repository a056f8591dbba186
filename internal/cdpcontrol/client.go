package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth retrying (e.g. broken connection, closed session).
var transientHints = []string{
	"context canceled",
	"target closed",
	"session closed",
	"session with given id not found",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
	"not connected",
}

type tabSession struct {
	info      TabInfo
	mu        sync.Mutex
	sessionID string // CDP session ID from Target.attachToTarget
}

// Client drives the user's Chromium over one browser-level CDP connection.
type Client struct {
	cdpURL      string
	evalTimeout time.Duration

	mu   sync.Mutex
	cdp  *rawCDP
	tabs map[target.ID]*tabSession
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func NewClient(cdpURL string, evalTimeout time.Duration) *Client {
	return &Client{
		cdpURL:      cdpURL,
		evalTimeout: evalTimeout,
		tabs:        make(map[target.ID]*tabSession),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return newError(CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdpcontrol connect start", "cdp_url", c.cdpURL)
	c.cleanupLocked()

	c.cdp = newRawCDP(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return newError(CodeCDPUnavailable, "connect to CDP failed", err)
	}

	if err := c.syncTabsLocked(ctx); err != nil {
		slog.Error("cdpcontrol initial tab sync failed", "error", err)
		c.cleanupLocked()
		return newError(CodeCDPUnavailable, "connect to CDP failed", err)
	}

	slog.Info("cdpcontrol connect ok", "cdp_url", c.cdpURL, "tabs", len(c.tabs))
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

func (c *Client) cleanupLocked() {
	// Detach from any active sessions without closing targets.
	if c.cdp != nil {
		for targetID, session := range c.tabs {
			if session == nil {
				continue
			}
			session.mu.Lock()
			if session.sessionID != "" {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				if err := c.cdp.detachFromTarget(ctx, session.sessionID); err != nil {
					slog.Debug("cdpcontrol detach cleanup failed", "target_id", targetID, "error", err)
				}
				cancel()
				session.sessionID = ""
			}
			session.mu.Unlock()
		}
		c.cdp.close()
		c.cdp = nil
	}
	c.tabs = make(map[target.ID]*tabSession)
}

// ListTabs returns open page targets in the browser's listing order.
func (c *Client) ListTabs(ctx context.Context) ([]TabInfo, error) {
	infos, err := c.refreshTabs(ctx)
	if err != nil {
		slog.Warn("cdpcontrol list tabs failed", "error", err)
		return nil, err
	}
	slog.Debug("cdpcontrol list tabs", "count", len(infos))
	return infos, nil
}

// IsAudible reports whether the tab is currently producing sound.
func (c *Client) IsAudible(ctx context.Context, id target.ID) (bool, error) {
	var out struct {
		Audible bool `json:"audible"`
	}
	if err := c.evalOnTab(ctx, id, jsAudibleProbe(), &out); err != nil {
		return false, err
	}
	return out.Audible, nil
}

// ActivateTab brings the tab to the front and focuses its window.
func (c *Client) ActivateTab(ctx context.Context, id target.ID) error {
	cdp, err := c.connected(ctx)
	if err != nil {
		return err
	}
	if err := cdp.activateTarget(ctx, id); err != nil {
		return newError(CodeTabNotFound, "activate tab failed", err)
	}
	c.restoreWindow(ctx, cdp, id)
	slog.Debug("cdpcontrol tab activated", "target_id", id)
	return nil
}

// OpenTab opens url in a new tab of the current window.
func (c *Client) OpenTab(ctx context.Context, url string) (target.ID, error) {
	cdp, err := c.connected(ctx)
	if err != nil {
		return "", err
	}
	id, err := cdp.createTarget(ctx, url, false, 0, 0)
	if err != nil {
		return "", newError(CodeCDPUnavailable, "open tab failed", err)
	}
	slog.Info("cdpcontrol tab opened", "target_id", id, "url", url)
	return id, nil
}

// OpenWindow opens url in a new window sized width x height.
func (c *Client) OpenWindow(ctx context.Context, url string, width, height int) (WindowHandle, error) {
	if width <= 0 || height <= 0 {
		return WindowHandle{}, newError(CodeValidation, "window size must be positive", nil)
	}
	cdp, err := c.connected(ctx)
	if err != nil {
		return WindowHandle{}, err
	}
	id, err := cdp.createTarget(ctx, url, true, width, height)
	if err != nil {
		return WindowHandle{}, newError(CodeCDPUnavailable, "open window failed", err)
	}
	windowID, err := cdp.getWindowForTarget(ctx, id)
	if err != nil {
		return WindowHandle{}, newError(CodeCDPUnavailable, "resolve window failed", err)
	}
	// createTarget sizes are advisory on headful builds; enforce them.
	if err := cdp.setWindowBounds(ctx, windowID, windowBounds{Width: width, Height: height}); err != nil {
		slog.Warn("cdpcontrol window resize after open failed", "window_id", windowID, "error", err)
	}
	slog.Info("cdpcontrol window opened", "target_id", id, "window_id", windowID, "url", url)
	return WindowHandle{TargetID: id, WindowID: windowID}, nil
}

// FocusWindow raises the window opened for h.
func (c *Client) FocusWindow(ctx context.Context, h WindowHandle) error {
	cdp, err := c.connected(ctx)
	if err != nil {
		return err
	}
	if err := cdp.activateTarget(ctx, h.TargetID); err != nil {
		return newError(CodeTabNotFound, "focus window failed", err)
	}
	c.restoreWindow(ctx, cdp, h.TargetID)
	return nil
}

// WindowExists reports whether the page opened for h is still open.
func (c *Client) WindowExists(ctx context.Context, h WindowHandle) (bool, error) {
	cdp, err := c.connected(ctx)
	if err != nil {
		return false, err
	}
	targets, err := cdp.listTargets(ctx)
	if err != nil {
		return false, newError(CodeCDPUnavailable, "failed to list targets", err)
	}
	for _, t := range targets {
		if t.TargetID == h.TargetID {
			return true, nil
		}
	}
	return false, nil
}

// ResizeWindow sets the outer size of the window opened for h.
func (c *Client) ResizeWindow(ctx context.Context, h WindowHandle, width, height int) error {
	if width <= 0 || height <= 0 {
		return newError(CodeValidation, "window size must be positive", nil)
	}
	cdp, err := c.connected(ctx)
	if err != nil {
		return err
	}
	if err := cdp.setWindowBounds(ctx, h.WindowID, windowBounds{Width: width, Height: height}); err != nil {
		return newError(CodeTabNotFound, "resize window failed", err)
	}
	return nil
}

// restoreWindow un-minimises the window hosting id. Failures are logged only.
func (c *Client) restoreWindow(ctx context.Context, cdp *rawCDP, id target.ID) {
	windowID, err := cdp.getWindowForTarget(ctx, id)
	if err != nil {
		slog.Debug("cdpcontrol window lookup failed", "target_id", id, "error", err)
		return
	}
	if err := cdp.setWindowBounds(ctx, windowID, windowBounds{WindowState: browser.WindowStateNormal}); err != nil {
		slog.Debug("cdpcontrol window restore failed", "window_id", windowID, "error", err)
	}
}

func (c *Client) evalOnTab(ctx context.Context, id target.ID, js string, out any) error {
	session, err := c.resolveSession(ctx, id)
	if err == nil {
		err = c.evalOnSession(ctx, session, id, js, out)
	}
	if err == nil || !c.shouldRetry(err) {
		return err
	}

	slog.Warn("cdpcontrol eval retry after transient failure", "target_id", id, "error", err)
	if c.asCode(err, CodeCDPUnavailable) {
		if recErr := c.reconnect(ctx); recErr != nil {
			slog.Error("cdpcontrol reconnect failed during retry", "target_id", id, "error", recErr)
			return recErr
		}
	}
	session, err = c.resolveSession(ctx, id)
	if err != nil {
		return err
	}
	return c.evalOnSession(ctx, session, id, js, out)
}

func (c *Client) evalOnSession(ctx context.Context, session *tabSession, id target.ID, js string, out any) error {
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	sessionID, err := c.ensureSession(ctx, cdp, session, id)
	if err != nil {
		return err
	}

	err = evaluateEnvelope(ctx, cdp, sessionID, c.evalTimeout, js, out)
	var coded *CodedError
	if errors.As(err, &coded) && coded.Cause != nil {
		slog.Warn("cdpcontrol eval failed", "target_id", id, "error", err)
		// Reset session so a fresh attach happens on retry.
		session.mu.Lock()
		session.sessionID = ""
		session.mu.Unlock()
	}
	return err
}

// evaluateEnvelope runs js on a session and decodes the ok/data envelope.
func evaluateEnvelope(ctx context.Context, cdp *rawCDP, sessionID string, timeout time.Duration, js string, out any) error {
	evalCtx := ctx
	if timeout > 0 {
		var evalCancel context.CancelFunc
		evalCtx, evalCancel = context.WithTimeout(ctx, timeout)
		defer evalCancel()
	}

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return newError(CodeEvalTimeout, "evaluation timed out", err)
		}
		return newError(CodeEvalFailure, "evaluation failed", err)
	}
	return decodeEnvelope(raw, out)
}

func decodeEnvelope(raw string, out any) error {
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return newError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// ensureSession returns a CDP session ID for the target, attaching if needed.
func (c *Client) ensureSession(ctx context.Context, cdp *rawCDP, session *tabSession, id target.ID) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.sessionID != "" {
		return session.sessionID, nil
	}

	sid, err := cdp.attachToTarget(ctx, string(id))
	if err != nil {
		return "", newError(CodeCDPUnavailable, "attach to target failed", err)
	}
	session.sessionID = sid
	slog.Debug("cdpcontrol session attached", "target_id", id, "session_id", sid)
	return sid, nil
}

func (c *Client) resolveSession(ctx context.Context, id target.ID) (*tabSession, error) {
	c.mu.Lock()
	session := c.tabs[id]
	c.mu.Unlock()
	if session != nil {
		return session, nil
	}

	if _, err := c.refreshTabs(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	session = c.tabs[id]
	c.mu.Unlock()
	if session == nil {
		return nil, newError(CodeTabNotFound, "tab not found: "+string(id), nil)
	}
	return session, nil
}

func (c *Client) refreshTabs(ctx context.Context) ([]TabInfo, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	infos, err := c.syncTabsLocked(ctx)
	c.mu.Unlock()
	if err == nil {
		return infos, nil
	}
	return nil, newError(CodeCDPUnavailable, "failed to list targets", err)
}

func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

// syncTabsLocked reconciles the session cache with the browser's page
// targets and returns them in listing order.
func (c *Client) syncTabsLocked(ctx context.Context) ([]TabInfo, error) {
	if c.cdp == nil {
		return nil, newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}

	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]TabInfo, 0, len(targets))
	seen := make(map[target.ID]bool, len(targets))
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		info := TabInfo{TargetID: t.TargetID, URL: t.URL, Title: t.Title}
		infos = append(infos, info)
		seen[t.TargetID] = true
		if session := c.tabs[t.TargetID]; session != nil {
			session.info = info
		} else {
			c.tabs[t.TargetID] = &tabSession{info: info}
		}
	}

	for id := range c.tabs {
		if !seen[id] {
			delete(c.tabs, id)
		}
	}
	return infos, nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.cdp != nil && c.cdp.isConnected()
	c.mu.Unlock()
	if connected {
		return nil
	}
	return c.reconnect(ctx)
}

// connected returns the live transport, reconnecting when needed.
func (c *Client) connected(ctx context.Context) (*rawCDP, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cdp == nil {
		return nil, newError(CodeCDPUnavailable, "CDP client not connected", nil)
	}
	return c.cdp, nil
}

func (c *Client) shouldRetry(err error) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}

	switch coded.Code {
	case CodeCDPUnavailable:
		return true
	case CodeTabNotFound:
		return false
	case CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range transientHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}

func (c *Client) asCode(err error, code string) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}
