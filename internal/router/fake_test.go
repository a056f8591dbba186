package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
)

var scriptNameRe = regexp.MustCompile(`musicbridge:([^\s*]+)`)

// fakeTab is an attached page whose scripts answer by name.
type fakeTab struct {
	*bridge.LocalPort
	silent bool

	mu      sync.Mutex
	scripts map[string]any
	evals   map[string]int
	closed  bool
}

func newFakeTab(scripts map[string]any) *fakeTab {
	return &fakeTab{LocalPort: bridge.NewLocalPort(), scripts: scripts, evals: make(map[string]int)}
}

// Post swallows messages on a silent tab, as a page without an adapter would.
func (f *fakeTab) Post(ctx context.Context, msg []byte) error {
	if f.silent {
		return nil
	}
	return f.LocalPort.Post(ctx, msg)
}

func (f *fakeTab) Eval(_ context.Context, js string, out any) error {
	m := scriptNameRe.FindStringSubmatch(js)
	if m == nil {
		return fmt.Errorf("unmarked script")
	}
	f.mu.Lock()
	f.evals[m[1]]++
	data, ok := f.scripts[m[1]]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("API_UNAVAILABLE: %s", m[1])
	}
	if out == nil || data == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *fakeTab) Click(context.Context, float64, float64) error { return nil }

func (f *fakeTab) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.LocalPort.Close()
}

func (f *fakeTab) evalCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals[name]
}

func (f *fakeTab) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type openedWindow struct {
	URL           string
	Width, Height int
}

type fakeBrowser struct {
	mu       sync.Mutex
	tabs     []cdpcontrol.TabInfo
	audible  map[target.ID]bool
	pages    map[target.ID]*fakeTab
	listErr  error
	windows  map[target.ID]bool
	nextWin  int
	connects int
	held     map[target.ID]chan struct{}
	holding  map[target.ID]bool

	activated []target.ID
	openedTab []string
	opened    []openedWindow
	focused   []cdpcontrol.WindowHandle
	resized   []openedWindow
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		audible: make(map[target.ID]bool),
		pages:   make(map[target.ID]*fakeTab),
		windows: make(map[target.ID]bool),
		held:    make(map[target.ID]chan struct{}),
		holding: make(map[target.ID]bool),
	}
}

// holdConnect makes ConnectTab(id) wait until gate is closed.
func (b *fakeBrowser) holdConnect(id target.ID, gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held[id] = gate
}

func (b *fakeBrowser) connectHeld(id target.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holding[id]
}

func (b *fakeBrowser) addTab(id target.ID, url string, page *fakeTab) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tabs = append(b.tabs, cdpcontrol.TabInfo{TargetID: id, URL: url})
	if page != nil {
		b.pages[id] = page
	}
}

func (b *fakeBrowser) removeTab(id target.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.tabs {
		if t.TargetID == id {
			b.tabs = append(b.tabs[:i], b.tabs[i+1:]...)
			return
		}
	}
}

func (b *fakeBrowser) closeWindow(h cdpcontrol.WindowHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, h.TargetID)
}

func (b *fakeBrowser) ListTabs(context.Context) ([]cdpcontrol.TabInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]cdpcontrol.TabInfo(nil), b.tabs...), nil
}

func (b *fakeBrowser) IsAudible(_ context.Context, id target.ID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.audible[id], nil
}

func (b *fakeBrowser) ActivateTab(_ context.Context, id target.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activated = append(b.activated, id)
	return nil
}

func (b *fakeBrowser) OpenTab(_ context.Context, url string) (target.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openedTab = append(b.openedTab, url)
	return target.ID(fmt.Sprintf("new-%d", len(b.openedTab))), nil
}

func (b *fakeBrowser) OpenWindow(_ context.Context, url string, width, height int) (cdpcontrol.WindowHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextWin++
	h := cdpcontrol.WindowHandle{
		TargetID: target.ID(fmt.Sprintf("panel-%d", b.nextWin)),
		WindowID: browser.WindowID(b.nextWin),
	}
	b.windows[h.TargetID] = true
	b.opened = append(b.opened, openedWindow{URL: url, Width: width, Height: height})
	return h, nil
}

func (b *fakeBrowser) FocusWindow(_ context.Context, h cdpcontrol.WindowHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = append(b.focused, h)
	return nil
}

func (b *fakeBrowser) WindowExists(_ context.Context, h cdpcontrol.WindowHandle) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windows[h.TargetID], nil
}

func (b *fakeBrowser) ResizeWindow(_ context.Context, _ cdpcontrol.WindowHandle, width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resized = append(b.resized, openedWindow{Width: width, Height: height})
	return nil
}

func (b *fakeBrowser) ConnectTab(ctx context.Context, id target.ID) (Tab, error) {
	b.mu.Lock()
	gate := b.held[id]
	if gate != nil {
		b.holding[id] = true
	}
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	page, ok := b.pages[id]
	if !ok {
		return nil, &cdpcontrol.CodedError{Code: cdpcontrol.CodeTabNotFound, Message: "no page " + string(id)}
	}
	b.connects++
	return page, nil
}

type browserCalls struct {
	connects  int
	activated []target.ID
	openedTab []string
	opened    []openedWindow
	focused   []cdpcontrol.WindowHandle
	resized   []openedWindow
}

func (b *fakeBrowser) calls() browserCalls {
	b.mu.Lock()
	defer b.mu.Unlock()
	return browserCalls{
		connects:  b.connects,
		activated: append([]target.ID(nil), b.activated...),
		openedTab: append([]string(nil), b.openedTab...),
		opened:    append([]openedWindow(nil), b.opened...),
		focused:   append([]cdpcontrol.WindowHandle(nil), b.focused...),
		resized:   append([]openedWindow(nil), b.resized...),
	}
}

type memHints struct {
	mu    sync.Mutex
	name  string
	saves int
}

func (h *memHints) Load() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.name, h.name != ""
}

func (h *memHints) Save(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.name = name
	h.saves++
	return nil
}

func spotifyPage() *fakeTab {
	return newFakeTab(map[string]any{
		"spotify.nowplaying": map[string]any{"title": "Song", "artist": "Band", "positionText": "3:45", "durationText": "4:20"},
		"spotify.click.next": map[string]any{},
	})
}
