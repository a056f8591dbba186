package router

import (
	"context"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/musicbridge/internal/adapter"
	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
)

// Tab is an attached page: its window message bus plus the evaluation and
// pointer access adapters need.
type Tab interface {
	bridge.Port
	adapter.Page
	Close() error
}

// Browser is the subset of browser control the router drives.
type Browser interface {
	ListTabs(ctx context.Context) ([]cdpcontrol.TabInfo, error)
	IsAudible(ctx context.Context, id target.ID) (bool, error)
	ActivateTab(ctx context.Context, id target.ID) error
	OpenTab(ctx context.Context, url string) (target.ID, error)
	OpenWindow(ctx context.Context, url string, width, height int) (cdpcontrol.WindowHandle, error)
	FocusWindow(ctx context.Context, h cdpcontrol.WindowHandle) error
	WindowExists(ctx context.Context, h cdpcontrol.WindowHandle) (bool, error)
	ResizeWindow(ctx context.Context, h cdpcontrol.WindowHandle, width, height int) error
	ConnectTab(ctx context.Context, id target.ID) (Tab, error)
}

// CDP adapts a cdpcontrol client to Browser.
func CDP(c *cdpcontrol.Client) Browser { return cdpBrowser{c} }

type cdpBrowser struct{ *cdpcontrol.Client }

func (b cdpBrowser) ConnectTab(ctx context.Context, id target.ID) (Tab, error) {
	t, err := b.Client.ConnectTab(ctx, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}
