// Package browser runs the documentation collection agent against a remote
// browser reached over the Chrome DevTools Protocol.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Page is a snapshot of the active tab.
type Page struct {
	URL   string
	Title string
	HTML  string
}

// Driver controls one browser tab.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Snapshot(ctx context.Context) (*Page, error)
	Close()
}

// Dialer opens a Driver for a CDP websocket URL.
type Dialer func(ctx context.Context, cdpURL string) (Driver, error)

type cdpDriver struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// DialCDP attaches to a remote browser. The returned driver outlives ctx
// only until Close is called.
func DialCDP(ctx context.Context, cdpURL string) (Driver, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), cdpURL)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	return &cdpDriver{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

func (d *cdpDriver) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := d.bind(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Navigate(url))
}

func (d *cdpDriver) Snapshot(ctx context.Context) (*Page, error) {
	runCtx, cancel := d.bind(ctx)
	defer cancel()

	var p Page
	err := chromedp.Run(runCtx,
		chromedp.Location(&p.URL),
		chromedp.Title(&p.Title),
		chromedp.OuterHTML("html", &p.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	return &p, nil
}

// Close detaches from the tab without killing the remote browser.
func (d *cdpDriver) Close() {
	d.cancelTab()
	d.cancelAlloc()
}

// bind derives a tab context that also stops when the caller's ctx does.
func (d *cdpDriver) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(d.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
