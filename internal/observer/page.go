package observer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Page backs the capture boundary with a chromedp-driven browser tab.
type Page struct {
	ctx context.Context
}

// PageOptions configures how the browser tab is obtained.
type PageOptions struct {
	// URL is the page to open.
	URL string

	// RemoteURL, when set, attaches to an already-running browser's
	// devtools endpoint instead of launching one.
	RemoteURL string

	// Headless launches the browser without a window. Ignored when
	// attaching to a remote browser.
	Headless bool
}

// NewPage opens (or attaches to) a browser tab and navigates it to the
// target URL. The returned cancel tears down the tab and, when launched
// here, the browser.
func NewPage(ctx context.Context, opts PageOptions) (*Page, context.CancelFunc, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		execOpts := chromedp.DefaultExecAllocatorOptions[:]
		if !opts.Headless {
			execOpts = append(execOpts, chromedp.Flag("headless", false))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, execOpts...)
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(opts.URL)); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("open %s: %w", opts.URL, err)
	}

	return &Page{ctx: tabCtx}, cancel, nil
}

// Eval runs a JavaScript expression in the page and decodes its JSON result
// into out. Expressions evaluating to null or undefined leave out untouched.
func (p *Page) Eval(ctx context.Context, expr string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stringify inside the page: chromedp errors on undefined results, and
	// probe expressions legitimately return null when their editor is absent.
	wrapped := `JSON.stringify((` + expr + `)) || "null"`

	var raw string
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(wrapped, &raw)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

// HTML returns the page's rendered outer HTML.
func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var html string
	if err := chromedp.Run(p.ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// URL returns the page's current location. Single-page apps rewrite it
// without navigation, so it is read fresh every scan.
func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var loc string
	if err := chromedp.Run(p.ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("location: %w", err)
	}
	return loc, nil
}
