package expand

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

// BrowserSession is a Session backed by a dedicated Chrome instance
type BrowserSession struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closeOnce     sync.Once
}

// NewBrowserSession launches Chrome with the crawler's usual flags. The
// browser lives until Close, independent of ctx.
func NewBrowserSession(ctx context.Context, config common.Configuration) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so launch failures surface here
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &BrowserSession{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// run executes actions on the browser tab while honoring ctx deadlines
func (s *BrowserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.browserCtx.Err() != nil {
		return errSessionClosed
	}
	runCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *BrowserSession) Open(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// clickableJS reports whether the first match is rendered, visible and
// enabled. A control hidden at the end of a listing stays in the DOM.
const clickableJS = `(() => {
	const el = document.querySelector(%q);
	if (!el || el.disabled || el.getClientRects().length === 0) {
		return false;
	}
	return getComputedStyle(el).visibility !== 'hidden';
})()`

// Lookup reports only controls that can be clicked as found
func (s *BrowserSession) Lookup(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, nil
	}

	var clickable bool
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickableJS, selector), &clickable)); err != nil {
		return false, err
	}
	return clickable, nil
}

func (s *BrowserSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *BrowserSession) Count(ctx context.Context, selector string) (int, error) {
	var n int
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := s.run(ctx, chromedp.Evaluate(js, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *BrowserSession) Markup(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *BrowserSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.browserCtx)
		s.browserCancel()
		s.allocCancel()
	})
	return err
}
