package expand

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

// Session is a browser tab exclusively owned by one expansion run
type Session interface {
	Open(ctx context.Context, url string) error
	// Lookup reports whether selector matches a visible, enabled element.
	// A missing or hidden element is (false, nil); err is reserved for
	// failures of the lookup itself.
	Lookup(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Count(ctx context.Context, selector string) (int, error)
	Markup(ctx context.Context) (string, error)
	Close() error
}

// SessionFactory starts a new browser session
type SessionFactory func(ctx context.Context, config common.Configuration) (Session, error)

// Result is what an expansion run produced
type Result struct {
	Snapshot    common.Snapshot
	Clicks      int
	Termination StepResult
	Capped      bool
}

// Expander repeatedly activates the "load more" control of a listing page
// until the page stops growing, then captures the markup.
type Expander struct {
	config     common.Configuration
	newSession SessionFactory
	logger     *log.Logger
	observe    func(Event)
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// Option configures an Expander
type Option func(*Expander)

func WithSessionFactory(f SessionFactory) Option {
	return func(e *Expander) { e.newSession = f }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Expander) { e.logger = l }
}

// WithObserver registers a callback for progress events
func WithObserver(f func(Event)) Option {
	return func(e *Expander) { e.observe = f }
}

// New creates an Expander. Browser sessions default to chromedp.
func New(config common.Configuration, opts ...Option) *Expander {
	e := &Expander{
		config:     config,
		newSession: NewBrowserSession,
		logger:     log.Default(),
		observe:    func(Event) {},
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run opens a new session on the configured URL, expands it and closes the
// session on every exit path.
func (e *Expander) Run(ctx context.Context) (res *Result, err error) {
	sess, err := e.newSession(ctx, e.config)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			e.logger.Warn("Failed to close browser session", "error", cerr)
			if err == nil {
				err = fmt.Errorf("failed to close browser session: %w", cerr)
			}
		}
	}()

	return e.Expand(ctx, sess, e.config.URL)
}

// Expand drives a caller-owned session. The session is left open.
func (e *Expander) Expand(ctx context.Context, sess Session, url string) (*Result, error) {
	log := e.logger.With("url", url)

	if err := sess.Open(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	log.Info("Opened review listing")

	res := &Result{}
	items := e.count(ctx, sess)
	retries := 0

	for {
		if e.config.MaxClicks > 0 && res.Clicks >= e.config.MaxClicks {
			res.Capped = true
			log.Info("Click limit reached", "clicks", res.Clicks)
			break
		}

		step, n := e.step(ctx, sess, items)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if step.Outcome == Expanded {
			res.Clicks++
			items = n
			retries = 0
		}
		res.Termination = step
		e.observe(Event{Clicks: res.Clicks, Items: items, Step: step})

		if step.Outcome == Expanded {
			log.Debug("Expanded listing", "clicks", res.Clicks, "items", items)
			continue
		}
		if step.Outcome == LookupError && retries < e.config.LookupRetries {
			retries++
			log.Warn("Load more lookup failed, retrying", "attempt", retries, "error", step.Err)
			continue
		}
		break
	}

	switch res.Termination.Outcome {
	case NoMoreContent:
		log.Info("No more content to load", "clicks", res.Clicks)
	case LookupError:
		log.Warn("Stopped expanding after lookup failure", "clicks", res.Clicks, "error", res.Termination.Err)
	}

	items = e.settle(ctx, sess, items, e.config.FinalDelay, false)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	markup, err := sess.Markup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture page markup: %w", err)
	}
	res.Snapshot = common.Snapshot{
		URL:        url,
		CapturedAt: e.now(),
		Markup:     markup,
	}
	e.observe(Event{Clicks: res.Clicks, Items: items, Step: res.Termination, Done: true})
	log.Info("Captured snapshot", "clicks", res.Clicks, "items", items, "bytes", len(markup))

	return res, nil
}

// step performs one lookup, delay, click, settle cycle. It returns the item
// count observed after settling.
func (e *Expander) step(ctx context.Context, sess Session, items int) (StepResult, int) {
	found, err := e.lookup(ctx, sess)
	if err != nil {
		return StepResult{Outcome: LookupError, Err: err}, items
	}
	if !found {
		return StepResult{Outcome: NoMoreContent}, items
	}

	if err := e.sleep(ctx, e.config.PreClickDelay); err != nil {
		return StepResult{Outcome: LookupError, Err: err}, items
	}

	clickCtx, cancel := e.withLookupTimeout(ctx)
	err = sess.Click(clickCtx, e.config.TriggerSelector)
	cancel()
	if err != nil {
		return StepResult{Outcome: LookupError, Err: fmt.Errorf("click %s: %w", e.config.TriggerSelector, err)}, items
	}

	return StepResult{Outcome: Expanded}, e.settle(ctx, sess, items, e.config.SettleDelay, true)
}

func (e *Expander) lookup(ctx context.Context, sess Session) (bool, error) {
	lookupCtx, cancel := e.withLookupTimeout(ctx)
	defer cancel()

	found, err := sess.Lookup(lookupCtx, e.config.TriggerSelector)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", e.config.TriggerSelector, err)
	}
	return found, nil
}

func (e *Expander) withLookupTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.LookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.config.LookupTimeout)
}

// settle waits for new content to render. Without a poll interval this is
// a fixed wait of budget. Otherwise the block count is polled until two
// consecutive polls agree, and when grow is set the count must also exceed
// before. The wait never exceeds budget.
func (e *Expander) settle(ctx context.Context, sess Session, before int, budget time.Duration, grow bool) int {
	interval := e.config.PollInterval
	if interval <= 0 || e.config.BlockSelector == "" {
		if err := e.sleep(ctx, budget); err != nil {
			return before
		}
		return e.count(ctx, sess)
	}

	polls := int(budget / interval)
	if polls < 1 {
		polls = 1
	}
	last := before
	for i := 0; i < polls; i++ {
		if err := e.sleep(ctx, interval); err != nil {
			return last
		}
		n := e.count(ctx, sess)
		if n == last && (!grow || n > before) {
			return n
		}
		last = n
	}
	return last
}

// count returns the number of review blocks on the page, or 0 when it
// cannot be determined.
func (e *Expander) count(ctx context.Context, sess Session) int {
	if e.config.BlockSelector == "" {
		return 0
	}
	n, err := sess.Count(ctx, e.config.BlockSelector)
	if err != nil {
		e.logger.Debug("Failed to count review blocks", "selector", e.config.BlockSelector, "error", err)
		return 0
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsTransient reports whether expansion stopped on a lookup failure rather
// than at the genuine end of the listing.
func (r *Result) IsTransient() bool {
	return r != nil && r.Termination.Outcome == LookupError
}

var errSessionClosed = errors.New("browser session closed")
