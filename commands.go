package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/go-scripts/reviewscrape/internal/progress"
	"github.com/go-scripts/reviewscrape/internal/store"
	"github.com/go-scripts/reviewscrape/internal/summarize"
	"github.com/go-scripts/reviewscrape/pkg/common"
	"github.com/go-scripts/reviewscrape/pkg/expand"
	"github.com/go-scripts/reviewscrape/pkg/extract"
	"github.com/go-scripts/reviewscrape/ui"
)

// BrowserFlags configure the page expander
type BrowserFlags struct {
	URL           string        `help:"Review listing URL." default:"${default_url}" env:"REVIEWSCRAPE_URL" short:"u"`
	UserAgent     string        `help:"Browser user agent." env:"REVIEWSCRAPE_USER_AGENT"`
	Headful       bool          `help:"Show the browser window." env:"REVIEWSCRAPE_HEADFUL"`
	Trigger       string        `help:"Selector of the load-more control." default:"${trigger_selector}" env:"REVIEWSCRAPE_TRIGGER"`
	PreClickDelay time.Duration `help:"Wait before each click." default:"${pre_click_delay}" env:"REVIEWSCRAPE_PRE_CLICK_DELAY"`
	SettleDelay   time.Duration `help:"Wait for new reviews after each click." default:"${settle_delay}" env:"REVIEWSCRAPE_SETTLE_DELAY"`
	FinalDelay    time.Duration `help:"Wait after the last click before capturing." default:"${final_delay}" env:"REVIEWSCRAPE_FINAL_DELAY"`
	PollInterval  time.Duration `help:"Poll the review count at this interval instead of waiting the full settle delay. 0 disables polling." default:"0s" env:"REVIEWSCRAPE_POLL_INTERVAL"`
	LookupTimeout time.Duration `help:"Timeout of one control lookup or click." default:"${lookup_timeout}" env:"REVIEWSCRAPE_LOOKUP_TIMEOUT"`
	LookupRetries int           `help:"Retries after a failed lookup before giving up." default:"0" env:"REVIEWSCRAPE_LOOKUP_RETRIES"`
	MaxClicks     int           `help:"Stop after this many clicks. 0 is unlimited." default:"0" env:"REVIEWSCRAPE_MAX_CLICKS"`
	Snapshot      string        `help:"Where to write the page snapshot." default:"${snapshot_file}" env:"REVIEWSCRAPE_SNAPSHOT"`
	TUI           bool          `help:"Show a dashboard instead of a spinner." name:"tui"`
}

// ExtractFlags configure the review extractor
type ExtractFlags struct {
	BlockSelector  string `help:"Selector of one review block." default:"${block_selector}" env:"REVIEWSCRAPE_BLOCK_SELECTOR"`
	RatingSelector string `help:"Selector of the rating inside a block." default:"${rating_selector}" env:"REVIEWSCRAPE_RATING_SELECTOR"`
	TextSelector   string `help:"Selector of the review body inside a block." default:"${text_selector}" env:"REVIEWSCRAPE_TEXT_SELECTOR"`
	Table          string `help:"Where to write the review table." default:"${table_file}" env:"REVIEWSCRAPE_TABLE"`
	JSON           string `help:"Also write the table as JSON to this path." env:"REVIEWSCRAPE_JSON"`
}

func (b BrowserFlags) apply(cfg *common.Configuration) {
	cfg.URL = b.URL
	cfg.UserAgent = b.UserAgent
	cfg.Headless = !b.Headful
	cfg.TriggerSelector = b.Trigger
	cfg.PreClickDelay = b.PreClickDelay
	cfg.SettleDelay = b.SettleDelay
	cfg.FinalDelay = b.FinalDelay
	cfg.PollInterval = b.PollInterval
	cfg.LookupTimeout = b.LookupTimeout
	cfg.LookupRetries = b.LookupRetries
	cfg.MaxClicks = b.MaxClicks
	cfg.SnapshotFile = b.Snapshot
}

func (e ExtractFlags) apply(cfg *common.Configuration) {
	cfg.BlockSelector = e.BlockSelector
	cfg.RatingSelector = e.RatingSelector
	cfg.TextSelector = e.TextSelector
	cfg.TableFile = e.Table
	cfg.JSONFile = e.JSON
}

// ExpandCmd captures a fully expanded snapshot
type ExpandCmd struct {
	BrowserFlags
}

func (c *ExpandCmd) Run(app *App) error {
	cfg := common.DefaultConfiguration()
	c.apply(&cfg)

	return app.withProgress(cfg, c.TUI, func(ctx context.Context, observe func(expand.Event), _ func(tea.Msg)) error {
		_, err := app.expand(ctx, cfg, observe)
		return err
	})
}

// ExtractCmd turns a saved snapshot into a review table
type ExtractCmd struct {
	ExtractFlags
	Snapshot string `arg:"" optional:"" help:"Snapshot to read." default:"${snapshot_file}"`
}

func (c *ExtractCmd) Run(app *App) error {
	cfg := common.DefaultConfiguration()
	c.apply(&cfg)

	snap, err := app.writer.ReadSnapshot(c.Snapshot)
	if err != nil {
		return err
	}
	_, err = app.extract(cfg, snap)
	return err
}

// ScrapeCmd runs expansion and extraction back to back
type ScrapeCmd struct {
	BrowserFlags
	ExtractFlags
	DSN string `help:"Also store the table in MySQL at this DSN." env:"REVIEWSCRAPE_DSN"`
}

func (c *ScrapeCmd) Run(app *App) error {
	cfg := common.DefaultConfiguration()
	c.BrowserFlags.apply(&cfg)
	c.ExtractFlags.apply(&cfg)

	return app.withProgress(cfg, c.TUI, func(ctx context.Context, observe func(expand.Event), send func(tea.Msg)) error {
		res, err := app.expand(ctx, cfg, observe)
		if err != nil {
			return err
		}
		reviews, err := app.extract(cfg, res.Snapshot)
		if err != nil {
			return err
		}
		send(ui.ExtractedMsg{Reviews: reviews})

		if c.DSN == "" {
			return nil
		}
		return app.store(ctx, c.DSN, cfg.URL, reviews)
	})
}

// StoreCmd saves a review table in MySQL
type StoreCmd struct {
	DSN    string `help:"MySQL DSN, e.g. user:pass@tcp(localhost:3306)/reviews." required:"" env:"REVIEWSCRAPE_DSN"`
	Table  string `help:"Review table to store." default:"${table_file}" env:"REVIEWSCRAPE_TABLE"`
	Source string `help:"Source URL the rows are keyed by." default:"${default_url}" env:"REVIEWSCRAPE_URL"`
	List   bool   `help:"List stored sources instead of saving."`
}

func (c *StoreCmd) Run(app *App) error {
	if c.List {
		s, err := store.Open(app.ctx, c.DSN)
		if err != nil {
			return err
		}
		defer s.Close()

		sources, err := s.Sources(app.ctx)
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(app.stdout)
		t.AppendHeader(table.Row{"Source", "Reviews"})
		for _, src := range sources {
			t.AppendRow(table.Row{src.URL, src.Reviews})
		}
		t.Render()
		return nil
	}

	reviews, err := app.writer.ReadTable(c.Table)
	if err != nil {
		return err
	}
	return app.store(app.ctx, c.DSN, c.Source, reviews)
}

// SummarizeCmd writes summary_positive.md and summary_negative.md
type SummarizeCmd struct {
	Table             string  `help:"Review table to summarize." default:"${table_file}" env:"REVIEWSCRAPE_TABLE"`
	Endpoint          string  `help:"Chat completions endpoint." default:"${chat_endpoint}" env:"REVIEWSCRAPE_CHAT_ENDPOINT"`
	SystemPrompt      string  `help:"System prompt." default:"${system_prompt}" env:"REVIEWSCRAPE_SYSTEM_PROMPT"`
	QueryTemplate     string  `help:"File holding a text/template for the user message." type:"existingfile" env:"REVIEWSCRAPE_QUERY_TEMPLATE"`
	Temperature       float64 `help:"Sampling temperature." default:"0.3" env:"REVIEWSCRAPE_TEMPERATURE"`
	ReasoningEffort   string  `help:"Reasoning effort hint." default:"medium" env:"REVIEWSCRAPE_REASONING_EFFORT"`
	MaxRetries        int     `help:"Retries after a failed request." default:"5"`
	RequestsPerMinute int     `help:"Request rate limit. 0 disables it." default:"5"`
	MaxReviews        int     `help:"Reviews sent per sentiment. 0 sends all." default:"50"`
}

func (c *SummarizeCmd) Run(app *App) error {
	reviews, err := app.writer.ReadTable(c.Table)
	if err != nil {
		return err
	}

	config := summarize.DefaultConfig()
	config.APIEndpoint = c.Endpoint
	config.SystemPrompt = c.SystemPrompt
	config.Temperature = c.Temperature
	config.ReasoningEffort = c.ReasoningEffort
	config.MaxRetries = c.MaxRetries
	config.RequestsPerMinute = c.RequestsPerMinute
	config.MaxReviews = c.MaxReviews
	config.OutputDir = app.globals.OutputDir
	if c.QueryTemplate != "" {
		b, err := os.ReadFile(c.QueryTemplate)
		if err != nil {
			return fmt.Errorf("failed to read query template: %w", err)
		}
		config.QueryTemplate = string(b)
	}

	s, err := summarize.New(config, summarize.WithLogger(app.logger))
	if err != nil {
		return err
	}
	written, err := s.Run(app.ctx, reviews)
	if err != nil {
		return err
	}
	if len(written) == 0 {
		return errors.New("no reviews rated 10 or 1 to summarize")
	}
	return nil
}

// expand runs the expander and writes the snapshot
func (a *App) expand(ctx context.Context, cfg common.Configuration, observe func(expand.Event)) (*expand.Result, error) {
	opts := []expand.Option{expand.WithLogger(a.logger), expand.WithObserver(observe)}
	if a.sessionFactory != nil {
		opts = append(opts, expand.WithSessionFactory(a.sessionFactory))
	}

	res, err := expand.New(cfg, opts...).Run(ctx)
	if err != nil {
		return nil, err
	}
	if res.IsTransient() {
		a.logger.Warn("Expansion stopped on a lookup error, the snapshot may be incomplete", "error", res.Termination.Err)
	}

	path, err := a.writer.WriteSnapshot(cfg.SnapshotFile, res.Snapshot)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Saved snapshot", "path", path, "clicks", res.Clicks, "termination", res.Termination, "bytes", len(res.Snapshot.Markup))
	return res, nil
}

// extract parses the snapshot and writes the review table
func (a *App) extract(cfg common.Configuration, snap common.Snapshot) ([]common.Review, error) {
	x, err := extract.New(
		extract.WithSelectors(extract.Selectors{
			Block:  cfg.BlockSelector,
			Rating: cfg.RatingSelector,
			Text:   cfg.TextSelector,
		}),
		extract.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	reviews, err := x.Extract(snap.Markup)
	if err != nil {
		return nil, err
	}

	path, err := a.writer.WriteTable(cfg.TableFile, reviews)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Saved review table", "path", path, "reviews", len(reviews))

	if cfg.JSONFile != "" {
		path, err := a.writer.WriteJSON(cfg.JSONFile, reviews)
		if err != nil {
			return nil, err
		}
		a.logger.Info("Saved JSON table", "path", path)
	}
	return reviews, nil
}

func (a *App) store(ctx context.Context, dsn, source string, reviews []common.Review) error {
	s, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer s.Close()
	s.WithLogger(a.logger)

	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.SaveReviews(ctx, source, reviews)
}

type work func(ctx context.Context, observe func(expand.Event), send func(tea.Msg)) error

// withProgress runs fn under a spinner, or under the dashboard when tui
// is set.
func (a *App) withProgress(cfg common.Configuration, tui bool, fn work) error {
	if !tui {
		tracker := progress.New(os.Stderr, cfg.MaxClicks)
		tracker.Start()
		err := fn(a.ctx, tracker.Observe, func(tea.Msg) {})
		tracker.Stop()

		last := tracker.Last()
		a.logger.Debug("Expansion progress", "clicks", last.Clicks, "reviews", last.Items, "done", last.Done)
		return err
	}

	restore, err := a.redirectLogs("reviewscrape.log")
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	p := tea.NewProgram(ui.NewLayout(cfg.URL, cfg.MaxClicks, cancel), tea.WithAltScreen())
	errc := make(chan error, 1)
	go func() {
		err := fn(ctx,
			func(ev expand.Event) { p.Send(ui.EventMsg(ev)) },
			p.Send,
		)
		p.Send(ui.DoneMsg{Err: err})
		errc <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	cancel()
	return <-errc
}
