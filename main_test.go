package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/reviewscrape/internal/writer"
	"github.com/go-scripts/reviewscrape/pkg/common"
	"github.com/go-scripts/reviewscrape/pkg/expand"
	"github.com/go-scripts/reviewscrape/pkg/extract"
)

// listingSession serves a listing that grows by two reviews per click
type listingSession struct {
	pages  int
	clicks int
	closed bool
}

func (s *listingSession) Open(ctx context.Context, url string) error { return nil }

func (s *listingSession) Lookup(ctx context.Context, selector string) (bool, error) {
	return s.clicks < s.pages, nil
}

func (s *listingSession) Click(ctx context.Context, selector string) error {
	s.clicks++
	return nil
}

func (s *listingSession) Count(ctx context.Context, selector string) (int, error) {
	return 2 * (s.clicks + 1), nil
}

func (s *listingSession) Markup(ctx context.Context) (string, error) {
	var b strings.Builder
	b.WriteString(`<html><head><title>Reviews</title></head><body>`)
	for i := 0; i < 2*(s.clicks+1); i++ {
		if i%2 == 0 {
			b.WriteString(`<div class="imdb-user-review"><span class="rating-other-user-rating"><span>10</span><span>/10</span></span>`)
			b.WriteString(`<div class="text show-more__control">Loved the inversion</div></div>`)
		} else {
			b.WriteString(`<div class="imdb-user-review"><div class="text show-more__control">No rating<br>given</div></div>`)
		}
	}
	b.WriteString(`</body></html>`)
	return b.String(), nil
}

func (s *listingSession) Close() error {
	s.closed = true
	return nil
}

func newTestApp(t *testing.T) (*App, string) {
	dir := t.TempDir()
	fw, err := writer.New(dir)
	require.NoError(t, err)
	logger, err := newLogger("error", io.Discard)
	require.NoError(t, err)
	return &App{
		ctx:     context.Background(),
		logger:  logger,
		writer:  fw,
		globals: Globals{OutputDir: dir},
		stdout:  &bytes.Buffer{},
	}, dir
}

func runCLI(t *testing.T, app *App, args ...string) error {
	var cli CLI
	parser, err := newParser(&cli)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx.Run(app)
}

func TestParseDefaults(t *testing.T) {
	var cli CLI
	parser, err := newParser(&cli)
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{})
	require.NoError(t, err)
	assert.Equal(t, "scrape", kctx.Command())

	cfg := common.DefaultConfiguration()
	cli.Scrape.BrowserFlags.apply(&cfg)
	cli.Scrape.ExtractFlags.apply(&cfg)
	assert.Equal(t, common.DefaultConfiguration(), cfg)
}

func TestParseBrowserFlags(t *testing.T) {
	var cli CLI
	parser, err := newParser(&cli)
	require.NoError(t, err)

	_, err = parser.Parse([]string{
		"expand",
		"--url", "https://example.test/reviews",
		"--headful",
		"--max-clicks", "3",
		"--lookup-retries", "2",
		"--poll-interval", "500ms",
		"--settle-delay", "1s",
	})
	require.NoError(t, err)

	cfg := common.DefaultConfiguration()
	cli.Expand.apply(&cfg)
	assert.Equal(t, "https://example.test/reviews", cfg.URL)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 3, cfg.MaxClicks)
	assert.Equal(t, 2, cfg.LookupRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.PreClickDelay)
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewscrape.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"url": "https://example.test/other", "trigger": "button.more"}`), 0644))

	var cli CLI
	parser, err := newParser(&cli)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"scrape", "--config", path})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/other", cli.Scrape.URL)
	assert.Equal(t, "button.more", cli.Scrape.Trigger)
}

func TestScrapeCommand(t *testing.T) {
	app, dir := newTestApp(t)
	sess := &listingSession{pages: 2}
	app.sessionFactory = func(ctx context.Context, config common.Configuration) (expand.Session, error) {
		return sess, nil
	}

	err := runCLI(t, app,
		"scrape",
		"--pre-click-delay", "0s",
		"--settle-delay", "0s",
		"--final-delay", "0s",
		"--json", "data/reviews.json",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.clicks)
	assert.True(t, sess.closed)

	snapshot, err := os.ReadFile(filepath.Join(dir, common.DefaultSnapshotFile))
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(snapshot), `class="imdb-user-review"`))

	table, err := os.ReadFile(filepath.Join(dir, common.DefaultTableFile))
	require.NoError(t, err)
	assert.Equal(t,
		"rating,review\n"+
			"10,Loved the inversion\n,No rating given\n"+
			"10,Loved the inversion\n,No rating given\n"+
			"10,Loved the inversion\n,No rating given\n",
		string(table))

	assert.FileExists(t, filepath.Join(dir, "data", "reviews.json"))
}

func TestScrapeLogsLastProgress(t *testing.T) {
	app, _ := newTestApp(t)
	var logs bytes.Buffer
	logger, err := newLogger("debug", &logs)
	require.NoError(t, err)
	app.logger = logger
	app.sessionFactory = func(ctx context.Context, config common.Configuration) (expand.Session, error) {
		return &listingSession{pages: 1}, nil
	}

	require.NoError(t, runCLI(t, app,
		"scrape",
		"--pre-click-delay", "0s",
		"--settle-delay", "0s",
		"--final-delay", "0s",
	))
	assert.Contains(t, logs.String(), "Expansion progress clicks=1 reviews=4 done=true")
}

func TestExtractCommand(t *testing.T) {
	app, dir := newTestApp(t)
	markup, _ := (&listingSession{}).Markup(context.Background())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte(markup), 0644))

	require.NoError(t, runCLI(t, app, "extract", "page.html", "--table", "out.csv"))

	reviews, err := app.writer.ReadTable("out.csv")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, 10, reviews[0].RatingValue())
	assert.Nil(t, reviews[1].Rating)
	assert.Equal(t, "No rating given", reviews[1].TextValue())
}

func TestExtractCommandParseError(t *testing.T) {
	app, dir := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte(`<html><body><div class="imdb-user-review"`), 0644))

	err := runCLI(t, app, "extract", "page.html")
	var perr *extract.ParseError
	assert.True(t, errors.As(err, &perr))
	assert.NoFileExists(t, filepath.Join(dir, common.DefaultTableFile))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger("loud", io.Discard)
	assert.Error(t, err)
}
