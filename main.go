package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/go-scripts/reviewscrape/internal/summarize"
	"github.com/go-scripts/reviewscrape/internal/writer"
	"github.com/go-scripts/reviewscrape/pkg/common"
	"github.com/go-scripts/reviewscrape/pkg/expand"
)

// Globals are flags shared by every command
type Globals struct {
	Config    kong.ConfigFlag `help:"Load flag values from a JSON file." type:"path"`
	LogLevel  string          `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"REVIEWSCRAPE_LOG_LEVEL"`
	LogFile   string          `help:"Write logs to this file instead of stderr. Defaults to reviewscrape.log with --tui." env:"REVIEWSCRAPE_LOG_FILE"`
	OutputDir string          `help:"Directory relative output paths are resolved against." default:"." env:"REVIEWSCRAPE_OUTPUT_DIR"`
}

// CLI is the reviewscrape command line
type CLI struct {
	Globals

	Scrape    ScrapeCmd    `cmd:"" default:"withargs" help:"Expand the listing, save the snapshot and extract the review table."`
	Expand    ExpandCmd    `cmd:"" help:"Expand the listing and save the page snapshot."`
	Extract   ExtractCmd   `cmd:"" help:"Extract the review table from a saved snapshot."`
	Store     StoreCmd     `cmd:"" help:"Save a review table to MySQL or list stored sources."`
	Summarize SummarizeCmd `cmd:"" help:"Summarize positive and negative reviews through a chat endpoint."`
}

// App carries the dependencies commands run with
type App struct {
	ctx     context.Context
	logger  *log.Logger
	writer  *writer.FileWriter
	globals Globals
	stdout  io.Writer

	// nil uses a chromedp browser
	sessionFactory expand.SessionFactory
}

// vars exposes package defaults to flag tags
func vars() kong.Vars {
	defaults := common.DefaultConfiguration()
	return kong.Vars{
		"default_url":      defaults.URL,
		"trigger_selector": defaults.TriggerSelector,
		"block_selector":   defaults.BlockSelector,
		"rating_selector":  defaults.RatingSelector,
		"text_selector":    defaults.TextSelector,
		"snapshot_file":    defaults.SnapshotFile,
		"table_file":       defaults.TableFile,
		"pre_click_delay":  defaults.PreClickDelay.String(),
		"settle_delay":     defaults.SettleDelay.String(),
		"final_delay":      defaults.FinalDelay.String(),
		"lookup_timeout":   defaults.LookupTimeout.String(),
		"chat_endpoint":    summarize.DefaultEndpoint,
		"system_prompt":    summarize.DefaultSystemPrompt,
	}
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("reviewscrape"),
		kong.Description("Scrape a film's user reviews into a rating/review table."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "reviewscrape.json", "~/.config/reviewscrape.json"),
		vars(),
	}, opts...)
	return kong.New(cli, opts...)
}

func newLogger(level string, out io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(out, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// redirectLogs sends logs to path so they do not draw over the TUI
func (a *App) redirectLogs(path string) (func(), error) {
	if a.globals.LogFile != "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a.logger.SetOutput(f)
	return func() {
		a.logger.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building CLI: %v\n", err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	var logOut io.Writer = os.Stderr
	if cli.LogFile != "" {
		f, err := os.OpenFile(cli.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		parser.FatalIfErrorf(err)
		defer f.Close()
		logOut = f
	}
	logger, err := newLogger(cli.LogLevel, logOut)
	parser.FatalIfErrorf(err)
	log.SetDefault(logger)

	fw, err := writer.New(cli.OutputDir)
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = kctx.Run(&App{
		ctx:     ctx,
		logger:  logger,
		writer:  fw,
		globals: cli.Globals,
		stdout:  os.Stdout,
	})
	if err != nil {
		logger.Error("Command failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}
