package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/go-scripts/reviewscrape/internal/stats"
	"github.com/go-scripts/reviewscrape/internal/store"
	"github.com/go-scripts/reviewscrape/internal/wordfreq"
	"github.com/go-scripts/reviewscrape/internal/writer"
	"github.com/go-scripts/reviewscrape/pkg/common"
)

// Context is passed to every command
type Context struct {
	Ctx    context.Context
	Out    io.Writer
	Writer *writer.FileWriter
	Logger *log.Logger

	OpenStore func(ctx context.Context, dsn string) (*store.Store, error)
}

// CLI is the reviewstats command line
type CLI struct {
	Table     string `help:"Review table to read." default:"${table_file}" env:"REVIEWSCRAPE_TABLE" short:"t"`
	DSN       string `help:"Read the reviews of --source from MySQL instead of --table." env:"REVIEWSCRAPE_DSN"`
	Source    string `help:"Source URL of the stored reviews." default:"${default_url}" env:"REVIEWSCRAPE_URL"`
	OutputDir string `help:"Directory relative paths are resolved against." default:"." env:"REVIEWSCRAPE_OUTPUT_DIR"`
	Debug     bool   `help:"Enable debug logging."`

	Stats StatsCmd `cmd:"" default:"1" help:"Print the rating distribution and positive share."`
	Words WordsCmd `cmd:"" help:"Rank the terms of reviews rated 10 and 1."`
}

// StatsCmd prints descriptive statistics
type StatsCmd struct{}

func (c *StatsCmd) Run(cli *CLI, ctx *Context) error {
	reviews, err := cli.load(ctx)
	if err != nil {
		return err
	}
	s := stats.Summarize(reviews)
	ctx.Logger.Debug("Summarized reviews", "total", s.Total, "rated", s.Rated)
	stats.Render(ctx.Out, s)
	return nil
}

// WordsCmd ranks terms per sentiment and writes them as CSV
type WordsCmd struct {
	Top       int      `help:"Terms shown per sentiment." default:"20"`
	Limit     int      `help:"Terms written per sentiment. 0 writes all." default:"200"`
	Positive  string   `help:"CSV for terms of reviews rated 10." default:"data/wordfreq_pos.csv"`
	Negative  string   `help:"CSV for terms of reviews rated 1." default:"data/wordfreq_neg.csv"`
	Stopwords []string `help:"Extra stopwords." sep:","`
}

func (c *WordsCmd) Run(cli *CLI, ctx *Context) error {
	reviews, err := cli.load(ctx)
	if err != nil {
		return err
	}

	counter := wordfreq.NewCounter(wordfreq.EnglishStopwords, wordfreq.DomainStopwords, c.Stopwords)
	cloud := counter.Build(reviews, c.Limit)
	ctx.Logger.Info("Counted terms", "summary", cloud.Summary())

	if err := writeTerms(ctx.Writer, c.Positive, cloud.Positive); err != nil {
		return err
	}
	if err := writeTerms(ctx.Writer, c.Negative, cloud.Negative); err != nil {
		return err
	}
	wordfreq.Render(ctx.Out, cloud, c.Top)
	return nil
}

// load reads the review table, or the stored reviews of Source when a DSN
// is set
func (cli *CLI) load(ctx *Context) ([]common.Review, error) {
	if cli.DSN == "" {
		return ctx.Writer.ReadTable(cli.Table)
	}

	s, err := ctx.OpenStore(ctx.Ctx, cli.DSN)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	reviews, err := s.WithLogger(ctx.Logger).LoadReviews(ctx.Ctx, cli.Source)
	if err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return nil, fmt.Errorf("no stored reviews for %s", cli.Source)
	}
	ctx.Logger.Debug("Loaded stored reviews", "source", cli.Source, "count", len(reviews))
	return reviews, nil
}

func writeTerms(fw *writer.FileWriter, name string, terms []wordfreq.Term) error {
	f, path, err := fw.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := wordfreq.WriteCSV(f, terms); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("reviewstats"),
		kong.Description("Descriptive statistics and term frequencies of a review table."),
		kong.UsageOnError(),
		kong.Vars{
			"table_file":  common.DefaultTableFile,
			"default_url": common.DefaultConfiguration().URL,
		},
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.InfoLevel})
	if cli.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	fw, err := writer.New(cli.OutputDir)
	kctx.FatalIfErrorf(err)

	err = kctx.Run(&cli, &Context{
		Ctx:       context.Background(),
		Out:       os.Stdout,
		Writer:    fw,
		Logger:    logger,
		OpenStore: store.Open,
	})
	kctx.FatalIfErrorf(err)
}
