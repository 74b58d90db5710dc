package main

import (
	"bytes"
	"context"
	"database/sql/driver"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/reviewscrape/internal/store"
	"github.com/go-scripts/reviewscrape/internal/writer"
	"github.com/go-scripts/reviewscrape/pkg/common"
)

const table = "rating,review\n" +
	"10,Brilliant score and brilliant sound\n" +
	"10,The score carries it\n" +
	"1,Muddy sound and muddy dialogue\n" +
	"6,Fine\n" +
	",Unrated but long\n"

func setup(t *testing.T) (*CLI, *Context, *bytes.Buffer, string) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, common.DefaultTableFile), []byte(table), 0644))

	fw, err := writer.New(dir)
	require.NoError(t, err)

	var out bytes.Buffer
	return &CLI{Table: common.DefaultTableFile, OutputDir: dir},
		&Context{Ctx: context.Background(), Out: &out, Writer: fw, Logger: log.New(io.Discard)},
		&out, dir
}

func TestStatsCommand(t *testing.T) {
	cli, ctx, out, _ := setup(t)

	require.NoError(t, (&StatsCmd{}).Run(cli, ctx))
	assert.Contains(t, out.String(), "Rating distribution")
	assert.Contains(t, out.String(), "50.0%")
}

func TestWordsCommand(t *testing.T) {
	cli, ctx, out, dir := setup(t)

	cmd := &WordsCmd{
		Top:       5,
		Positive:  "data/wordfreq_pos.csv",
		Negative:  "data/wordfreq_neg.csv",
		Stopwords: []string{"carries"},
	}
	require.NoError(t, cmd.Run(cli, ctx))

	pos, err := os.ReadFile(filepath.Join(dir, "data", "wordfreq_pos.csv"))
	require.NoError(t, err)
	assert.Equal(t, "term,count\nbrilliant,2\nscore,2\nsound,1\n", string(pos))

	neg, err := os.ReadFile(filepath.Join(dir, "data", "wordfreq_neg.csv"))
	require.NoError(t, err)
	assert.Equal(t, "term,count\nmuddy,2\ndialogue,1\nsound,1\n", string(neg))

	assert.Contains(t, out.String(), "brilliant")
}

func TestMissingTable(t *testing.T) {
	cli, ctx, _, _ := setup(t)
	cli.Table = "missing.csv"

	assert.Error(t, (&StatsCmd{}).Run(cli, ctx))
	assert.Error(t, (&WordsCmd{}).Run(cli, ctx))
}

// withStoredReviews points ctx at a mocked MySQL holding rows for source
func withStoredReviews(t *testing.T, cli *CLI, ctx *Context, source string, rows [][]driver.Value) sqlmock.Sqlmock {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	result := sqlmock.NewRows([]string{"position", "rating", "review"})
	for _, row := range rows {
		result.AddRow(row...)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT position, rating, review FROM reviews")).
		WithArgs(source).
		WillReturnRows(result)
	mock.ExpectClose()

	cli.DSN = "user:pass@tcp(localhost:3306)/reviews"
	cli.Source = source
	cli.Table = "missing.csv"
	ctx.OpenStore = func(_ context.Context, dsn string) (*store.Store, error) {
		assert.Equal(t, cli.DSN, dsn)
		return store.New(db), nil
	}
	return mock
}

func TestStatsCommandReadsStore(t *testing.T) {
	cli, ctx, out, _ := setup(t)
	mock := withStoredReviews(t, cli, ctx, "https://example.test/reviews", [][]driver.Value{
		{0, 10, "Brilliant"},
		{1, 1, "Muddy"},
		{2, nil, "Unrated"},
	})

	require.NoError(t, (&StatsCmd{}).Run(cli, ctx))
	assert.Contains(t, out.String(), "Rating distribution")
	assert.Contains(t, out.String(), "50.0%")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWordsCommandReadsStore(t *testing.T) {
	cli, ctx, _, dir := setup(t)
	mock := withStoredReviews(t, cli, ctx, "https://example.test/reviews", [][]driver.Value{
		{0, 10, "Brilliant brilliant score"},
		{1, 1, "Muddy sound"},
	})

	cmd := &WordsCmd{Positive: "pos.csv", Negative: "neg.csv"}
	require.NoError(t, cmd.Run(cli, ctx))

	pos, err := os.ReadFile(filepath.Join(dir, "pos.csv"))
	require.NoError(t, err)
	assert.Equal(t, "term,count\nbrilliant,2\nscore,1\n", string(pos))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWithoutSourceRows(t *testing.T) {
	cli, ctx, _, _ := setup(t)
	withStoredReviews(t, cli, ctx, "https://example.test/unknown", nil)

	assert.ErrorContains(t, (&StatsCmd{}).Run(cli, ctx), "no stored reviews for https://example.test/unknown")
}
