package stats

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

// PositiveThreshold is the lowest rating counted as positive
const PositiveThreshold = 7

// Bucket is the share of rated reviews with one rating value
type Bucket struct {
	Rating int
	Count  int
	Share  float64
}

// Summary describes the rating distribution of a review table
type Summary struct {
	Total          int
	Rated          int
	MissingRatings int
	MissingText    int
	Distribution   []Bucket // highest rating first
	Positive       float64
	Negative       float64
	Mean           float64
}

// Summarize computes the distribution over rated reviews. Reviews without
// a rating only contribute to MissingRatings.
func Summarize(reviews []common.Review) Summary {
	s := Summary{Total: len(reviews)}
	counts := make(map[int]int)
	positive, sum := 0, 0

	for _, r := range reviews {
		if !r.HasText() {
			s.MissingText++
		}
		if !r.HasRating() {
			s.MissingRatings++
			continue
		}
		v := *r.Rating
		s.Rated++
		counts[v]++
		sum += v
		if v >= PositiveThreshold {
			positive++
		}
	}

	if s.Rated == 0 {
		return s
	}

	for rating, n := range counts {
		s.Distribution = append(s.Distribution, Bucket{
			Rating: rating,
			Count:  n,
			Share:  float64(n) / float64(s.Rated),
		})
	}
	sort.Slice(s.Distribution, func(i, j int) bool {
		return s.Distribution[i].Rating > s.Distribution[j].Rating
	})

	s.Positive = float64(positive) / float64(s.Rated)
	s.Negative = 1 - s.Positive
	s.Mean = float64(sum) / float64(s.Rated)
	return s
}

// Render prints the summary as two tables, the second with a text
// histogram of the distribution.
func Render(out io.Writer, s Summary) {
	overview := table.NewWriter()
	overview.SetOutputMirror(out)
	overview.SetTitle("Reviews (shares of rated reviews)")
	overview.AppendHeader(table.Row{"Total", "Rated", "Missing rating", "Missing text", "Mean", "Positive", "Negative"})
	overview.AppendRow(table.Row{
		s.Total,
		s.Rated,
		s.MissingRatings,
		s.MissingText,
		fmt.Sprintf("%.2f", s.Mean),
		percent(s.Positive),
		percent(s.Negative),
	})
	overview.Render()

	if len(s.Distribution) == 0 {
		return
	}

	dist := table.NewWriter()
	dist.SetOutputMirror(out)
	dist.SetTitle(fmt.Sprintf("Rating distribution (%d rated of %d)", s.Rated, s.Total))
	dist.AppendHeader(table.Row{"Rating", "Count", "Share", ""})
	dist.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	for _, b := range s.Distribution {
		dist.AppendRow(table.Row{b.Rating, b.Count, percent(b.Share), bar(b.Share, 40)})
	}
	dist.Render()
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func bar(share float64, width int) string {
	n := int(share*float64(width) + 0.5)
	return strings.Repeat("█", n)
}
