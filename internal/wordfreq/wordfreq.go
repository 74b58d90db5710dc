package wordfreq

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

// Sentiment of a review with an extreme rating
type Sentiment int

const (
	Negative Sentiment = -1
	Positive Sentiment = 1
)

func (s Sentiment) String() string {
	if s == Positive {
		return "positive"
	}
	return "negative"
}

// Tagged is a review text with the sentiment implied by its rating
type Tagged struct {
	Sentiment Sentiment
	Text      string
}

// Tag keeps reviews rated exactly 10 (positive) or exactly 1 (negative)
// that carry a text body.
func Tag(reviews []common.Review) []Tagged {
	var tagged []Tagged
	for _, r := range reviews {
		if !r.HasRating() || !r.HasText() {
			continue
		}
		switch *r.Rating {
		case 10:
			tagged = append(tagged, Tagged{Sentiment: Positive, Text: *r.Text})
		case 1:
			tagged = append(tagged, Tagged{Sentiment: Negative, Text: *r.Text})
		}
	}
	return tagged
}

// Term is a word and the number of times it occurs
type Term struct {
	Word  string
	Count int
}

// Cloud holds ranked terms per sentiment
type Cloud struct {
	Positive []Term
	Negative []Term
}

// Same shape as \w[\w']+ but Unicode aware
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_][\p{L}\p{N}_']+`)

// Counter counts terms while skipping stopwords
type Counter struct {
	stopwords map[string]struct{}
}

// NewCounter builds a counter. Stopwords are matched case-insensitively.
func NewCounter(stopwords ...[]string) *Counter {
	c := &Counter{stopwords: make(map[string]struct{})}
	for _, list := range stopwords {
		for _, w := range list {
			c.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
	return c
}

// DefaultCounter uses the English and domain stoplists
func DefaultCounter() *Counter {
	return NewCounter(EnglishStopwords, DomainStopwords)
}

// Count ranks the terms of texts by frequency, most frequent first and
// alphabetically among ties.
func (c *Counter) Count(texts []string) []Term {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, tok := range tokenPattern.FindAllString(t, -1) {
			word := strings.ToLower(tok)
			word = strings.TrimSuffix(word, "'s")
			word = strings.Trim(word, "'")
			if len(word) < 2 || isNumber(word) {
				continue
			}
			if _, stop := c.stopwords[word]; stop {
				continue
			}
			counts[word]++
		}
	}

	terms := make([]Term, 0, len(counts))
	for w, n := range counts {
		terms = append(terms, Term{Word: w, Count: n})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Word < terms[j].Word
	})
	return terms
}

// Build tags the reviews and counts terms per sentiment. limit caps the
// number of terms kept per side; 0 keeps all.
func (c *Counter) Build(reviews []common.Review, limit int) Cloud {
	var pos, neg []string
	for _, t := range Tag(reviews) {
		if t.Sentiment == Positive {
			pos = append(pos, t.Text)
		} else {
			neg = append(neg, t.Text)
		}
	}
	return Cloud{
		Positive: truncate(c.Count(pos), limit),
		Negative: truncate(c.Count(neg), limit),
	}
}

func truncate(terms []Term, limit int) []Term {
	if limit > 0 && len(terms) > limit {
		return terms[:limit]
	}
	return terms
}

func isNumber(w string) bool {
	_, err := strconv.ParseFloat(w, 64)
	return err == nil
}

// WriteCSV writes terms as term,count rows
func WriteCSV(out io.Writer, terms []Term) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"term", "count"}); err != nil {
		return err
	}
	for _, t := range terms {
		if err := cw.Write([]string{t.Word, strconv.Itoa(t.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render prints the top terms of both sentiments side by side
func Render(out io.Writer, cloud Cloud, top int) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("Top terms")
	t.AppendHeader(table.Row{"#", "Positive (10)", "Count", "Negative (1)", "Count"})

	rows := len(cloud.Positive)
	if len(cloud.Negative) > rows {
		rows = len(cloud.Negative)
	}
	if top > 0 && rows > top {
		rows = top
	}
	for i := 0; i < rows; i++ {
		row := table.Row{i + 1, "", "", "", ""}
		if i < len(cloud.Positive) {
			row[1], row[2] = cloud.Positive[i].Word, cloud.Positive[i].Count
		}
		if i < len(cloud.Negative) {
			row[3], row[4] = cloud.Negative[i].Word, cloud.Negative[i].Count
		}
		t.AppendRow(row)
	}
	t.Render()
}

// Summary returns a one-line description used in logs
func (c Cloud) Summary() string {
	return fmt.Sprintf("%d positive terms, %d negative terms", len(c.Positive), len(c.Negative))
}
