package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

// Selectors locate a review block and its rating and text inside it
type Selectors struct {
	Block  string
	Rating string
	Text   string
}

// DefaultSelectors matches the IMDb user review listing markup
func DefaultSelectors() Selectors {
	return Selectors{
		Block:  common.DefaultBlockSelector,
		Rating: common.DefaultRatingSelector,
		Text:   common.DefaultTextSelector,
	}
}

// ParseError reports markup that cannot be parsed into a document
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse snapshot: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Extractor turns a page snapshot into review records
type Extractor struct {
	block  cascadia.Selector
	rating cascadia.Selector
	text   cascadia.Selector
	logger *log.Logger
}

// Option configures an Extractor
type Option func(*extractorOptions)

type extractorOptions struct {
	selectors Selectors
	logger    *log.Logger
}

func WithSelectors(s Selectors) Option {
	return func(o *extractorOptions) { o.selectors = s }
}

func WithLogger(l *log.Logger) Option {
	return func(o *extractorOptions) { o.logger = l }
}

// New compiles the selectors. It fails only on invalid selector syntax.
func New(opts ...Option) (*Extractor, error) {
	o := extractorOptions{
		selectors: DefaultSelectors(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	block, err := cascadia.Compile(o.selectors.Block)
	if err != nil {
		return nil, fmt.Errorf("invalid block selector %q: %w", o.selectors.Block, err)
	}
	rating, err := cascadia.Compile(o.selectors.Rating)
	if err != nil {
		return nil, fmt.Errorf("invalid rating selector %q: %w", o.selectors.Rating, err)
	}
	text, err := cascadia.Compile(o.selectors.Text)
	if err != nil {
		return nil, fmt.Errorf("invalid text selector %q: %w", o.selectors.Text, err)
	}

	return &Extractor{
		block:  block,
		rating: rating,
		text:   text,
		logger: o.logger,
	}, nil
}

// Extract parses markup with the default selectors
func Extract(markup string) ([]common.Review, error) {
	x, err := New()
	if err != nil {
		return nil, err
	}
	return x.Extract(markup)
}

// Extract returns one record per review block in document order. Missing
// sub-elements yield nil fields; only unparsable markup is an error.
func (x *Extractor) Extract(markup string) ([]common.Review, error) {
	if err := validate(markup); err != nil {
		return nil, &ParseError{Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	blocks := doc.FindMatcher(x.block)
	reviews := make([]common.Review, 0, blocks.Length())
	blocks.Each(func(i int, block *goquery.Selection) {
		reviews = append(reviews, x.extractBlock(i, block))
	})

	x.logger.Debug("Extracted reviews", "blocks", len(reviews))
	return reviews, nil
}

func (x *Extractor) extractBlock(position int, block *goquery.Selection) common.Review {
	review := common.Review{Position: position}

	if r := block.FindMatcher(x.rating).First(); r.Length() > 0 {
		raw := r.Text()
		if v, ok := ParseRating(raw); ok {
			review.Rating = common.IntPtr(v)
		} else {
			x.logger.Debug("Ignoring unparsable rating", "position", position, "rating", raw)
		}
	}

	if t := block.FindMatcher(x.text).First(); t.Length() > 0 {
		text := strings.TrimSpace(CollapseLineBreaks(nodeText(t.Get(0))))
		review.Text = common.StringPtr(text)
	}

	return review
}

// ParseRating reads a star rating between 1 and 10
func ParseRating(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 || v > 10 {
		return 0, false
	}
	return v, true
}

// nodeText concatenates the text below n, turning <br> into line breaks
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
