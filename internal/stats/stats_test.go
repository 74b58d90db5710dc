package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

func review(rating int, text string) common.Review {
	r := common.Review{}
	if rating > 0 {
		r.Rating = common.IntPtr(rating)
	}
	if text != "" {
		r.Text = common.StringPtr(text)
	}
	return r
}

func TestSummarize(t *testing.T) {
	reviews := []common.Review{
		review(10, "a"),
		review(10, "b"),
		review(7, "c"),
		review(6, ""),
		review(1, "d"),
		review(0, "e"),
	}

	s := Summarize(reviews)

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 5, s.Rated)
	assert.Equal(t, 1, s.MissingRatings)
	assert.Equal(t, 1, s.MissingText)
	assert.InDelta(t, 0.6, s.Positive, 1e-9)
	assert.InDelta(t, 0.4, s.Negative, 1e-9)
	assert.InDelta(t, 6.8, s.Mean, 1e-9)

	require.Len(t, s.Distribution, 4)
	assert.Equal(t, Bucket{Rating: 10, Count: 2, Share: 0.4}, s.Distribution[0])
	assert.Equal(t, 7, s.Distribution[1].Rating)
	assert.Equal(t, 6, s.Distribution[2].Rating)
	assert.Equal(t, 1, s.Distribution[3].Rating)
}

func TestSummarizeWithoutRatings(t *testing.T) {
	s := Summarize([]common.Review{review(0, "x")})

	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 0, s.Rated)
	assert.Zero(t, s.Positive)
	assert.Zero(t, s.Negative)
	assert.Empty(t, s.Distribution)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Summarize([]common.Review{review(9, "a"), review(2, "b")}))

	out := buf.String()
	assert.Contains(t, out, "Rating distribution")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "█")
}

func TestRenderNamesShareBase(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Summarize([]common.Review{review(9, "a"), review(2, "b"), {Text: common.StringPtr("c")}}))

	out := strings.ToLower(buf.String())
	assert.Contains(t, out, "shares of rated reviews")
	assert.Contains(t, out, "2 rated of 3")
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Summarize(nil))

	assert.Contains(t, buf.String(), "Reviews")
	assert.NotContains(t, buf.String(), "Rating distribution")
}
