package wordfreq

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

func review(rating int, text string) common.Review {
	r := common.Review{Text: common.StringPtr(text)}
	if rating > 0 {
		r.Rating = common.IntPtr(rating)
	}
	return r
}

func TestTagOnlyExtremeRatings(t *testing.T) {
	reviews := []common.Review{
		review(10, "loved it"),
		review(9, "nearly"),
		review(1, "hated it"),
		review(0, "no rating"),
		{Rating: common.IntPtr(10)},
	}

	assert.Equal(t, []Tagged{
		{Sentiment: Positive, Text: "loved it"},
		{Sentiment: Negative, Text: "hated it"},
	}, Tag(reviews))
}

func TestCountRemovesStopwords(t *testing.T) {
	c := DefaultCounter()
	terms := c.Count([]string{
		"The Movie was a masterpiece, a true MASTERPIECE.",
		"Nolan's plot was confusing but the sound design... sound!",
		"Tenet in 2020: 10/10 masterpiece",
	})

	assert.Equal(t, []Term{
		{Word: "masterpiece", Count: 3},
		{Word: "sound", Count: 2},
		{Word: "confusing", Count: 1},
		{Word: "design", Count: 1},
		{Word: "plot", Count: 1},
		{Word: "true", Count: 1},
	}, terms)
}

func TestBuildSplitsBySentiment(t *testing.T) {
	c := NewCounter([]string{"the"})
	cloud := c.Build([]common.Review{
		review(10, "brilliant brilliant score"),
		review(10, "brilliant cast"),
		review(1, "boring loud boring"),
		review(5, "middling"),
	}, 2)

	assert.Equal(t, []Term{{"brilliant", 3}, {"cast", 1}}, cloud.Positive)
	assert.Equal(t, []Term{{"boring", 2}, {"loud", 1}}, cloud.Negative)
	assert.Equal(t, "2 positive terms, 2 negative terms", cloud.Summary())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Term{{"inversion", 4}, {"it's", 1}}))
	assert.Equal(t, "term,count\ninversion,4\nit's,1\n", buf.String())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Cloud{
		Positive: []Term{{"brilliant", 3}, {"cast", 1}},
		Negative: []Term{{"boring", 2}},
	}, 10)

	out := buf.String()
	assert.Contains(t, out, "brilliant")
	assert.Contains(t, out, "boring")
}

func TestSentimentString(t *testing.T) {
	assert.Equal(t, "positive", Positive.String())
	assert.Equal(t, "negative", Negative.String())
}
