package common

import (
	"time"
)

// Default values for the review listing being scraped
const (
	DefaultURL             = "https://www.imdb.com/title/tt6723592/reviews/?ref_=tt_ov_rt"
	DefaultTriggerSelector = "button.ipl-load-more__button"
	DefaultBlockSelector   = "div.imdb-user-review"
	DefaultRatingSelector  = "span.rating-other-user-rating span:first-of-type"
	DefaultTextSelector    = "div.text.show-more__control"
	DefaultSnapshotFile    = "data/imdb_tenet_reviews.html"
	DefaultTableFile       = "data/tenet_reviews.csv"
)

// Snapshot is the full markup of the review listing captured at one instant
type Snapshot struct {
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
	Markup     string    `json:"-"`
}

// Review is one extracted (rating, text) record. A nil field means the
// block carried no such sub-element.
type Review struct {
	Position int     `json:"position"`
	Rating   *int    `json:"rating"`
	Text     *string `json:"review"`
}

// HasRating reports whether the reviewer left a star rating
func (r Review) HasRating() bool {
	return r.Rating != nil
}

// HasText reports whether a review body was found
func (r Review) HasText() bool {
	return r.Text != nil
}

// RatingValue returns the rating, or 0 when absent
func (r Review) RatingValue() int {
	if r.Rating == nil {
		return 0
	}
	return *r.Rating
}

// TextValue returns the review body, or "" when absent
func (r Review) TextValue() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// IntPtr and StringPtr build optional fields
func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }

// Configuration holds every setting of a scrape run
type Configuration struct {
	URL       string
	UserAgent string
	Headless  bool

	TriggerSelector string
	BlockSelector   string
	RatingSelector  string
	TextSelector    string

	PreClickDelay time.Duration
	SettleDelay   time.Duration
	FinalDelay    time.Duration
	PollInterval  time.Duration
	LookupTimeout time.Duration
	LookupRetries int
	MaxClicks     int

	SnapshotFile string
	TableFile    string
	JSONFile     string
}

// DefaultConfiguration returns the delays and selectors tuned for the IMDb
// review listing.
func DefaultConfiguration() Configuration {
	return Configuration{
		URL:             DefaultURL,
		Headless:        true,
		TriggerSelector: DefaultTriggerSelector,
		BlockSelector:   DefaultBlockSelector,
		RatingSelector:  DefaultRatingSelector,
		TextSelector:    DefaultTextSelector,
		PreClickDelay:   2 * time.Second,
		SettleDelay:     5 * time.Second,
		FinalDelay:      10 * time.Second,
		LookupTimeout:   10 * time.Second,
		SnapshotFile:    DefaultSnapshotFile,
		TableFile:       DefaultTableFile,
	}
}
