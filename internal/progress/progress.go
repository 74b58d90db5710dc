package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/bubbles/progress"

	"github.com/go-scripts/reviewscrape/pkg/expand"
)

// Tracker shows a terminal spinner while a listing is being expanded.
// When the click budget is known a progress bar is drawn as well.
type Tracker struct {
	spin      *spinner.Spinner
	bar       progress.Model
	maxClicks int
	last      expand.Event
	mu        sync.Mutex
}

// New creates a Tracker writing to out. maxClicks of 0 means unbounded.
func New(out io.Writer, maxClicks int) *Tracker {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " opening page"
	return &Tracker{
		spin:      s,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		maxClicks: maxClicks,
	}
}

// Start begins animating
func (t *Tracker) Start() {
	t.spin.Start()
}

// Observe is passed to expand.WithObserver
func (t *Tracker) Observe(ev expand.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = ev
	t.spin.Lock()
	t.spin.Suffix = t.suffix(ev)
	t.spin.Unlock()
	if ev.Done {
		t.spin.FinalMSG = fmt.Sprintf("✓ %s\n", formatSuffix(ev))
	}
}

// Last returns the most recent event
func (t *Tracker) Last() expand.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Stop halts the spinner and prints the final message if expansion finished
func (t *Tracker) Stop() {
	t.spin.Stop()
}

func (t *Tracker) suffix(ev expand.Event) string {
	s := " " + formatSuffix(ev)
	if t.maxClicks > 0 && !ev.Done {
		ratio := float64(ev.Clicks) / float64(t.maxClicks)
		if ratio > 1 {
			ratio = 1
		}
		s += " " + t.bar.ViewAs(ratio)
	}
	return s
}

func formatSuffix(ev expand.Event) string {
	if ev.Done {
		return fmt.Sprintf("expanded %d times, %d reviews loaded (%s)", ev.Clicks, ev.Items, ev.Step)
	}
	return fmt.Sprintf("click %d, %d reviews loaded, last step %s", ev.Clicks, ev.Items, ev.Step.Outcome)
}
