package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/reviewscrape/pkg/expand"
)

// ExpandStats is the running state of one expansion
type ExpandStats struct {
	URL          string
	Clicks       int
	Items        int
	LookupErrors int
	MaxClicks    int
	StartTime    time.Time
	EndTime      time.Time
	Termination  string
	Reviews      int
	Extracted    bool
}

// StatsPanel displays expansion statistics
type StatsPanel struct {
	stats      ExpandStats
	width      int
	height     int
	style      lipgloss.Style
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
	now        func() time.Time
}

// NewStatsPanel creates a panel for url
func NewStatsPanel(url string, maxClicks int) *StatsPanel {
	return &StatsPanel{
		stats: ExpandStats{URL: url, MaxClicks: maxClicks},
		style: borderStyle.BorderForeground(lipgloss.Color("99")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		now: time.Now,
	}
}

func (s *StatsPanel) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// Start marks the beginning of expansion
func (s *StatsPanel) Start() {
	s.stats.StartTime = s.now()
}

// Observe folds an expansion event into the stats
func (s *StatsPanel) Observe(ev expand.Event) {
	s.stats.Clicks = ev.Clicks
	s.stats.Items = ev.Items
	if !ev.Done && ev.Step.Outcome == expand.LookupError {
		s.stats.LookupErrors++
	}
	if ev.Done {
		s.stats.EndTime = s.now()
		s.stats.Termination = ev.Step.String()
	}
}

// SetReviews records the number of extracted reviews
func (s *StatsPanel) SetReviews(n int) {
	s.stats.Reviews = n
	s.stats.Extracted = true
}

// Stats returns a copy of the current stats
func (s *StatsPanel) Stats() ExpandStats {
	return s.stats
}

func (s *StatsPanel) View() string {
	clicks := fmt.Sprintf("%d", s.stats.Clicks)
	if s.stats.MaxClicks > 0 {
		clicks = fmt.Sprintf("%d/%d", s.stats.Clicks, s.stats.MaxClicks)
	}
	status := "expanding"
	if s.stats.Termination != "" {
		status = s.stats.Termination
	}
	reviews := "pending"
	if s.stats.Extracted {
		reviews = fmt.Sprintf("%d", s.stats.Reviews)
	}

	rows := []struct {
		label string
		value string
	}{
		{"URL", s.stats.URL},
		{"Clicks", clicks},
		{"Loaded", fmt.Sprintf("%d review blocks", s.stats.Items)},
		{"Lookup errors", fmt.Sprintf("%d", s.stats.LookupErrors)},
		{"Status", status},
		{"Extracted", reviews},
		{"Elapsed", s.formatElapsedTime()},
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("Expansion") + "\n\n")
	for _, r := range rows {
		fmt.Fprintf(&content, "%-16s %s\n",
			s.labelStyle.Render(r.label+":"),
			s.valueStyle.Render(r.value),
		)
	}
	return s.style.Width(s.width).Render(content.String())
}

func (s *StatsPanel) formatElapsedTime() string {
	if s.stats.StartTime.IsZero() {
		return "00:00:00"
	}
	end := s.stats.EndTime
	if end.IsZero() {
		end = s.now()
	}
	elapsed := end.Sub(s.stats.StartTime)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(elapsed.Hours()),
		int(elapsed.Minutes())%60,
		int(elapsed.Seconds())%60,
	)
}
