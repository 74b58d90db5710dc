package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/reviewscrape/pkg/common"
	"github.com/go-scripts/reviewscrape/pkg/expand"
)

var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			PaddingLeft(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// EventMsg carries an expansion event into the program
type EventMsg expand.Event

// ExtractedMsg carries the extracted reviews
type ExtractedMsg struct {
	Reviews []common.Review
}

// DoneMsg ends the run. Err is the pipeline error, if any.
type DoneMsg struct {
	Err error
}

// Layout is the scrape dashboard: stats and step log on top, review
// preview below.
type Layout struct {
	spinner  spinner.Model
	stats    *StatsPanel
	steps    *StepLog
	reviews  *ReviewsTable
	width    int
	height   int
	done     bool
	err      error
	quitting bool
	onQuit   func()
}

// NewLayout creates the dashboard for url. onQuit is called when the user
// quits before the run is done.
func NewLayout(url string, maxClicks int, onQuit func()) *Layout {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = titleStyle
	if onQuit == nil {
		onQuit = func() {}
	}
	return &Layout{
		spinner: s,
		stats:   NewStatsPanel(url, maxClicks),
		steps:   NewStepLog(),
		reviews: NewReviewsTable(),
		onQuit:  onQuit,
	}
}

// SetSize adjusts the layout and all panels to the given dimensions
func (l *Layout) SetSize(width, height int) {
	l.width = width
	l.height = height

	halfWidth := width / 2
	topHeight := height / 2

	l.stats.SetSize(halfWidth, topHeight)
	l.steps.SetSize(width-halfWidth, topHeight)
	l.reviews.SetSize(width, height-topHeight-1)
}

func (l *Layout) Init() tea.Cmd {
	l.stats.Start()
	return l.spinner.Tick
}

func (l *Layout) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		l.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !l.done {
				l.onQuit()
			}
			l.quitting = true
			return l, tea.Quit
		}
	case EventMsg:
		ev := expand.Event(msg)
		l.stats.Observe(ev)
		l.steps.AddStep(ev)
	case ExtractedMsg:
		l.stats.SetReviews(len(msg.Reviews))
		l.reviews.SetReviews(msg.Reviews)
		l.steps.Add(LevelInfo, fmt.Sprintf("extracted %d reviews", len(msg.Reviews)))
	case DoneMsg:
		l.done = true
		l.err = msg.Err
		if msg.Err != nil {
			l.steps.Add(LevelError, msg.Err.Error())
		} else {
			l.steps.Add(LevelInfo, "done, press q to exit")
		}
	case spinner.TickMsg:
		if l.done {
			return l, nil
		}
		var cmd tea.Cmd
		l.spinner, cmd = l.spinner.Update(msg)
		return l, cmd
	}

	cmds = append(cmds, l.steps.Update(msg), l.reviews.Update(msg))
	return l, tea.Batch(cmds...)
}

func (l *Layout) View() string {
	if l.quitting {
		return ""
	}

	header := l.spinner.View() + " scraping reviews"
	if l.done {
		header = infoStyle.Render("✓ finished")
		if l.err != nil {
			header = errorStyle.Render("✗ " + l.err.Error())
		}
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, l.stats.View(), l.steps.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, top, l.reviews.View())
}

// Done reports whether a DoneMsg was received
func (l *Layout) Done() bool {
	return l.done
}

// Err returns the error carried by DoneMsg
func (l *Layout) Err() error {
	return l.err
}
