package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/reviewscrape/pkg/expand"
)

// LogLevel is the severity of a step log entry
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarning
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARN"
	default:
		return "INFO"
	}
}

// LevelFor maps a step outcome to a log level. Lookup errors are warnings
// since the loop still ends with a snapshot.
func LevelFor(o expand.Outcome) LogLevel {
	if o == expand.LookupError {
		return LevelWarning
	}
	return LevelInfo
}

type logEntry struct {
	timestamp time.Time
	level     LogLevel
	message   string
}

var (
	errorLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	infoLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

// StepLog is a scrollable list of pagination steps and messages
type StepLog struct {
	viewport  viewport.Model
	entries   []logEntry
	width     int
	height    int
	style     lipgloss.Style
	showLevel LogLevel
	now       func() time.Time
}

// NewStepLog creates an empty log
func NewStepLog() *StepLog {
	return &StepLog{
		viewport:  viewport.New(0, 0),
		style:     borderStyle.BorderForeground(lipgloss.Color("63")),
		showLevel: LevelInfo,
		now:       time.Now,
	}
}

// SetSize updates the log dimensions
func (s *StepLog) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.viewport.Width = width - 4
	s.viewport.Height = height - 5
	s.updateContent()
}

// AddStep records one expansion event
func (s *StepLog) AddStep(ev expand.Event) {
	msg := fmt.Sprintf("click %d: %s, %d reviews", ev.Clicks, ev.Step, ev.Items)
	if ev.Done {
		msg = fmt.Sprintf("finished after %d clicks: %s", ev.Clicks, ev.Step)
	}
	s.Add(LevelFor(ev.Step.Outcome), msg)
}

// Add appends a message
func (s *StepLog) Add(level LogLevel, msg string) {
	s.entries = append(s.entries, logEntry{timestamp: s.now(), level: level, message: msg})
	s.updateContent()
}

// Update handles scrolling and level filter keys
func (s *StepLog) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			s.viewport.LineUp(1)
		case "down", "j":
			s.viewport.LineDown(1)
		case "pgup":
			s.viewport.HalfViewUp()
		case "pgdown":
			s.viewport.HalfViewDown()
		case "1":
			s.showLevel = LevelInfo
			s.updateContent()
		case "2":
			s.showLevel = LevelWarning
			s.updateContent()
		case "3":
			s.showLevel = LevelError
			s.updateContent()
		}
	}

	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)
	return cmd
}

// View renders the log
func (s *StepLog) View() string {
	footer := fmt.Sprintf(
		"Filter: %s (1:Info 2:Warn 3:Error) | Steps: %d | Warnings: %d | Errors: %d",
		s.showLevel,
		len(s.entries),
		s.count(LevelWarning),
		s.count(LevelError),
	)
	return s.style.Width(s.width).Render(
		titleStyle.Render("Steps") + "\n" +
			s.viewport.View() + "\n" +
			infoStyle.Render(footer),
	)
}

// Lines returns the visible entries as plain text
func (s *StepLog) Lines() []string {
	var lines []string
	for _, e := range s.entries {
		if e.level >= s.showLevel {
			lines = append(lines, fmt.Sprintf("[%s] %s", e.level, e.message))
		}
	}
	return lines
}

func (s *StepLog) updateContent() {
	var sb strings.Builder
	for _, e := range s.entries {
		if e.level < s.showLevel {
			continue
		}
		style := infoLogStyle
		switch e.level {
		case LevelError:
			style = errorLogStyle
		case LevelWarning:
			style = warningLogStyle
		}
		fmt.Fprintf(&sb, "%s [%s] %s\n",
			timestampStyle.Render(e.timestamp.Format("15:04:05")),
			style.Render(e.level.String()),
			e.message,
		)
	}

	atBottom := s.viewport.AtBottom()
	s.viewport.SetContent(sb.String())
	if atBottom {
		s.viewport.GotoBottom()
	}
}

func (s *StepLog) count(level LogLevel) int {
	n := 0
	for _, e := range s.entries {
		if e.level == level {
			n++
		}
	}
	return n
}
