package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

// ReviewsTable previews the extracted reviews
type ReviewsTable struct {
	viewport    viewport.Model
	reviews     []common.Review
	width       int
	height      int
	headerStyle lipgloss.Style
	style       lipgloss.Style
}

// NewReviewsTable creates an empty table
func NewReviewsTable() *ReviewsTable {
	return &ReviewsTable{
		viewport: viewport.New(0, 0),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		style: borderStyle.BorderForeground(lipgloss.Color("35")),
	}
}

// SetSize updates the table dimensions
func (t *ReviewsTable) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.viewport.Width = width - 4
	t.viewport.Height = height - 5
	t.updateContent()
}

// SetReviews replaces the table contents
func (t *ReviewsTable) SetReviews(reviews []common.Review) {
	t.reviews = reviews
	t.updateContent()
	t.viewport.GotoTop()
}

// Update handles scrolling
func (t *ReviewsTable) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "pgup":
			t.viewport.HalfViewUp()
		case "pgdown":
			t.viewport.HalfViewDown()
		}
	}
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return cmd
}

// View renders the table
func (t *ReviewsTable) View() string {
	if len(t.reviews) == 0 {
		return t.style.Width(t.width).Render(infoStyle.Render("No reviews extracted yet"))
	}
	footer := fmt.Sprintf("Reviews: %d | Missing rating: %d | Missing text: %d",
		len(t.reviews), t.missingRatings(), t.missingText())
	return t.style.Width(t.width).Render(
		titleStyle.Render("Reviews") + "\n" +
			t.viewport.View() + "\n" +
			infoStyle.Render(footer),
	)
}

func (t *ReviewsTable) updateContent() {
	textWidth := t.width - 16
	if textWidth < 10 {
		textWidth = 10
	}

	var sb strings.Builder
	sb.WriteString(t.headerStyle.Render(fmt.Sprintf("%4s %6s  %s", "#", "Rating", "Review")))
	sb.WriteString("\n")
	for _, r := range t.reviews {
		rating := "-"
		if r.HasRating() {
			rating = fmt.Sprintf("%d", *r.Rating)
		}
		row := fmt.Sprintf("%4d %6s  %s", r.Position, rating, truncate(r.TextValue(), textWidth))
		if !r.HasRating() || !r.HasText() {
			row = warningStyle.Render(row)
		}
		sb.WriteString(row + "\n")
	}
	t.viewport.SetContent(sb.String())
}

func (t *ReviewsTable) missingRatings() int {
	n := 0
	for _, r := range t.reviews {
		if !r.HasRating() {
			n++
		}
	}
	return n
}

func (t *ReviewsTable) missingText() int {
	n := 0
	for _, r := range t.reviews {
		if !r.HasText() {
			n++
		}
	}
	return n
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	return string(r[:w-3]) + "..."
}
