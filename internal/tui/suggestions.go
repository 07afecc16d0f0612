package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/designboard/internal/board"
)

// Suggestions provides autocomplete for the command prompt.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
	header      string
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
}

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "Create a task: add <customer> [| title]"},
	{Text: "request", Description: "Open a change request on the selected task"},
	{Text: "move", Description: "Move the selected task: move <column>"},
	{Text: "sort", Description: "Pick the column sort"},
	{Text: "priority", Description: "Filter by priority: urgent | normal | all"},
	{Text: "mine", Description: "Toggle tasks assigned to you"},
	{Text: "clear", Description: "Clear every filter"},
	{Text: "reload", Description: "Reload the board now"},
	{Text: "quit", Description: "Leave designboard"},
}

func sortSuggestions() []SuggestionItem {
	opts := board.SortOptions()
	out := make([]SuggestionItem, 0, len(opts))
	for _, o := range opts {
		out = append(out, SuggestionItem{Text: "sort " + o.String()})
	}
	return out
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{items: commandSuggestions}
}

// Update updates suggestions based on current input
func (s *Suggestions) Update(input string) {
	input = strings.ToLower(strings.TrimLeft(input, " "))
	switch {
	case strings.HasPrefix(input, "sort "):
		s.items = sortSuggestions()
		s.header = "Sort options"
		s.visible = true
		s.filter(input)
	case strings.Contains(input, " "):
		s.visible = false
		s.filtered = nil
	default:
		s.items = commandSuggestions
		s.header = "Commands"
		s.visible = true
		s.filter(input)
	}
}

func (s *Suggestions) filter(query string) {
	s.selectedIdx = 0
	if query == "" {
		s.filtered = s.items
		return
	}
	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.HasPrefix(item.Text, query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Hide closes the dropdown.
func (s *Suggestions) Hide() {
	s.visible = false
	s.filtered = nil
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))

	itemStyle := lipgloss.NewStyle().Foreground(fgColor)
	descStyle := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	chosenStyle := lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor).Bold(true)

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render(s.header))
	b.WriteString("\n")

	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}
		var line string
		if i == s.selectedIdx {
			line = chosenStyle.Render("▶ " + item.Text)
		} else {
			line = itemStyle.Render("  " + item.Text)
		}
		if item.Description != "" {
			line += " " + descStyle.Render(item.Description)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return suggestionStyle.Render(strings.TrimRight(b.String(), "\n"))
}
