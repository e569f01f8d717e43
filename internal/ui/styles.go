package ui

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles derived from a theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles builds the styles for t. The NoColorTheme yields styles that
// only pad and align.
func NewStyles(t Theme) Styles {
	colored := t.Name != NoColorTheme.Name
	s := Styles{
		Title:   lipgloss.NewStyle().Foreground(t.Accent),
		Label:   lipgloss.NewStyle().Foreground(t.Dim).Width(12),
		Value:   lipgloss.NewStyle(),
		Success: lipgloss.NewStyle().Foreground(t.Good),
		Warning: lipgloss.NewStyle().Foreground(t.Caution),
		Error:   lipgloss.NewStyle().Foreground(t.Bad),
		Box:     lipgloss.NewStyle().Padding(0, 1),
	}
	if colored {
		s.Title = s.Title.Bold(true)
		s.Box = s.Box.Border(lipgloss.RoundedBorder()).BorderForeground(t.Accent)
	}
	return s
}

// CurrentStyles returns the styles for the active theme.
func CurrentStyles() Styles { return NewStyles(GetCurrentTheme()) }
