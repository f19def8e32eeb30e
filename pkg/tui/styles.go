package tui

import "github.com/charmbracelet/lipgloss"

// Styles used by the review client.
type Styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Leaf     lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Pane     lipgloss.Style
	Footer   lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color("#3d5afe")).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),
		Title:    lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#3d5afe")).Bold(true),
		Leaf:     lipgloss.NewStyle().Foreground(lipgloss.Color("#2e7d32")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#c62828")),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ef6c00")),
		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#808080")),
		Footer: lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
	}
}
