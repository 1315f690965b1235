package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jobdeck/jobdeck/internal/cluster"
)

// Theme defines colors for the dashboard.
type Theme struct {
	Name string

	Text    string
	Muted   string
	Accent  string
	Success string
	Warning string
	Danger  string

	SelectionBg   string
	SelectionText string
	Border        string
}

var themes = map[string]Theme{
	"Dracula": {
		Name:          "Dracula",
		Text:          "#F8F8F2",
		Muted:         "#6272A4",
		Accent:        "#BD93F9",
		Success:       "#50FA7B",
		Warning:       "#F1FA8C",
		Danger:        "#FF5555",
		SelectionBg:   "#44475A",
		SelectionText: "#F8F8F2",
		Border:        "#6272A4",
	},
	"Plain": {
		Name:          "Plain",
		Text:          "#FFFFFF",
		Muted:         "#888888",
		Accent:        "#5FAFFF",
		Success:       "#5FFF87",
		Warning:       "#FFFF5F",
		Danger:        "#FF5F5F",
		SelectionBg:   "#444444",
		SelectionText: "#FFFFFF",
		Border:        "#888888",
	},
}

// themeByName returns the named theme, defaulting to Dracula.
func themeByName(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["Dracula"]
}

// stateColor maps a job state to its display color.
func (t Theme) stateColor(state cluster.JobState) lipgloss.Color {
	color := t.Muted
	switch state {
	case cluster.StateRunning, cluster.StateCompleting:
		color = t.Success
	case cluster.StatePending:
		color = t.Warning
	case cluster.StateFailed, cluster.StateTimeout:
		color = t.Danger
	case cluster.StateCompleted:
		color = t.Text
	}
	return lipgloss.Color(color)
}
