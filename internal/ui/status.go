package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jobdeck/jobdeck/internal/cluster"
	"github.com/jobdeck/jobdeck/internal/engine"
	"github.com/jobdeck/jobdeck/internal/store"
)

// statePriority defines display order within a host. Lower values appear
// first (more urgent).
var statePriority = map[cluster.JobState]int{
	cluster.StateFailed:     0,
	cluster.StateTimeout:    1,
	cluster.StateRunning:    2,
	cluster.StateCompleting: 3,
	cluster.StatePending:    4,
	cluster.StateCancelled:  5,
	cluster.StateCompleted:  6,
}

func stateRank(state cluster.JobState) int {
	if rank, ok := statePriority[state]; ok {
		return rank
	}
	return 999
}

func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(m.theme.Accent)).
		Render("jobdeck")

	conn := m.eng.ConnectionStatus()
	badge := m.connBadge(conn)

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(badge) - 2
	if gap < 1 {
		gap = 1
	}
	return " " + title + strings.Repeat(" ", gap) + badge
}

func (m Model) connBadge(conn engine.ConnectionStatus) string {
	var label, color string
	switch conn.Source {
	case engine.SourceWebsocket:
		if conn.Healthy {
			label, color = "● live", m.theme.Success
		} else {
			label, color = "● live (stale)", m.theme.Warning
		}
	case engine.SourceAPI:
		label, color = "◌ polling", m.theme.Warning
	case engine.SourceCache:
		label, color = "◌ cached", m.theme.Muted
	default:
		label, color = "○ offline", m.theme.Danger
	}
	if conn.Attempts > 0 && !conn.Healthy {
		label = fmt.Sprintf("%s (retry %d)", label, conn.Attempts)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(label)
}

func (m Model) renderStatusBar() string {
	mgr := m.eng.ManagerState()
	hosts := m.eng.HostStates()

	parts := []string{hostSummary(hosts)}
	if mgr.Paused {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.theme.Warning)).
			Render("PAUSED"))
	}
	if mgr.PendingUpdates > 0 || mgr.Processing {
		parts = append(parts, fmt.Sprintf("queue:%d", mgr.PendingUpdates))
	}
	if !mgr.LastActivity.IsZero() {
		parts = append(parts, "updated "+mgr.LastActivity.Format("15:04:05"))
	}

	left := strings.Join(parts, "  ")
	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Muted)).
		Render("r refresh · p pause · q quit")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help) - 2
	if gap < 1 {
		gap = 1
	}
	return " " + left + strings.Repeat(" ", gap) + help
}

// hostSummary renders one badge per host: ok, loading, or error.
func hostSummary(states map[string]store.HostState) string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	badges := make([]string, 0, len(names))
	for _, name := range names {
		st := states[name]
		switch {
		case st.Loading:
			badges = append(badges, name+":…")
		case st.Status == store.StatusError && st.IsTimeout:
			badges = append(badges, name+":timeout")
		case st.Status == store.StatusError:
			badges = append(badges, name+":err")
		case st.Status == store.StatusOK:
			badges = append(badges, name+":ok")
		default:
			badges = append(badges, name+":-")
		}
	}
	return strings.Join(badges, " ")
}
