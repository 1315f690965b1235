// Package ui renders the jobdeck dashboard: a job table fed by the sync
// engine's read-only accessors plus a status bar reporting transport
// health. The engine owns all data movement; this package only reads
// snapshots and forwards user intent (refresh, pause, focus).
package ui

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jobdeck/jobdeck/internal/cluster"
	"github.com/jobdeck/jobdeck/internal/engine"
	"github.com/jobdeck/jobdeck/internal/store"
)

// Engine is the sync-engine surface the dashboard consumes.
type Engine interface {
	Jobs() iter.Seq[cluster.Job]
	HostStates() map[string]store.HostState
	ConnectionStatus() engine.ConnectionStatus
	ManagerState() engine.ManagerState
	Refresh()
	SetPaused(bool)
	SetTabActive(bool)
}

// Options configures the UI.
type Options struct {
	Engine    Engine
	ThemeName string
	Tick      time.Duration
}

const defaultUITick = time.Second

type tickMsg time.Time

// Model is the root application state for Bubble Tea.
type Model struct {
	eng   Engine
	theme Theme
	keys  keyMap
	tick  time.Duration

	tbl    table.Model
	width  int
	height int
	ready  bool
}

// New creates the dashboard model.
func New(opts Options) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultUITick
	}

	theme := themeByName(opts.ThemeName)

	columns := []table.Column{
		{Title: "HOST", Width: 14},
		{Title: "JOB", Width: 10},
		{Title: "NAME", Width: 24},
		{Title: "STATE", Width: 12},
		{Title: "CPUS", Width: 6},
		{Title: "NODES", Width: 6},
		{Title: "REASON", Width: 24},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Bold(true).
		Foreground(lipgloss.Color(theme.Accent)).
		BorderForeground(lipgloss.Color(theme.Border))
	styles.Selected = styles.Selected.
		Background(lipgloss.Color(theme.SelectionBg)).
		Foreground(lipgloss.Color(theme.SelectionText))
	tbl.SetStyles(styles)

	return Model{
		eng:   opts.Engine,
		theme: theme,
		keys:  defaultKeyMap(),
		tick:  tick,
		tbl:   tbl,
	}
}

// Init starts the snapshot refresh loop.
func (m Model) Init() tea.Cmd {
	return m.scheduleTick()
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		// Header and status bar take three lines each side of the table.
		h := msg.Height - 6
		if h < 3 {
			h = 3
		}
		m.tbl.SetHeight(h)
		m.tbl.SetRows(m.buildRows())
		return m, nil

	case tickMsg:
		m.tbl.SetRows(m.buildRows())
		return m, m.scheduleTick()

	case tea.FocusMsg:
		m.eng.SetTabActive(true)
		return m, nil

	case tea.BlurMsg:
		m.eng.SetTabActive(false)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.eng.Refresh()
			return m, nil
		case key.Matches(msg, m.keys.Pause):
			m.eng.SetPaused(!m.eng.ManagerState().Paused)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

// buildRows snapshots the engine's job view sorted by host, then state
// urgency, then job ID.
func (m Model) buildRows() []table.Row {
	var jobs []cluster.Job
	for job := range m.eng.Jobs() {
		jobs = append(jobs, job)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Hostname != jobs[j].Hostname {
			return jobs[i].Hostname < jobs[j].Hostname
		}
		ri, rj := stateRank(jobs[i].State), stateRank(jobs[j].State)
		if ri != rj {
			return ri < rj
		}
		return jobs[i].ID < jobs[j].ID
	})

	rows := make([]table.Row, 0, len(jobs))
	for _, job := range jobs {
		state := lipgloss.NewStyle().
			Foreground(m.theme.stateColor(job.State)).
			Render(string(job.State))
		rows = append(rows, table.Row{
			job.Hostname,
			job.ID,
			job.Name,
			state,
			fmt.Sprintf("%d", job.CPUs),
			fmt.Sprintf("%d", job.Nodes),
			job.Reason,
		})
	}
	return rows
}

// View renders header, table, and status bar.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	header := m.renderHeader()
	status := m.renderStatusBar()
	return lipgloss.JoinVertical(lipgloss.Left, header, m.tbl.View(), status)
}
