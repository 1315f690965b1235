package ui

import (
	"iter"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jobdeck/jobdeck/internal/cluster"
	"github.com/jobdeck/jobdeck/internal/engine"
	"github.com/jobdeck/jobdeck/internal/store"
)

// fakeEngine satisfies Engine with canned snapshots and records the
// intents the UI forwards.
type fakeEngine struct {
	jobs   []cluster.Job
	hosts  map[string]store.HostState
	conn   engine.ConnectionStatus
	mgr    engine.ManagerState
	events []string
}

func (f *fakeEngine) Jobs() iter.Seq[cluster.Job] {
	return slices.Values(f.jobs)
}

func (f *fakeEngine) HostStates() map[string]store.HostState { return f.hosts }
func (f *fakeEngine) ConnectionStatus() engine.ConnectionStatus {
	return f.conn
}
func (f *fakeEngine) ManagerState() engine.ManagerState { return f.mgr }
func (f *fakeEngine) Refresh()                          { f.events = append(f.events, "refresh") }
func (f *fakeEngine) SetPaused(p bool) {
	if p {
		f.events = append(f.events, "pause")
	} else {
		f.events = append(f.events, "resume")
	}
	f.mgr.Paused = p
}
func (f *fakeEngine) SetTabActive(a bool) {
	if a {
		f.events = append(f.events, "focus")
	} else {
		f.events = append(f.events, "blur")
	}
}

func TestStateRank(t *testing.T) {
	if stateRank(cluster.StateFailed) >= stateRank(cluster.StateRunning) {
		t.Error("failed must rank above running")
	}
	if stateRank(cluster.StateRunning) >= stateRank(cluster.StatePending) {
		t.Error("running must rank above pending")
	}
	if stateRank(cluster.StateUnknown) <= stateRank(cluster.StateCompleted) {
		t.Error("unknown states sink to the bottom")
	}
}

func TestBuildRowsSortsHostThenUrgencyThenID(t *testing.T) {
	f := &fakeEngine{jobs: []cluster.Job{
		{Hostname: "beta", ID: "1", State: cluster.StateRunning},
		{Hostname: "alpha", ID: "9", State: cluster.StatePending},
		{Hostname: "alpha", ID: "2", State: cluster.StateFailed},
		{Hostname: "alpha", ID: "1", State: cluster.StatePending},
	}}
	m := New(Options{Engine: f})

	rows := m.buildRows()
	if len(rows) != 4 {
		t.Fatalf("len(rows) = %d, want 4", len(rows))
	}
	wantOrder := [][2]string{
		{"alpha", "2"}, // failed first within its host
		{"alpha", "1"},
		{"alpha", "9"},
		{"beta", "1"},
	}
	for i, want := range wantOrder {
		if rows[i][0] != want[0] || rows[i][1] != want[1] {
			t.Errorf("rows[%d] = %v/%v, want %v/%v", i, rows[i][0], rows[i][1], want[0], want[1])
		}
	}
}

func TestUpdateForwardsFocusAndKeys(t *testing.T) {
	f := &fakeEngine{}
	m := New(Options{Engine: f})

	m.Update(tea.FocusMsg{})
	m.Update(tea.BlurMsg{})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})

	want := []string{"focus", "blur", "refresh", "pause", "resume"}
	if len(f.events) != len(want) {
		t.Fatalf("events = %v, want %v", f.events, want)
	}
	for i := range want {
		if f.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, f.events[i], want[i])
		}
	}
}

func TestQuitKey(t *testing.T) {
	f := &fakeEngine{}
	m := New(Options{Engine: f})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd() = %T, want tea.QuitMsg", cmd())
	}
}

func TestHostSummary(t *testing.T) {
	states := map[string]store.HostState{
		"delta": {Status: store.StatusOK},
		"alpha": {Loading: true, Status: store.StatusLoading},
		"beta":  {Status: store.StatusError, IsTimeout: true},
		"gamma": {Status: store.StatusError},
		"echo":  {Status: store.StatusIdle},
	}

	got := hostSummary(states)
	want := "alpha:… beta:timeout delta:ok echo:- gamma:err"
	if got != want {
		t.Errorf("hostSummary = %q, want %q", got, want)
	}
}

func TestConnBadgeLabels(t *testing.T) {
	m := New(Options{Engine: &fakeEngine{}, ThemeName: "Plain"})

	tests := []struct {
		name string
		conn engine.ConnectionStatus
		want string
	}{
		{"live", engine.ConnectionStatus{Source: engine.SourceWebsocket, Connected: true, Healthy: true}, "● live"},
		{"stale", engine.ConnectionStatus{Source: engine.SourceWebsocket, Connected: true}, "● live (stale)"},
		{"polling", engine.ConnectionStatus{Source: engine.SourceAPI}, "◌ polling"},
		{"cached", engine.ConnectionStatus{Source: engine.SourceCache}, "◌ cached"},
		{"offline", engine.ConnectionStatus{Source: engine.SourceNone}, "○ offline"},
		{"retrying", engine.ConnectionStatus{Source: engine.SourceAPI, Attempts: 3}, "◌ polling (retry 3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.connBadge(tt.conn)
			if !strings.Contains(got, tt.want) {
				t.Errorf("connBadge = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestBuildRowsRendersStateCell(t *testing.T) {
	f := &fakeEngine{jobs: []cluster.Job{
		{Hostname: "alpha", ID: "1", State: cluster.StateFailed},
	}}
	m := New(Options{Engine: f})

	rows := m.buildRows()
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if !strings.Contains(rows[0][3], string(cluster.StateFailed)) {
		t.Errorf("state cell = %q, want it to carry %q", rows[0][3], cluster.StateFailed)
	}
}

func TestStateColor(t *testing.T) {
	th := themeByName("Plain")

	tests := []struct {
		state cluster.JobState
		want  string
	}{
		{cluster.StateRunning, th.Success},
		{cluster.StateCompleting, th.Success},
		{cluster.StatePending, th.Warning},
		{cluster.StateFailed, th.Danger},
		{cluster.StateTimeout, th.Danger},
		{cluster.StateCompleted, th.Text},
		{cluster.StateUnknown, th.Muted},
	}
	for _, tt := range tests {
		if got := th.stateColor(tt.state); got != lipgloss.Color(tt.want) {
			t.Errorf("stateColor(%q) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestThemeByNameFallsBack(t *testing.T) {
	if themeByName("Dracula").Name != "Dracula" {
		t.Error("Dracula theme not found by name")
	}
	if themeByName("does-not-exist").Name != "Dracula" {
		t.Error("unknown theme must fall back to the default")
	}
}
