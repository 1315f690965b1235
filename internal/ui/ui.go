package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the dashboard and blocks until the user quits or ctx is
// cancelled. Focus reporting is enabled so the engine can widen its
// polling cadence while the terminal is backgrounded.
func Run(ctx context.Context, opts Options) error {
	if opts.Engine == nil {
		return fmt.Errorf("ui requires a sync engine")
	}
	program := tea.NewProgram(
		New(opts),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	_, err := program.Run()
	return err
}
