// Package tui shows a run in an interactive terminal view.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joe/copy-new/internal/engine"
	"github.com/joe/copy-new/internal/tui/shared"
)

// Exported constants.
const (
	// RecentFailureLimit is the number of failures listed while running
	RecentFailureLimit = 5
)

// Model represents the TUI state
type Model struct {
	source string
	dest   string

	bridge   *shared.EventBridge
	cancel   func()
	progress *engine.Progress
	bar      progress.Model
	spinner  spinner.Model

	failures []string
	width    int
	state    string // "running", "cancelled", "complete", "error"
	stopping bool
	forced   bool
	summary  *engine.Summary
	err      error
	now      time.Time

	// keepSummary leaves the final state on screen until a key is pressed
	keepSummary bool
}

// NewModel creates a model fed by bridge. cancel is called on the first ctrl+c.
func NewModel(source, dest string, bridge *shared.EventBridge, cancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(shared.PrimaryColor())

	return Model{
		source:   source,
		dest:     dest,
		bridge:   bridge,
		cancel:   cancel,
		progress: engine.NewProgress(),
		bar:      shared.NewProgressModel(shared.ProgressBarWidth),
		spinner:  s,
		state:    shared.StateRunning,
		now:      time.Now(),
	}
}

// Forced reports whether the user asked to quit without waiting for the run.
func (m Model) Forced() bool {
	return m.forced
}

// KeepSummary returns a copy of m that waits for a key press once the run has finished.
func (m Model) KeepSummary(keep bool) Model {
	m.keepSummary = keep
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.ListenCmd(), m.spinner.Tick, shared.TickCmd())
}

// Progress returns the current progress view (for testing)
func (m Model) Progress() *engine.Progress {
	return m.progress
}

// State returns the current state (for testing)
func (m Model) State() string {
	return m.state
}

// Stopping reports whether cancellation has been requested
func (m Model) Stopping() bool {
	return m.stopping
}
