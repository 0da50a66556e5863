package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/copy-new/internal/engine"
	"github.com/joe/copy-new/internal/tui/shared"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-shared.DefaultPadding*4, 10), shared.ProgressBarWidth*2)

		return m, nil

	case shared.EngineEventMsg:
		m.applyEvent(msg.Event)

		return m, m.bridge.ListenCmd()

	case shared.RunFinishedMsg:
		m.summary = msg.Summary
		m.err = msg.Err

		switch {
		case msg.Summary == nil && msg.Err != nil:
			m.state = shared.StateError
		case msg.Summary != nil && msg.Summary.Cancelled:
			m.state = shared.StateCancelled
		default:
			m.state = shared.StateComplete
		}

		if m.keepSummary {
			return m, nil
		}

		return m, tea.Quit

	case shared.TickMsg:
		m.now = time.Time(msg)
		if m.state != shared.StateRunning {
			return m, nil
		}

		return m, shared.TickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *Model) applyEvent(event engine.Event) {
	m.progress.Apply(event, m.now)

	switch ev := event.(type) {
	case engine.CopyFailed:
		m.failures = append(m.failures, fmt.Sprintf("%s: %v", ev.Candidate.Name, ev.Err))
		if len(m.failures) > RecentFailureLimit {
			m.failures = m.failures[len(m.failures)-RecentFailureLimit:]
		}
	case engine.CancelObserved:
		m.stopping = true
	}
}

// handleKeyPress: the first ctrl+c asks the run to stop after in-flight copies;
// a second one quits the view immediately. Once the run has finished any key quits.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state != shared.StateRunning {
		return m, tea.Quit
	}

	switch msg.String() {
	case shared.KeyCtrlC, "q", "esc":
		if m.stopping {
			m.forced = true
			return m, tea.Quit
		}

		m.stopping = true
		if m.cancel != nil {
			m.cancel()
		}

		return m, nil
	}

	return m, nil
}
