package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/copy-new/internal/engine"
	"github.com/joe/copy-new/internal/tui/shared"
)

// RunFunc performs one engine run, emitting events to the given emitter.
type RunFunc func(ctx context.Context, emitter engine.EventEmitter) (*engine.Summary, error)

// Options configures Run.
type Options struct {
	Source    string
	Dest      string
	AltScreen bool
	Input     io.Reader
	Output    io.Writer

	// KeepSummary holds the final state on screen until a key is pressed.
	KeepSummary bool

	// Summary receives the closing summary line after the view has gone.
	Summary io.Writer
}

// Run executes run while showing its progress. cancel is invoked on the first ctrl+c
// and should cause run to stop dispatching and save the watermark.
// It returns once both the engine run and the view have finished.
func Run(ctx context.Context, run RunFunc, cancel func(), opts Options) (*engine.Summary, error) {
	bridge := shared.NewEventBridge()
	model := NewModel(opts.Source, opts.Dest, bridge, cancel).KeepSummary(opts.KeepSummary)

	var progOpts []tea.ProgramOption
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}

	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}

	program := tea.NewProgram(model, progOpts...)

	type outcome struct {
		summary *engine.Summary
		err     error
	}

	done := make(chan outcome, 1)

	go func() {
		summary, err := run(ctx, bridge)
		bridge.Close()
		program.Send(shared.RunFinishedMsg{Summary: summary, Err: err})
		done <- outcome{summary: summary, err: err}
	}()

	final, uiErr := program.Run()

	if m, ok := final.(Model); ok && m.Forced() {
		// The view is gone but the engine still owns the watermark.
		if cancel != nil {
			cancel()
		}
	}

	result := <-done

	if opts.Summary != nil {
		_, _ = fmt.Fprintln(opts.Summary, SummaryLine(result.summary, result.err))
	}

	if uiErr != nil && result.err == nil {
		return result.summary, fmt.Errorf("terminal UI failed: %w", uiErr)
	}

	return result.summary, result.err
}
