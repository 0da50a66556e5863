package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joe/copy-new/internal/engine"
	"github.com/joe/copy-new/internal/tui/shared"
	"github.com/joe/copy-new/pkg/formatters"
)

// View renders the current state
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(shared.RenderTitle("copy-new"))
	b.WriteString("\n")
	b.WriteString(shared.RenderDim(fmt.Sprintf("%s → %s", m.source, m.dest)))
	b.WriteString("\n\n")

	p := m.progress
	b.WriteString(fmt.Sprintf("%s %d   %s %d\n",
		shared.RenderLabel("Watermark:"), p.Watermark,
		shared.RenderLabel("Highest copied:"), p.MaxCopied))

	b.WriteString(shared.RenderProgress(m.bar, p.BytesPercent()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d/%d files  %s/%s  %s\n",
		p.FilesDone, p.TotalFiles,
		formatters.FormatBytes(p.BytesCopied), formatters.FormatBytes(p.TotalBytes),
		formatters.FormatRate(p.Rate(m.now))))

	if m.state == shared.StateRunning {
		b.WriteString(m.renderInFlight())
	}

	if len(m.failures) > 0 {
		b.WriteString("\n")
		b.WriteString(shared.RenderError(fmt.Sprintf("Failed (%d):", p.Failed)))
		b.WriteString("\n")

		for _, failure := range m.failures {
			b.WriteString("  " + shared.RenderDim(failure) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderInFlight() string {
	workers := make([]int, 0, len(m.progress.InFlight))
	for worker := range m.progress.InFlight {
		workers = append(workers, worker)
	}

	slices.Sort(workers)

	var b strings.Builder

	for _, worker := range workers {
		b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), m.progress.InFlight[worker]))
	}

	return b.String()
}

func (m Model) renderStatus() string {
	line := SummaryLine(m.summary, m.err)

	switch m.state {
	case shared.StateError:
		return shared.RenderError(line) + m.exitHint()
	case shared.StateCancelled:
		return shared.RenderWarning(line) + m.exitHint()
	case shared.StateComplete:
		return shared.RenderSuccess(line) + m.exitHint()
	}

	if m.stopping {
		return shared.RenderWarning("Stopping after in-flight copies... (ctrl+c again to quit now)")
	}

	return shared.RenderDim("ctrl+c to stop")
}

func (m Model) exitHint() string {
	if !m.keepSummary {
		return ""
	}

	return "\n" + shared.RenderDim("press any key to exit")
}

// SummaryLine describes how a run ended, including where the watermark now stands.
func SummaryLine(summary *engine.Summary, err error) string {
	if summary == nil {
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}

		return "Stopped before the run finished"
	}

	if summary.DryRun {
		return fmt.Sprintf("Dry run: %d file(s) would be copied; watermark stays %d",
			summary.Candidates, summary.StartWatermark)
	}

	prefix := "Done"
	if summary.Cancelled {
		prefix = "Interrupted"
	}

	line := fmt.Sprintf("%s: copied %d, failed %d", prefix, summary.Copied, summary.Failed)

	switch {
	case summary.CommitErr != nil:
		line += fmt.Sprintf("; watermark not saved: %v", summary.CommitErr)
	case summary.Updated:
		line += fmt.Sprintf("; watermark now %d", summary.FinalWatermark)
	default:
		line += fmt.Sprintf("; watermark stays %d", summary.FinalWatermark)
	}

	return line
}
