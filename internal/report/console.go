// Package report prints a run's progress and outcome as plain console lines.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/joe/copy-new/internal/engine"
	"github.com/joe/copy-new/internal/tui/shared"
	pkgerrors "github.com/joe/copy-new/pkg/errors"
	"github.com/joe/copy-new/pkg/formatters"
)

// Exported constants.
const (
	// StrandedSampleLimit is the maximum number of stranded IDs listed in the summary
	StrandedSampleLimit = 10
)

// Console implements engine.EventEmitter by writing one line per notable event.
type Console struct {
	// Verbose also prints a line when each copy starts
	Verbose bool

	mu       sync.Mutex
	out      io.Writer
	progress *engine.Progress
	bar      progress.Model
	now      func() time.Time
}

// NewConsole creates a reporter writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:      out,
		progress: engine.NewProgress(),
		bar:      shared.NewProgressModel(shared.ProgressBarWidth / 2),
		now:      time.Now,
	}
}

// Emit implements engine.EventEmitter.
func (c *Console) Emit(event engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.progress.Apply(event, c.now())

	switch ev := event.(type) {
	case engine.RunStarted:
		c.runStarted(ev)
	case engine.ScanComplete:
		c.scanComplete(ev)
	case engine.CopyStarted:
		if c.Verbose {
			c.printf("  %s %s\n", shared.RenderDim("→"), ev.Candidate.Name)
		}
	case engine.CopyComplete:
		c.printf("  %s %s %s %s\n",
			shared.RenderSuccess("✓"), ev.Candidate.Name,
			shared.RenderDim("("+formatters.FormatBytes(ev.Bytes)+")"),
			c.progressLine())
	case engine.CopyFailed:
		c.printf("  %s %s: %v\n", shared.RenderError("✗"), ev.Candidate.Name, ev.Err)
		c.suggestions(ev.Err)
	case engine.CandidateDropped:
		c.printf("  %s %s\n", shared.RenderDim("-"), shared.RenderDim(ev.Candidate.Name+" (not started, stopping)"))
	case engine.CancelObserved:
		c.printf("%s\n", shared.RenderWarning("Stop requested: finishing in-flight copies, then saving the last copied ID"))
	case engine.ErrorOccurred:
		c.printf("%s %v\n", shared.RenderError("Error during "+ev.Phase+":"), ev.Err)
		c.suggestions(ev.Err)
	case engine.RunComplete:
		c.runComplete(ev.Summary)
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *Console) progressLine() string {
	return fmt.Sprintf("%s %d/%d",
		shared.RenderProgress(c.bar, c.progress.FilesPercent()),
		c.progress.FilesDone, c.progress.TotalFiles)
}

func (c *Console) runComplete(summary *engine.Summary) {
	if summary == nil {
		return
	}

	if summary.DryRun {
		c.printf("%s %d file(s) would be copied; watermark stays %d\n",
			shared.RenderLabel("Dry run:"), summary.Candidates, summary.StartWatermark)

		return
	}

	rate := c.progress.Rate(c.now())
	c.printf("%s copied %d, failed %d, not started %d, %s in %s (%s)\n",
		shared.RenderLabel("Done:"),
		summary.Copied, summary.Failed, summary.Candidates-summary.Copied-summary.Failed,
		formatters.FormatBytes(summary.Bytes),
		formatters.FormatDuration(summary.Duration),
		formatters.FormatRate(rate))

	if summary.Cancelled {
		c.printf("%s\n", shared.RenderWarning("Run was interrupted."))
	}

	if len(summary.Stranded) > 0 {
		c.printf("%s %s\n",
			shared.RenderWarning("Not copied but at or below the new watermark (will not be retried):"),
			sampleIDs(summary.Stranded))
	}

	switch {
	case summary.CommitErr != nil:
		c.printf("%s %v\n", shared.RenderError("Could not save the watermark:"), summary.CommitErr)
		c.suggestions(summary.CommitErr)
	case summary.Updated:
		c.printf("%s\n", shared.RenderSuccess(fmt.Sprintf("Updated watermark to ID %d", summary.FinalWatermark)))
	default:
		c.printf("%s\n", shared.RenderDim(fmt.Sprintf("No change (watermark stays %d)", summary.FinalWatermark)))
	}
}

func (c *Console) runStarted(ev engine.RunStarted) {
	c.printf("%s %d\n", shared.RenderLabel("Last copied ID:"), ev.Watermark)
	c.printf("%s\n", shared.RenderDim(fmt.Sprintf("%s → %s, %d worker(s)", ev.Source, ev.Dest, ev.Workers)))
}

func (c *Console) scanComplete(ev engine.ScanComplete) {
	result := ev.Result
	c.printf("Found %d new file(s), %s\n", len(result.Candidates), formatters.FormatBytes(result.TotalBytes()))

	skipped := result.SkippedAtOrBelow + result.SkippedNoID + result.SkippedExtension + result.SkippedUnreadable
	if skipped > 0 {
		c.printf("%s\n", shared.RenderDim(fmt.Sprintf(
			"Skipped %d: %d already copied, %d without ID, %d other extension, %d unreadable",
			skipped, result.SkippedAtOrBelow, result.SkippedNoID, result.SkippedExtension, result.SkippedUnreadable)))
	}
}

func (c *Console) suggestions(err error) {
	if text := pkgerrors.FormatSuggestions(err); text != "" {
		c.printf("%s\n", shared.RenderDim(strings.TrimRight(text, "\n")))
	}
}

func sampleIDs(ids []uint64) string {
	parts := make([]string, 0, min(len(ids), StrandedSampleLimit))
	for _, id := range ids[:min(len(ids), StrandedSampleLimit)] {
		parts = append(parts, fmt.Sprint(id))
	}

	text := strings.Join(parts, ", ")
	if len(ids) > StrandedSampleLimit {
		text += fmt.Sprintf(" … and %d more", len(ids)-StrandedSampleLimit)
	}

	return text
}
