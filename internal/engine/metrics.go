package engine

import (
	"time"
)

// Exported constants.
const (
	// ProgressPercentageScale converts 0-1 range to 0-100 range.
	ProgressPercentageScale = 100.0
)

// Progress is a running view of a run built from its events.
// It is what the console reporter and the TUI render; it is not safe for concurrent use,
// so each consumer keeps its own copy behind its own lock or event loop.
type Progress struct {
	Watermark  uint64
	Workers    int
	TotalFiles int
	TotalBytes int64

	// FilesDone counts copied, failed and dropped candidates.
	FilesDone   int
	Copied      int
	Failed      int
	Dropped     int
	BytesCopied int64
	MaxCopied   uint64
	Cancelling  bool

	// InFlight maps worker number to the file it is copying.
	InFlight map[int]string

	StartTime time.Time
	Summary   *Summary
}

// NewProgress creates an empty progress view.
func NewProgress() *Progress {
	return &Progress{InFlight: make(map[int]string)}
}

// Apply folds one event into the view.
func (p *Progress) Apply(event Event, now time.Time) {
	switch ev := event.(type) {
	case RunStarted:
		p.Watermark = ev.Watermark
		p.MaxCopied = ev.Watermark
		p.Workers = ev.Workers
		p.StartTime = now
	case ScanComplete:
		p.TotalFiles = len(ev.Result.Candidates)
		p.TotalBytes = ev.Result.TotalBytes()
	case CopyStarted:
		p.InFlight[ev.Worker] = ev.Candidate.Name
	case CopyComplete:
		delete(p.InFlight, ev.Worker)
		p.FilesDone++
		p.Copied++
		p.BytesCopied += ev.Bytes

		if ev.Candidate.ID > p.MaxCopied {
			p.MaxCopied = ev.Candidate.ID
		}
	case CopyFailed:
		delete(p.InFlight, ev.Worker)
		p.FilesDone++
		p.Failed++
	case CandidateDropped:
		p.FilesDone++
		p.Dropped++
	case CancelObserved:
		p.Cancelling = true
	case RunComplete:
		p.Summary = ev.Summary
		p.InFlight = make(map[int]string)
	}
}

// BytesPercent returns the byte-weighted completion in 0-1.
func (p *Progress) BytesPercent() float64 {
	if p.TotalBytes <= 0 {
		return p.FilesPercent()
	}

	return clampUnit(float64(p.BytesCopied) / float64(p.TotalBytes))
}

// FilesPercent returns the share of candidates that have been handled, in 0-1.
func (p *Progress) FilesPercent() float64 {
	if p.TotalFiles == 0 {
		return 0
	}

	return clampUnit(float64(p.FilesDone) / float64(p.TotalFiles))
}

// Rate returns bytes per second since the run started.
func (p *Progress) Rate(now time.Time) float64 {
	elapsed := now.Sub(p.StartTime).Seconds()
	if p.StartTime.IsZero() || elapsed <= 0 {
		return 0
	}

	return float64(p.BytesCopied) / elapsed
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
