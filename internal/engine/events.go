package engine

import (
	"time"

	"github.com/joe/copy-new/internal/scan"
)

// Event is the interface implemented by all engine events.
type Event interface {
	isEvent()
}

// EventEmitter is the interface for emitting events.
// Workers emit concurrently, so implementations must be safe for concurrent use.
type EventEmitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(Event)

// Emit calls f(event).
func (f EmitterFunc) Emit(event Event) {
	f(event)
}

// Run phase events

// RunStarted is emitted after the watermark has been loaded.
type RunStarted struct {
	Source    string
	Dest      string
	Watermark uint64
	Workers   int
	DryRun    bool
}

func (RunStarted) isEvent() {}

// ScanComplete is emitted when the source directory has been scanned.
type ScanComplete struct {
	Result *scan.Result
}

func (ScanComplete) isEvent() {}

// Copy phase events

// CopyStarted is emitted when a worker starts copying a candidate.
type CopyStarted struct {
	Worker    int
	Candidate scan.Candidate
}

func (CopyStarted) isEvent() {}

// CopyComplete is emitted when a candidate has been copied.
type CopyComplete struct {
	Worker    int
	Candidate scan.Candidate
	Bytes     int64
	Duration  time.Duration
}

func (CopyComplete) isEvent() {}

// CopyFailed is emitted when copying a candidate failed. Err is an actionable error.
type CopyFailed struct {
	Worker    int
	Candidate scan.Candidate
	Err       error
}

func (CopyFailed) isEvent() {}

// CandidateDropped is emitted for a queued candidate that was not copied because of cancellation.
// Worker is -1 when no worker received it.
type CandidateDropped struct {
	Worker    int
	Candidate scan.Candidate
}

func (CandidateDropped) isEvent() {}

// CancelObserved is emitted once, the first time the dispatcher or a worker sees cancellation.
type CancelObserved struct{}

func (CancelObserved) isEvent() {}

// Commit phase events

// RunComplete is emitted exactly once at the end of every run that got past scanning.
type RunComplete struct {
	Summary *Summary
}

func (RunComplete) isEvent() {}

// ErrorOccurred is emitted when a run aborts before copying.
type ErrorOccurred struct {
	Phase string
	Err   error
}

func (ErrorOccurred) isEvent() {}
