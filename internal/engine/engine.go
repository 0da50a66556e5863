// Package engine runs one incremental copy pass: load the watermark, scan, copy in parallel,
// and commit the highest successfully copied ID.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/joe/copy-new/internal/scan"
	"github.com/joe/copy-new/internal/watermark"
	pkgerrors "github.com/joe/copy-new/pkg/errors"
	"github.com/joe/copy-new/pkg/fileops"
	"github.com/joe/copy-new/pkg/filesystem"
)

// Exported constants.
const (
	// DefaultWorkers is the number of copy workers when none is configured
	DefaultWorkers = 4
	// QueueCapacity bounds the number of candidates waiting between dispatcher and workers
	QueueCapacity = 64
)

// Exported variables.
var (
	ErrCommitFailed = errors.New("watermark commit failed")
	ErrNoStore      = errors.New("no watermark store configured")
)

// FileFailure records a candidate whose copy failed.
type FileFailure struct {
	Candidate scan.Candidate
	Err       error
}

// Summary describes the outcome of one run.
type Summary struct {
	StartWatermark uint64
	FinalWatermark uint64 // value persisted at the end of the run
	Updated        bool
	DryRun         bool
	Cancelled      bool

	Candidates int
	Dispatched int
	Copied     int
	Failed     int
	Dropped    int
	Bytes      int64

	// Stranded lists IDs at or below FinalWatermark that were not copied.
	// Later scans skip them, so they need manual attention.
	Stranded []uint64
	Failures []FileFailure
	Scan     *scan.Result

	CommitErr error
	Duration  time.Duration
}

// Engine copies the files of SourcePath whose ID exceeds the stored watermark into DestPath.
type Engine struct {
	SourcePath   string
	DestPath     string
	Workers      int
	DryRun       bool
	Store        watermark.Store
	Scanner      *scan.Scanner
	FileOps      *fileops.FileOps
	Logger       *slog.Logger
	TimeProvider TimeProvider

	emitter    EventEmitter
	enricher   pkgerrors.Enricher
	cancelOnce *sync.Once

	// received runs between a worker's receive and its cancellation check (tests only)
	received func(candidate scan.Candidate)
}

// NewEngine creates an engine over the real filesystem, keeping files with the given extension.
func NewEngine(source, dest, extension string, store watermark.Store) *Engine {
	fs := filesystem.NewRealFileSystem()

	return &Engine{
		SourcePath:   source,
		DestPath:     dest,
		Workers:      DefaultWorkers,
		Store:        store,
		Scanner:      scan.NewScanner(fs, scan.NewExtensionFilter(extension)),
		FileOps:      fileops.NewFileOps(fs),
		Logger:       slog.Default(),
		TimeProvider: &RealTimeProvider{},
		enricher:     pkgerrors.NewEnricher(),
	}
}

// SetEventEmitter sets the event emitter for progress reporting.
// The emitter is optional - if nil, no events will be emitted.
func (e *Engine) SetEventEmitter(emitter EventEmitter) {
	e.emitter = emitter
}

// UseFileSystem points both the scanner and the copier at fs.
func (e *Engine) UseFileSystem(fs filesystem.FileSystem) {
	e.Scanner.FS = fs
	e.FileOps = fileops.NewFileOps(fs)
}

// Run performs one pass. It returns a summary whenever scanning succeeded, even
// alongside an error; the error is non-nil only for scan or commit failures.
// Cancelling ctx stops dispatch, lets in-flight copies finish, and still commits
// the maximum of what was copied.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	if e.Store == nil {
		return nil, ErrNoStore
	}

	start := e.now()
	e.cancelOnce = &sync.Once{}

	loaded, err := e.Store.Load(ctx)
	if err != nil {
		// A watermark that cannot be read counts as absent; the next commit rewrites it.
		e.logger().Warn("could not read watermark, starting from 0",
			"store", e.Store.Location(), "error", err)

		loaded = 0
	}

	workers := e.workerCount()
	e.emit(RunStarted{
		Source:    e.SourcePath,
		Dest:      e.DestPath,
		Watermark: loaded,
		Workers:   workers,
		DryRun:    e.DryRun,
	})
	e.logger().Info("run started",
		"source", e.SourcePath, "dest", e.DestPath, "watermark", loaded, "workers", workers)

	result, err := e.Scanner.Scan(e.SourcePath, loaded)
	if err != nil {
		enriched := e.enricher.EnrichAs(err, pkgerrors.CategoryPath, e.SourcePath)
		e.emit(ErrorOccurred{Phase: "scan", Err: enriched})

		return nil, fmt.Errorf("failed to scan %s: %w", e.SourcePath, enriched)
	}

	e.emit(ScanComplete{Result: result})
	e.logger().Info("scan complete",
		"candidates", len(result.Candidates), "scanned", result.Scanned,
		"skipped_at_or_below", result.SkippedAtOrBelow, "skipped_no_id", result.SkippedNoID)

	summary := &Summary{
		StartWatermark: loaded,
		FinalWatermark: loaded,
		DryRun:         e.DryRun,
		Candidates:     len(result.Candidates),
		Scan:           result,
	}

	if e.DryRun {
		summary.Duration = e.now().Sub(start)
		e.emit(RunComplete{Summary: summary})

		return summary, nil
	}

	run := newRunState(loaded)
	jobs := make(chan scan.Candidate, QueueCapacity)

	// Workers start before the first push so a full queue never deadlocks dispatch
	wg := e.startWorkers(ctx, workers, jobs, run)
	summary.Dispatched = e.dispatch(ctx, result.Candidates, jobs, run)
	wg.Wait()

	// Anything still buffered was never received by a worker
	for candidate := range jobs {
		run.recordDrop(candidate)
		e.emit(CandidateDropped{Worker: -1, Candidate: candidate})
	}

	summary.Cancelled = ctx.Err() != nil
	summary.Copied = int(run.copied.Load())
	summary.Failed = int(run.failed.Load())
	summary.Dropped = int(run.dropped.Load())
	summary.Bytes = run.bytes.Load()
	summary.Failures = run.failureList()

	// Commit must survive the cancellation that may have ended the copy phase
	commitErr := e.commit(context.WithoutCancel(ctx), loaded, run.max.Value(), summary)

	summary.Stranded = run.stranded(summary.FinalWatermark)
	if len(summary.Stranded) > 0 {
		e.logger().Warn("files at or below the watermark were not copied and will not be retried",
			"ids", summary.Stranded, "watermark", summary.FinalWatermark)
	}

	summary.Duration = e.now().Sub(start)
	e.emit(RunComplete{Summary: summary})
	e.logger().Info("run complete",
		"copied", summary.Copied, "failed", summary.Failed, "dropped", summary.Dropped,
		"watermark", summary.FinalWatermark, "updated", summary.Updated, "cancelled", summary.Cancelled)

	return summary, commitErr
}

// commit persists maxCopied if it advanced past loaded. Only the run's own
// maximum is ever written, so a value is never committed for an uncopied file.
func (e *Engine) commit(ctx context.Context, loaded, maxCopied uint64, summary *Summary) error {
	if maxCopied <= loaded {
		return nil
	}

	err := e.Store.Commit(ctx, maxCopied)
	if err != nil {
		enriched := e.enricher.EnrichAs(err, pkgerrors.CategoryWatermark, e.Store.Location())
		summary.CommitErr = enriched
		e.logger().Error("watermark commit failed",
			"store", e.Store.Location(), "value", maxCopied, "error", err)

		return fmt.Errorf("%w: %w", ErrCommitFailed, enriched)
	}

	summary.FinalWatermark = maxCopied
	summary.Updated = true

	return nil
}

// copyCandidate copies one candidate and records the outcome.
func (e *Engine) copyCandidate(worker int, candidate scan.Candidate, run *runState) {
	e.emit(CopyStarted{Worker: worker, Candidate: candidate})

	dst := filepath.Join(e.DestPath, candidate.Name)

	stats, err := e.FileOps.CopyFile(candidate.Path, dst)
	if err != nil {
		enriched := e.enricher.Enrich(err, candidate.Path)
		run.recordFailure(candidate, enriched)
		e.emit(CopyFailed{Worker: worker, Candidate: candidate, Err: enriched})
		e.logger().Error("copy failed", "file", candidate.Name, "id", candidate.ID, "error", err)

		return
	}

	run.recordCopy(candidate, stats.BytesCopied)
	e.emit(CopyComplete{
		Worker:    worker,
		Candidate: candidate,
		Bytes:     stats.BytesCopied,
		Duration:  stats.Duration,
	})
	e.logger().Debug("copied", "file", candidate.Name, "id", candidate.ID, "bytes", stats.BytesCopied)
}

// dispatch pushes candidates in order until done or cancelled and returns how many were pushed.
// The flag is checked before every push, so nothing is pushed after cancellation is seen.
func (e *Engine) dispatch(
	ctx context.Context, candidates []scan.Candidate, jobs chan<- scan.Candidate, run *runState,
) int {
	defer close(jobs)

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			e.observeCancel()
			e.recordUndispatched(candidates[i:], run)

			return i
		}

		select {
		case <-ctx.Done():
			e.observeCancel()
			e.recordUndispatched(candidates[i:], run)

			return i
		case jobs <- candidate:
		}
	}

	return len(candidates)
}

func (e *Engine) emit(event Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}

	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.TimeProvider == nil {
		return time.Now()
	}

	return e.TimeProvider.Now()
}

func (e *Engine) observeCancel() {
	e.cancelOnce.Do(func() {
		e.logger().Info("cancellation observed, finishing in-flight copies")
		e.emit(CancelObserved{})
	})
}

// recordUndispatched notes candidates that were never pushed. They are not drops
// in the worker sense but they were not copied, so they count toward stranding.
func (e *Engine) recordUndispatched(rest []scan.Candidate, run *runState) {
	run.mu.Lock()
	defer run.mu.Unlock()

	for _, candidate := range rest {
		run.notCopied = append(run.notCopied, candidate.ID)
	}
}

func (e *Engine) startWorkers(
	ctx context.Context, numWorkers int, jobs <-chan scan.Candidate, run *runState,
) *sync.WaitGroup {
	var wg sync.WaitGroup //nolint:varnamelen // wg is idiomatic for WaitGroup

	for worker := range numWorkers {
		wg.Go(func() {
			for candidate := range jobs {
				if e.received != nil {
					e.received(candidate)
				}

				// A candidate received after cancellation is dropped, not copied
				if ctx.Err() != nil {
					e.observeCancel()
					run.recordDrop(candidate)
					e.emit(CandidateDropped{Worker: worker, Candidate: candidate})

					return
				}

				e.copyCandidate(worker, candidate, run)
			}
		})
	}

	return &wg
}

func (e *Engine) workerCount() int {
	if e.Workers < 1 {
		return 1
	}

	return e.Workers
}
