package engine

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/joe/copy-new/internal/scan"
)

// maxTracker is the running maximum of successfully copied IDs.
// It only moves up; concurrent Observe calls never lose an update.
type maxTracker struct {
	value atomic.Uint64
}

func newMaxTracker(start uint64) *maxTracker {
	tracker := &maxTracker{}
	tracker.value.Store(start)

	return tracker
}

// Observe raises the maximum to id if id is larger.
func (m *maxTracker) Observe(id uint64) {
	for {
		current := m.value.Load()
		if id <= current || m.value.CompareAndSwap(current, id) {
			return
		}
	}
}

// Value returns the current maximum.
func (m *maxTracker) Value() uint64 {
	return m.value.Load()
}

// runState collects per-run counters. None of it feeds back into the watermark.
type runState struct {
	max     *maxTracker
	copied  atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
	bytes   atomic.Int64

	mu        sync.Mutex
	notCopied []uint64
	failures  []FileFailure
}

func newRunState(start uint64) *runState {
	return &runState{max: newMaxTracker(start)}
}

func (r *runState) recordCopy(c scan.Candidate, bytes int64) {
	r.copied.Add(1)
	r.bytes.Add(bytes)
	r.max.Observe(c.ID)
}

func (r *runState) recordFailure(c scan.Candidate, err error) {
	r.failed.Add(1)

	r.mu.Lock()
	r.notCopied = append(r.notCopied, c.ID)
	r.failures = append(r.failures, FileFailure{Candidate: c, Err: err})
	r.mu.Unlock()
}

func (r *runState) recordDrop(c scan.Candidate) {
	r.dropped.Add(1)

	r.mu.Lock()
	r.notCopied = append(r.notCopied, c.ID)
	r.mu.Unlock()
}

// stranded returns the IDs that were not copied but are at or below watermark.
// Later scans only offer IDs above the watermark, so these files will not be retried.
func (r *runState) stranded(watermark uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uint64

	for _, id := range r.notCopied {
		if id <= watermark {
			out = append(out, id)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func (r *runState) failureList() []FileFailure {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]FileFailure, len(r.failures))
	copy(out, r.failures)

	sort.Slice(out, func(i, j int) bool { return out[i].Candidate.ID < out[j].Candidate.ID })

	return out
}
