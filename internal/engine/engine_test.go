//nolint:varnamelen // Test files use idiomatic short variable names (t, tt, g, etc.)
package engine_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/copy-new/internal/engine"
	"github.com/joe/copy-new/internal/scan"
	"github.com/joe/copy-new/internal/watermark"
	pkgerrors "github.com/joe/copy-new/pkg/errors"
	"github.com/joe/copy-new/pkg/filesystem"
)

const (
	srcDir = "/src"
	dstDir = "/dst"
)

var errStoreDown = errors.New("store is down")

// memStore is an in-memory watermark.Store that records commits.
type memStore struct {
	mu        sync.Mutex
	value     uint64
	commits   []uint64
	loadErr   error
	commitErr error
}

func (s *memStore) Close() error { return nil }

func (s *memStore) Commit(ctx context.Context, value uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitErr != nil {
		return s.commitErr
	}

	s.value = value
	s.commits = append(s.commits, value)

	return nil
}

func (s *memStore) Load(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.value, s.loadErr
}

func (s *memStore) Location() string { return "memory" }

func (s *memStore) Commits() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]uint64(nil), s.commits...)
}

func newTestEngine(fs *filesystem.MockFileSystem, extension string, store watermark.Store) *engine.Engine {
	e := engine.NewEngine(srcDir, dstDir, extension, store)
	e.UseFileSystem(fs)

	return e
}

func addSource(fs *filesystem.MockFileSystem, names ...string) {
	fs.AddDir(srcDir)

	for _, name := range names {
		fs.AddFile(filepath.Join(srcDir, name), []byte("content of "+name), time.Unix(1700000000, 0))
	}
}

func TestRunCopiesOnlyFilesAboveWatermark(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "img_3.nef", "img_7.nef", "img_9.nef")

	store := &memStore{value: 5}
	e := newTestEngine(fs, "nef", store)

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(fs.Exists(filepath.Join(dstDir, "img_3.nef"))).To(BeFalse())
	g.Expect(fs.Exists(filepath.Join(dstDir, "img_7.nef"))).To(BeTrue())
	g.Expect(fs.Exists(filepath.Join(dstDir, "img_9.nef"))).To(BeTrue())

	data, modTime, err := fs.GetFile(filepath.Join(dstDir, "img_9.nef"))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(string(data)).To(Equal("content of img_9.nef"))
	g.Expect(modTime).To(Equal(time.Unix(1700000000, 0)))

	g.Expect(summary.StartWatermark).To(Equal(uint64(5)))
	g.Expect(summary.FinalWatermark).To(Equal(uint64(9)))
	g.Expect(summary.Updated).To(BeTrue())
	g.Expect(summary.Candidates).To(Equal(2))
	g.Expect(summary.Copied).To(Equal(2))
	g.Expect(summary.Stranded).To(BeEmpty())
	g.Expect(store.Commits()).To(Equal([]uint64{9}))
}

func TestRunWithoutWatermarkStartsFromZero(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "a10.raw")

	store := &memStore{}
	e := newTestEngine(fs, "raw", store)

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(fs.Exists(filepath.Join(dstDir, "a10.raw"))).To(BeTrue())
	g.Expect(summary.FinalWatermark).To(Equal(uint64(10)))
	g.Expect(store.Commits()).To(Equal([]uint64{10}))
}

func TestRunIgnoresFilesWithoutIdentifier(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "photo.raw")

	store := &memStore{value: 4}
	e := newTestEngine(fs, "raw", store)

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(fs.Exists(filepath.Join(dstDir, "photo.raw"))).To(BeFalse())
	g.Expect(summary.Scan.SkippedNoID).To(Equal(1))
	g.Expect(summary.Updated).To(BeFalse())
	g.Expect(summary.FinalWatermark).To(Equal(uint64(4)))
	g.Expect(store.Commits()).To(BeEmpty(), "nothing copied means nothing committed")
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "img_1.nef", "img_2.nef")

	store := &memStore{}
	e := newTestEngine(fs, "nef", store)

	_, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())

	second, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(second.Candidates).To(BeZero())
	g.Expect(second.Copied).To(BeZero())
	g.Expect(second.Updated).To(BeFalse())
	g.Expect(fs.CreateCount(filepath.Join(dstDir, "img_1.nef"))).To(Equal(1))
	g.Expect(store.Commits()).To(Equal([]uint64{2}))
}

func TestRunContinuesPastCopyFailures(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "img_1.nef", "img_2.nef", "img_3.nef")
	fs.FailOpen(filepath.Join(srcDir, "img_2.nef"), os.ErrPermission)

	store := &memStore{}
	e := newTestEngine(fs, "nef", store)

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred(), "per-file failures do not fail the run")

	g.Expect(summary.Copied).To(Equal(2))
	g.Expect(summary.Failed).To(Equal(1))
	g.Expect(summary.FinalWatermark).To(Equal(uint64(3)))
	g.Expect(summary.Stranded).To(Equal([]uint64{2}))
	g.Expect(summary.Failures).To(HaveLen(1))
	g.Expect(summary.Failures[0].Candidate.Name).To(Equal("img_2.nef"))

	var actionable pkgerrors.ActionableError

	g.Expect(errors.As(summary.Failures[0].Err, &actionable)).To(BeTrue())
	g.Expect(actionable.Category()).To(Equal(pkgerrors.CategoryPermission))
}

func TestRunRemovesPartialCopyOnWriteFailure(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "img_4.nef")
	fs.FailWrite(filepath.Join(dstDir, "img_4.nef"), syscall.ENOSPC)

	store := &memStore{}
	e := newTestEngine(fs, "nef", store)

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.Failed).To(Equal(1))
	g.Expect(summary.Updated).To(BeFalse())
	g.Expect(fs.Exists(filepath.Join(dstDir, "img_4.nef"))).To(BeFalse())
	g.Expect(store.Commits()).To(BeEmpty())
}

func TestRunCommitsRunningMaximumUnderConcurrency(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	const count = 200

	fs := filesystem.NewMockFileSystem()
	fs.AddDir(srcDir)

	for id := 1; id <= count; id++ {
		path := filepath.Join(srcDir, fmt.Sprintf("DSC_%04d.nef", id))
		fs.AddFile(path, []byte{byte(id)}, time.Now())

		// Stagger completions so workers finish out of ID order
		delay := time.Duration(count-id) % 7 * time.Millisecond
		fs.OnOpen(path, func() { time.Sleep(delay) })
	}

	store := &memStore{value: 0}
	e := newTestEngine(fs, "nef", store)
	e.Workers = 8

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.Copied).To(Equal(count))
	g.Expect(summary.FinalWatermark).To(Equal(uint64(count)))
	g.Expect(store.Commits()).To(Equal([]uint64{count}))
	g.Expect(fs.ListFiles()).To(HaveLen(2 * count))
}

func TestRunCancelledMidwayCommitsWhatWasCopied(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "f1.nef", "f2.nef", "f3.nef", "f4.nef", "f5.nef", "f6.nef")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The copy of f3 is already in flight when the interrupt arrives, so it completes
	fs.OnOpen(filepath.Join(srcDir, "f3.nef"), cancel)

	store := &memStore{}
	e := newTestEngine(fs, "nef", store)
	e.Workers = 1

	summary, err := e.Run(ctx)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.Cancelled).To(BeTrue())
	g.Expect(summary.Copied).To(Equal(3))
	g.Expect(summary.Copied + summary.Dropped).To(BeNumerically("<=", summary.Dispatched))
	g.Expect(summary.FinalWatermark).To(Equal(uint64(3)))
	g.Expect(summary.Stranded).To(BeEmpty())
	g.Expect(store.Commits()).To(Equal([]uint64{3}), "commit runs even though the run context was cancelled")
	g.Expect(fs.Exists(filepath.Join(dstDir, "f4.nef"))).To(BeFalse())
}

func TestRunCommitsIDsAboveInt64ToSQLiteStore(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "IMG_5.nef", "IMG_9223372036854775808.nef")

	store, err := watermark.OpenSQLiteStore(filepath.Join(t.TempDir(), "watermark.db"))
	g.Expect(err).ShouldNot(HaveOccurred())

	defer func() { _ = store.Close() }()

	e := newTestEngine(fs, "nef", store)
	e.Workers = 2

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.Copied).To(Equal(2))
	g.Expect(summary.Updated).To(BeTrue())
	g.Expect(summary.FinalWatermark).To(Equal(uint64(9223372036854775808)))

	again, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(again.Candidates).To(BeZero())
	g.Expect(fs.CreateCount(filepath.Join(dstDir, "IMG_9223372036854775808.nef"))).To(Equal(1))
}

func TestRunCancelledBeforeStartCopiesNothing(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "f1.nef", "f2.nef")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memStore{value: 0}
	e := newTestEngine(fs, "nef", store)

	summary, err := e.Run(ctx)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.Dispatched).To(BeZero())
	g.Expect(summary.Copied).To(BeZero())
	g.Expect(summary.Updated).To(BeFalse())
	g.Expect(store.Commits()).To(BeEmpty())
}

func TestRunReportsCommitFailure(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "img_8.nef")

	store := &memStore{value: 2, commitErr: errStoreDown}
	e := newTestEngine(fs, "nef", store)

	summary, err := e.Run(context.Background())
	g.Expect(errors.Is(err, engine.ErrCommitFailed)).To(BeTrue())
	g.Expect(errors.Is(err, errStoreDown)).To(BeTrue())
	g.Expect(summary).ToNot(BeNil())
	g.Expect(summary.Copied).To(Equal(1))
	g.Expect(summary.Updated).To(BeFalse())
	g.Expect(summary.FinalWatermark).To(Equal(uint64(2)))
	g.Expect(summary.CommitErr).To(HaveOccurred())
}

func TestRunTreatsUnreadableWatermarkAsZero(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "img_1.nef")

	store := &memStore{loadErr: errStoreDown}
	e := newTestEngine(fs, "nef", store)

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.StartWatermark).To(BeZero())
	g.Expect(summary.FinalWatermark).To(Equal(uint64(1)))
}

func TestRunFailsWhenSourceIsUnavailable(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.FailList(srcDir, os.ErrNotExist)

	store := &memStore{value: 1}
	e := newTestEngine(fs, "nef", store)

	var events []engine.Event

	e.SetEventEmitter(engine.EmitterFunc(func(ev engine.Event) { events = append(events, ev) }))

	summary, err := e.Run(context.Background())
	g.Expect(summary).To(BeNil())
	g.Expect(errors.Is(err, scan.ErrSourceUnavailable)).To(BeTrue())
	g.Expect(events).To(HaveLen(2))
	g.Expect(events[1]).To(BeAssignableToTypeOf(engine.ErrorOccurred{}))
	g.Expect(store.Commits()).To(BeEmpty())
}

func TestRunDryRunCopiesNothing(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	addSource(fs, "img_1.nef", "img_2.nef")

	store := &memStore{}
	e := newTestEngine(fs, "nef", store)
	e.DryRun = true

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.DryRun).To(BeTrue())
	g.Expect(summary.Candidates).To(Equal(2))
	g.Expect(summary.Copied).To(BeZero())
	g.Expect(fs.Exists(dstDir)).To(BeFalse())
	g.Expect(store.Commits()).To(BeEmpty())
}

func TestRunWithoutStore(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	e := engine.NewEngine(srcDir, dstDir, "nef", nil)

	_, err := e.Run(context.Background())
	g.Expect(err).To(MatchError(engine.ErrNoStore))
}

func TestRunAgainstRealDirectories(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "nested", "dest")

	for _, name := range []string{"DSC_0001.NEF", "DSC_0002.nef", "DSC_0003.jpg", "notes.txt"} {
		g.Expect(os.WriteFile(filepath.Join(src, name), []byte(name), 0o600)).To(Succeed())
	}

	store := watermark.NewFileStore(filepath.Join(t.TempDir(), "last_id.txt"))
	e := engine.NewEngine(src, dst, "NEF", store)

	summary, err := e.Run(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(summary.Copied).To(Equal(2))
	g.Expect(summary.FinalWatermark).To(Equal(uint64(2)))

	data, err := os.ReadFile(filepath.Join(dst, "DSC_0001.NEF"))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(string(data)).To(Equal("DSC_0001.NEF"))

	loaded, err := store.Load(context.Background())
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(loaded).To(Equal(uint64(2)))
}
