// Package runner decides when engine runs happen: once, whenever the source changes, or on a schedule.
// Runs never overlap.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/joe/copy-new/internal/engine"
)

// Exported constants.
const (
	// DefaultDebounce is how long the source must stay quiet before a watch-triggered run
	DefaultDebounce = 2 * time.Second
)

// Exported variables.
var (
	ErrNoRunFunc = errors.New("no run function configured")
)

// RunFunc performs one engine run.
type RunFunc func(ctx context.Context) error

// Runner triggers runs.
type Runner struct {
	Run          RunFunc
	Logger       *slog.Logger
	Clock        engine.TimeProvider
	Debounce     time.Duration
	PollInterval time.Duration // watch mode rescan interval; 0 disables polling

	running atomic.Bool
	skipped atomic.Int64
}

// New creates a runner for run.
func New(run RunFunc, logger *slog.Logger) *Runner {
	return &Runner{
		Run:      run,
		Logger:   logger,
		Clock:    &engine.RealTimeProvider{},
		Debounce: DefaultDebounce,
	}
}

// Once performs a single run.
func (r *Runner) Once(ctx context.Context) error {
	if r.Run == nil {
		return ErrNoRunFunc
	}

	return r.Run(ctx)
}

// Schedule runs on the cron spec until ctx is cancelled. A trigger that fires
// while a run is still going is skipped, not queued.
func (r *Runner) Schedule(ctx context.Context, spec string) error {
	if r.Run == nil {
		return ErrNoRunFunc
	}

	scheduler := cron.New()

	_, err := scheduler.AddFunc(spec, func() { r.tryRun(ctx, "schedule") })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	r.logger().Info("scheduler started", "cron", spec)
	scheduler.Start()

	<-ctx.Done()

	// Stop returns a context that is done once a running job has returned
	<-scheduler.Stop().Done()
	r.logger().Info("scheduler stopped", "skipped", r.Skipped())

	return nil
}

// Skipped reports how many triggers were dropped because a run was in flight.
func (r *Runner) Skipped() int64 {
	return r.skipped.Load()
}

// Watch runs once, then again whenever files appear in dir (after the debounce
// quiet period) or the poll interval elapses, until ctx is cancelled.
func (r *Runner) Watch(ctx context.Context, dir string) error {
	if r.Run == nil {
		return ErrNoRunFunc
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// One pending trigger is enough; runs always rescan the whole directory
	triggers := make(chan string, 1)
	trigger := func(reason string) {
		select {
		case triggers <- reason:
		default:
		}
	}

	debouncer := newDebouncer(r.debounce(), func() { trigger("change") })
	defer debouncer.Stop()

	var poll <-chan time.Time

	if r.PollInterval > 0 {
		ticker := r.clock().NewTicker(r.PollInterval)
		defer ticker.Stop()

		poll = ticker.C()
	}

	r.logger().Info("watching for new files", "dir", dir, "poll", r.PollInterval)
	trigger("start")

	var wg sync.WaitGroup //nolint:varnamelen // wg is idiomatic for WaitGroup

	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case reason := <-triggers:
				r.tryRun(ctx, reason)
			}
		}
	})

	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			r.logger().Info("watch stopped", "dir", dir)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				r.logger().Debug("source changed", "path", event.Name, "op", event.Op.String())
				debouncer.Touch()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			r.logger().Warn("watcher error", "dir", dir, "error", err)
		case <-poll:
			trigger("poll")
		}
	}
}

func (r *Runner) clock() engine.TimeProvider {
	if r.Clock == nil {
		return &engine.RealTimeProvider{}
	}

	return r.Clock
}

func (r *Runner) debounce() time.Duration {
	if r.Debounce <= 0 {
		return DefaultDebounce
	}

	return r.Debounce
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}

	return r.Logger
}

// tryRun performs a run unless one is in flight or ctx is already done.
func (r *Runner) tryRun(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}

	if !r.running.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		r.logger().Info("run already in progress, skipping trigger", "trigger", reason)

		return
	}

	defer r.running.Store(false)

	r.logger().Debug("run triggered", "trigger", reason)

	if err := r.Run(ctx); err != nil {
		r.logger().Error("run failed", "trigger", reason, "error", err)
	}
}

// debouncer calls fn once the quiet period has passed since the last Touch.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, d.fn)
}
