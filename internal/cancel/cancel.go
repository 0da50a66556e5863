// Package cancel turns an interrupt into a cooperative stop request.
//
// The first SIGINT or SIGTERM cancels the context returned by Watch, which makes the
// engine stop dispatching, finish in-flight copies, and commit. The handler then
// unregisters itself, so a second interrupt gets the default behavior and ends the
// process immediately.
package cancel

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Controller owns the root cancellation of a process.
type Controller struct {
	Logger  *slog.Logger
	Signals []os.Signal

	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)

	mu        sync.Mutex
	cancel    context.CancelFunc
	requested bool
}

// New creates a controller listening for SIGINT and SIGTERM.
func New(logger *slog.Logger) *Controller {
	return &Controller{
		Logger:  logger,
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		notify:  signal.Notify,
		stop:    signal.Stop,
	}
}

// Cancel requests a stop. It is safe to call any number of times from any goroutine.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.requested {
		return
	}

	c.requested = true

	if c.cancel != nil {
		c.cancel()
	}
}

// Requested reports whether a stop has been requested.
func (c *Controller) Requested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.requested
}

// Watch returns a context that is cancelled on the first interrupt or on Cancel.
// The returned stop function releases the signal handler and the context.
func (c *Controller) Watch(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	c.cancel = cancel
	alreadyRequested := c.requested
	c.mu.Unlock()

	if alreadyRequested {
		cancel()
	}

	signals := make(chan os.Signal, 1)
	c.notify(signals, c.Signals...)

	var stopOnce sync.Once

	release := func() {
		stopOnce.Do(func() { c.stop(signals) })
	}

	go func() {
		select {
		case sig := <-signals:
			// Restore default handling first so a second interrupt force-quits
			release()
			c.logger().Warn("interrupt received, stopping after in-flight copies (interrupt again to force quit)",
				"signal", sig.String())
			c.Cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		release()
		cancel()
	}
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}

	return c.Logger
}
