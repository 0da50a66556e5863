package engine

import (
	"sync"
	"time"
)

// TimeProvider supplies the current time and tickers, so run durations and
// periodic rescans can be driven from tests.
type TimeProvider interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker that callers use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealTimeProvider implements TimeProvider with the time package.
type RealTimeProvider struct{}

// NewTicker creates a new ticker.
func (r *RealTimeProvider) NewTicker(d time.Duration) Ticker {
	return &RealTicker{ticker: time.NewTicker(d)}
}

// Now returns the current time.
func (r *RealTimeProvider) Now() time.Time {
	return time.Now()
}

// RealTicker wraps time.Ticker.
type RealTicker struct {
	ticker *time.Ticker
}

// C returns the ticker's channel.
func (r *RealTicker) C() <-chan time.Time {
	return r.ticker.C
}

// Stop stops the ticker.
func (r *RealTicker) Stop() {
	r.ticker.Stop()
}

// FakeClock is a TimeProvider whose time only moves when told to and whose
// tickers fire only when Tick is called.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

// NewFakeClock creates a clock frozen at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// NewTicker returns a ticker controlled by Tick.
func (c *FakeClock) NewTicker(_ time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &FakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, ticker)

	return ticker
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// TickerCount reports how many tickers have been created.
func (c *FakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.tickers)
}

// Tick fires every ticker created so far. A tick is dropped if the previous one was not consumed.
func (c *FakeClock) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ticker := range c.tickers {
		select {
		case ticker.ch <- c.now:
		default:
		}
	}
}

// FakeTicker is the Ticker returned by FakeClock.
type FakeTicker struct {
	ch chan time.Time
}

// C returns the ticker's channel.
func (f *FakeTicker) C() <-chan time.Time {
	return f.ch
}

// Stop is a no-op; the channel stays open so a pending receive does not see a zero time.
func (f *FakeTicker) Stop() {}
