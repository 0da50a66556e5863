package shared

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/copy-new/internal/engine"
)

// Exported constants.
const (
	// EventBufferSize is the number of engine events buffered for the TUI
	EventBufferSize = 256
)

// EngineEventMsg wraps an engine.Event for use as a tea.Msg.
type EngineEventMsg struct {
	Event engine.Event
}

// RunFinishedMsg is sent once the engine run has returned.
type RunFinishedMsg struct {
	Summary *engine.Summary
	Err     error
}

// EventBridge adapts engine events to bubble tea messages.
// It implements engine.EventEmitter; workers call Emit concurrently.
type EventBridge struct {
	mu        sync.RWMutex
	eventChan chan tea.Msg
	closed    bool
	dropped   atomic.Int64
}

// NewEventBridge creates a new event bridge.
func NewEventBridge() *EventBridge {
	return &EventBridge{
		eventChan: make(chan tea.Msg, EventBufferSize),
	}
}

// Close closes the event channel. Emit after Close is a no-op.
func (b *EventBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.eventChan)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (b *EventBridge) Dropped() int64 {
	return b.dropped.Load()
}

// Emit implements engine.EventEmitter.
// Never blocks; when the buffer is full the event is dropped and counted.
func (b *EventBridge) Emit(event engine.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.eventChan <- EngineEventMsg{Event: event}:
	default:
		b.dropped.Add(1)
	}
}

// ListenCmd returns a tea.Cmd that blocks until an event is received.
// Use this in Init() or after processing an event to continue listening.
func (b *EventBridge) ListenCmd() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-b.eventChan
		if !ok {
			return nil
		}

		return msg
	}
}

// Subscribe returns the event channel for receiving events.
func (b *EventBridge) Subscribe() <-chan tea.Msg {
	return b.eventChan
}
