package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventEmitter fans updates out to a buffered channel for consumers that
// prefer channels to callbacks (the TUI). Its Emit method is an Observer.
type EventEmitter struct {
	events       chan Update
	droppedCount atomic.Uint64
	closeOnce    sync.Once
	mu           sync.RWMutex
	closed       bool
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Update, bufferSize),
	}
}

// Emit sends an update to the events channel.
// If the channel is full, it tries with a timeout before dropping the update.
// Task and synthesis updates carry full snapshots, so a dropped update is
// superseded by the next one.
func (e *EventEmitter) Emit(u Update) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- u:
		return
	default:
	}

	timer := time.NewTimer(100 * time.Millisecond)
	defer timer.Stop()
	select {
	case e.events <- u:
		return
	case <-timer.C:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[engine] WARNING: update channel full, dropped update (total dropped: %d): kind=%s", count, u.Kind)
		}
	}
}

// DroppedCount returns the total number of updates that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of updates.
func (e *EventEmitter) Events() <-chan Update {
	return e.events
}

// Close closes the events channel. Emit after Close is a no-op.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
	})
}
