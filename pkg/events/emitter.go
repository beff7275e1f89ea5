package events

import (
	"log/slog"
	"sync"
)

// Emitter is the single writer side of a request's event stream.
//
// Status and progress events are best-effort: when the subscriber drains too
// slowly and the buffer fills, they are dropped. Terminal events (final,
// error) are delivered blocking so the consumer always observes exactly one.
// After a terminal event the emitter is closed and further sends are no-ops.
type Emitter struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
	// dropped counts best-effort events lost to backpressure.
	dropped int
}

// DefaultBuffer is the event queue depth. Progress events are coarse (one per
// wave), so a small buffer is enough for any reasonable consumer.
const DefaultBuffer = 64

// NewEmitter creates an emitter with the given buffer size (0 means
// DefaultBuffer).
func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the stream. The channel is closed after
// the terminal event is delivered.
func (e *Emitter) Events() <-chan Event { return e.ch }

// Status emits a best-effort status event.
func (e *Emitter) Status(state, message string) {
	e.trySend(Event{Type: TypeStatus, State: state, Message: message})
}

// Progress emits a best-effort progress event.
func (e *Emitter) Progress(percent int, message string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	e.trySend(Event{Type: TypeProgress, Percent: percent, Message: message})
}

// Final delivers the terminal final event (blocking) and closes the stream.
func (e *Emitter) Final(ev Event) {
	ev.Type = TypeFinal
	e.sendTerminal(ev)
}

// Error delivers the terminal error event (blocking) and closes the stream.
func (e *Emitter) Error(message string) {
	e.sendTerminal(Event{Type: TypeError, Message: message})
}

func (e *Emitter) trySend(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
		e.dropped++
		slog.Debug("Dropping best-effort event, subscriber too slow",
			"type", ev.Type, "state", ev.State, "dropped_total", e.dropped)
	}
}

func (e *Emitter) sendTerminal(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.ch <- ev
	e.closed = true
	close(e.ch)
}

// Dropped returns how many best-effort events were lost to backpressure.
func (e *Emitter) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}
