// Package dispatcher provides the shared periodic-loop scaffolding: each loop
// ticks on a fixed period under its own mutex and exposes a completion event
// external consumers can await.
package dispatcher

import (
	"context"
	"sync"
)

// Event is a resettable completion signal: cleared at tick entry, set at tick
// exit. Waiters may be cancelled through their context.
type Event struct {
	mu      sync.Mutex
	set     bool
	setCh   chan struct{} // closed while set
	clearCh chan struct{} // closed while cleared
}

// NewEvent returns a cleared event.
func NewEvent() *Event {
	e := &Event{setCh: make(chan struct{}), clearCh: make(chan struct{})}
	close(e.clearCh)
	return e
}

// Clear arms the event for the next Set.
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.set = false
		e.setCh = make(chan struct{})
		close(e.clearCh)
	}
}

// Set releases all waiters until the next Clear.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		e.set = true
		e.clearCh = make(chan struct{})
		close(e.setCh)
	}
}

// IsSet reports the current state.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Wait blocks until the event is set or the context is cancelled.
func (e *Event) Wait(ctx context.Context) error {
	e.mu.Lock()
	ch := e.setCh
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitNext blocks until a completion that begins after this call: if the event
// is currently set, it first waits for the next Clear.
func (e *Event) WaitNext(ctx context.Context) error {
	e.mu.Lock()
	if e.set {
		clearCh := e.clearCh
		e.mu.Unlock()
		select {
		case <-clearCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		e.mu.Unlock()
	}
	return e.Wait(ctx)
}
