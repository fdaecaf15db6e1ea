// Package emitter provides the event streams probing and payment sessions
// report their progress on.
package emitter

import (
	"sync"
)

type Event string

const (
	Evaluating     Event = "evaluating"
	Probing        Event = "probing"
	RoutingFailure Event = "routing_failure"
	RoutingSuccess Event = "routing_success"
	Path           Event = "path"
	Paying         Event = "paying"
	Paid           Event = "paid"
	PathSuccess    Event = "path_success"
	Success        Event = "success"
	Failure        Event = "failure"
	Error          Event = "error"
)

// Terminal reports whether no further events follow the given one.
func (e Event) Terminal() bool {
	return e == Success || e == Failure || e == Error
}

type Handler func(data interface{})

// Emitter dispatches events to registered handlers. Handlers run
// synchronously on the emitting goroutine and never concurrently with each
// other, so events of a single flow are observed in the order emitted.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler

	emitMu sync.Mutex
}

func New() *Emitter {
	return &Emitter{handlers: make(map[Event][]Handler)}
}

// On registers a handler for the event.
func (e *Emitter) On(event Event, handler Handler) *Emitter {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[event] = append(e.handlers[event], handler)

	return e
}

// OnAny registers a handler for every event, receiving the event name.
func (e *Emitter) OnAny(handler func(event Event, data interface{})) *Emitter {
	for _, event := range []Event{Evaluating, Probing, RoutingFailure, RoutingSuccess,
		Path, Paying, Paid, PathSuccess, Success, Failure, Error} {
		event := event
		e.On(event, func(data interface{}) { handler(event, data) })
	}

	return e
}

func (e *Emitter) ListenerCount(event Event) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.handlers[event])
}

func (e *Emitter) Emit(event Event, data interface{}) {
	e.mu.RLock()
	handlers := append([]Handler(nil), e.handlers[event]...)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	for _, handler := range handlers {
		handler(data)
	}
}

// Fail emits err as an error event. Without an error listener the error is
// dropped.
func (e *Emitter) Fail(err error) {
	if e.ListenerCount(Error) == 0 {
		return
	}

	e.Emit(Error, err)
}

// Relay forwards the given events of e to target.
func (e *Emitter) Relay(target *Emitter, events ...Event) {
	for _, event := range events {
		event := event
		e.On(event, func(data interface{}) { target.Emit(event, data) })
	}
}
