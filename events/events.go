// Package events carries lifecycle events from the orchestration engine to
// reporters. The event type is a closed tagged variant rather than a
// string-keyed bus so that subscribers cannot observe events the engine never
// emits.
package events

import (
	"sync"

	"github.com/gauntlet-run/gauntlet/types"
)

// Kind identifies a lifecycle event
type Kind string

const (
	KindStart      Kind = "start"       // before the first group executes
	KindGroupStart Kind = "group:start" // before a group's tests run
	KindTestEnd    Kind = "test:end"    // after a test fully resolves
	KindGroupEnd   Kind = "group:end"   // after a group's tests and after-all hook finish
	KindEnd        Kind = "end"         // after the run (or a bail-triggered abort) completes
)

// Event is one lifecycle notification. Exactly one payload field is set
// depending on Kind: Group for group:start/group:end, Test for test:end,
// Run for end.
type Event struct {
	Kind  Kind
	Group string
	Test  *types.TestResult
	Run   *types.RunResult
}

// Subscriber consumes lifecycle events. Subscribers are pure observers; they
// have no back-channel into execution.
type Subscriber interface {
	HandleEvent(ev Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ev Event)

func (f SubscriberFunc) HandleEvent(ev Event) {
	f(ev)
}

// Emitter fans events out to subscribers synchronously, in registration
// order. Registration is append-only; subscribers registered after a run has
// started miss the events already emitted.
type Emitter struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers a subscriber. Subscribers cannot be removed.
func (e *Emitter) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, s)
}

// SubscriberCount returns the number of registered subscribers.
func (e *Emitter) SubscriberCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Emit delivers the event to every subscriber before returning. Emission is
// single-threaded; the engine never emits from two goroutines at once.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	subs := e.subs
	e.mu.RUnlock()

	for _, s := range subs {
		s.HandleEvent(ev)
	}
}
