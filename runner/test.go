package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// TestFunc is the body of a test case. Completion is signalled by returning;
// a non-nil error, a panic, a failed assertion or an assertion-plan mismatch
// all fail the test.
type TestFunc func(t *T) error

// Options classifies a test at declaration time.
type Options struct {
	Skip              bool          // never execute the body, report skip
	SkipInCI          bool          // skip when running under CI
	RunInCI           bool          // skip unless running under CI
	Todo              bool          // not implemented yet, report todo
	Regression        bool          // expected to fail; a failure here is success
	RegressionMessage string        // context attached to regression outcomes
	Timeout           time.Duration // 0 inherits the group timeout
}

// Test is one declared test case. It is created at declaration time, mutated
// only by the runner during its own execution turn, and never re-run within a
// single runner.
type Test struct {
	title string
	fn    TestFunc
	opts  Options
	done  bool
}

// Title returns the test title.
func (t *Test) Title() string {
	return t.title
}

// T is the handle passed to a test body. It carries the execution context and
// the assertion-plan contract. All mutators become no-ops once the engine
// finalizes the test, so a callback that outlives its timeout cannot corrupt
// an already-reported result.
type T struct {
	ctx   context.Context
	title string

	mu        sync.Mutex
	finalized bool
	planned   int // -1 when no plan was declared
	ran       int
	failures  []error
}

func newT(ctx context.Context, title string) *T {
	return &T{ctx: ctx, title: title, planned: -1}
}

// Context returns the context for the test body. It is cancelled when the
// test times out or the run shuts down.
func (t *T) Context() context.Context {
	return t.ctx
}

// Title returns the title of the running test.
func (t *T) Title() string {
	return t.title
}

// Plan declares the number of assertions the body must execute. After the
// body completes the executed count must equal n or the test fails, even if
// every individual assertion passed.
func (t *T) Plan(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return
	}
	t.planned = n
}

// Ran records one executed assertion. Assertion libraries integrating with
// the engine call this once per evaluated assertion.
func (t *T) Ran() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return
	}
	t.ran++
}

// Assert records one executed assertion and fails the test when ok is false.
// It returns ok so callers can guard follow-up work.
func (t *T) Assert(ok bool, format string, args ...any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return ok
	}
	t.ran++
	if !ok {
		t.failures = append(t.failures, fmt.Errorf(format, args...))
	}
	return ok
}

// finalize seals the handle and returns the body verdict: recorded assertion
// failures joined with any plan mismatch. Late calls from an abandoned
// callback are ignored from here on.
func (t *T) finalize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalized = true

	err := errors.Join(t.failures...)
	if t.planned >= 0 && t.ran != t.planned {
		err = errors.Join(err, &PlanMismatchError{Planned: t.planned, Ran: t.ran})
	}
	return err
}
