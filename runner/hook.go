package runner

import (
	"context"
	"time"
)

// HookKind identifies one of the four hook slots a group owns
type HookKind string

const (
	HookBeforeAll  HookKind = "before all"
	HookAfterAll   HookKind = "after all"
	HookBeforeEach HookKind = "before each"
	HookAfterEach  HookKind = "after each"
)

// HookFunc is a lifecycle callback. Completion is signalled by returning; the
// context is cancelled when the engine stops waiting (timeout or shutdown).
type HookFunc func(ctx context.Context) error

// Hook is a single lifecycle callback with timeout enforcement.
type Hook struct {
	kind    HookKind
	group   string // owning group title, for error context
	fn      HookFunc
	timeout time.Duration
}

// Execute runs the hook under the completion/timeout race. A nil hook is a
// no-op. On timeout the returned error is a *TimeoutError and the callback is
// abandoned, not killed.
func (h *Hook) Execute(ctx context.Context) error {
	if h == nil || h.fn == nil {
		return nil
	}
	err, timedOut := await(ctx, h.timeout, h.fn)
	if timedOut {
		return &TimeoutError{Kind: string(h.kind), Name: h.group, Timeout: h.timeout}
	}
	if err != nil {
		return &hookError{Kind: h.kind, Group: h.group, Err: err}
	}
	return nil
}

// await races a user callback against its deadline. The callback runs on its
// own goroutine with a context that is cancelled once the race is decided.
// The result channel is buffered so a late completion is delivered into the
// buffer and discarded rather than leaking the goroutine.
//
// A zero or negative timeout disables the deadline.
func await(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) (err error, timedOut bool) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- &PanicError{Value: rec}
			}
		}()
		done <- fn(cctx)
	}()

	if timeout <= 0 {
		return <-done, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err, false
	case <-timer.C:
		return nil, true
	}
}
