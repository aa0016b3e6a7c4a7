package runner

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that a hook or test body did not complete within its
// deadline. The abandoned callback may still be running; the engine only
// stops waiting for it.
type TimeoutError struct {
	Kind    string // "test" or a hook kind such as "before each"
	Name    string // test title or owning group title
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %q timed out after %s", e.Kind, e.Name, e.Timeout)
}

// IsTimeoutError checks if the error is or wraps a TimeoutError
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return err != nil && errors.As(err, &te)
}

// PanicError wraps an arbitrary value recovered from a panicking user
// callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// PlanMismatchError reports that a test declared an assertion plan and the
// number of assertions actually executed differs. The mismatch is a failure
// regardless of whether the individual assertions passed.
type PlanMismatchError struct {
	Planned int
	Ran     int
}

func (e *PlanMismatchError) Error() string {
	return fmt.Sprintf("planned %d assertions but ran %d", e.Planned, e.Ran)
}

// UnexpectedPassError reports that a regression test completed cleanly. A
// regression test is expected to fail; success is the failure occurring.
type UnexpectedPassError struct {
	Title   string
	Message string
}

func (e *UnexpectedPassError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("regression test %q passed unexpectedly: %s", e.Title, e.Message)
	}
	return fmt.Sprintf("regression test %q passed unexpectedly", e.Title)
}

// ConfigError reports misuse of the declaration or configuration API, such as
// reconfiguring a runner after groups exist or reassigning a hook slot.
// Declaration-time misuse panics with a *ConfigError; the app boundary
// recovers it into a non-zero exit before any test executes.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

// NewConfigError creates a new ConfigError
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError checks if the error is or wraps a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return err != nil && errors.As(err, &ce)
}

// HardError reports a failure inside the orchestration logic itself, not user
// test code. It aborts the run after best-effort cleanup hooks.
type HardError struct {
	Err error
}

func (e *HardError) Error() string {
	return fmt.Sprintf("hard exception: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *HardError) Unwrap() error {
	return e.Err
}

// IsHardError checks if the error is or wraps a HardError
func IsHardError(err error) bool {
	var he *HardError
	return err != nil && errors.As(err, &he)
}

// hookError ties a hook failure to the hook that produced it so reporters can
// name the failing slot.
type hookError struct {
	Kind  HookKind
	Group string
	Err   error
}

func (e *hookError) Error() string {
	return fmt.Sprintf("%s hook failed in group %q: %v", e.Kind, e.Group, e.Err)
}

func (e *hookError) Unwrap() error {
	return e.Err
}
