package gauntlet

import (
	"errors"
	"fmt"
)

// The app boundary distinguishes two failure classes: a run that executed and
// failed, and an operational problem that kept a run from executing properly.
// Each class carries its own exit code so automation can tell them apart.

// RuntimeError marks an operational failure: invalid configuration,
// declaration API misuse, anything that prevents a run from starting cleanly.
// It maps to exit code 2.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError wraps err as an operational failure.
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError reports whether err is or wraps a RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return err != nil && errors.As(err, &re)
}

// TestFailureError marks a run that executed and recorded failures, including
// a hard exception mid-run. It maps to exit code 1.
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// NewTestFailureError creates a TestFailureError with the run summary as its
// message.
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError reports whether err is or wraps a TestFailureError.
func IsTestFailureError(err error) bool {
	var tfe *TestFailureError
	return err != nil && errors.As(err, &tfe)
}
