// Package exitcodes defines the process exit contract. The exit code is the
// single authoritative success/failure signal for automation wrapping the
// binary.
package exitcodes

const (
	Success     = 0 // run executed, no failures recorded
	TestFailure = 1 // run executed with failures, or a hard exception aborted it
	RuntimeErr  = 2 // configuration or declaration error, no run executed
)
