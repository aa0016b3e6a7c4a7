package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPending TestStatus = "pending"
	TestStatusPass    TestStatus = "pass"
	TestStatusFail    TestStatus = "fail"
	TestStatusSkip    TestStatus = "skip"
	TestStatusTodo    TestStatus = "todo"
)

// Terminal reports whether the status is a final outcome. A test stays
// pending until the runner finalizes it exactly once.
func (s TestStatus) Terminal() bool {
	return s != TestStatusPending && s != ""
}

// TestResult captures the outcome of a single test run
type TestResult struct {
	Title             string
	Group             string        // Title of the owning group; empty for the root group
	Status            TestStatus
	Duration          time.Duration // Wall time across before-each, body and after-each
	Error             error         // Captured failure cause, nil on pass/skip
	TimedOut          bool          // Whether the body exceeded its timeout
	Regression        bool          // Test was expected to fail
	RegressionMessage string
}

// FullTitle returns the group-qualified title used in reports and metrics.
func (tr *TestResult) FullTitle() string {
	if tr.Group == "" {
		return tr.Title
	}
	return tr.Group + " > " + tr.Title
}

// RunStats tracks aggregate counts for one run
type RunStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Todo      int
	StartTime time.Time
	EndTime   time.Time
}

// Record folds a finished test result into the stats.
func (s *RunStats) Record(tr *TestResult) {
	s.Total++
	switch tr.Status {
	case TestStatusPass:
		s.Passed++
	case TestStatusFail:
		s.Failed++
	case TestStatusSkip:
		s.Skipped++
	case TestStatusTodo:
		s.Todo++
	}
}

// RunResult captures the complete outcome of a run
type RunResult struct {
	RunID    string
	Status   TestStatus // pass or fail
	Duration time.Duration
	Stats    RunStats
	Errors   []error // Ordered list of every captured failure
}

// String returns a one-line human readable summary of the run.
func (r *RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d passed, %d failed, %d skipped", r.Stats.Passed, r.Stats.Failed, r.Stats.Skipped)
	if r.Stats.Todo > 0 {
		fmt.Fprintf(&b, ", %d todo", r.Stats.Todo)
	}
	fmt.Fprintf(&b, " (%.1fs)", r.Duration.Seconds())
	return b.String()
}
