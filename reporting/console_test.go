package reporting

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"

	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/types"
)

func renderConsole(t *testing.T, evs []events.Event) string {
	t.Helper()
	var buf bytes.Buffer
	r := NewConsoleReporter(log.New())
	r.SetOutput(&buf)
	for _, ev := range evs {
		r.HandleEvent(ev)
	}
	return buf.String()
}

func TestConsoleReporterRendersGroupedResults(t *testing.T) {
	out := renderConsole(t, []events.Event{
		{Kind: events.KindStart},
		{Kind: events.KindGroupStart, Group: "math"},
		{Kind: events.KindTestEnd, Test: &types.TestResult{
			Title: "adds two numbers", Group: "math", Status: types.TestStatusPass,
			Duration: 120 * time.Millisecond,
		}},
		{Kind: events.KindTestEnd, Test: &types.TestResult{
			Title: "divides by zero", Group: "math", Status: types.TestStatusFail,
			Error: errors.New("division by zero"),
		}},
		{Kind: events.KindGroupEnd, Group: "math"},
		{Kind: events.KindEnd, Run: &types.RunResult{
			RunID:  "abc",
			Status: types.TestStatusFail,
			Stats:  types.RunStats{Total: 2, Passed: 1, Failed: 1},
			Errors: []error{errors.New("math > divides by zero: division by zero")},
		}},
	})

	assert.Contains(t, out, "math")
	assert.Contains(t, out, "adds two numbers")
	assert.Contains(t, out, "divides by zero")
	assert.Contains(t, out, "division by zero")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "1 failure(s):")
	assert.Contains(t, out, "1 passed, 1 failed, 0 skipped")
}

func TestConsoleReporterRootGroupLabel(t *testing.T) {
	out := renderConsole(t, []events.Event{
		{Kind: events.KindTestEnd, Test: &types.TestResult{
			Title: "top level", Status: types.TestStatusPass,
		}},
		{Kind: events.KindEnd, Run: &types.RunResult{
			Status: types.TestStatusPass,
			Stats:  types.RunStats{Total: 1, Passed: 1},
		}},
	})

	assert.Contains(t, out, "(root)")
	assert.Contains(t, out, "top level")
}

func TestConsoleReporterRegressionLabel(t *testing.T) {
	out := renderConsole(t, []events.Event{
		{Kind: events.KindTestEnd, Test: &types.TestResult{
			Title: "known bug", Group: "g", Status: types.TestStatusPass, Regression: true,
		}},
		{Kind: events.KindEnd, Run: &types.RunResult{
			Status: types.TestStatusPass,
			Stats:  types.RunStats{Total: 1, Passed: 1},
		}},
	})

	assert.Contains(t, out, "pass (expected failure)")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "pass", statusLabel(&types.TestResult{Status: types.TestStatusPass}))
	assert.Equal(t, "fail", statusLabel(&types.TestResult{Status: types.TestStatusFail, Regression: true}))
	assert.Equal(t, "pass (expected failure)", statusLabel(&types.TestResult{Status: types.TestStatusPass, Regression: true}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.1s", formatDuration(120*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
}
