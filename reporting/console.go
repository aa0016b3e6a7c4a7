// Package reporting ships the two bundled reporters: a human-oriented
// console renderer and a machine-readable JSON event sink. Reporters are
// emitter subscribers; they observe the lifecycle stream and never reach back
// into execution.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/types"
)

// ConsoleReporter buffers test:end events and renders a summary table plus a
// failure block list once the end event arrives.
type ConsoleReporter struct {
	logger log.Logger
	out    io.Writer

	groupOrder []string
	groupTests map[string][]*types.TestResult
}

// NewConsoleReporter creates a console reporter writing to stdout.
func NewConsoleReporter(logger log.Logger) *ConsoleReporter {
	return &ConsoleReporter{
		logger:     logger,
		out:        os.Stdout,
		groupTests: make(map[string][]*types.TestResult),
	}
}

// SetOutput redirects the rendered report, mainly for tests.
func (c *ConsoleReporter) SetOutput(w io.Writer) {
	c.out = w
}

// HandleEvent implements events.Subscriber.
func (c *ConsoleReporter) HandleEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindGroupStart:
		c.addGroup(ev.Group)
	case events.KindTestEnd:
		c.addGroup(ev.Test.Group)
		c.groupTests[ev.Test.Group] = append(c.groupTests[ev.Test.Group], ev.Test)
	case events.KindEnd:
		c.render(ev.Run)
	}
}

func (c *ConsoleReporter) addGroup(title string) {
	if _, ok := c.groupTests[title]; ok {
		return
	}
	c.groupOrder = append(c.groupOrder, title)
	c.groupTests[title] = nil
}

// render draws the results table and, below it, one block per captured
// failure so the summary never hides the causes.
func (c *ConsoleReporter) render(run *types.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(run.Duration)))

	t.AppendHeader(table.Row{
		"Group", "Test", "Duration", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Group", AutoMerge: true},
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	for _, group := range c.groupOrder {
		tests := c.groupTests[group]
		groupLabel := group
		if groupLabel == "" {
			groupLabel = "(root)"
		}
		for i, test := range tests {
			prefix := "├─"
			if i == len(tests)-1 {
				prefix = "└─"
			}
			t.AppendRow(table.Row{
				groupLabel,
				fmt.Sprintf("%s %s", prefix, test.Title),
				formatDuration(test.Duration),
				statusLabel(test),
				errorText(test.Error),
			})
		}
		t.AppendSeparator()
	}

	if run.Status == types.TestStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d tests", run.Stats.Total),
		formatDuration(run.Duration),
		string(run.Status),
		"",
	})
	t.Render()

	fmt.Fprintln(c.out, run.String())

	if len(run.Errors) > 0 {
		fmt.Fprintf(c.out, "\n%d failure(s):\n", len(run.Errors))
		for i, err := range run.Errors {
			fmt.Fprintf(c.out, "  %d) %v\n", i+1, err)
		}
	}
}

// statusLabel marks regression outcomes so an expected failure reads
// differently from an ordinary pass.
func statusLabel(test *types.TestResult) string {
	if test.Regression && test.Status == types.TestStatusPass {
		return "pass (expected failure)"
	}
	return string(test.Status)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// formatDuration renders seconds with one decimal place.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
