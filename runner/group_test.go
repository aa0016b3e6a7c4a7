package runner

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/types"
)

// eventCollector records every emitted event in order.
type eventCollector struct {
	evs []events.Event
}

func (c *eventCollector) HandleEvent(ev events.Event) {
	c.evs = append(c.evs, ev)
}

func (c *eventCollector) kinds() []events.Kind {
	kinds := make([]events.Kind, 0, len(c.evs))
	for _, ev := range c.evs {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (c *eventCollector) testResults() []*types.TestResult {
	var results []*types.TestResult
	for _, ev := range c.evs {
		if ev.Kind == events.KindTestEnd {
			results = append(results, ev.Test)
		}
	}
	return results
}

func newTestGroup(title string) (*Group, *events.Emitter, *eventCollector, *runState) {
	g := &Group{title: title, cfg: snapshot{Timeout: time.Second}}
	em := events.NewEmitter()
	collector := &eventCollector{}
	em.Subscribe(collector)
	st := &runState{log: log.New()}
	return g, em, collector, st
}

func TestGroupSharedCounterScenario(t *testing.T) {
	g, em, collector, st := newTestGroup("math")

	counter := 0
	afterAllRuns := 0
	g.BeforeAll(func(ctx context.Context) error {
		counter++
		return nil
	})
	g.AfterAll(func(ctx context.Context) error {
		afterAllRuns++
		return nil
	})
	g.Test("first sees the counter", func(tt *T) error {
		tt.Assert(counter == 1, "counter = %d, want 1", counter)
		return nil
	})
	g.Test("second sees the counter", func(tt *T) error {
		tt.Assert(counter == 1, "counter = %d, want 1", counter)
		return nil
	})

	bailed := g.run(context.Background(), em, st)
	require.False(t, bailed)
	assert.False(t, st.hasErrors)
	assert.Equal(t, 1, afterAllRuns)

	require.Equal(t, []events.Kind{
		events.KindGroupStart,
		events.KindTestEnd,
		events.KindTestEnd,
		events.KindGroupEnd,
	}, collector.kinds())
	for _, res := range collector.testResults() {
		assert.Equal(t, types.TestStatusPass, res.Status)
	}
}

func TestGroupBeforeAllFailureSkipsRoster(t *testing.T) {
	g, em, collector, st := newTestGroup("doomed")

	bodyRan := false
	afterAllRan := false
	g.BeforeAll(func(ctx context.Context) error {
		return errors.New("setup exploded")
	})
	g.AfterAll(func(ctx context.Context) error {
		afterAllRan = true
		return nil
	})
	g.Test("one", func(tt *T) error { bodyRan = true; return nil })
	g.Test("two", func(tt *T) error { bodyRan = true; return nil })

	bailed := g.run(context.Background(), em, st)
	require.False(t, bailed)
	assert.False(t, bodyRan, "tests must not execute after before-all failure")
	assert.True(t, afterAllRan, "after-all must still be attempted")
	assert.True(t, st.hasErrors)

	results := collector.testResults()
	require.Len(t, results, 2, "skipped tests still appear in the roster")
	for _, res := range results {
		assert.Equal(t, types.TestStatusSkip, res.Status)
	}
}

func TestGroupBeforeEachFailureFailsOnlyThatTest(t *testing.T) {
	g, em, collector, st := newTestGroup("partial")

	calls := 0
	bodyRan := false
	afterEachRan := 0
	g.BeforeEach(func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("fixture missing")
		}
		return nil
	})
	g.AfterEach(func(ctx context.Context) error {
		afterEachRan++
		return nil
	})
	g.Test("broken fixture", func(tt *T) error { bodyRan = true; return nil })
	g.Test("healthy", func(tt *T) error { return nil })

	g.run(context.Background(), em, st)

	results := collector.testResults()
	require.Len(t, results, 2)
	assert.Equal(t, types.TestStatusFail, results[0].Status)
	assert.Equal(t, types.TestStatusPass, results[1].Status)
	assert.Equal(t, 2, afterEachRan, "after-each runs even when before-each failed")
	assert.Contains(t, results[0].Error.Error(), "fixture missing")
	// bodyRan flips only for the second test's healthy before-each.
	assert.False(t, bodyRan && results[0].Status == types.TestStatusPass)
}

func TestGroupAfterEachFailureOverridesPass(t *testing.T) {
	g, em, collector, st := newTestGroup("teardown")

	g.AfterEach(func(ctx context.Context) error {
		return errors.New("teardown failed")
	})
	g.Test("otherwise fine", func(tt *T) error { return nil })

	g.run(context.Background(), em, st)

	results := collector.testResults()
	require.Len(t, results, 1)
	assert.Equal(t, types.TestStatusFail, results[0].Status)
	assert.Contains(t, results[0].Error.Error(), "teardown failed")
}

func TestGroupAfterEachFailureKeepsOriginalError(t *testing.T) {
	g, em, collector, st := newTestGroup("teardown")

	g.AfterEach(func(ctx context.Context) error {
		return errors.New("teardown failed")
	})
	g.Test("already broken", func(tt *T) error { return errors.New("body broke first") })

	g.run(context.Background(), em, st)

	results := collector.testResults()
	require.Len(t, results, 1)
	assert.Equal(t, types.TestStatusFail, results[0].Status)
	assert.Contains(t, results[0].Error.Error(), "body broke first")
}

func TestGroupHookSlotInvariants(t *testing.T) {
	g, _, _, _ := newTestGroup("strict")
	g.BeforeAll(func(ctx context.Context) error { return nil })

	assert.PanicsWithError(t, `configuration error: group "strict" already has a before all hook`, func() {
		g.BeforeAll(func(ctx context.Context) error { return nil })
	})
}

func TestGroupSealedAfterRun(t *testing.T) {
	g, em, _, st := newTestGroup("sealed")
	g.Test("only", func(tt *T) error { return nil })
	g.run(context.Background(), em, st)

	assert.Panics(t, func() { g.Test("late", func(tt *T) error { return nil }) })
	assert.Panics(t, func() { g.AfterAll(func(ctx context.Context) error { return nil }) })
}

func TestGroupSkipReasons(t *testing.T) {
	tests := []struct {
		name string
		cfg  snapshot
		opts Options
		want string
	}{
		{
			name: "explicit skip",
			opts: Options{Skip: true},
			want: "marked skip",
		},
		{
			name: "skip in ci",
			cfg:  snapshot{InCI: true},
			opts: Options{SkipInCI: true},
			want: "skipped in CI",
		},
		{
			name: "ci only test outside ci",
			opts: Options{RunInCI: true},
			want: "runs only in CI",
		},
		{
			name: "ci only test in ci",
			cfg:  snapshot{InCI: true},
			opts: Options{RunInCI: true},
			want: "",
		},
		{
			name: "grep mismatch",
			cfg:  snapshot{Grep: regexp.MustCompile("adds")},
			want: "filtered out by grep",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{title: "g", cfg: tt.cfg}
			tst := &Test{title: "subtracts two numbers", opts: tt.opts}
			assert.Equal(t, tt.want, g.skipReason(tst))
		})
	}
}

func TestGroupHooksOnSkipPolicy(t *testing.T) {
	g, em, collector, st := newTestGroup("policy")
	g.cfg.HooksOnSkip = true

	hookRuns := 0
	g.BeforeEach(func(ctx context.Context) error {
		hookRuns++
		return nil
	})
	g.AfterEach(func(ctx context.Context) error {
		hookRuns++
		return nil
	})
	g.Test("skipped", func(tt *T) error { return nil }, Options{Skip: true})

	g.run(context.Background(), em, st)

	assert.Equal(t, 2, hookRuns)
	results := collector.testResults()
	require.Len(t, results, 1)
	assert.Equal(t, types.TestStatusSkip, results[0].Status, "hook runs must not change the skip status")
}
