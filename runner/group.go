package runner

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/types"
)

// snapshot is the slice of runner configuration a group copies at creation
// time. Later reconfiguration of the runner does not reach into existing
// groups.
type snapshot struct {
	Bail        bool
	Timeout     time.Duration
	Grep        *regexp.Regexp
	InCI        bool
	HooksOnSkip bool
}

// Group is an ordered scope of tests plus four hook slots. Groups are built
// by a declaration callback running synchronously at declaration time and are
// sealed once execution starts.
type Group struct {
	title string
	cfg   snapshot
	tests []*Test

	beforeAll  *Hook
	afterAll   *Hook
	beforeEach *Hook
	afterEach  *Hook

	sealed bool
}

// Title returns the group title. The implicit root group has an empty title.
func (g *Group) Title() string {
	return g.title
}

// Test declares a test case in this group. Declaration order is execution
// order.
func (g *Group) Test(title string, fn TestFunc, opts ...Options) {
	g.checkOpen("declare test")
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	g.tests = append(g.tests, &Test{title: title, fn: fn, opts: o})
}

// BeforeAll sets the hook run once before any test in the group.
func (g *Group) BeforeAll(fn HookFunc) {
	g.setHook(&g.beforeAll, HookBeforeAll, fn)
}

// AfterAll sets the hook run once after every test in the group.
func (g *Group) AfterAll(fn HookFunc) {
	g.setHook(&g.afterAll, HookAfterAll, fn)
}

// BeforeEach sets the hook run before each test in the group.
func (g *Group) BeforeEach(fn HookFunc) {
	g.setHook(&g.beforeEach, HookBeforeEach, fn)
}

// AfterEach sets the hook run after each test in the group.
func (g *Group) AfterEach(fn HookFunc) {
	g.setHook(&g.afterEach, HookAfterEach, fn)
}

// setHook enforces at most one hook per kind and no reassignment after the
// group has been sealed.
func (g *Group) setHook(slot **Hook, kind HookKind, fn HookFunc) {
	g.checkOpen(fmt.Sprintf("set %s hook", kind))
	if *slot != nil {
		panic(NewConfigError("group %q already has a %s hook", g.title, kind))
	}
	*slot = &Hook{kind: kind, group: g.title, fn: fn, timeout: g.cfg.Timeout}
}

func (g *Group) checkOpen(action string) {
	if g.sealed {
		panic(NewConfigError("cannot %s: group %q has already started executing", action, g.title))
	}
}

// run executes the group: before-all, each test in declaration order,
// after-all. It returns true when a failure must abort the rest of the run
// (bail).
func (g *Group) run(ctx context.Context, em *events.Emitter, st *runState) (bailed bool) {
	g.sealed = true

	// The implicit root group keeps an empty title; emitting group events for
	// it would only produce noisy headers.
	if g.title != "" {
		em.Emit(events.Event{Kind: events.KindGroupStart, Group: g.title})
		defer em.Emit(events.Event{Kind: events.KindGroupEnd, Group: g.title})
	}

	// After-all runs exactly once, deferred so it is still attempted when a
	// hard exception unwinds mid-group. Its failure is recorded against the
	// run but does not retroactively change already-emitted test statuses.
	afterAllDone := false
	runAfterAll := func() {
		if afterAllDone {
			return
		}
		afterAllDone = true
		if err := g.afterAll.Execute(ctx); err != nil {
			st.log.Error("after all hook failed", "group", g.title, "err", err)
			st.recordFailure(err)
		}
	}
	defer runAfterAll()

	if err := g.beforeAll.Execute(ctx); err != nil {
		st.log.Error("before all hook failed, skipping group", "group", g.title, "err", err)
		st.recordFailure(err)
		g.skipRemaining(em, st, 0)
		return false
	}

	for _, tst := range g.tests {
		res := g.runTest(ctx, tst, em, st)
		if res == nil {
			continue
		}
		if res.Status == types.TestStatusFail && g.cfg.Bail {
			st.log.Warn("bailing out", "test", tst.title, "group", g.title)
			// Remaining tests never execute and never emit events; after-all
			// still runs so the group can clean up.
			bailed = true
			break
		}
	}
	return bailed
}

// skipRemaining reports every test from index on as skipped so reporters see
// a complete roster even when the group aborts early.
func (g *Group) skipRemaining(em *events.Emitter, st *runState, from int) {
	for _, tst := range g.tests[from:] {
		res := &types.TestResult{
			Title:             tst.title,
			Group:             g.title,
			Status:            types.TestStatusSkip,
			Regression:        tst.opts.Regression,
			RegressionMessage: tst.opts.RegressionMessage,
		}
		tst.done = true
		st.stats.Record(res)
		em.Emit(events.Event{Kind: events.KindTestEnd, Test: res})
	}
}

// skipReason classifies a test the runner must not execute. Empty means run.
func (g *Group) skipReason(tst *Test) string {
	switch {
	case tst.opts.Skip:
		return "marked skip"
	case tst.opts.SkipInCI && g.cfg.InCI:
		return "skipped in CI"
	case tst.opts.RunInCI && !g.cfg.InCI:
		return "runs only in CI"
	case g.cfg.Grep != nil && !g.cfg.Grep.MatchString(tst.title):
		return "filtered out by grep"
	}
	return ""
}

// runTest drives one test through its hooks and body and emits exactly one
// test:end event. Tests are never re-run; a test already executed is
// ignored.
func (g *Group) runTest(ctx context.Context, tst *Test, em *events.Emitter, st *runState) *types.TestResult {
	if tst.done {
		return nil
	}
	tst.done = true

	res := &types.TestResult{
		Title:             tst.title,
		Group:             g.title,
		Status:            types.TestStatusPending,
		Regression:        tst.opts.Regression,
		RegressionMessage: tst.opts.RegressionMessage,
	}
	defer func() {
		st.stats.Record(res)
		em.Emit(events.Event{Kind: events.KindTestEnd, Test: res})
	}()

	if tst.opts.Todo {
		res.Status = types.TestStatusTodo
		return res
	}

	if reason := g.skipReason(tst); reason != "" {
		st.log.Debug("skipping test", "test", tst.title, "group", g.title, "reason", reason)
		res.Status = types.TestStatusSkip
		// Policy: skipped tests leave the each-hooks alone unless HooksOnSkip
		// asks for them; hook failures then count against the run but never
		// change the skip status.
		if g.cfg.HooksOnSkip {
			if err := g.beforeEach.Execute(ctx); err != nil {
				st.recordFailure(err)
			}
			if err := g.afterEach.Execute(ctx); err != nil {
				st.recordFailure(err)
			}
		}
		return res
	}

	start := time.Now()
	g.runEachHooks(ctx, res, func() {
		g.runBody(ctx, tst, res)
	})
	res.Duration = time.Since(start)

	if res.Status == types.TestStatusFail {
		st.recordFailure(fmt.Errorf("%s: %w", res.FullTitle(), res.Error))
	}
	return res
}

// runEachHooks wraps body with the before-each/after-each pair. A before-each
// failure fails the test and skips the body; after-each runs regardless and
// its failure overrides a pass but never clears an earlier error.
func (g *Group) runEachHooks(ctx context.Context, res *types.TestResult, body func()) {
	if err := g.beforeEach.Execute(ctx); err != nil {
		res.Status = types.TestStatusFail
		res.Error = err
	} else {
		body()
	}

	if err := g.afterEach.Execute(ctx); err != nil {
		if res.Error == nil {
			res.Error = err
		}
		res.Status = types.TestStatusFail
	}
}

// runBody executes the test callback under the completion/timeout race and
// interprets the outcome against the regression flag.
func (g *Group) runBody(ctx context.Context, tst *Test, res *types.TestResult) {
	timeout := tst.opts.Timeout
	if timeout == 0 {
		timeout = g.cfg.Timeout
	}

	// The handle is created before the body goroutine starts so a timed-out
	// callback only ever races against the finalize guard, never against the
	// handle itself.
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	handle := newT(cctx, tst.title)

	err, timedOut := await(cctx, timeout, func(context.Context) error {
		return tst.fn(handle)
	})
	if timedOut {
		err = &TimeoutError{Kind: "test", Name: tst.title, Timeout: timeout}
		res.TimedOut = true
	}

	// Seal the handle before reading its verdict so a late completion signal
	// cannot mutate the finalized result.
	if verdict := handle.finalize(); verdict != nil && err == nil {
		err = verdict
	}

	if tst.opts.Regression {
		// Inverted outcome: the expected-failure case is success.
		if err != nil {
			res.Status = types.TestStatusPass
			return
		}
		res.Status = types.TestStatusFail
		res.Error = &UnexpectedPassError{Title: tst.title, Message: tst.opts.RegressionMessage}
		return
	}

	if err != nil {
		res.Status = types.TestStatusFail
		res.Error = err
		return
	}
	res.Status = types.TestStatusPass
}
