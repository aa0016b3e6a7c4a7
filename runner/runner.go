// Package runner implements the orchestration engine: groups of tests with
// lifecycle hooks, executed strictly sequentially with per-callback timeout
// enforcement, bail propagation and a deterministic lifecycle event stream.
//
// The engine intentionally forgoes concurrency for determinism. Groups, tests
// and hooks must not be parallelized: user-visible event ordering and hook
// scoping semantics depend on strict sequencing.
package runner

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/types"
)

// DefaultTimeout bounds every hook and test body unless overridden.
const DefaultTimeout = 2 * time.Second

// RunHook is a run-level lifecycle callback executed once before or after the
// entire run. It receives the runner and the emitter so it can register
// subscribers or inspect configuration.
type RunHook func(ctx context.Context, r *Runner, em *events.Emitter) error

// Config holds runner configuration. It is captured when the runner is
// created; groups copy their own snapshot at declaration time.
type Config struct {
	Bail        bool           // abort the whole run on the first failing test
	Timeout     time.Duration  // per-callback timeout; 0 means DefaultTimeout
	Grep        string         // raw pattern restricting which test titles execute
	GrepRE      *regexp.Regexp // pre-built pattern; takes precedence over Grep
	HooksOnSkip bool           // run before-each/after-each for skipped tests
	InCI        *bool          // override CI detection (default: CI env var)
	Before      []RunHook      // run once before the entire run
	After       []RunHook      // run once after the entire run, best effort
	Log         log.Logger
}

// Runner orchestrates the ordered execution of groups and drives the emitter.
// One runner performs at most one run; re-running a declared suite means
// building a fresh runner.
type Runner struct {
	cfg     Config
	snap    snapshot
	log     log.Logger
	emitter *events.Emitter

	groups   []*Group // index 0 is the implicit root group
	declared bool
	started  bool

	runID     string
	hasErrors bool
}

// New creates a runner from the given configuration. The grep pattern is
// compiled once here; an invalid pattern is a configuration error.
func New(cfg Config) (*Runner, error) {
	snap, logger, err := normalize(&cfg)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:     cfg,
		snap:    snap,
		log:     logger,
		emitter: events.NewEmitter(),
	}
	r.groups = []*Group{{title: "", cfg: snap}}
	return r, nil
}

// normalize validates cfg in place and produces the snapshot groups copy.
func normalize(cfg *Config) (snapshot, log.Logger, error) {
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
		cfg.Log = logger
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	grep := cfg.GrepRE
	if grep == nil && cfg.Grep != "" {
		var err error
		grep, err = regexp.Compile(cfg.Grep)
		if err != nil {
			return snapshot{}, nil, NewConfigError("invalid grep pattern %q: %v", cfg.Grep, err)
		}
	}

	inCI := os.Getenv("CI") != ""
	if cfg.InCI != nil {
		inCI = *cfg.InCI
	}

	return snapshot{
		Bail:        cfg.Bail,
		Timeout:     cfg.Timeout,
		Grep:        grep,
		InCI:        inCI,
		HooksOnSkip: cfg.HooksOnSkip,
	}, logger, nil
}

// Configure replaces the runner configuration. Configuration is write-once
// relative to declarations: once any group, test or hook exists, or the run
// has started, reconfiguration fails with a ConfigError.
func (r *Runner) Configure(cfg Config) error {
	if r.started {
		return NewConfigError("cannot reconfigure: run already started")
	}
	if r.declared {
		return NewConfigError("cannot reconfigure: tests have already been declared")
	}

	snap, logger, err := normalize(&cfg)
	if err != nil {
		return err
	}
	r.cfg = cfg
	r.snap = snap
	r.log = logger
	r.groups = []*Group{{title: "", cfg: snap}}
	return nil
}

// Emitter returns the event bus reporters subscribe to. Subscribe before
// calling Run.
func (r *Runner) Emitter() *events.Emitter {
	return r.emitter
}

// RunID returns the unique id of the current run, empty before Run.
func (r *Runner) RunID() string {
	return r.runID
}

// Group declares a new group and synchronously invokes the declaration
// callback against it, so nested hook and test declarations attach before
// execution begins.
func (r *Runner) Group(title string, declare func(g *Group)) {
	r.checkDeclarable("declare group")
	g := &Group{title: title, cfg: r.snap}
	r.groups = append(r.groups, g)
	r.declared = true
	if declare != nil {
		declare(g)
	}
}

// Test declares a test in the implicit root group.
func (r *Runner) Test(title string, fn TestFunc, opts ...Options) {
	r.checkDeclarable("declare test")
	r.declared = true
	r.root().Test(title, fn, opts...)
}

// BeforeAll sets the before-all hook of the implicit root group.
func (r *Runner) BeforeAll(fn HookFunc) {
	r.checkDeclarable("set before all hook")
	r.declared = true
	r.root().BeforeAll(fn)
}

// AfterAll sets the after-all hook of the implicit root group.
func (r *Runner) AfterAll(fn HookFunc) {
	r.checkDeclarable("set after all hook")
	r.declared = true
	r.root().AfterAll(fn)
}

// BeforeEach sets the before-each hook of the implicit root group.
func (r *Runner) BeforeEach(fn HookFunc) {
	r.checkDeclarable("set before each hook")
	r.declared = true
	r.root().BeforeEach(fn)
}

// AfterEach sets the after-each hook of the implicit root group.
func (r *Runner) AfterEach(fn HookFunc) {
	r.checkDeclarable("set after each hook")
	r.declared = true
	r.root().AfterEach(fn)
}

func (r *Runner) root() *Group {
	return r.groups[0]
}

func (r *Runner) checkDeclarable(action string) {
	if r.started {
		panic(NewConfigError("cannot %s: run already started", action))
	}
}

// runState accumulates failures and stats for one run. hasErrors is
// monotonic: it flips to true the instant any test or hook fails and is never
// reset for the lifetime of the run.
type runState struct {
	log       log.Logger
	stats     types.RunStats
	errors    []error
	hasErrors bool
}

func (st *runState) recordFailure(err error) {
	st.hasErrors = true
	st.errors = append(st.errors, err)
}

// Run executes every declared group in order and emits the lifecycle event
// stream: start, (group:start, test:end*, group:end)*, end. It returns the
// aggregate result; a non-nil error means the orchestration itself failed
// (hard exception or API misuse), never a plain test failure.
func (r *Runner) Run(ctx context.Context) (result *types.RunResult, err error) {
	if r.started {
		return nil, NewConfigError("runner has already executed; build a fresh runner to re-run")
	}
	r.started = true
	r.runID = uuid.New().String()
	r.log.Debug("starting run", "run_id", r.runID, "groups", len(r.groups))

	start := time.Now()
	st := &runState{log: r.log, stats: types.RunStats{StartTime: start}}
	afterDone := false

	runAfter := func() {
		if afterDone {
			return
		}
		afterDone = true
		for _, h := range r.cfg.After {
			if herr := h(ctx, r, r.emitter); herr != nil {
				st.recordFailure(fmt.Errorf("after run hook: %w", herr))
			}
		}
	}

	// Failures inside orchestration logic (not user callbacks, which are
	// contained by the completion/timeout race) are captured as a hard
	// exception: the run is reported failed and after-hooks still get their
	// best-effort attempt.
	defer func() {
		if rec := recover(); rec != nil {
			hard := &HardError{Err: fmt.Errorf("%v", rec)}
			r.log.Error("hard exception during run", "run_id", r.runID, "err", hard)
			st.recordFailure(hard)
			runAfter()
			result = r.finish(st, start)
			err = hard
		}
	}()

	r.emitter.Emit(events.Event{Kind: events.KindStart})

	beforeFailed := false
	for _, h := range r.cfg.Before {
		if herr := h(ctx, r, r.emitter); herr != nil {
			st.recordFailure(fmt.Errorf("before run hook: %w", herr))
			beforeFailed = true
			break
		}
	}

	if !beforeFailed {
		for _, g := range r.groups {
			if g.run(ctx, r.emitter, st) {
				break
			}
		}
	}

	runAfter()
	return r.finish(st, start), nil
}

// finish freezes the run outcome and emits the end event.
func (r *Runner) finish(st *runState, start time.Time) *types.RunResult {
	r.hasErrors = st.hasErrors
	st.stats.EndTime = time.Now()

	status := types.TestStatusPass
	if st.hasErrors {
		status = types.TestStatusFail
	}
	result := &types.RunResult{
		RunID:    r.runID,
		Status:   status,
		Duration: time.Since(start),
		Stats:    st.stats,
		Errors:   st.errors,
	}
	r.emitter.Emit(events.Event{Kind: events.KindEnd, Run: result})
	r.log.Info("run finished", "run_id", r.runID, "status", status, "summary", result.String())
	return result
}

// HasErrors reports whether any failure was recorded. It is readable after
// Run returns and is the authoritative pass/fail signal for the process exit
// code.
func (r *Runner) HasErrors() bool {
	return r.hasErrors
}
