// Package gauntlet is a sequential test-execution engine: tests are declared
// in hierarchical groups with lifecycle hooks and executed strictly in order
// with per-callback timeouts, bail propagation and a deterministic lifecycle
// event stream consumed by pluggable reporters.
//
// A test binary wires the engine up through Main:
//
//	func main() {
//		gauntlet.Main(func(r *runner.Runner) {
//			r.Group("math", func(g *runner.Group) {
//				g.Test("adds two numbers", func(t *runner.T) error {
//					t.Plan(1)
//					t.Assert(1+1 == 2, "expected 2")
//					return nil
//				})
//			})
//		})
//	}
package gauntlet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/gauntlet-run/gauntlet/events"
	"github.com/gauntlet-run/gauntlet/exitcodes"
	"github.com/gauntlet-run/gauntlet/flags"
	"github.com/gauntlet-run/gauntlet/reporting"
	"github.com/gauntlet-run/gauntlet/runner"
	"github.com/gauntlet-run/gauntlet/service"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

// DeclareFunc declares the suite against a fresh runner. In watch mode it is
// invoked once per iteration, each time on its own runner, so declared state
// never leaks between runs.
type DeclareFunc func(r *runner.Runner)

// Main builds the CLI app around the declaration function and exits the
// process with the standard exit codes: 0 on success, 1 on test failure or
// hard exception, 2 on configuration errors.
func Main(declare DeclareFunc) {
	app := NewApp(declare)
	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// NewApp creates the urfave/cli application for a suite.
func NewApp(declare DeclareFunc) *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "gauntlet"
	app.Usage = "Sequential test execution engine"
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		return run(ctx, declare)
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}
	return app
}

func run(ctx *cli.Context, declare DeclareFunc) error {
	logger := log.New()

	cfg, err := NewConfig(ctx, logger)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	logger.Debug("config", "reporter", cfg.Reporter, "bail", cfg.Bail, "timeout", cfg.Timeout,
		"grep", cfg.Grep, "run_once", cfg.RunOnce)

	// The cli context is never cancelled by urfave/cli itself; shutdown is
	// driven by SIGINT/SIGTERM so watch mode can drain instead of being
	// killed.
	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunOnce {
		return ExecuteRun(runCtx, cfg, declare)
	}

	// Watch mode: the suite is re-declared on a fresh runner every interval.
	// Global configuration is constructed once; each iteration only gets its
	// own runner context.
	if cfg.ServiceAddr != "" {
		svc := service.New()
		svc.Start(runCtx, cfg.ServiceAddr)
		defer svc.Shutdown()
	}

	sched := NewScheduler(cfg.RunInterval, logger)
	sched.RegisterCallback(func() error {
		return ExecuteRun(runCtx, cfg, declare)
	})
	if err := sched.Start(runCtx); err != nil {
		return err
	}
	defer sched.Stop()

	<-runCtx.Done()
	logger.Info("shutdown signal received, draining")
	return sched.WaitForShutdown(context.Background())
}

// ExecuteRun performs a single run: fresh runner, reporter subscription,
// declaration, execution, and outcome mapping onto the typed exit errors.
func ExecuteRun(ctx context.Context, cfg *Config, declare DeclareFunc) error {
	r, err := runner.New(cfg.RunnerConfig())
	if err != nil {
		return NewRuntimeError(err)
	}

	r.Emitter().Subscribe(newPrimaryReporter(cfg))
	r.Emitter().Subscribe(NewMetricsRecorder())

	if err := safeDeclare(r, declare); err != nil {
		return NewRuntimeError(err)
	}

	result, err := r.Run(ctx)
	if err != nil {
		if runner.IsConfigError(err) {
			return NewRuntimeError(err)
		}
		// Hard exceptions abort the run but count as a failed run, not an
		// operational error.
		return NewTestFailureError(err.Error())
	}
	if r.HasErrors() {
		return NewTestFailureError(result.String())
	}
	return nil
}

// newPrimaryReporter selects the single active reporter for a run. Exactly
// one is attached; cfg.Reporter was validated by NewConfig.
func newPrimaryReporter(cfg *Config) events.Subscriber {
	if cfg.Reporter == ReporterJSON {
		return reporting.NewJSONReporter(cfg.Log, cfg.OutputDir)
	}
	return reporting.NewConsoleReporter(cfg.Log)
}

// safeDeclare contains declaration-time API misuse: a ConfigError panic from
// the declaration API surfaces as an error before any test executes. Other
// panics are genuine bugs and propagate.
func safeDeclare(r *runner.Runner, declare DeclareFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var ce *runner.ConfigError
			if e, ok := rec.(error); ok && errors.As(e, &ce) {
				err = ce
				return
			}
			panic(rec)
		}
	}()
	declare(r)
	return nil
}
