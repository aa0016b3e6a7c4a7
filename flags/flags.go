package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "GAUNTLET"

// prefixEnvVar joins the prefix with the variable name.
func prefixEnvVar(name string) []string {
	return []string{fmt.Sprintf("%s_%s", EnvVarPrefix, name)}
}

var (
	Bail = &cli.BoolFlag{
		Name:    "bail",
		Value:   false,
		EnvVars: prefixEnvVar("BAIL"),
		Usage:   "Abort the entire run on the first failing test",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   2 * time.Second,
		EnvVars: prefixEnvVar("TIMEOUT"),
		Usage:   "Default timeout for each hook and test body (e.g. '2s', '500ms')",
	}
	Grep = &cli.StringFlag{
		Name:    "grep",
		Value:   "",
		EnvVars: prefixEnvVar("GREP"),
		Usage:   "Only run tests whose title matches this pattern; others are reported as skipped",
	}
	Reporter = &cli.StringFlag{
		Name:    "reporter",
		Value:   "console",
		EnvVars: prefixEnvVar("REPORTER"),
		Usage:   "Reporter to attach for this run ('console' or 'json')",
	}
	OutputDir = &cli.StringFlag{
		Name:    "output-dir",
		Value:   "results",
		EnvVars: prefixEnvVar("OUTPUT_DIR"),
		Usage:   "Directory for machine-readable reports when the json reporter is selected",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: prefixEnvVar("CONFIG"),
		Usage:   "Path to a yaml config file (eg. 'gauntlet.yaml'); flags override file values",
	}
	CI = &cli.BoolFlag{
		Name:    "ci",
		EnvVars: prefixEnvVar("CI"),
		Usage:   "Force CI mode regardless of the CI environment variable",
	}
	HooksOnSkip = &cli.BoolFlag{
		Name:    "hooks-on-skip",
		Value:   false,
		EnvVars: prefixEnvVar("HOOKS_ON_SKIP"),
		Usage:   "Run before-each/after-each hooks for skipped tests",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVar("RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ServiceAddr = &cli.StringFlag{
		Name:    "service-addr",
		Value:   "",
		EnvVars: prefixEnvVar("SERVICE_ADDR"),
		Usage:   "Host to bind the healthz/metrics servers to in watch mode (empty disables them)",
	}
)

var optionalFlags = []cli.Flag{
	Bail,
	Timeout,
	Grep,
	Reporter,
	OutputDir,
	ConfigFile,
	CI,
	HooksOnSkip,
	RunInterval,
	ServiceAddr,
}

var Flags []cli.Flag

func init() {
	Flags = append(Flags, optionalFlags...)
}
