package gauntlet

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/gauntlet-run/gauntlet/flags"
	"github.com/gauntlet-run/gauntlet/runner"
)

// Reporter names accepted by the --reporter flag and the config file.
const (
	ReporterConsole = "console"
	ReporterJSON    = "json"
)

// Config holds the application configuration
type Config struct {
	Bail        bool
	Timeout     time.Duration // Default timeout for individual hooks and tests
	Grep        string        // Pattern restricting which test titles execute
	Reporter    string        // Reporter attached for the run
	OutputDir   string        // Directory for machine-readable reports
	HooksOnSkip bool          // Run each-hooks for skipped tests
	ForceCI     bool          // Treat the run as a CI run regardless of environment
	RunInterval time.Duration // Interval between runs in watch mode
	RunOnce     bool          // Indicates the process should exit after one run
	ServiceAddr string        // Bind host for healthz/metrics servers in watch mode
	Log         log.Logger
}

// fileConfig mirrors the yaml config file. Every field is optional; explicit
// CLI flags override file values.
type fileConfig struct {
	Bail        *bool   `yaml:"bail,omitempty"`
	Timeout     *string `yaml:"timeout,omitempty"`
	Grep        *string `yaml:"grep,omitempty"`
	Reporter    *string `yaml:"reporter,omitempty"`
	OutputDir   *string `yaml:"output_dir,omitempty"`
	HooksOnSkip *bool   `yaml:"hooks_on_skip,omitempty"`
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	cfg := &Config{
		Bail:        ctx.Bool(flags.Bail.Name),
		Timeout:     ctx.Duration(flags.Timeout.Name),
		Grep:        ctx.String(flags.Grep.Name),
		Reporter:    ctx.String(flags.Reporter.Name),
		OutputDir:   ctx.String(flags.OutputDir.Name),
		HooksOnSkip: ctx.Bool(flags.HooksOnSkip.Name),
		ForceCI:     ctx.Bool(flags.CI.Name),
		RunInterval: ctx.Duration(flags.RunInterval.Name),
		ServiceAddr: ctx.String(flags.ServiceAddr.Name),
		Log:         logger,
	}
	cfg.RunOnce = cfg.RunInterval == 0

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		fc, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.applyFile(ctx, fc)
	}

	switch cfg.Reporter {
	case ReporterConsole, ReporterJSON:
	default:
		return nil, fmt.Errorf("unknown reporter %q, must be %q or %q", cfg.Reporter, ReporterConsole, ReporterJSON)
	}

	return cfg, nil
}

// applyFile merges file values under explicit flags: a value from the file
// wins only when the corresponding flag was left at its default.
func (c *Config) applyFile(ctx *cli.Context, fc *fileConfig) {
	if fc.Bail != nil && !ctx.IsSet(flags.Bail.Name) {
		c.Bail = *fc.Bail
	}
	if fc.Timeout != nil && !ctx.IsSet(flags.Timeout.Name) {
		if d, err := time.ParseDuration(*fc.Timeout); err == nil {
			c.Timeout = d
		} else {
			c.Log.Warn("ignoring invalid timeout in config file", "timeout", *fc.Timeout, "err", err)
		}
	}
	if fc.Grep != nil && !ctx.IsSet(flags.Grep.Name) {
		c.Grep = *fc.Grep
	}
	if fc.Reporter != nil && !ctx.IsSet(flags.Reporter.Name) {
		c.Reporter = *fc.Reporter
	}
	if fc.OutputDir != nil && !ctx.IsSet(flags.OutputDir.Name) {
		c.OutputDir = *fc.OutputDir
	}
	if fc.HooksOnSkip != nil && !ctx.IsSet(flags.HooksOnSkip.Name) {
		c.HooksOnSkip = *fc.HooksOnSkip
	}
}

// loadConfigFile loads a gauntlet config from a yaml file
func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &fc, nil
}

// RunnerConfig translates the application configuration into the engine
// configuration for one run.
func (c *Config) RunnerConfig() runner.Config {
	cfg := runner.Config{
		Bail:        c.Bail,
		Timeout:     c.Timeout,
		Grep:        c.Grep,
		HooksOnSkip: c.HooksOnSkip,
		Log:         c.Log,
	}
	if c.ForceCI {
		ci := true
		cfg.InCI = &ci
	}
	return cfg
}
