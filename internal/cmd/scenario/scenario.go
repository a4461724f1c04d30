// Package scenario wires the scenario command to the Lua scenario runner.
package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/governing.space/internal/platform/cmd"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/storage/integrity"
	"github.com/louisbranch/governing.space/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	Scenarios    []string      `env:"GOVERNING_SPACE_SCENARIO_FILES"   envSeparator:","`
	EventsDBPath string        `env:"GOVERNING_SPACE_SCENARIO_EVENTS_DB"`
	Authorities  string        `env:"GOVERNING_SPACE_AUTHORITIES"`
	Assertions   bool          `env:"GOVERNING_SPACE_SCENARIO_ASSERT"  envDefault:"true"`
	Verbose      bool          `env:"GOVERNING_SPACE_SCENARIO_VERBOSE"`
	LogLevel     string        `env:"GOVERNING_SPACE_LOG_LEVEL"        envDefault:"info"`
	Timeout      time.Duration `env:"GOVERNING_SPACE_SCENARIO_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses env and flags into a Config. Positional arguments are
// additional scenario files.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	var files string
	fs.StringVar(&files, "scenario", strings.Join(cfg.Scenarios, ","), "comma-separated scenario lua files")
	fs.StringVar(&cfg.EventsDBPath, "events-db", cfg.EventsDBPath, "sqlite journal to record a single scenario into")
	fs.StringVar(&cfg.Authorities, "authorities", cfg.Authorities, "capability grants, e.g. council=activate_organization;treasury=treasury")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "engine log level with -verbose: debug, info, warn or error")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	cfg.Scenarios = nil
	for _, path := range append(strings.Split(files, ","), fs.Args()...) {
		if path = strings.TrimSpace(path); path != "" {
			cfg.Scenarios = append(cfg.Scenarios, path)
		}
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if len(cfg.Scenarios) == 0 {
		return errors.New("scenario path is required")
	}

	runCfg, err := runnerConfig(cfg, log.New(errOut, "", 0))
	if err != nil {
		return err
	}
	if err := scenario.RunFiles(ctx, runCfg, cfg.Scenarios); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d scenario(s) passed\n", len(cfg.Scenarios))
	return err
}

func runnerConfig(cfg Config, logger *log.Logger) (scenario.Config, error) {
	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}
	runCfg := scenario.DefaultConfig()
	runCfg.Timeout = cfg.Timeout
	runCfg.Assertions = mode
	runCfg.Verbose = cfg.Verbose
	runCfg.Logger = logger

	rules, err := aggregate.RulesFromEnv()
	if err != nil {
		return scenario.Config{}, fmt.Errorf("load rules: %w", err)
	}
	runCfg.Rules = &rules
	if cfg.Verbose {
		engineLogger, err := entrypoint.NewLogger(logger.Writer(), cfg.LogLevel, entrypoint.ServiceScenario)
		if err != nil {
			return scenario.Config{}, err
		}
		runCfg.EngineLogger = engineLogger
	}
	if strings.TrimSpace(cfg.Authorities) != "" {
		table, err := authz.ParseStaticGrants(cfg.Authorities)
		if err != nil {
			return scenario.Config{}, fmt.Errorf("parse authorities: %w", err)
		}
		runCfg.Authorities = table
	}
	if cfg.EventsDBPath != "" {
		keyring, err := integrity.KeyringFromEnv()
		if err != nil {
			return scenario.Config{}, fmt.Errorf("load event keyring: %w", err)
		}
		runCfg.EventsDBPath = cfg.EventsDBPath
		runCfg.Keyring = keyring
	}
	return runCfg, nil
}
