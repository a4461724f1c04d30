package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/governing.space/internal/platform/timeouts"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
	"github.com/louisbranch/governing.space/internal/services/governance/service"
	"github.com/louisbranch/governing.space/internal/services/governance/storage/integrity"
	"github.com/louisbranch/governing.space/internal/services/governance/storage/sqlite"
)

// Config controls scenario execution.
type Config struct {
	// EventsDBPath persists the run to a SQLite journal. Empty runs in memory.
	EventsDBPath string
	// Keyring signs the SQLite journal and is required with EventsDBPath.
	Keyring *integrity.Keyring
	// Authorities map scenario actors to capabilities. Nil uses DefaultAuthorities.
	Authorities map[string][]authz.Capability
	// Rules override the protocol parameters. Nil uses aggregate.DefaultRules.
	Rules *aggregate.Rules
	// EngineLogger receives engine logs. Nil logs to Logger when Verbose.
	EngineLogger *slog.Logger
	// Start is the simulated clock origin.
	Start      time.Time
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Start:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Timeout:    timeouts.ScenarioStep,
		Assertions: AssertionStrict,
	}
}

// DefaultAuthorities are the privileged actors scenario files can use.
func DefaultAuthorities() map[string][]authz.Capability {
	return map[string][]authz.Capability{
		"treasury": {authz.CapabilityTreasury},
		"council":  {authz.CapabilityActivateOrganization},
		"oracle":   {authz.CapabilityReputationOracle},
		"guardian": {authz.CapabilitySlash, authz.CapabilityEmergency},
	}
}

// simClock is the simulated time scenarios advance explicitly.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *simClock) catchUp(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// Runner executes Lua scenarios against an in-process governance core.
type Runner struct {
	svc        *service.Service
	clock      *simClock
	close      func() error
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
}

// NewRunner opens the journal, restores any recorded history and prepares a
// runner whose clock starts at cfg.Start or the last recorded event.
func NewRunner(ctx context.Context, cfg Config) (*Runner, error) {
	registries, err := aggregate.BuildRegistries()
	if err != nil {
		return nil, fmt.Errorf("build registries: %w", err)
	}

	var (
		store   journal.Journal
		closeFn = func() error { return nil }
	)
	if cfg.EventsDBPath != "" {
		if cfg.Keyring == nil {
			return nil, errors.New("keyring is required with an events db path")
		}
		db, err := sqlite.OpenEvents(cfg.EventsDBPath, cfg.Keyring, registries.Events)
		if err != nil {
			return nil, fmt.Errorf("open events db: %w", err)
		}
		store = db
		closeFn = db.Close
	} else {
		store = journal.NewMemory(registries.Events)
	}

	r, err := newRunnerWithJournal(ctx, cfg, store, &registries)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	r.close = closeFn
	return r, nil
}

// newRunnerWithJournal builds a Runner over an already open journal.
// Config defaults (logger, timeout, clock) are applied here so they are testable.
func newRunnerWithJournal(ctx context.Context, cfg Config, store journal.Journal, registries *aggregate.Registries) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = timeouts.ScenarioStep
	}
	start := cfg.Start
	if start.IsZero() {
		start = DefaultConfig().Start
	}
	authorities := cfg.Authorities
	if authorities == nil {
		authorities = DefaultAuthorities()
	}

	clock := &simClock{now: start.UTC()}
	if err := catchUpClock(ctx, clock, store); err != nil {
		return nil, err
	}

	engineLogger := cfg.EngineLogger
	if engineLogger == nil {
		engineLog := io.Discard
		if cfg.Verbose {
			engineLog = logger.Writer()
		}
		engineLogger = slog.New(slog.NewTextHandler(engineLog, nil))
	}
	svc, err := service.Open(ctx, service.Options{
		Journal:    store,
		Registries: registries,
		Authorizer: authz.NewStaticAuthorizer(authorities),
		Rules:      cfg.Rules,
		Now:        clock.Now,
		Logger:     engineLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open governance service: %w", err)
	}

	return &Runner{
		svc:        svc,
		clock:      clock,
		close:      func() error { return nil },
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}, nil
}

// catchUpClock moves the clock past the newest recorded event so a resumed
// journal never sees time run backwards.
func catchUpClock(ctx context.Context, clock *simClock, store journal.Journal) error {
	last, err := store.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("read last seq: %w", err)
	}
	if last == 0 {
		return nil
	}
	events, err := store.ListEvents(ctx, last-1, 1)
	if err != nil {
		return fmt.Errorf("read last event: %w", err)
	}
	if len(events) == 1 {
		clock.catchUp(events[0].Timestamp)
	}
	return nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	if r.close != nil {
		return r.close()
	}
	return nil
}

// Service exposes the governance core the runner drives.
func (r *Runner) Service() *service.Service {
	return r.svc
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	runner, err := NewRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.RunScenario(ctx, scenario)
}

// RunFiles executes scenario files concurrently, each against its own
// in-memory core. It returns the first failure.
func RunFiles(ctx context.Context, cfg Config, paths []string) error {
	if len(paths) == 0 {
		return errors.New("at least one scenario path is required")
	}
	if len(paths) > 1 && cfg.EventsDBPath != "" {
		return errors.New("events db path cannot be shared across scenarios")
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, path := range paths {
		group.Go(func() error {
			if err := RunFile(groupCtx, cfg, path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	return group.Wait()
}

// RunScenario executes the scenario steps in order.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := newScenarioState()

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
