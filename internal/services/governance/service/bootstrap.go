package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/engine"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
)

// Options configures Open.
type Options struct {
	// Journal is required. Existing events are replayed before Open returns.
	Journal journal.Journal
	// Registries default to aggregate.BuildRegistries; pass the ones the
	// journal was opened with so both validate against the same tables.
	Registries *aggregate.Registries
	Authorizer authz.Authorizer
	// Rules default to aggregate.DefaultRules when nil.
	Rules  *aggregate.Rules
	Now    func() time.Time
	Logger *slog.Logger
	Tracer trace.Tracer
}

// Open builds the registries and engine, restores the aggregate from the
// journal and returns a ready Service.
func Open(ctx context.Context, opts Options) (*Service, error) {
	if opts.Journal == nil {
		return nil, ErrJournalRequired
	}
	rules := aggregate.DefaultRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("validate rules: %w", err)
	}
	var registries aggregate.Registries
	if opts.Registries != nil {
		registries = *opts.Registries
	} else {
		built, err := aggregate.BuildRegistries()
		if err != nil {
			return nil, fmt.Errorf("build registries: %w", err)
		}
		registries = built
	}
	handler, err := engine.New(engine.Config{
		Commands:   registries.Commands,
		Events:     registries.Events,
		Journal:    opts.Journal,
		Authorizer: opts.Authorizer,
		Rules:      rules,
		Now:        opts.Now,
		Logger:     opts.Logger,
		Tracer:     opts.Tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	if _, err := handler.Restore(ctx, opts.Journal); err != nil {
		return nil, err
	}
	return New(Config{Handler: handler, Journal: opts.Journal, Rules: rules, Now: opts.Now})
}

// Handler returns the engine behind the service.
func (s *Service) Handler() *engine.Handler {
	return s.handler
}
