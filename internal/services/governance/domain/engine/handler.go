package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/replay"
)

const tracerName = "github.com/louisbranch/governing.space/internal/services/governance/domain/engine"

// EventJournal appends event batches atomically.
type EventJournal interface {
	BatchAppend(ctx context.Context, events []event.Event) ([]event.Event, error)
}

// Decider returns a decision for a command.
type Decider interface {
	Decide(state *aggregate.State, cmd command.Command, now func() time.Time) command.Decision
}

// Config wires a Handler.
type Config struct {
	Commands *command.Registry
	Events   *event.Registry
	Journal  EventJournal
	// Authorizer resolves caller capabilities; nil grants nothing.
	Authorizer authz.Authorizer
	// Decider defaults to aggregate.Decider with Rules.
	Decider Decider
	Rules   aggregate.Rules
	Now     func() time.Time
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Handler is the single writer of the governance aggregate.
type Handler struct {
	commands   *command.Registry
	events     *event.Registry
	journal    EventJournal
	authorizer authz.Authorizer
	decider    Decider
	folder     *aggregate.Folder
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer

	mu      sync.RWMutex
	state   *aggregate.State
	lastSeq uint64
}

// Result captures execution outcomes.
type Result struct {
	Decision command.Decision
	// Events are the stored events, with journal fields assigned.
	Events []event.Event
}

// New builds a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Commands == nil {
		return nil, ErrCommandRegistryRequired
	}
	if cfg.Events == nil {
		return nil, ErrEventRegistryRequired
	}
	if cfg.Journal == nil {
		return nil, ErrJournalRequired
	}
	h := &Handler{
		commands:   cfg.Commands,
		events:     cfg.Events,
		journal:    cfg.Journal,
		authorizer: cfg.Authorizer,
		decider:    cfg.Decider,
		folder:     &aggregate.Folder{},
		now:        cfg.Now,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
		state:      aggregate.NewState(),
	}
	if h.authorizer == nil {
		h.authorizer = authz.Deny{}
	}
	if h.decider == nil {
		h.decider = aggregate.Decider{Rules: cfg.Rules}
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.tracer == nil {
		h.tracer = otel.Tracer(tracerName)
	}
	if err := aggregate.ValidateFoldCoverage(h.events, h.folder); err != nil {
		return nil, err
	}
	return h, nil
}

// Execute runs one command to completion. Domain rejections are reported
// in the decision, not as an error; an error means the command could not be
// evaluated or persisted and nothing changed.
func (h *Handler) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	ctx, span := h.tracer.Start(ctx, "governance.command",
		trace.WithAttributes(attribute.String("command.type", string(cmd.Type))))
	defer span.End()

	result, err := h.execute(ctx, cmd)
	outcome := outcomeOf(result.Decision, err)
	span.SetAttributes(
		attribute.String("command.outcome", outcome),
		attribute.Int("command.events", len(result.Events)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}

	attrs := []any{
		"type", cmd.Type,
		"organization_id", cmd.OrganizationID,
		"actor_id", cmd.ActorID,
		"outcome", outcome,
		"events", len(result.Events),
	}
	switch {
	case err != nil:
		h.logger.ErrorContext(ctx, "command failed", append(attrs, "error", err)...)
	case len(result.Decision.Rejections) > 0:
		r := result.Decision.Rejections[0]
		h.logger.InfoContext(ctx, "command rejected", append(attrs, "code", r.Code, "reason", r.Message)...)
	default:
		h.logger.DebugContext(ctx, "command accepted", attrs...)
	}
	return result, err
}

func (h *Handler) execute(ctx context.Context, cmd command.Command) (Result, error) {
	validated, err := h.commands.ValidateForDecision(cmd)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("command %s: %v", cmd.Type, err), err)
	}
	cmd = validated

	def, _ := h.commands.Definition(cmd.Type)
	grants, err := h.authorizer.Grants(ctx, authz.Principal{AccountID: cmd.ActorID, Token: cmd.CapabilityToken})
	if err != nil {
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) {
			return Result{Decision: command.Reject(command.Rejection{Code: domainErr.Code, Message: domainErr.Message, Metadata: domainErr.Metadata})}, nil
		}
		return Result{}, fmt.Errorf("resolve grants: %w", err)
	}
	if def.Requires != "" && !grants.Has(def.Requires) {
		return Result{Decision: command.Reject(command.Rejection{
			Code:     apperrors.CodeCapabilityRequired,
			Message:  fmt.Sprintf("%s requires the %s capability", cmd.Type, def.Requires),
			Metadata: map[string]string{"Capability": string(def.Requires)},
		})}, nil
	}
	cmd.Grants = grants

	h.mu.Lock()
	defer h.mu.Unlock()

	// Read under the lock so timestamps never run backwards against seq.
	// Journals store millisecond timestamps; deciding on the same precision
	// keeps live state identical to replayed state.
	at := h.now().UTC().Truncate(time.Millisecond)
	now := func() time.Time { return at }

	decision := h.decider.Decide(h.state, cmd, now)
	if err := decision.Validate(); err != nil {
		return Result{}, fmt.Errorf("decision for %s: %w", cmd.Type, err)
	}
	if !decision.Accepted() || len(decision.Events) == 0 {
		return Result{Decision: decision}, nil
	}

	events := make([]event.Event, 0, len(decision.Events))
	for _, evt := range decision.Events {
		vetted, err := h.events.ValidateForAppend(evt)
		if err != nil {
			return Result{}, fmt.Errorf("validate %s: %w", evt.Type, err)
		}
		events = append(events, vetted)
	}
	mutations, err := h.folder.PrepareAll(events)
	if err != nil {
		return Result{}, err
	}

	stored, err := h.journal.BatchAppend(ctx, events)
	if err != nil {
		return Result{}, fmt.Errorf("append events: %w", err)
	}
	if len(stored) != len(events) || stored[0].Seq != h.lastSeq+1 {
		return Result{}, wrapNonRetryable(fmt.Errorf("journal out of sync: expected seq %d", h.lastSeq+1))
	}
	for _, m := range mutations {
		m(h.state)
	}
	h.lastSeq = stored[len(stored)-1].Seq
	decision.Events = stored
	return Result{Decision: decision, Events: stored}, nil
}

// Read runs fn with shared access to the aggregate. fn must not retain or
// modify state.
func (h *Handler) Read(fn func(state *aggregate.State)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(h.state)
}

// LastSeq returns the seq of the last applied event.
func (h *Handler) LastSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSeq
}

// Restore rebuilds the aggregate from the journal and replaces the current
// state. It is meant for startup, before commands are accepted.
func (h *Handler) Restore(ctx context.Context, store replay.EventStore) (replay.Result, error) {
	state := aggregate.NewState()
	result, err := replay.Replay(ctx, store, h.folder, state, replay.Options{})
	if err != nil {
		return result, fmt.Errorf("restore aggregate: %w", err)
	}
	h.mu.Lock()
	h.state = state
	h.lastSeq = result.LastSeq
	h.mu.Unlock()
	h.logger.InfoContext(ctx, "aggregate restored", "events", result.Applied, "last_seq", result.LastSeq)
	return result, nil
}

func outcomeOf(decision command.Decision, err error) string {
	switch {
	case err != nil:
		return "error"
	case len(decision.Rejections) > 0:
		return "rejected"
	case decision.Noop != "":
		return "noop"
	default:
		return "accepted"
	}
}
