// Package service exposes the governance core as typed Go operations.
//
// Each mutating method builds a command envelope from the request context,
// runs it through the single-writer engine, and converts the first domain
// rejection into an *apperrors.Error. Queries read the live aggregate under
// a shared lock.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/platform/requestctx"
	"github.com/louisbranch/governing.space/internal/platform/timeouts"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/engine"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
)

var (
	// ErrHandlerRequired indicates a missing engine handler.
	ErrHandlerRequired = errors.New("engine handler is required")
	// ErrJournalRequired indicates a missing event journal.
	ErrJournalRequired = errors.New("event journal is required")
)

// Config wires a Service.
type Config struct {
	Handler *engine.Handler
	Journal journal.Journal
	// Rules must match the rules the handler decides with; queries use them
	// to project pending rewards.
	Rules aggregate.Rules
	Now   func() time.Time
}

// Service is the governance facade.
type Service struct {
	handler *engine.Handler
	journal journal.Journal
	rules   aggregate.Rules
	now     func() time.Time
}

// New builds a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Handler == nil {
		return nil, ErrHandlerRequired
	}
	if cfg.Journal == nil {
		return nil, ErrJournalRequired
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{handler: cfg.Handler, journal: cfg.Journal, rules: cfg.Rules, now: now}, nil
}

type systemActorContextKey struct{}

// WithSystemActor marks ctx as a core-originated call acting as id.
// System calls carry no implicit capabilities; the authorizer still decides
// what they may do.
func WithSystemActor(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, systemActorContextKey{}, id)
}

func systemActorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(systemActorContextKey{}).(string)
	return id, ok
}

// envelope describes one command before the caller is attached.
type envelope struct {
	Type           command.Type
	OrganizationID string
	EntityType     string
	EntityID       string
	Payload        any
}

func (s *Service) execute(ctx context.Context, env envelope) ([]event.Event, error) {
	cmd := command.Command{
		OrganizationID:  env.OrganizationID,
		Type:            env.Type,
		CapabilityToken: requestctx.CapabilityTokenFromContext(ctx),
		RequestID:       requestctx.RequestIDFromContext(ctx),
		EntityType:      env.EntityType,
		EntityID:        env.EntityID,
	}
	if id, ok := systemActorFromContext(ctx); ok {
		cmd.ActorType = command.ActorTypeSystem
		cmd.ActorID = id
	} else {
		cmd.ActorType = command.ActorTypeAccount
		cmd.ActorID = requestctx.AccountIDFromContext(ctx)
		if cmd.ActorID == "" {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "calling account is required")
		}
	}
	if env.Payload != nil {
		data, err := json.Marshal(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", env.Type, err)
		}
		cmd.PayloadJSON = data
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Command)
	defer cancel()
	result, err := s.handler.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if len(result.Decision.Rejections) > 0 {
		return nil, result.Decision.Rejections[0].Err()
	}
	return result.Events, nil
}

// payloadOf decodes the payload of the first stored event of type t.
func payloadOf[T any](events []event.Event, t event.Type) (T, bool, error) {
	var payload T
	for _, evt := range events {
		if evt.Type != t {
			continue
		}
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return payload, false, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return payload, true, nil
	}
	return payload, false, nil
}

// mustPayloadOf is payloadOf for events the decision always emits.
func mustPayloadOf[T any](events []event.Event, t event.Type) (T, error) {
	payload, ok, err := payloadOf[T](events, t)
	if err != nil {
		return payload, err
	}
	if !ok {
		return payload, fmt.Errorf("expected %s event", t)
	}
	return payload, nil
}
