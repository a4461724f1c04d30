package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/encoding"
)

var (
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrActorTypeInvalid indicates an unknown actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a missing actor id for account actors.
	ErrActorIDRequired = errors.New("actor id is required for account actors")
	// ErrOrganizationIDRequired indicates an organization command without organization.
	ErrOrganizationIDRequired = errors.New("organization id is required")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

// Domain returns the owning domain prefix of the command type.
func (t Type) Domain() string {
	if before, _, ok := strings.Cut(string(t), "."); ok {
		return before
	}
	return string(t)
}

// ActorType identifies the actor who initiated the command.
type ActorType string

const (
	// ActorTypeSystem indicates a core-originated command (proposal execution, replay tooling).
	ActorTypeSystem ActorType = "system"
	// ActorTypeAccount indicates an account-originated command.
	ActorTypeAccount ActorType = "account"
)

// Command captures the canonical command envelope.
type Command struct {
	OrganizationID string
	Type           Type
	ActorType      ActorType
	ActorID        string
	// CapabilityToken is an optional signed token presented by the caller.
	CapabilityToken string
	RequestID       string
	CorrelationID   string
	CausationID     string
	EntityType      string
	EntityID        string
	PayloadJSON     []byte

	// Grants is set by the engine after authorization; caller values are discarded.
	Grants authz.Grants
}

// Has reports whether the command carries the capability.
func (c Command) Has(capability authz.Capability) bool {
	return c.Grants.Has(capability)
}

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Definition registers metadata for a command type.
type Definition struct {
	Type Type
	// Organization marks commands that must carry an organization id.
	Organization bool
	// Requires is the capability every caller must hold, if any.
	Requires        authz.Capability
	ValidatePayload PayloadValidator
}

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// MustRegister registers all definitions or panics.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// ValidateForDecision validates and normalizes a command before decision handling.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, ErrTypeRequired
	}
	def, ok := r.definitions[cmd.Type]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrTypeUnknown, cmd.Type)
	}
	cmd.OrganizationID = strings.TrimSpace(cmd.OrganizationID)
	if def.Organization && cmd.OrganizationID == "" {
		return Command{}, ErrOrganizationIDRequired
	}

	cmd.ActorType = ActorType(strings.TrimSpace(string(cmd.ActorType)))
	if cmd.ActorType == "" {
		cmd.ActorType = ActorTypeAccount
	}
	switch cmd.ActorType {
	case ActorTypeSystem, ActorTypeAccount:
	default:
		return Command{}, ErrActorTypeInvalid
	}
	cmd.ActorID = strings.TrimSpace(cmd.ActorID)
	if cmd.ActorType == ActorTypeAccount && cmd.ActorID == "" {
		return Command{}, ErrActorIDRequired
	}
	cmd.CapabilityToken = strings.TrimSpace(cmd.CapabilityToken)
	cmd.Grants = nil

	if len(cmd.PayloadJSON) == 0 {
		cmd.PayloadJSON = []byte("{}")
	}
	if !json.Valid(cmd.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	canonical, err := encoding.CanonicalJSON(json.RawMessage(cmd.PayloadJSON))
	if err != nil {
		return Command{}, fmt.Errorf("canonical payload json: %w", err)
	}
	cmd.PayloadJSON = canonical
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(json.RawMessage(cmd.PayloadJSON)); err != nil {
			return Command{}, fmt.Errorf("payload invalid: %w", err)
		}
	}
	return cmd, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	cmdType = Type(strings.TrimSpace(string(cmdType)))
	if cmdType == "" {
		return Definition{}, false
	}
	def, ok := r.definitions[cmdType]
	return def, ok
}

// ListDefinitions returns a stable, sorted snapshot of registered definitions.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return string(definitions[i].Type) < string(definitions[j].Type)
	})
	return definitions
}
