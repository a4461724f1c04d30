package organization

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

const (
	CommandTypeCreate          command.Type = "organization.create"
	CommandTypeActivate        command.Type = "organization.activate"
	CommandTypeDissolve        command.Type = "organization.dissolve"
	CommandTypeDepositTreasury command.Type = "treasury.deposit"

	EventTypeCreated         event.Type = "organization.created"
	EventTypeActivated       event.Type = "organization.activated"
	EventTypeDissolved       event.Type = "organization.dissolved"
	EventTypeSettingsUpdated event.Type = "organization.settings_updated"

	EntityTypeOrganization = "organization"
)

// CreatePayload captures the payload for organization.create commands.
type CreatePayload struct {
	OrganizationID string      `json:"organization_id"`
	Name           string      `json:"name"`
	AccessModel    AccessModel `json:"access_model"`
	MembershipFee  int64       `json:"membership_fee"`
	MemberLimit    int64       `json:"member_limit"`
	Settings       *Settings   `json:"settings,omitempty"`
	Managers       []string    `json:"managers,omitempty"`
}

// DepositPayload captures the payload for treasury.deposit commands.
type DepositPayload struct {
	Amount int64 `json:"amount"`
}

// CreatedPayload captures the payload for organization.created events.
type CreatedPayload struct {
	Organization Organization `json:"organization"`
}

// TransitionPayload captures the payload for activation and dissolution events.
type TransitionPayload struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// SettingsUpdatedPayload captures the payload for organization.settings_updated events.
type SettingsUpdatedPayload struct {
	Before     Settings `json:"before"`
	After      Settings `json:"after"`
	ProposalID string   `json:"proposal_id,omitempty"`
}

// RegisterCommands registers organization commands.
func RegisterCommands(registry *command.Registry) error {
	if registry == nil {
		return errors.New("command registry is required")
	}
	for _, def := range []command.Definition{
		{Type: CommandTypeCreate, ValidatePayload: validateCreatePayload},
		{Type: CommandTypeActivate, Organization: true, Requires: authz.CapabilityActivateOrganization},
		{Type: CommandTypeDissolve, Organization: true},
		{Type: CommandTypeDepositTreasury, Organization: true, ValidatePayload: validate[DepositPayload]},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers organization events.
func RegisterEvents(registry *event.Registry) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	for _, def := range []event.Definition{
		{Type: EventTypeCreated, EntityType: EntityTypeOrganization, ValidatePayload: validate[CreatedPayload]},
		{Type: EventTypeActivated, EntityType: EntityTypeOrganization, ValidatePayload: validate[TransitionPayload]},
		{Type: EventTypeDissolved, EntityType: EntityTypeOrganization, ValidatePayload: validate[TransitionPayload]},
		{Type: EventTypeSettingsUpdated, EntityType: EntityTypeOrganization, ValidatePayload: validateSettingsUpdated},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// EventTypes lists the event types folded by this package.
func EventTypes() []event.Type {
	return []event.Type{EventTypeCreated, EventTypeActivated, EventTypeDissolved, EventTypeSettingsUpdated}
}

func validate[T any](raw json.RawMessage) error {
	var p T
	return json.Unmarshal(raw, &p)
}

func validateCreatePayload(raw json.RawMessage) error {
	var p CreatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

func validateSettingsUpdated(raw json.RawMessage) error {
	var p SettingsUpdatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	return p.After.Validate()
}
