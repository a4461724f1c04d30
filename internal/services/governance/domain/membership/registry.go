package membership

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

const (
	CommandTypeAdd              command.Type = "member.add"
	CommandTypeRemove           command.Type = "member.remove"
	CommandTypeUpdateTier       command.Type = "member.update_tier"
	CommandTypePause            command.Type = "member.pause"
	CommandTypeResume           command.Type = "member.resume"
	CommandTypeSuspend          command.Type = "member.suspend"
	CommandTypeReactivate       command.Type = "member.reactivate"
	CommandTypeDelegate         command.Type = "voting_power.delegate"
	CommandTypeUndelegate       command.Type = "voting_power.undelegate"
	CommandTypeUpdateReputation command.Type = "reputation.update"

	EventTypeAdded       event.Type = "member.added"
	EventTypeRemoved     event.Type = "member.removed"
	EventTypeTierUpdated event.Type = "member.tier_updated"
	EventTypePaused      event.Type = "member.paused"
	EventTypeResumed     event.Type = "member.resumed"
	EventTypeSuspended   event.Type = "member.suspended"
	EventTypeReactivated event.Type = "member.reactivated"
	EventTypeDelegated   event.Type = "voting_power.delegated"
	EventTypeUndelegated event.Type = "voting_power.undelegated"

	EntityTypeMember     = "member"
	EntityTypeDelegation = "delegation"
)

// AddPayload captures the payload for member.add commands.
type AddPayload struct {
	Account      string `json:"account"`
	Tier         Tier   `json:"tier"`
	InitialStake int64  `json:"initial_stake"`
}

// AccountPayload captures commands that only address a member.
type AccountPayload struct {
	Account string `json:"account"`
}

// TierPayload captures the payload for member.update_tier commands.
type TierPayload struct {
	Account string `json:"account"`
	Tier    Tier   `json:"tier"`
}

// DelegatePayload captures the payload for delegation commands.
type DelegatePayload struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// ReputationPayload captures the payload for reputation.update commands.
type ReputationPayload struct {
	Account    string `json:"account"`
	Delta      int64  `json:"delta"`
	ReasonHash string `json:"reason_hash,omitempty"`
}

// AddedPayload captures the payload for member.added events.
type AddedPayload struct {
	Member     Member `json:"member"`
	ProposalID string `json:"proposal_id,omitempty"`
}

// RemovedPayload captures the payload for member.removed events.
type RemovedPayload struct {
	Account string `json:"account"`
	Member  Member `json:"member"`
}

// TierUpdatedPayload captures the payload for member.tier_updated events.
type TierUpdatedPayload struct {
	Account    string `json:"account"`
	From       Tier   `json:"from"`
	To         Tier   `json:"to"`
	BaseBefore int64  `json:"base_before"`
	BaseAfter  int64  `json:"base_after"`
	ProposalID string `json:"proposal_id,omitempty"`
}

// StatusChangedPayload captures the payload for member status events.
type StatusChangedPayload struct {
	Account string `json:"account"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

// DelegationPayload captures the payload for voting_power.(un)delegated events.
type DelegationPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// RegisterCommands registers membership commands.
func RegisterCommands(registry *command.Registry) error {
	if registry == nil {
		return errors.New("command registry is required")
	}
	for _, def := range []command.Definition{
		{Type: CommandTypeAdd, Organization: true, ValidatePayload: validate[AddPayload]},
		{Type: CommandTypeRemove, Organization: true, ValidatePayload: validateAccount},
		{Type: CommandTypeUpdateTier, Organization: true, ValidatePayload: validateTier},
		{Type: CommandTypePause, Organization: true, ValidatePayload: validate[AccountPayload]},
		{Type: CommandTypeResume, Organization: true, ValidatePayload: validate[AccountPayload]},
		{Type: CommandTypeSuspend, Organization: true, ValidatePayload: validateAccount},
		{Type: CommandTypeReactivate, Organization: true, ValidatePayload: validateAccount},
		{Type: CommandTypeDelegate, Organization: true, ValidatePayload: validateDelegate},
		{Type: CommandTypeUndelegate, Organization: true, ValidatePayload: validateDelegate},
		{Type: CommandTypeUpdateReputation, Organization: true, ValidatePayload: validateAccountIn[ReputationPayload]},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers membership events.
func RegisterEvents(registry *event.Registry) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	defs := []event.Definition{
		{Type: EventTypeAdded, EntityType: EntityTypeMember, ValidatePayload: validate[AddedPayload]},
		{Type: EventTypeRemoved, EntityType: EntityTypeMember, ValidatePayload: validate[RemovedPayload]},
		{Type: EventTypeTierUpdated, EntityType: EntityTypeMember, ValidatePayload: validate[TierUpdatedPayload]},
		{Type: EventTypeDelegated, EntityType: EntityTypeDelegation, ValidatePayload: validate[DelegationPayload]},
		{Type: EventTypeUndelegated, EntityType: EntityTypeDelegation, ValidatePayload: validate[DelegationPayload]},
	}
	for _, t := range []event.Type{EventTypePaused, EventTypeResumed, EventTypeSuspended, EventTypeReactivated} {
		defs = append(defs, event.Definition{Type: t, EntityType: EntityTypeMember, ValidatePayload: validate[StatusChangedPayload]})
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// EventTypes lists the event types folded by this package.
func EventTypes() []event.Type {
	return []event.Type{
		EventTypeAdded, EventTypeRemoved, EventTypeTierUpdated,
		EventTypePaused, EventTypeResumed, EventTypeSuspended, EventTypeReactivated,
		EventTypeDelegated, EventTypeUndelegated,
	}
}

func validate[T any](raw json.RawMessage) error {
	var p T
	return json.Unmarshal(raw, &p)
}

func validateAccount(raw json.RawMessage) error {
	return validateAccountIn[AccountPayload](raw)
}

func validateTier(raw json.RawMessage) error {
	return validateAccountIn[TierPayload](raw)
}

type accountAddressed interface {
	AccountPayload | TierPayload | ReputationPayload
}

func validateAccountIn[T accountAddressed](raw json.RawMessage) error {
	var probe struct {
		Account string `json:"account"`
	}
	if err := validate[T](raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	if strings.TrimSpace(probe.Account) == "" {
		return errors.New("account is required")
	}
	return nil
}

func validateDelegate(raw json.RawMessage) error {
	var p DelegatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.To) == "" {
		return errors.New("to is required")
	}
	return nil
}
