package proposal

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/action"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
)

const (
	CommandTypeCreate  command.Type = "proposal.create"
	CommandTypeVote    command.Type = "vote.cast"
	CommandTypeTally   command.Type = "proposal.tally"
	CommandTypeQueue   command.Type = "proposal.queue"
	CommandTypeExecute command.Type = "proposal.execute"
	CommandTypeCancel  command.Type = "proposal.cancel"

	EventTypeCreated   event.Type = "proposal.created"
	EventTypeActivated event.Type = "proposal.activated"
	EventTypeVoteCast  event.Type = "vote.cast"
	EventTypeTallied   event.Type = "proposal.tallied"
	EventTypeQueued    event.Type = "proposal.queued"
	EventTypeExecuted  event.Type = "proposal.executed"
	EventTypeCancelled event.Type = "proposal.cancelled"

	EntityTypeProposal = "proposal"
	EntityTypeVote     = "vote"
)

// CreatePayload captures the payload for proposal.create commands. Empty
// model, majority and quorum fall back to the organization settings.
type CreatePayload struct {
	Type            Type                     `json:"type"`
	Title           string                   `json:"title"`
	DescriptionHash string                   `json:"description_hash,omitempty"`
	VotingModel     organization.VotingModel `json:"voting_model,omitempty"`
	Majority        organization.Majority    `json:"majority,omitempty"`
	QuorumBps       *int64                   `json:"quorum_bps,omitempty"`
	Actions         []action.Effect          `json:"actions,omitempty"`
	Script          string                   `json:"script,omitempty"`
}

// VotePayload captures the payload for vote.cast commands.
type VotePayload struct {
	ProposalID string `json:"proposal_id"`
	Choice     Choice `json:"choice"`
}

// TargetPayload captures commands that only address a proposal.
type TargetPayload struct {
	ProposalID string `json:"proposal_id"`
}

// CreatedPayload captures the payload for proposal.created events.
type CreatedPayload struct {
	Seq      int64    `json:"seq"`
	Proposal Proposal `json:"proposal"`
}

// TransitionPayload captures proposal.activated and proposal.cancelled events.
type TransitionPayload struct {
	ProposalID string `json:"proposal_id"`
	From       Status `json:"from"`
	To         Status `json:"to"`
}

// VoteCastPayload captures the payload for vote.cast events.
type VoteCastPayload struct {
	Vote Vote `json:"vote"`
}

// TalliedPayload captures the payload for proposal.tallied events.
type TalliedPayload struct {
	ProposalID    string `json:"proposal_id"`
	From          Status `json:"from"`
	To            Status `json:"to"`
	QuorumReached bool   `json:"quorum_reached"`
	ForVotes      int64  `json:"for_votes"`
	AgainstVotes  int64  `json:"against_votes"`
	AbstainVotes  int64  `json:"abstain_votes"`
	EligiblePower int64  `json:"eligible_power"`
}

// QueuedPayload captures the payload for proposal.queued events.
type QueuedPayload struct {
	ProposalID   string    `json:"proposal_id"`
	ExecutableAt time.Time `json:"executable_at"`
}

// ExecutedPayload captures the payload for proposal.executed events.
type ExecutedPayload struct {
	ProposalID string          `json:"proposal_id"`
	Effects    []action.Effect `json:"effects,omitempty"`
}

// RegisterCommands registers proposal commands.
func RegisterCommands(registry *command.Registry) error {
	if registry == nil {
		return errors.New("command registry is required")
	}
	for _, def := range []command.Definition{
		{Type: CommandTypeCreate, Organization: true, ValidatePayload: validateCreate},
		{Type: CommandTypeVote, Organization: true, ValidatePayload: validateVote},
		{Type: CommandTypeTally, Organization: true, ValidatePayload: validateTarget},
		{Type: CommandTypeQueue, Organization: true, ValidatePayload: validateTarget},
		{Type: CommandTypeExecute, Organization: true, ValidatePayload: validateTarget},
		{Type: CommandTypeCancel, Organization: true, ValidatePayload: validateTarget},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers proposal events.
func RegisterEvents(registry *event.Registry) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	for _, def := range []event.Definition{
		{Type: EventTypeCreated, EntityType: EntityTypeProposal, ValidatePayload: validate[CreatedPayload]},
		{Type: EventTypeActivated, EntityType: EntityTypeProposal, ValidatePayload: validate[TransitionPayload]},
		{Type: EventTypeVoteCast, EntityType: EntityTypeVote, ValidatePayload: validate[VoteCastPayload]},
		{Type: EventTypeTallied, EntityType: EntityTypeProposal, ValidatePayload: validate[TalliedPayload]},
		{Type: EventTypeQueued, EntityType: EntityTypeProposal, ValidatePayload: validate[QueuedPayload]},
		{Type: EventTypeExecuted, EntityType: EntityTypeProposal, ValidatePayload: validate[ExecutedPayload]},
		{Type: EventTypeCancelled, EntityType: EntityTypeProposal, ValidatePayload: validate[TransitionPayload]},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// EventTypes lists the event types folded by this package.
func EventTypes() []event.Type {
	return []event.Type{
		EventTypeCreated, EventTypeActivated, EventTypeVoteCast, EventTypeTallied,
		EventTypeQueued, EventTypeExecuted, EventTypeCancelled,
	}
}

func validate[T any](raw json.RawMessage) error {
	var p T
	return json.Unmarshal(raw, &p)
}

func validateCreate(raw json.RawMessage) error {
	var p CreatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

func validateVote(raw json.RawMessage) error {
	var p VotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.ProposalID) == "" {
		return errors.New("proposal_id is required")
	}
	return nil
}

func validateTarget(raw json.RawMessage) error {
	var p TargetPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.ProposalID) == "" {
		return errors.New("proposal_id is required")
	}
	return nil
}
