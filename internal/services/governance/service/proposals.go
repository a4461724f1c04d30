package service

import (
	"context"
	"time"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/action"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
)

// CreateProposalInput describes a proposal. Empty model and majority, and a
// nil quorum, fall back to the organization settings.
type CreateProposalInput struct {
	Type            proposal.Type
	Title           string
	DescriptionHash string
	VotingModel     organization.VotingModel
	Majority        organization.Majority
	QuorumBps       *int64
	Actions         []action.Effect
	Script          string
}

// CreateProposal opens a proposal in an organization and returns it.
func (s *Service) CreateProposal(ctx context.Context, orgID string, in CreateProposalInput) (proposal.Proposal, error) {
	events, err := s.execute(ctx, envelope{
		Type:           proposal.CommandTypeCreate,
		OrganizationID: orgID,
		EntityType:     proposal.EntityTypeProposal,
		Payload: proposal.CreatePayload{
			Type:            in.Type,
			Title:           in.Title,
			DescriptionHash: in.DescriptionHash,
			VotingModel:     in.VotingModel,
			Majority:        in.Majority,
			QuorumBps:       in.QuorumBps,
			Actions:         in.Actions,
			Script:          in.Script,
		},
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	created, err := mustPayloadOf[proposal.CreatedPayload](events, proposal.EventTypeCreated)
	if err != nil {
		return proposal.Proposal{}, err
	}
	return created.Proposal, nil
}

// CastVote records the caller's ballot with its weight fixed at cast time.
func (s *Service) CastVote(ctx context.Context, proposalID string, choice proposal.Choice) (proposal.Vote, error) {
	events, err := s.execute(ctx, envelope{
		Type:           proposal.CommandTypeVote,
		OrganizationID: proposal.OrganizationOf(proposalID),
		EntityType:     proposal.EntityTypeProposal,
		EntityID:       proposalID,
		Payload:        proposal.VotePayload{ProposalID: proposalID, Choice: choice},
	})
	if err != nil {
		return proposal.Vote{}, err
	}
	cast, err := mustPayloadOf[proposal.VoteCastPayload](events, proposal.EventTypeVoteCast)
	if err != nil {
		return proposal.Vote{}, err
	}
	return cast.Vote, nil
}

// TallyResult reports the outcome of a tally. AlreadyFinalized is set when
// the proposal had been tallied before; its current status is returned.
type TallyResult struct {
	Status           proposal.Status
	QuorumReached    bool
	AlreadyFinalized bool
}

// TallyProposal finalizes the vote once the voting period has ended.
// Re-tallying a finalized proposal is a successful no-op.
func (s *Service) TallyProposal(ctx context.Context, proposalID string) (TallyResult, error) {
	events, err := s.execute(ctx, targetEnvelope(proposal.CommandTypeTally, proposalID))
	if err != nil {
		return TallyResult{}, err
	}
	tallied, ok, err := payloadOf[proposal.TalliedPayload](events, proposal.EventTypeTallied)
	if err != nil {
		return TallyResult{}, err
	}
	if ok {
		return TallyResult{Status: tallied.To, QuorumReached: tallied.QuorumReached}, nil
	}
	p, found := s.GetProposal(proposalID)
	return TallyResult{Status: p.Status, QuorumReached: found && p.QuorumReached, AlreadyFinalized: true}, nil
}

// QueueProposal schedules a succeeded proposal and returns when it becomes executable.
func (s *Service) QueueProposal(ctx context.Context, proposalID string) (time.Time, error) {
	events, err := s.execute(ctx, targetEnvelope(proposal.CommandTypeQueue, proposalID))
	if err != nil {
		return time.Time{}, err
	}
	queued, err := mustPayloadOf[proposal.QueuedPayload](events, proposal.EventTypeQueued)
	if err != nil {
		return time.Time{}, err
	}
	return queued.ExecutableAt, nil
}

// ExecuteProposal applies a queued proposal's effects atomically and returns
// the effects applied.
func (s *Service) ExecuteProposal(ctx context.Context, proposalID string) ([]action.Effect, error) {
	events, err := s.execute(ctx, targetEnvelope(proposal.CommandTypeExecute, proposalID))
	if err != nil {
		return nil, err
	}
	executed, err := mustPayloadOf[proposal.ExecutedPayload](events, proposal.EventTypeExecuted)
	if err != nil {
		return nil, err
	}
	return executed.Effects, nil
}

// CancelProposal withdraws a proposal that has no votes yet.
func (s *Service) CancelProposal(ctx context.Context, proposalID string) error {
	_, err := s.execute(ctx, targetEnvelope(proposal.CommandTypeCancel, proposalID))
	return err
}

func targetEnvelope(t command.Type, proposalID string) envelope {
	return envelope{
		Type:           t,
		OrganizationID: proposal.OrganizationOf(proposalID),
		EntityType:     proposal.EntityTypeProposal,
		EntityID:       proposalID,
		Payload:        proposal.TargetPayload{ProposalID: proposalID},
	}
}
