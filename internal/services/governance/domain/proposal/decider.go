package proposal

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/action"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// View is the read-only state a proposal decision consults.
type View struct {
	Organizations *organization.State
	Members       *membership.State
	Staking       *staking.State
	Reputation    *reputation.State
	Proposals     *State
}

func (v View) membership() membership.View {
	return membership.View{
		Organizations: v.Organizations,
		Members:       v.Members,
		Staking:       v.Staking,
		Reputation:    v.Reputation,
	}
}

// Decide returns the decision for a proposal command.
func Decide(rules membership.Rules, v View, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	at := now().UTC()
	if cmd.Type == CommandTypeCreate {
		return decideCreate(v, cmd, at)
	}

	payload, rejected := command.Decode[TargetPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	p, rejection := lookup(v, cmd, payload.ProposalID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	switch cmd.Type {
	case CommandTypeVote:
		return decideVote(rules, v, p, cmd, at)
	case CommandTypeTally:
		return decideTally(p, cmd, at)
	case CommandTypeQueue:
		return decideQueue(v, p, cmd, at)
	case CommandTypeExecute:
		return decideExecute(rules, v, p, cmd, at)
	case CommandTypeCancel:
		return decideCancel(v, p, cmd, at)
	default:
		return command.Rejectf(command.RejectionCodeCommandTypeUnsupported, fmt.Sprintf("command type %s is not supported by proposal", cmd.Type))
	}
}

// lookup resolves a proposal within the command's organization.
func lookup(v View, cmd command.Command, id string) (Proposal, *command.Rejection) {
	id = strings.TrimSpace(id)
	p, ok := v.Proposals.Get(id)
	if !ok || p.OrganizationID != cmd.OrganizationID {
		return Proposal{}, &command.Rejection{
			Code:     apperrors.CodeProposalNotFound,
			Message:  "proposal not found",
			Metadata: map[string]string{"ProposalID": id},
		}
	}
	return p, nil
}

func decideCreate(v View, cmd command.Command, now time.Time) command.Decision {
	org, rejection := organization.RequireActive(v.Organizations, cmd.OrganizationID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	payload, rejected := command.Decode[CreatePayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if membership.VotingPower(v.membership(), org.ID, cmd.ActorID) <= 0 && !cmd.Has(authz.CapabilityPropose) {
		return command.Rejectf(apperrors.CodeProposalNoVotingPower, "creating a proposal requires voting power")
	}

	p := Proposal{
		OrganizationID:  org.ID,
		Creator:         cmd.ActorID,
		Type:            payload.Type,
		Title:           strings.TrimSpace(payload.Title),
		DescriptionHash: strings.TrimSpace(payload.DescriptionHash),
		VotingModel:     payload.VotingModel,
		Majority:        payload.Majority,
		QuorumBps:       org.Settings.QuorumBps,
		Status:          StatusPending,
		CreatedAt:       now,
		Actions:         payload.Actions,
		Script:          payload.Script,
	}
	if p.Type == "" {
		p.Type = TypeGeneral
	}
	if p.VotingModel == "" {
		p.VotingModel = org.Settings.DefaultVotingModel
	}
	if p.Majority == "" {
		p.Majority = org.Settings.DefaultMajority
	}
	if payload.QuorumBps != nil {
		p.QuorumBps = *payload.QuorumBps
	}
	p.ThresholdBps = SimpleThresholdBps
	if p.Majority == organization.MajoritySuper {
		p.ThresholdBps = org.Settings.SuperMajorityBps
	}
	if reason := invalidReason(p); reason != "" {
		return invalidProposal(reason)
	}
	if err := action.ValidateAll(p.Actions); err != nil {
		return invalidProposal(err.Error())
	}
	if err := action.CheckScript(p.Script); err != nil {
		return invalidProposal(err.Error())
	}

	p.StartTime = now.Add(org.Settings.VotingDelay())
	p.EndTime = p.StartTime.Add(org.Settings.VotingPeriod())
	p.EligiblePower = EligiblePower(p.VotingModel, org.ID, v.Members, v.Reputation, v.Staking)
	seq := v.Proposals.Count(org.ID) + 1
	p.ID = ProposalID(org.ID, seq)

	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeCreated, EntityTypeProposal, p.ID, CreatedPayload{Seq: seq, Proposal: p})
	return em.Decision()
}

func invalidReason(p Proposal) string {
	switch {
	case p.Title == "":
		return "title is required"
	case !p.Type.Valid():
		return fmt.Sprintf("type %q is not supported", p.Type)
	case !p.VotingModel.Valid():
		return fmt.Sprintf("voting model %q is not supported", p.VotingModel)
	case !p.Majority.Valid():
		return fmt.Sprintf("majority %q is not supported", p.Majority)
	case p.QuorumBps < 0 || p.QuorumBps > basisPoints:
		return "quorum must be within [0, 10000] bps"
	}
	return ""
}

func invalidProposal(reason string) command.Decision {
	return command.Reject(command.Rejection{
		Code:     apperrors.CodeProposalInvalid,
		Message:  "invalid proposal: " + reason,
		Metadata: map[string]string{"Reason": reason},
	})
}

func decideVote(rules membership.Rules, v View, p Proposal, cmd command.Command, now time.Time) command.Decision {
	if _, rejection := organization.RequireActive(v.Organizations, p.OrganizationID); rejection != nil {
		return command.Reject(*rejection)
	}
	payload, rejected := command.Decode[VotePayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if !payload.Choice.Valid() {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeVoteChoiceInvalid,
			Message:  "vote choice is invalid",
			Metadata: map[string]string{"Choice": string(payload.Choice)},
		})
	}
	activate := false
	switch {
	case p.Status == StatusActive:
	case p.Status == StatusPending && !now.Before(p.StartTime):
		activate = true
	default:
		return command.Rejectf(apperrors.CodeProposalNotActive, fmt.Sprintf("proposal is %s", p.Status))
	}
	if !now.Before(p.EndTime) {
		return command.Rejectf(apperrors.CodeProposalVotingClosed, "voting period has ended")
	}

	voter := cmd.ActorID
	m, ok := v.Members.Get(p.OrganizationID, voter)
	if !ok {
		return command.Rejectf(apperrors.CodeMemberNotFound, "voter is not a member")
	}
	if m.Status != membership.StatusActive {
		return command.Rejectf(apperrors.CodeMemberNotActive, "voter is not active")
	}
	if _, voted := v.Proposals.Vote(p.ID, voter); voted {
		return command.Rejectf(apperrors.CodeVoteAlreadyCast, "account has already voted")
	}
	score, _ := v.Reputation.Score(p.OrganizationID, voter)
	weight := VoteWeight(p.VotingModel, m, score, v.Staking.Staked(voter, staking.PurposeGovernance))
	if weight <= 0 {
		return command.Rejectf(apperrors.CodeVoteNoWeight, "voter has no weight under this voting model")
	}

	em := command.NewEmitter(cmd, now)
	if activate {
		em.Emit(EventTypeActivated, EntityTypeProposal, p.ID, TransitionPayload{ProposalID: p.ID, From: p.Status, To: StatusActive})
	}
	vote := Vote{ProposalID: p.ID, Voter: voter, Choice: payload.Choice, Weight: weight, CastAt: now}
	em.Emit(EventTypeVoteCast, EntityTypeVote, voteEntityID(p.ID, voter), VoteCastPayload{Vote: vote})
	if reward := rules.Reputation.Reward(score); reward > 0 {
		em.Emit(reputation.EventTypeUpdated, reputation.EntityTypeReputation, voter, reputation.UpdatedPayload{
			Account: voter,
			Before:  score,
			After:   score + reward,
			Delta:   reward,
			Source:  reputation.SourceVote,
		})
	}
	return em.Decision()
}

func decideTally(p Proposal, cmd command.Command, now time.Time) command.Decision {
	if p.Status.Finalized() {
		return command.Noop("proposal already finalized")
	}
	if p.Status == StatusCancelled {
		return transitionRejection(p.Status, StatusSucceeded)
	}
	if now.Before(p.EndTime) {
		return command.Rejectf(apperrors.CodeProposalVotingOpen, "voting period has not ended")
	}
	outcome := Count(p)
	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeTallied, EntityTypeProposal, p.ID, TalliedPayload{
		ProposalID:    p.ID,
		From:          p.Status,
		To:            outcome.Status(),
		QuorumReached: outcome.QuorumReached,
		ForVotes:      p.ForVotes,
		AgainstVotes:  p.AgainstVotes,
		AbstainVotes:  p.AbstainVotes,
		EligiblePower: p.EligiblePower,
	})
	return em.Decision()
}

func decideQueue(v View, p Proposal, cmd command.Command, now time.Time) command.Decision {
	if p.Status != StatusSucceeded {
		return transitionRejection(p.Status, StatusQueued)
	}
	org, rejection := organization.RequireActive(v.Organizations, p.OrganizationID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeQueued, EntityTypeProposal, p.ID, QueuedPayload{
		ProposalID:   p.ID,
		ExecutableAt: now.Add(org.Settings.ExecutionDelay()),
	})
	return em.Decision()
}

func decideCancel(v View, p Proposal, cmd command.Command, now time.Time) command.Decision {
	org, _ := v.Organizations.Get(p.OrganizationID)
	if cmd.ActorID != p.Creator && !org.IsManager(cmd.ActorID) && !cmd.Has(authz.CapabilityEmergency) {
		return command.Rejectf(apperrors.CodeUnauthorized, "only the creator, a manager or an emergency authority may cancel")
	}
	if p.Status != StatusPending && p.Status != StatusActive {
		return transitionRejection(p.Status, StatusCancelled)
	}
	if p.VoterCount > 0 {
		return command.Rejectf(apperrors.CodeProposalCancelForbidden, "proposal already has votes")
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeCancelled, EntityTypeProposal, p.ID, TransitionPayload{ProposalID: p.ID, From: p.Status, To: StatusCancelled})
	return em.Decision()
}

func transitionRejection(from, to Status) command.Decision {
	return command.Reject(command.Rejection{
		Code:     apperrors.CodeProposalInvalidTransition,
		Message:  fmt.Sprintf("proposal cannot move from %s to %s", from, to),
		Metadata: map[string]string{"From": string(from), "To": string(to)},
	})
}

func voteEntityID(proposalID, voter string) string {
	return proposalID + ":" + voter
}
