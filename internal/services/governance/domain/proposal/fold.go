package proposal

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Mutation applies a prepared event to proposal state.
type Mutation func(*State)

// Prepare decodes evt into a proposal mutation.
func Prepare(evt event.Event) (Mutation, error) {
	at := evt.Timestamp
	switch evt.Type {
	case EventTypeCreated:
		var p CreatedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.Proposals[p.Proposal.ID] = p.Proposal
			s.Counters[p.Proposal.OrganizationID] = max(s.Counters[p.Proposal.OrganizationID], p.Seq)
		}, nil
	case EventTypeActivated, EventTypeCancelled:
		var p TransitionPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.update(p.ProposalID, func(prop *Proposal) {
				prop.Status = p.To
				if p.To == StatusCancelled {
					prop.CancelledAt = at
				}
			})
		}, nil
	case EventTypeVoteCast:
		var p VoteCastPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			vote := p.Vote
			s.Votes[VoteKey{ProposalID: vote.ProposalID, Voter: vote.Voter}] = vote
			s.update(vote.ProposalID, func(prop *Proposal) {
				switch vote.Choice {
				case ChoiceFor:
					prop.ForVotes += vote.Weight
				case ChoiceAgainst:
					prop.AgainstVotes += vote.Weight
				case ChoiceAbstain:
					prop.AbstainVotes += vote.Weight
				}
				prop.VoterCount++
			})
		}, nil
	case EventTypeTallied:
		var p TalliedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.update(p.ProposalID, func(prop *Proposal) {
				prop.Status = p.To
				prop.QuorumReached = p.QuorumReached
				prop.TalliedAt = at
			})
		}, nil
	case EventTypeQueued:
		var p QueuedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.update(p.ProposalID, func(prop *Proposal) {
				prop.Status = StatusQueued
				prop.ExecutableAt = p.ExecutableAt
			})
		}, nil
	case EventTypeExecuted:
		var p ExecutedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.update(p.ProposalID, func(prop *Proposal) {
				prop.Status = StatusExecuted
				prop.ExecutedAt = at
			})
		}, nil
	default:
		return nil, fmt.Errorf("proposal: unsupported event type %s", evt.Type)
	}
}

func (s *State) update(id string, fn func(*Proposal)) {
	p, ok := s.Proposals[id]
	if !ok {
		return
	}
	fn(&p)
	s.Proposals[id] = p
}

func decode(evt event.Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return nil
}
