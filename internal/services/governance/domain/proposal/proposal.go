// Package proposal runs the proposal lifecycle: creation with an eligible
// power snapshot, voting, tallying, the execution timelock, and atomic
// execution of proposal effects.
package proposal

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/action"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
)

// Type labels what a proposal is about.
type Type string

const (
	TypeGeneral    Type = "general"
	TypeTreasury   Type = "treasury"
	TypeParameter  Type = "parameter"
	TypeMembership Type = "membership"
	TypeCustom     Type = "custom"
)

// Valid reports whether t is a known proposal type.
func (t Type) Valid() bool {
	switch t {
	case TypeGeneral, TypeTreasury, TypeParameter, TypeMembership, TypeCustom:
		return true
	}
	return false
}

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSucceeded Status = "succeeded"
	StatusDefeated  Status = "defeated"
	StatusQueued    Status = "queued"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
)

// Finalized reports whether the tally has already been decided.
func (s Status) Finalized() bool {
	switch s {
	case StatusSucceeded, StatusDefeated, StatusQueued, StatusExecuted:
		return true
	}
	return false
}

// Choice is a vote option.
type Choice string

const (
	ChoiceFor     Choice = "for"
	ChoiceAgainst Choice = "against"
	ChoiceAbstain Choice = "abstain"
)

// Valid reports whether c is a known choice.
func (c Choice) Valid() bool {
	return c == ChoiceFor || c == ChoiceAgainst || c == ChoiceAbstain
}

// Proposal is a governance proposal.
type Proposal struct {
	ID              string                   `json:"id"`
	OrganizationID  string                   `json:"organization_id"`
	Creator         string                   `json:"creator"`
	Type            Type                     `json:"type"`
	Title           string                   `json:"title"`
	DescriptionHash string                   `json:"description_hash,omitempty"`
	VotingModel     organization.VotingModel `json:"voting_model"`
	Majority        organization.Majority    `json:"majority"`
	ThresholdBps    int64                    `json:"threshold_bps"`
	QuorumBps       int64                    `json:"quorum_bps"`
	Status          Status                   `json:"status"`
	CreatedAt       time.Time                `json:"created_at"`
	StartTime       time.Time                `json:"start_time"`
	EndTime         time.Time                `json:"end_time"`
	EligiblePower   int64                    `json:"eligible_power"`
	ForVotes        int64                    `json:"for_votes"`
	AgainstVotes    int64                    `json:"against_votes"`
	AbstainVotes    int64                    `json:"abstain_votes"`
	VoterCount      int64                    `json:"voter_count"`
	QuorumReached   bool                     `json:"quorum_reached"`
	Actions         []action.Effect          `json:"actions,omitempty"`
	Script          string                   `json:"script,omitempty"`
	TalliedAt       time.Time                `json:"tallied_at,omitzero"`
	ExecutableAt    time.Time                `json:"executable_at,omitzero"`
	ExecutedAt      time.Time                `json:"executed_at,omitzero"`
	CancelledAt     time.Time                `json:"cancelled_at,omitzero"`
}

// Cast returns the total weight cast.
func (p Proposal) Cast() int64 {
	return p.ForVotes + p.AgainstVotes + p.AbstainVotes
}

// ProposalID formats the hierarchical id of the n-th proposal of an organization.
func ProposalID(orgID string, seq int64) string {
	return orgID + "/" + strconv.FormatInt(seq, 10)
}

// OrganizationOf returns the organization part of a proposal id.
func OrganizationOf(proposalID string) string {
	org, _, _ := strings.Cut(proposalID, "/")
	return org
}

// VoteKey identifies a vote.
type VoteKey struct {
	ProposalID string
	Voter      string
}

// Vote is a single immutable ballot.
type Vote struct {
	ProposalID string    `json:"proposal_id"`
	Voter      string    `json:"voter"`
	Choice     Choice    `json:"choice"`
	Weight     int64     `json:"weight"`
	CastAt     time.Time `json:"cast_at"`
}

// State holds proposals and votes.
type State struct {
	Proposals map[string]Proposal
	Votes     map[VoteKey]Vote
	Counters  map[string]int64
}

// NewState returns an empty proposal book.
func NewState() *State {
	return &State{
		Proposals: map[string]Proposal{},
		Votes:     map[VoteKey]Vote{},
		Counters:  map[string]int64{},
	}
}

// Get returns a proposal.
func (s *State) Get(id string) (Proposal, bool) {
	p, ok := s.Proposals[id]
	return p, ok
}

// Vote returns the ballot of voter on a proposal.
func (s *State) Vote(proposalID, voter string) (Vote, bool) {
	v, ok := s.Votes[VoteKey{ProposalID: proposalID, Voter: voter}]
	return v, ok
}

// Count returns how many proposals an organization has created.
func (s *State) Count(orgID string) int64 {
	return s.Counters[orgID]
}

// List returns an organization's proposals in creation order.
func (s *State) List(orgID string) []Proposal {
	var out []Proposal
	for _, p := range s.Proposals {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return seqOf(out[i].ID) < seqOf(out[j].ID)
	})
	return out
}

func seqOf(id string) int64 {
	_, raw, _ := strings.Cut(id, "/")
	n, _ := strconv.ParseInt(raw, 10, 64)
	return n
}
