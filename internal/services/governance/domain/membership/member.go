package membership

import (
	"errors"
	"sort"
	"time"
)

// Tier is an ordinal membership class.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierVIP     Tier = "vip"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierBasic, TierPremium, TierVIP}

// Valid reports whether the tier is supported.
func (t Tier) Valid() bool {
	return t == TierBasic || t == TierPremium || t == TierVIP
}

// Status is the member state machine.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusSuspended Status = "suspended"
)

// Member is one account's membership in one organization.
type Member struct {
	OrganizationID  string    `json:"organization_id"`
	Account         string    `json:"account"`
	Tier            Tier      `json:"tier"`
	Status          Status    `json:"status"`
	BaseVotingPower int64     `json:"base_voting_power"`
	DelegatedIn     int64     `json:"delegated_in"`
	DelegatedOut    int64     `json:"delegated_out"`
	InitialStake    int64     `json:"initial_stake"`
	JoinedAt        time.Time `json:"joined_at"`
}

// EffectivePower is base + in - out, floored at zero; inactive members have none.
func (m Member) EffectivePower() int64 {
	if m.Status != StatusActive {
		return 0
	}
	return max(0, m.BaseVotingPower+m.DelegatedIn-m.DelegatedOut)
}

// Undelegated returns base power still available to delegate.
func (m Member) Undelegated() int64 {
	return m.BaseVotingPower - m.DelegatedOut
}

// Key identifies a member.
type Key struct {
	OrganizationID string
	Account        string
}

// DelegationKey identifies a delegation edge.
type DelegationKey struct {
	OrganizationID string
	Delegator      string
	Delegatee      string
}

// Delegation is an outstanding transfer of voting capacity.
type Delegation struct {
	Delegator string `json:"delegator"`
	Delegatee string `json:"delegatee"`
	Amount    int64  `json:"amount"`
}

// Stats are the per-organization membership aggregates.
type Stats struct {
	TotalMembers     int64
	ActiveMembers    int64
	TotalVotingPower int64
}

// Params configures tiers.
type Params struct {
	TierBasePower        map[Tier]int64
	TierStakeRequirement map[Tier]int64
}

// DefaultParams returns protocol defaults.
func DefaultParams() Params {
	return Params{
		TierBasePower:        map[Tier]int64{TierBasic: 1, TierPremium: 3, TierVIP: 5},
		TierStakeRequirement: map[Tier]int64{TierBasic: 0, TierPremium: 1000, TierVIP: 5000},
	}
}

// Validate checks that base power is strictly increasing by tier and that
// stake requirements never decrease.
func (p Params) Validate() error {
	prevPower, prevStake := int64(0), int64(0)
	for i, tier := range Tiers {
		power, ok := p.TierBasePower[tier]
		if !ok || power <= 0 {
			return errors.New("every tier needs a positive base power")
		}
		stake, ok := p.TierStakeRequirement[tier]
		if !ok || stake < 0 {
			return errors.New("every tier needs a non-negative stake requirement")
		}
		if i > 0 && power <= prevPower {
			return errors.New("tier base power must be strictly increasing")
		}
		if i > 0 && stake < prevStake {
			return errors.New("tier stake requirement must not decrease")
		}
		prevPower, prevStake = power, stake
	}
	return nil
}

// BasePower returns the base voting power of a tier.
func (p Params) BasePower(t Tier) int64 {
	return p.TierBasePower[t]
}

// StakeRequirement returns the governance stake a tier requires.
func (p Params) StakeRequirement(t Tier) int64 {
	return p.TierStakeRequirement[t]
}

// State holds members, delegations and aggregates.
type State struct {
	Members     map[Key]Member
	Delegations map[DelegationKey]int64
	Stats       map[string]Stats
}

// NewState returns an empty registry.
func NewState() *State {
	return &State{
		Members:     map[Key]Member{},
		Delegations: map[DelegationKey]int64{},
		Stats:       map[string]Stats{},
	}
}

// Get returns a member.
func (s *State) Get(orgID, account string) (Member, bool) {
	m, ok := s.Members[Key{OrganizationID: orgID, Account: account}]
	return m, ok
}

// Delegated returns the outstanding amount from → to.
func (s *State) Delegated(orgID, from, to string) int64 {
	return s.Delegations[DelegationKey{OrganizationID: orgID, Delegator: from, Delegatee: to}]
}

// DelegationsOf lists every delegation touching account, sorted.
func (s *State) DelegationsOf(orgID, account string) []Delegation {
	var out []Delegation
	for key, amount := range s.Delegations {
		if key.OrganizationID != orgID || (key.Delegator != account && key.Delegatee != account) {
			continue
		}
		out = append(out, Delegation{Delegator: key.Delegator, Delegatee: key.Delegatee, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Delegator != out[j].Delegator {
			return out[i].Delegator < out[j].Delegator
		}
		return out[i].Delegatee < out[j].Delegatee
	})
	return out
}

// ActiveMembers lists active members of an organization sorted by account.
func (s *State) ActiveMembers(orgID string) []Member {
	var out []Member
	for key, m := range s.Members {
		if key.OrganizationID == orgID && m.Status == StatusActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// OrganizationStats returns the aggregates of an organization.
func (s *State) OrganizationStats(orgID string) Stats {
	return s.Stats[orgID]
}
