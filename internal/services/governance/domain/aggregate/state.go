// Package aggregate composes the governance state slices and routes
// commands and events to the package that owns them.
package aggregate

import (
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// State captures the whole governance core.
type State struct {
	Staking       *staking.State
	Organizations *organization.State
	Members       *membership.State
	Reputation    *reputation.State
	Proposals     *proposal.State
}

// NewState returns empty state.
func NewState() *State {
	return &State{
		Staking:       staking.NewState(),
		Organizations: organization.NewState(),
		Members:       membership.NewState(),
		Reputation:    reputation.NewState(),
		Proposals:     proposal.NewState(),
	}
}

// OrganizationView returns the read view organization deciders consult.
func (s *State) OrganizationView() organization.View {
	return organization.View{Organizations: s.Organizations, Staking: s.Staking}
}

// MembershipView returns the read view membership deciders consult.
func (s *State) MembershipView() membership.View {
	return membership.View{
		Organizations: s.Organizations,
		Members:       s.Members,
		Staking:       s.Staking,
		Reputation:    s.Reputation,
	}
}

// ProposalView returns the read view proposal deciders consult.
func (s *State) ProposalView() proposal.View {
	return proposal.View{
		Organizations: s.Organizations,
		Members:       s.Members,
		Staking:       s.Staking,
		Reputation:    s.Reputation,
		Proposals:     s.Proposals,
	}
}
