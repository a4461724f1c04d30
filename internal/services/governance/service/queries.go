package service

import (
	"context"
	"sort"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// GetVotingPower returns the account's current voting power in an
// organization under its default voting model.
func (s *Service) GetVotingPower(orgID, account string) int64 {
	var power int64
	s.handler.Read(func(state *aggregate.State) {
		power = membership.VotingPower(state.MembershipView(), orgID, account)
	})
	return power
}

// MemberView joins a member with its reputation score and delegations.
type MemberView struct {
	membership.Member
	Reputation     int64
	EffectivePower int64
	VotingPower    int64
	Delegations    []membership.Delegation
}

// GetMember returns a member of an organization.
func (s *Service) GetMember(orgID, account string) (MemberView, bool) {
	var (
		view MemberView
		ok   bool
	)
	s.handler.Read(func(state *aggregate.State) {
		var m membership.Member
		m, ok = state.Members.Get(orgID, account)
		if !ok {
			return
		}
		score, _ := state.Reputation.Score(orgID, account)
		view = MemberView{
			Member:         m,
			Reputation:     score,
			EffectivePower: m.EffectivePower(),
			VotingPower:    membership.VotingPower(state.MembershipView(), orgID, account),
			Delegations:    state.Members.DelegationsOf(orgID, account),
		}
	})
	return view, ok
}

// PositionView is an open position with its claimable rewards projected to now.
type PositionView struct {
	staking.Position
	Claimable int64
}

// GetStakePosition returns the caller-independent view of a position.
func (s *Service) GetStakePosition(account string, purpose staking.Purpose) (PositionView, bool) {
	now := s.now().UTC()
	var (
		view PositionView
		ok   bool
	)
	s.handler.Read(func(state *aggregate.State) {
		var pos staking.Position
		pos, ok = state.Staking.Position(account, purpose)
		if ok {
			view = PositionView{Position: pos, Claimable: s.rules.Staking.Claimable(pos, now)}
		}
	})
	return view, ok
}

// GetWithdrawal returns a pending or completed withdrawal.
func (s *Service) GetWithdrawal(withdrawalID string) (staking.Withdrawal, bool) {
	var (
		w  staking.Withdrawal
		ok bool
	)
	s.handler.Read(func(state *aggregate.State) {
		w, ok = state.Staking.Withdrawal(withdrawalID)
	})
	return w, ok
}

// WalletView summarises everything an account holds in custody.
type WalletView struct {
	Account            string
	Balance            int64
	Positions          []staking.Position
	PendingWithdrawals []staking.Withdrawal
}

// GetWallet returns an account's liquid balance, open positions and pending withdrawals.
func (s *Service) GetWallet(account string) WalletView {
	view := WalletView{Account: account}
	s.handler.Read(func(state *aggregate.State) {
		view.Balance = state.Staking.Balance(account)
		for key, pos := range state.Staking.Positions {
			if key.Account == account {
				view.Positions = append(view.Positions, pos)
			}
		}
		view.PendingWithdrawals = state.Staking.PendingWithdrawals(account)
	})
	sort.Slice(view.Positions, func(i, j int) bool { return view.Positions[i].Purpose < view.Positions[j].Purpose })
	return view
}

// OrganizationView joins an organization with its counters and treasury.
type OrganizationView struct {
	organization.Organization
	ProposalCount int64
	Treasury      int64
}

// GetOrganization returns an organization.
func (s *Service) GetOrganization(orgID string) (OrganizationView, bool) {
	var (
		view OrganizationView
		ok   bool
	)
	s.handler.Read(func(state *aggregate.State) {
		var org organization.Organization
		org, ok = state.Organizations.Get(orgID)
		if ok {
			view = OrganizationView{
				Organization:  org,
				ProposalCount: state.Proposals.Count(orgID),
				Treasury:      state.Staking.Treasury(orgID),
			}
		}
	})
	return view, ok
}

// GetProposal returns a proposal.
func (s *Service) GetProposal(proposalID string) (proposal.Proposal, bool) {
	var (
		p  proposal.Proposal
		ok bool
	)
	s.handler.Read(func(state *aggregate.State) {
		p, ok = state.Proposals.Get(proposalID)
	})
	return p, ok
}

// ListProposals returns an organization's proposals in creation order.
func (s *Service) ListProposals(orgID string) []proposal.Proposal {
	var out []proposal.Proposal
	s.handler.Read(func(state *aggregate.State) {
		out = state.Proposals.List(orgID)
	})
	return out
}

// GetVote returns a voter's ballot on a proposal.
func (s *Service) GetVote(proposalID, voter string) (proposal.Vote, bool) {
	var (
		v  proposal.Vote
		ok bool
	)
	s.handler.Read(func(state *aggregate.State) {
		v, ok = state.Proposals.Vote(proposalID, voter)
	})
	return v, ok
}

// GetMembershipStats returns an organization's membership aggregates.
func (s *Service) GetMembershipStats(orgID string) membership.StatsReport {
	var report membership.StatsReport
	s.handler.Read(func(state *aggregate.State) {
		report = membership.OrganizationReport(state.MembershipView(), orgID)
	})
	return report
}

// ProtocolStats are protocol-wide custody and lifecycle aggregates.
type ProtocolStats struct {
	Supply        int64
	RewardPool    int64
	TreasuryPool  int64
	TotalStaked   map[staking.Purpose]int64
	TotalSlashed  int64
	TotalPenalty  int64
	Organizations map[organization.Status]int64
	LastSeq       uint64
}

// GetProtocolStats returns protocol-wide aggregates.
func (s *Service) GetProtocolStats() ProtocolStats {
	var stats ProtocolStats
	s.handler.Read(func(state *aggregate.State) {
		totals := make(map[staking.Purpose]int64, len(state.Staking.TotalStaked))
		for purpose, amount := range state.Staking.TotalStaked {
			totals[purpose] = amount
		}
		stats = ProtocolStats{
			Supply:        state.Staking.Supply(),
			RewardPool:    state.Staking.RewardPool,
			TreasuryPool:  state.Staking.TreasuryPool,
			TotalStaked:   totals,
			TotalSlashed:  state.Staking.TotalSlashed,
			TotalPenalty:  state.Staking.TotalPenalty,
			Organizations: state.Organizations.Count(),
		}
	})
	stats.LastSeq = s.handler.LastSeq()
	return stats
}

// ListEvents returns up to limit journal events after afterSeq.
func (s *Service) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	return s.journal.ListEvents(ctx, afterSeq, limit)
}

// ListEventsPage returns a filtered page of journal events.
func (s *Service) ListEventsPage(ctx context.Context, req journal.PageRequest) (journal.Page, error) {
	return s.journal.ListEventsPage(ctx, req)
}
