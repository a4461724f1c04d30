package proposal

import (
	"testing"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name   string
		p      Proposal
		quorum bool
		status Status
	}{
		{"no eligible, zero quorum", Proposal{QuorumBps: 0}, true, StatusDefeated},
		{"no eligible, quorum required", Proposal{QuorumBps: 1000}, false, StatusDefeated},
		{"below quorum", Proposal{EligiblePower: 100, QuorumBps: 1000, ForVotes: 5}, false, StatusDefeated},
		{"exact quorum", Proposal{EligiblePower: 100, QuorumBps: 1000, ForVotes: 6, AgainstVotes: 4}, true, StatusSucceeded},
		{"abstain counts toward quorum", Proposal{EligiblePower: 10, QuorumBps: 5000, ForVotes: 1, AbstainVotes: 4}, true, StatusSucceeded},
		{"simple tie", Proposal{EligiblePower: 2, ForVotes: 1, AgainstVotes: 1}, true, StatusDefeated},
		{"super below threshold", Proposal{EligiblePower: 3, Majority: organization.MajoritySuper, ThresholdBps: 6667, ForVotes: 2, AgainstVotes: 1}, true, StatusDefeated},
		{"super above threshold", Proposal{EligiblePower: 4, Majority: organization.MajoritySuper, ThresholdBps: 6667, ForVotes: 3, AgainstVotes: 1}, true, StatusSucceeded},
		{"super without votes", Proposal{Majority: organization.MajoritySuper, ThresholdBps: 6667}, true, StatusDefeated},
		{"large eligible power", Proposal{EligiblePower: 1e15, QuorumBps: 1000, ForVotes: 1e15}, true, StatusSucceeded},
		{"super with large tallies", Proposal{EligiblePower: 4e15, Majority: organization.MajoritySuper, ThresholdBps: 6667, ForVotes: 3e15, AgainstVotes: 1e15}, true, StatusSucceeded},
		{"large tallies below quorum", Proposal{EligiblePower: 1e18, QuorumBps: 2000, ForVotes: 1e17}, false, StatusDefeated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.p)
			if got.QuorumReached != tt.quorum {
				t.Fatalf("quorum = %v, want %v", got.QuorumReached, tt.quorum)
			}
			if got.Status() != tt.status {
				t.Fatalf("status = %q, want %q", got.Status(), tt.status)
			}
			if again := Count(tt.p); again != got {
				t.Fatal("expected deterministic outcome")
			}
		})
	}
}

func TestVoteWeight(t *testing.T) {
	active := membership.Member{Status: membership.StatusActive, BaseVotingPower: 3, DelegatedIn: 1}
	paused := active
	paused.Status = membership.StatusPaused

	tests := []struct {
		name  string
		model organization.VotingModel
		m     membership.Member
		score int64
		stake int64
		want  int64
	}{
		{"democratic ignores power", organization.VotingDemocratic, active, 1000, 0, 1},
		{"reputation neutral", organization.VotingReputation, active, 1000, 0, 4},
		{"reputation doubled", organization.VotingReputation, active, 2000, 0, 8},
		{"reputation floor", organization.VotingReputation, active, 0, 0, 2},
		{"stake", organization.VotingStake, active, 1000, 750, 750},
		{"paused", organization.VotingDemocratic, paused, 1000, 750, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VoteWeight(tt.model, tt.m, tt.score, tt.stake); got != tt.want {
				t.Fatalf("weight = %d, want %d", got, tt.want)
			}
		})
	}
}
