package proposal

import (
	"math/big"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

const basisPoints = 10_000

// SimpleThresholdBps is recorded on simple-majority proposals. The rule
// itself is for > against.
const SimpleThresholdBps = 5_000

// Outcome is the result of counting a proposal.
type Outcome struct {
	QuorumReached bool
	Passed        bool
}

// Status maps the outcome onto a terminal tally status.
func (o Outcome) Status() Status {
	if o.QuorumReached && o.Passed {
		return StatusSucceeded
	}
	return StatusDefeated
}

// Count applies quorum and majority rules to p. It is a pure function of
// the tallies and the eligible power snapshot.
func Count(p Proposal) Outcome {
	cast := new(big.Int).Add(big.NewInt(p.ForVotes), big.NewInt(p.AgainstVotes))
	cast.Add(cast, big.NewInt(p.AbstainVotes))
	var quorum bool
	if p.EligiblePower <= 0 {
		quorum = p.QuorumBps == 0
	} else {
		quorum = atLeastBps(cast, big.NewInt(p.EligiblePower), p.QuorumBps)
	}
	var passed bool
	switch p.Majority {
	case organization.MajoritySuper:
		passed = cast.Sign() > 0 && atLeastBps(big.NewInt(p.ForVotes), cast, p.ThresholdBps)
	default:
		passed = p.ForVotes > p.AgainstVotes
	}
	return Outcome{QuorumReached: quorum, Passed: passed}
}

// atLeastBps reports part/whole >= bps/basisPoints without int64 overflow.
func atLeastBps(part, whole *big.Int, bps int64) bool {
	lhs := new(big.Int).Mul(part, big.NewInt(basisPoints))
	rhs := new(big.Int).Mul(whole, big.NewInt(bps))
	return lhs.Cmp(rhs) >= 0
}

// VoteWeight returns the weight a member casts under model.
func VoteWeight(model organization.VotingModel, m membership.Member, score int64, governanceStake int64) int64 {
	if m.Status != membership.StatusActive {
		return 0
	}
	switch model {
	case organization.VotingReputation:
		return reputation.Weighted(m.EffectivePower(), score)
	case organization.VotingStake:
		return max(0, governanceStake)
	default:
		return 1
	}
}

// EligiblePower sums the weight every active member could cast.
func EligiblePower(model organization.VotingModel, orgID string, members *membership.State, rep *reputation.State, stake *staking.State) int64 {
	var total int64
	for _, m := range members.ActiveMembers(orgID) {
		score, _ := rep.Score(orgID, m.Account)
		total += VoteWeight(model, m, score, stake.Staked(m.Account, staking.PurposeGovernance))
	}
	return total
}
