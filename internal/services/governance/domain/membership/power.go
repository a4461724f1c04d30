package membership

import (
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
)

// VotingPower returns an account's effective power in an organization,
// scaled by its reputation multiplier when the organization votes by
// reputation. Non-members and inactive members have zero power.
func VotingPower(v View, orgID, account string) int64 {
	m, ok := v.Members.Get(orgID, account)
	if !ok {
		return 0
	}
	power := m.EffectivePower()
	org, ok := v.Organizations.Get(orgID)
	if !ok || org.Settings.DefaultVotingModel != organization.VotingReputation {
		return power
	}
	score, _ := v.Reputation.Score(orgID, account)
	return reputation.Weighted(power, score)
}

// StatsReport summarises an organization's membership.
type StatsReport struct {
	Stats
	AverageReputation int64
}

// OrganizationReport returns the aggregates of an organization together
// with its mean reputation.
func OrganizationReport(v View, orgID string) StatsReport {
	return StatsReport{
		Stats:             v.Members.OrganizationStats(orgID),
		AverageReputation: v.Reputation.Average(orgID),
	}
}
