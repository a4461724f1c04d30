package aggregate

import (
	"fmt"
	"time"

	"github.com/louisbranch/governing.space/internal/platform/config"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// Rules carries every deployment parameter deciders depend on.
type Rules struct {
	Staking      staking.Params
	Organization organization.Params
	Membership   membership.Params
	Reputation   reputation.Params
}

// DefaultRules returns protocol defaults.
func DefaultRules() Rules {
	return Rules{
		Staking:      staking.DefaultParams(),
		Organization: organization.DefaultParams(),
		Membership:   membership.DefaultParams(),
		Reputation:   reputation.DefaultParams(),
	}
}

// RulesFromEnv overlays the GOVERNING_SPACE_* parameter variables on
// DefaultRules. Tier tables have no variables and keep their defaults.
func RulesFromEnv() (Rules, error) {
	rules := DefaultRules()
	if err := config.ParseEnv(&rules); err != nil {
		return Rules{}, err
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate checks every parameter set.
func (r Rules) Validate() error {
	if err := r.Staking.Validate(); err != nil {
		return fmt.Errorf("staking params: %w", err)
	}
	if err := r.Membership.Validate(); err != nil {
		return fmt.Errorf("membership params: %w", err)
	}
	if err := r.Reputation.Validate(); err != nil {
		return fmt.Errorf("reputation params: %w", err)
	}
	return nil
}

func (r Rules) membership() membership.Rules {
	return membership.Rules{Membership: r.Membership, Reputation: r.Reputation}
}

// Decider routes commands to the package that owns them.
type Decider struct {
	Rules Rules
}

// Decide returns the decision for cmd against state.
func (d Decider) Decide(state *State, cmd command.Command, now func() time.Time) command.Decision {
	switch cmd.Type.Domain() {
	case "stake", "wallet", "reward_pool":
		return staking.Decide(d.Rules.Staking, state.Staking, cmd, now)
	case "organization", "treasury":
		return organization.Decide(d.Rules.Organization, state.OrganizationView(), cmd, now)
	case "member", "voting_power", "reputation":
		return membership.Decide(d.Rules.membership(), state.MembershipView(), cmd, now)
	case "proposal", "vote":
		return proposal.Decide(d.Rules.membership(), state.ProposalView(), cmd, now)
	default:
		return command.Rejectf(command.RejectionCodeCommandTypeUnsupported, fmt.Sprintf("command type %s is not supported", cmd.Type))
	}
}
