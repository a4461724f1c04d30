// Package action defines what an executed proposal may do and runs the
// Lua scripts that produce those effects.
package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
)

// Kind names an effect.
type Kind string

const (
	KindTreasuryTransfer Kind = "treasury.transfer"
	KindUpdateSettings   Kind = "organization.update_settings"
	KindAddMember        Kind = "member.add"
	KindUpdateTier       Kind = "member.update_tier"
)

// MaxEffects bounds how many effects a single proposal may apply.
const MaxEffects = 64

// Effect is one state change requested by a proposal.
type Effect struct {
	Kind     Kind            `json:"kind"`
	To       string          `json:"to,omitempty"`
	Amount   int64           `json:"amount,omitempty"`
	Account  string          `json:"account,omitempty"`
	Tier     membership.Tier `json:"tier,omitempty"`
	Settings *SettingsPatch  `json:"settings,omitempty"`
}

// Validate checks that the effect is well formed in isolation.
func (e Effect) Validate() error {
	switch e.Kind {
	case KindTreasuryTransfer:
		if strings.TrimSpace(e.To) == "" {
			return errors.New("transfer recipient is required")
		}
		if e.Amount <= 0 {
			return errors.New("transfer amount must be positive")
		}
	case KindUpdateSettings:
		if e.Settings == nil || e.Settings.Empty() {
			return errors.New("settings patch is empty")
		}
	case KindAddMember:
		if strings.TrimSpace(e.Account) == "" {
			return errors.New("member account is required")
		}
		if e.Tier != "" && !e.Tier.Valid() {
			return fmt.Errorf("tier %q is invalid", e.Tier)
		}
	case KindUpdateTier:
		if strings.TrimSpace(e.Account) == "" {
			return errors.New("member account is required")
		}
		if !e.Tier.Valid() {
			return fmt.Errorf("tier %q is invalid", e.Tier)
		}
	default:
		return fmt.Errorf("effect kind %q is not supported", e.Kind)
	}
	return nil
}

// ValidateAll checks a batch of effects.
func ValidateAll(effects []Effect) error {
	if len(effects) > MaxEffects {
		return fmt.Errorf("at most %d effects are allowed", MaxEffects)
	}
	for i, e := range effects {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("effect %d: %w", i+1, err)
		}
	}
	return nil
}

// SettingsPatch overrides a subset of organization settings.
type SettingsPatch struct {
	VotingDelaySeconds    *int64                    `json:"voting_delay_seconds,omitempty"`
	VotingPeriodSeconds   *int64                    `json:"voting_period_seconds,omitempty"`
	ExecutionDelaySeconds *int64                    `json:"execution_delay_seconds,omitempty"`
	QuorumBps             *int64                    `json:"quorum_bps,omitempty"`
	DefaultVotingModel    *organization.VotingModel `json:"default_voting_model,omitempty"`
	DefaultMajority       *organization.Majority    `json:"default_majority,omitempty"`
	SuperMajorityBps      *int64                    `json:"super_majority_bps,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.VotingDelaySeconds == nil && p.VotingPeriodSeconds == nil && p.ExecutionDelaySeconds == nil &&
		p.QuorumBps == nil && p.DefaultVotingModel == nil && p.DefaultMajority == nil && p.SuperMajorityBps == nil
}

// Apply returns base with the patch applied.
func (p SettingsPatch) Apply(base organization.Settings) organization.Settings {
	out := base
	if p.VotingDelaySeconds != nil {
		out.VotingDelaySeconds = *p.VotingDelaySeconds
	}
	if p.VotingPeriodSeconds != nil {
		out.VotingPeriodSeconds = *p.VotingPeriodSeconds
	}
	if p.ExecutionDelaySeconds != nil {
		out.ExecutionDelaySeconds = *p.ExecutionDelaySeconds
	}
	if p.QuorumBps != nil {
		out.QuorumBps = *p.QuorumBps
	}
	if p.DefaultVotingModel != nil {
		out.DefaultVotingModel = *p.DefaultVotingModel
	}
	if p.DefaultMajority != nil {
		out.DefaultMajority = *p.DefaultMajority
	}
	if p.SuperMajorityBps != nil {
		out.SuperMajorityBps = *p.SuperMajorityBps
	}
	return out
}
