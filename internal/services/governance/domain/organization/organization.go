// Package organization owns the organization lifecycle (created, active,
// dissolved), its access model, membership limits and governance settings.
package organization

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of an organization.
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusDissolved Status = "dissolved"
)

// AccessModel controls who may admit new members.
type AccessModel string

const (
	AccessOpen   AccessModel = "open"
	AccessVoting AccessModel = "voting"
	AccessInvite AccessModel = "invite"
)

// Valid reports whether the access model is supported.
func (a AccessModel) Valid() bool {
	return a == AccessOpen || a == AccessVoting || a == AccessInvite
}

// VotingModel determines how vote weight is computed.
type VotingModel string

const (
	VotingDemocratic VotingModel = "democratic"
	VotingReputation VotingModel = "reputation"
	VotingStake      VotingModel = "stake"
)

// Valid reports whether the voting model is supported.
func (m VotingModel) Valid() bool {
	return m == VotingDemocratic || m == VotingReputation || m == VotingStake
}

// Majority determines the pass rule of a tally.
type Majority string

const (
	MajoritySimple Majority = "simple"
	MajoritySuper  Majority = "super"
)

// Valid reports whether the majority rule is supported.
func (m Majority) Valid() bool {
	return m == MajoritySimple || m == MajoritySuper
}

// Settings are the governance parameters of an organization.
type Settings struct {
	VotingDelaySeconds    int64       `json:"voting_delay_seconds"`
	VotingPeriodSeconds   int64       `json:"voting_period_seconds"`
	ExecutionDelaySeconds int64       `json:"execution_delay_seconds"`
	QuorumBps             int64       `json:"quorum_bps"`
	DefaultVotingModel    VotingModel `json:"default_voting_model"`
	DefaultMajority       Majority    `json:"default_majority"`
	SuperMajorityBps      int64       `json:"super_majority_bps"`
}

// VotingDelay returns the delay between proposal creation and voting start.
func (s Settings) VotingDelay() time.Duration {
	return time.Duration(s.VotingDelaySeconds) * time.Second
}

// VotingPeriod returns the voting window length.
func (s Settings) VotingPeriod() time.Duration {
	return time.Duration(s.VotingPeriodSeconds) * time.Second
}

// ExecutionDelay returns the timelock between queueing and execution.
func (s Settings) ExecutionDelay() time.Duration {
	return time.Duration(s.ExecutionDelaySeconds) * time.Second
}

// Validate checks settings bounds.
func (s Settings) Validate() error {
	switch {
	case s.VotingDelaySeconds < 0 || s.ExecutionDelaySeconds < 0:
		return errors.New("delays must be non-negative")
	case s.VotingPeriodSeconds <= 0:
		return errors.New("voting period must be positive")
	case s.QuorumBps < 0 || s.QuorumBps > 10_000:
		return errors.New("quorum must be within [0, 10000] bps")
	case !s.DefaultVotingModel.Valid():
		return errors.New("default voting model is invalid")
	case !s.DefaultMajority.Valid():
		return errors.New("default majority is invalid")
	case s.SuperMajorityBps <= 0 || s.SuperMajorityBps > 10_000:
		return errors.New("super majority must be within (0, 10000] bps")
	}
	return nil
}

// DefaultSettings returns the settings applied when a creator supplies none.
func DefaultSettings() Settings {
	return Settings{
		VotingDelaySeconds:    int64(time.Hour / time.Second),
		VotingPeriodSeconds:   int64(3 * 24 * time.Hour / time.Second),
		ExecutionDelaySeconds: int64(24 * time.Hour / time.Second),
		QuorumBps:             1000,
		DefaultVotingModel:    VotingDemocratic,
		DefaultMajority:       MajoritySimple,
		SuperMajorityBps:      6667,
	}
}

// Organization is a governance tenant.
type Organization struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Creator       string      `json:"creator"`
	Managers      []string    `json:"managers,omitempty"`
	AccessModel   AccessModel `json:"access_model"`
	MembershipFee int64       `json:"membership_fee"`
	MemberLimit   int64       `json:"member_limit"`
	Status        Status      `json:"status"`
	CreationStake int64       `json:"creation_stake"`
	// LockedStake is the creator's dao_creation stake reserved until dissolution.
	LockedStake   int64       `json:"locked_stake,omitempty"`
	Settings      Settings    `json:"settings"`
	CreatedAt     time.Time   `json:"created_at"`
	ActivatedAt   time.Time   `json:"activated_at,omitzero"`
	DissolvedAt   time.Time   `json:"dissolved_at,omitzero"`
}

// IsManager reports whether account may manage the organization. The creator
// is always a manager.
func (o Organization) IsManager(account string) bool {
	account = strings.TrimSpace(account)
	if account == "" {
		return false
	}
	return account == o.Creator || slices.Contains(o.Managers, account)
}

// Active reports whether the organization accepts governance activity.
func (o Organization) Active() bool {
	return o.Status == StatusActive
}

// Params configures organization creation.
type Params struct {
	MinCreationStake int64 `env:"GOVERNING_SPACE_MIN_CREATION_STAKE" envDefault:"1000"`
}

// DefaultParams returns protocol defaults.
func DefaultParams() Params {
	return Params{MinCreationStake: 1000}
}

// State holds every organization.
type State struct {
	Organizations map[string]Organization
}

// NewState returns an empty organization table.
func NewState() *State {
	return &State{Organizations: map[string]Organization{}}
}

// Get returns an organization by id.
func (s *State) Get(id string) (Organization, bool) {
	o, ok := s.Organizations[id]
	return o, ok
}

// Count returns organizations per status.
func (s *State) Count() map[Status]int64 {
	out := map[Status]int64{}
	for _, o := range s.Organizations {
		out[o.Status]++
	}
	return out
}
