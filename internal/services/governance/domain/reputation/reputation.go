// Package reputation stores bounded per-(organization, member) reputation
// scores and the multiplier that scales voting power from them.
package reputation

import (
	"errors"
	"time"
)

// NeutralScore is the score at which the multiplier is 1.0x.
const NeutralScore = 1000

// Multiplier bounds in basis points (0.5x to 3.0x).
const (
	MinMultiplierBps = 5_000
	MaxMultiplierBps = 30_000
)

// Params bounds reputation scores.
type Params struct {
	Initial    int64 `env:"GOVERNING_SPACE_INITIAL_REPUTATION" envDefault:"1000"`
	Max        int64 `env:"GOVERNING_SPACE_MAX_REPUTATION" envDefault:"10000"`
	VoteReward int64 `env:"GOVERNING_SPACE_VOTE_REPUTATION_REWARD" envDefault:"10"`
}

// DefaultParams returns protocol defaults.
func DefaultParams() Params {
	return Params{Initial: 1000, Max: 10_000, VoteReward: 10}
}

// Validate checks parameter bounds.
func (p Params) Validate() error {
	if p.Max <= 0 {
		return errors.New("max reputation must be positive")
	}
	if p.Initial < 0 || p.Initial > p.Max {
		return errors.New("initial reputation must be within [0, max]")
	}
	if p.VoteReward < 0 {
		return errors.New("vote reputation reward must be non-negative")
	}
	return nil
}

// ErrOutOfRange reports a score adjustment that would leave [0, max].
var ErrOutOfRange = errors.New("reputation out of range")

// Adjust returns score+delta, or ErrOutOfRange when the result leaves [0, max].
// Scores are never clamped.
func (p Params) Adjust(score, delta int64) (int64, error) {
	next := score + delta
	if next < 0 || next > p.Max {
		return score, ErrOutOfRange
	}
	return next, nil
}

// Reward returns the capped participation award for a member at score.
func (p Params) Reward(score int64) int64 {
	return max(0, min(p.VoteReward, p.Max-score))
}

// MultiplierBps maps a score onto [0.5x, 3.0x], linear with 1000 = 1.0x.
func MultiplierBps(score int64) int64 {
	m := score * 10_000 / NeutralScore
	return max(MinMultiplierBps, min(MaxMultiplierBps, m))
}

// Weighted scales power by the score's multiplier.
func Weighted(power, score int64) int64 {
	if power <= 0 {
		return 0
	}
	return power * MultiplierBps(score) / 10_000
}

// Key identifies a ledger entry.
type Key struct {
	OrganizationID string
	Account        string
}

// Entry is one member's score in one organization.
type Entry struct {
	Score     int64
	UpdatedAt time.Time
}

// Totals aggregates scores per organization.
type Totals struct {
	Sum   int64
	Count int64
}

// Average returns the mean score, zero for an empty organization.
func (t Totals) Average() int64 {
	if t.Count == 0 {
		return 0
	}
	return t.Sum / t.Count
}

// State is the reputation ledger.
type State struct {
	Entries map[Key]Entry
	Totals  map[string]Totals
}

// NewState returns an empty ledger.
func NewState() *State {
	return &State{Entries: map[Key]Entry{}, Totals: map[string]Totals{}}
}

// Score returns the score for (org, account).
func (s *State) Score(orgID, account string) (int64, bool) {
	e, ok := s.Entries[Key{OrganizationID: orgID, Account: account}]
	return e.Score, ok
}

// Average returns the mean score for an organization.
func (s *State) Average(orgID string) int64 {
	return s.Totals[orgID].Average()
}
