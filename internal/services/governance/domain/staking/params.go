package staking

import (
	"errors"
	"math/big"
	"time"
)

// BasisPoints is the denominator for every bps parameter.
const BasisPoints = 10_000

// Year is the reward-rate period.
const Year = 365 * 24 * time.Hour

// Params configures exit strategies and reward accrual.
type Params struct {
	RageQuitPenaltyBps    int64         `env:"GOVERNING_SPACE_RAGE_QUIT_PENALTY_BPS" envDefault:"2000"`
	StandardDelay         time.Duration `env:"GOVERNING_SPACE_STANDARD_DELAY" envDefault:"168h"`
	PatientDelay          time.Duration `env:"GOVERNING_SPACE_PATIENT_DELAY" envDefault:"720h"`
	PatientBonusBps       int64         `env:"GOVERNING_SPACE_PATIENT_BONUS_BPS" envDefault:"500"`
	RewardRateBps         int64         `env:"GOVERNING_SPACE_REWARD_RATE_BPS" envDefault:"1000"`
	PatientMultiplierBps  int64         `env:"GOVERNING_SPACE_PATIENT_MULTIPLIER_BPS" envDefault:"10500"`
	StandardMultiplierBps int64         `env:"GOVERNING_SPACE_STANDARD_MULTIPLIER_BPS" envDefault:"10000"`
	RageQuitMultiplierBps int64         `env:"GOVERNING_SPACE_RAGE_QUIT_MULTIPLIER_BPS" envDefault:"10000"`
}

// DefaultParams returns the protocol defaults.
func DefaultParams() Params {
	return Params{
		RageQuitPenaltyBps:    2000,
		StandardDelay:         7 * 24 * time.Hour,
		PatientDelay:          30 * 24 * time.Hour,
		PatientBonusBps:       500,
		RewardRateBps:         1000,
		PatientMultiplierBps:  10_500,
		StandardMultiplierBps: 10_000,
		RageQuitMultiplierBps: 10_000,
	}
}

// Validate checks parameter bounds.
func (p Params) Validate() error {
	if p.RageQuitPenaltyBps < 0 || p.RageQuitPenaltyBps > BasisPoints {
		return errors.New("rage quit penalty must be within [0, 10000] bps")
	}
	if p.PatientBonusBps < 0 || p.RewardRateBps < 0 {
		return errors.New("bonus and reward rate must be non-negative")
	}
	if p.StandardDelay < 0 || p.PatientDelay < 0 {
		return errors.New("withdrawal delays must be non-negative")
	}
	if p.PatientMultiplierBps <= 0 || p.StandardMultiplierBps <= 0 || p.RageQuitMultiplierBps <= 0 {
		return errors.New("strategy multipliers must be positive")
	}
	return nil
}

// Multiplier returns the reward multiplier for a strategy in bps.
func (p Params) Multiplier(s Strategy) int64 {
	switch s {
	case StrategyPatient:
		return p.PatientMultiplierBps
	case StrategyRageQuit:
		return p.RageQuitMultiplierBps
	default:
		return p.StandardMultiplierBps
	}
}

// Penalty returns the rage-quit penalty for amount (floored).
func (p Params) Penalty(amount int64) int64 {
	return mulDiv(amount, p.RageQuitPenaltyBps, BasisPoints)
}

// Bonus returns the patient exit bonus for amount (floored).
func (p Params) Bonus(amount int64) int64 {
	return mulDiv(amount, p.PatientBonusBps, BasisPoints)
}

// Accrue returns base rewards earned by amount over elapsed, before multiplier.
func (p Params) Accrue(amount int64, elapsed time.Duration) int64 {
	if amount <= 0 || elapsed <= 0 || p.RewardRateBps == 0 {
		return 0
	}
	num := new(big.Int).SetInt64(amount)
	num.Mul(num, big.NewInt(p.RewardRateBps))
	num.Mul(num, big.NewInt(int64(elapsed/time.Second)))
	den := new(big.Int).SetInt64(BasisPoints)
	den.Mul(den, big.NewInt(int64(Year/time.Second)))
	return clampInt64(num.Quo(num, den))
}

// PendingBase returns checkpointed plus newly accrued base rewards at now.
func (p Params) PendingBase(pos Position, now time.Time) int64 {
	return pos.AccruedRewards + p.Accrue(pos.Amount, now.Sub(pos.LastClaimAt))
}

// Claimable returns the reward payable for pos at now, multiplier applied.
func (p Params) Claimable(pos Position, now time.Time) int64 {
	return mulDiv(p.PendingBase(pos, now), p.Multiplier(pos.Strategy), BasisPoints)
}

func mulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	v := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return clampInt64(v.Quo(v, big.NewInt(c)))
}

func clampInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() < 0 {
		return -1 << 63
	}
	return 1<<63 - 1
}
