package staking

import (
	"sort"
	"time"
)

// Purpose scopes a stake position.
type Purpose string

const (
	PurposeGovernance      Purpose = "governance"
	PurposeDAOCreation     Purpose = "dao_creation"
	PurposeTreasuryBond    Purpose = "treasury_bond"
	PurposeLiquidityMining Purpose = "liquidity_mining"
)

// Valid reports whether the purpose is supported.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeGovernance, PurposeDAOCreation, PurposeTreasuryBond, PurposeLiquidityMining:
		return true
	}
	return false
}

// Strategy governs exit behavior for a position.
type Strategy string

const (
	StrategyRageQuit Strategy = "rage_quit"
	StrategyStandard Strategy = "standard"
	StrategyPatient  Strategy = "patient"
)

// Valid reports whether the strategy is supported.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRageQuit, StrategyStandard, StrategyPatient:
		return true
	}
	return false
}

// PositionKey identifies the single open position of an account for a purpose.
type PositionKey struct {
	Account string
	Purpose Purpose
}

// Position is an open stake.
type Position struct {
	Account     string    `json:"account"`
	Purpose     Purpose   `json:"purpose"`
	Amount      int64     `json:"amount"`
	Strategy    Strategy  `json:"strategy"`
	StakedAt    time.Time `json:"staked_at"`
	LastClaimAt time.Time `json:"last_claim_at"`
	// AccruedRewards holds base rewards checkpointed before the amount changed.
	AccruedRewards int64 `json:"accrued_rewards"`
}

// Withdrawal is a delayed exit created by a standard or patient unstake.
type Withdrawal struct {
	ID          string    `json:"id"`
	Account     string    `json:"account"`
	Purpose     Purpose   `json:"purpose"`
	Strategy    Strategy  `json:"strategy"`
	Amount      int64     `json:"amount"`
	Bonus       int64     `json:"bonus"`
	RequestedAt time.Time `json:"requested_at"`
	AvailableAt time.Time `json:"available_at"`
	Withdrawn   bool      `json:"withdrawn"`
	WithdrawnAt time.Time `json:"withdrawn_at,omitzero"`
}

// State holds all custody balances.
type State struct {
	Wallets       map[string]int64
	Positions     map[PositionKey]Position
	Withdrawals   map[string]Withdrawal
	WithdrawalSeq uint64
	RewardPool    int64
	TreasuryPool  int64
	TotalStaked   map[Purpose]int64
	OrgTreasuries map[string]int64
	TotalSlashed  int64
	TotalPenalty  int64
	// Locked holds stake reserved by organizations; unstaking cannot go below it.
	Locked map[PositionKey]int64
}

// NewState returns an empty custody state.
func NewState() *State {
	return &State{
		Wallets:       map[string]int64{},
		Positions:     map[PositionKey]Position{},
		Withdrawals:   map[string]Withdrawal{},
		TotalStaked:   map[Purpose]int64{},
		OrgTreasuries: map[string]int64{},
		Locked:        map[PositionKey]int64{},
	}
}

// Balance returns the liquid balance of an account.
func (s *State) Balance(account string) int64 {
	return s.Wallets[account]
}

// Position returns the open position for (account, purpose).
func (s *State) Position(account string, purpose Purpose) (Position, bool) {
	p, ok := s.Positions[PositionKey{Account: account, Purpose: purpose}]
	return p, ok
}

// Staked returns the staked amount for (account, purpose), zero when no position is open.
func (s *State) Staked(account string, purpose Purpose) int64 {
	p, _ := s.Position(account, purpose)
	return p.Amount
}

// LockedStake returns the stake reserved for (account, purpose).
func (s *State) LockedStake(account string, purpose Purpose) int64 {
	return s.Locked[PositionKey{Account: account, Purpose: purpose}]
}

// Unlocked returns the staked amount for (account, purpose) not yet reserved.
func (s *State) Unlocked(account string, purpose Purpose) int64 {
	return max(s.Staked(account, purpose)-s.LockedStake(account, purpose), 0)
}

// Treasury returns the treasury balance of an organization.
func (s *State) Treasury(orgID string) int64 {
	return s.OrgTreasuries[orgID]
}

// Withdrawal returns a pending or completed withdrawal.
func (s *State) Withdrawal(id string) (Withdrawal, bool) {
	w, ok := s.Withdrawals[id]
	return w, ok
}

// PendingWithdrawals lists the account's withdrawals not yet paid out, oldest first.
func (s *State) PendingWithdrawals(account string) []Withdrawal {
	var out []Withdrawal
	for _, w := range s.Withdrawals {
		if w.Account == account && !w.Withdrawn {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Supply returns every token held anywhere in custody. It changes only by credits.
func (s *State) Supply() int64 {
	total := s.RewardPool + s.TreasuryPool
	for _, v := range s.Wallets {
		total += v
	}
	for _, p := range s.Positions {
		total += p.Amount
	}
	for _, w := range s.Withdrawals {
		if !w.Withdrawn {
			total += w.Amount + w.Bonus
		}
	}
	for _, v := range s.OrgTreasuries {
		total += v
	}
	return total
}
