package staking

// StakePayload captures the payload for stake.deposit commands.
type StakePayload struct {
	Purpose        Purpose  `json:"purpose"`
	Amount         int64    `json:"amount"`
	Strategy       Strategy `json:"strategy"`
	ChangeStrategy bool     `json:"change_strategy,omitempty"`
}

// UnstakePayload captures the payload for stake.unstake commands.
type UnstakePayload struct {
	Purpose Purpose `json:"purpose"`
	Amount  int64   `json:"amount"`
}

// WithdrawPayload captures the payload for stake.withdraw commands.
type WithdrawPayload struct {
	WithdrawalID string `json:"withdrawal_id"`
}

// ClaimPayload captures the payload for stake.claim_rewards commands.
type ClaimPayload struct {
	Purpose Purpose `json:"purpose"`
}

// SlashPayload captures the payload for stake.slash commands.
type SlashPayload struct {
	Account string  `json:"account"`
	Purpose Purpose `json:"purpose"`
	Amount  int64   `json:"amount"`
	Reason  string  `json:"reason,omitempty"`
}

// CreditPayload captures the payload for wallet.credit commands.
type CreditPayload struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// FundPayload captures the payload for reward_pool.fund commands.
type FundPayload struct {
	Amount int64 `json:"amount"`
}

// WalletCreditedPayload captures the payload for wallet.credited events.
type WalletCreditedPayload struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// StakeDepositedPayload captures the payload for stake.deposited events.
type StakeDepositedPayload struct {
	Account  string   `json:"account"`
	Purpose  Purpose  `json:"purpose"`
	Amount   int64    `json:"amount"`
	Opened   bool     `json:"opened"`
	Position Position `json:"position"`
}

// StakeUnstakedPayload captures the payload for stake.unstaked events.
type StakeUnstakedPayload struct {
	Account  string   `json:"account"`
	Purpose  Purpose  `json:"purpose"`
	Strategy Strategy `json:"strategy"`
	Amount   int64    `json:"amount"`
	// Position is the remaining position; nil when the position closed.
	Position   *Position   `json:"position,omitempty"`
	Payout     int64       `json:"payout"`
	Penalty    int64       `json:"penalty"`
	Rewards    int64       `json:"rewards"`
	Forfeited  int64       `json:"forfeited"`
	Withdrawal *Withdrawal `json:"withdrawal,omitempty"`
}

// StakeWithdrawnPayload captures the payload for stake.withdrawn events.
type StakeWithdrawnPayload struct {
	WithdrawalID string `json:"withdrawal_id"`
	Account      string `json:"account"`
	Amount       int64  `json:"amount"`
	Bonus        int64  `json:"bonus"`
}

// RewardsClaimedPayload captures the payload for stake.rewards_claimed events.
type RewardsClaimedPayload struct {
	Account string  `json:"account"`
	Purpose Purpose `json:"purpose"`
	Reward  int64   `json:"reward"`
}

// StakeSlashedPayload captures the payload for stake.slashed events.
type StakeSlashedPayload struct {
	Account   string    `json:"account"`
	Purpose   Purpose   `json:"purpose"`
	Requested int64     `json:"requested"`
	Slashed   int64     `json:"slashed"`
	Partial   bool      `json:"partial"`
	Reason    string    `json:"reason,omitempty"`
	Position  *Position `json:"position,omitempty"`
}

// RewardPoolFundedPayload captures the payload for reward_pool.funded events.
type RewardPoolFundedPayload struct {
	From   string `json:"from"`
	Amount int64  `json:"amount"`
}

// TreasuryMovedPayload captures the payload for treasury.deposited,
// treasury.fee_collected and treasury.transferred events. Account is the
// wallet debited (deposit, fee) or credited (transfer).
type TreasuryMovedPayload struct {
	OrganizationID string `json:"organization_id"`
	Account        string `json:"account"`
	Amount         int64  `json:"amount"`
}

// StakeLockPayload captures the payload for stake.locked and stake.released events.
type StakeLockPayload struct {
	OrganizationID string  `json:"organization_id"`
	Account        string  `json:"account"`
	Purpose        Purpose `json:"purpose"`
	Amount         int64   `json:"amount"`
}
