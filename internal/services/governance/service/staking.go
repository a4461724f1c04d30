package service

import (
	"context"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// StakeInput describes a deposit into a stake position.
type StakeInput struct {
	Purpose  staking.Purpose
	Amount   int64
	Strategy staking.Strategy
	// ChangeStrategy allows a top-up to replace the strategy of an open position.
	ChangeStrategy bool
}

// Stake moves tokens from the caller's wallet into a position and returns it.
func (s *Service) Stake(ctx context.Context, in StakeInput) (staking.Position, error) {
	events, err := s.execute(ctx, envelope{
		Type: staking.CommandTypeStake,
		Payload: staking.StakePayload{
			Purpose:        in.Purpose,
			Amount:         in.Amount,
			Strategy:       in.Strategy,
			ChangeStrategy: in.ChangeStrategy,
		},
	})
	if err != nil {
		return staking.Position{}, err
	}
	deposited, err := mustPayloadOf[staking.StakeDepositedPayload](events, staking.EventTypeStakeDeposited)
	if err != nil {
		return staking.Position{}, err
	}
	return deposited.Position, nil
}

// UnstakeResult reports the exit of a stake.
type UnstakeResult struct {
	// Payout is paid into the wallet immediately (rage quit only).
	Payout    int64
	Penalty   int64
	Forfeited int64
	// Withdrawal is the delayed exit for standard and patient strategies.
	Withdrawal *staking.Withdrawal
	// Remaining is the position left open, nil when it closed.
	Remaining *staking.Position
}

// Unstake exits amount from the caller's position for purpose.
func (s *Service) Unstake(ctx context.Context, purpose staking.Purpose, amount int64) (UnstakeResult, error) {
	events, err := s.execute(ctx, envelope{
		Type:    staking.CommandTypeUnstake,
		Payload: staking.UnstakePayload{Purpose: purpose, Amount: amount},
	})
	if err != nil {
		return UnstakeResult{}, err
	}
	unstaked, err := mustPayloadOf[staking.StakeUnstakedPayload](events, staking.EventTypeStakeUnstaked)
	if err != nil {
		return UnstakeResult{}, err
	}
	return UnstakeResult{
		Payout:     unstaked.Payout,
		Penalty:    unstaked.Penalty,
		Forfeited:  unstaked.Forfeited,
		Withdrawal: unstaked.Withdrawal,
		Remaining:  unstaked.Position,
	}, nil
}

// WithdrawResult reports a completed withdrawal.
type WithdrawResult struct {
	Amount int64
	Bonus  int64
}

// Withdraw completes a matured withdrawal owned by the caller.
func (s *Service) Withdraw(ctx context.Context, withdrawalID string) (WithdrawResult, error) {
	events, err := s.execute(ctx, envelope{
		Type:       staking.CommandTypeWithdraw,
		EntityType: staking.EntityTypeWithdrawal,
		EntityID:   withdrawalID,
		Payload:    staking.WithdrawPayload{WithdrawalID: withdrawalID},
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	withdrawn, err := mustPayloadOf[staking.StakeWithdrawnPayload](events, staking.EventTypeStakeWithdrawn)
	if err != nil {
		return WithdrawResult{}, err
	}
	return WithdrawResult{Amount: withdrawn.Amount, Bonus: withdrawn.Bonus}, nil
}

// ClaimRewards pays the caller's accrued rewards for purpose and returns the amount.
func (s *Service) ClaimRewards(ctx context.Context, purpose staking.Purpose) (int64, error) {
	events, err := s.execute(ctx, envelope{
		Type:    staking.CommandTypeClaimRewards,
		Payload: staking.ClaimPayload{Purpose: purpose},
	})
	if err != nil {
		return 0, err
	}
	claimed, err := mustPayloadOf[staking.RewardsClaimedPayload](events, staking.EventTypeRewardsClaimed)
	if err != nil {
		return 0, err
	}
	return claimed.Reward, nil
}

// SlashInput describes a penalty against a position.
type SlashInput struct {
	Account string
	Purpose staking.Purpose
	Amount  int64
	Reason  string
}

// SlashResult reports the amount actually slashed. Partial is set when the
// request exceeded the position and was clamped.
type SlashResult struct {
	Requested int64
	Slashed   int64
	Partial   bool
}

// Slash removes stake from a position. Requires the slash capability.
func (s *Service) Slash(ctx context.Context, in SlashInput) (SlashResult, error) {
	events, err := s.execute(ctx, envelope{
		Type: staking.CommandTypeSlash,
		Payload: staking.SlashPayload{
			Account: in.Account,
			Purpose: in.Purpose,
			Amount:  in.Amount,
			Reason:  in.Reason,
		},
	})
	if err != nil {
		return SlashResult{}, err
	}
	slashed, err := mustPayloadOf[staking.StakeSlashedPayload](events, staking.EventTypeStakeSlashed)
	if err != nil {
		return SlashResult{}, err
	}
	return SlashResult{Requested: slashed.Requested, Slashed: slashed.Slashed, Partial: slashed.Partial}, nil
}

// CreditWallet mints tokens into an account. Requires the treasury capability.
func (s *Service) CreditWallet(ctx context.Context, account string, amount int64) error {
	_, err := s.execute(ctx, envelope{
		Type:       staking.CommandTypeCreditWallet,
		EntityType: staking.EntityTypeWallet,
		EntityID:   account,
		Payload:    staking.CreditPayload{Account: account, Amount: amount},
	})
	return err
}

// FundRewardPool moves tokens from the caller's wallet into the reward pool.
func (s *Service) FundRewardPool(ctx context.Context, amount int64) error {
	_, err := s.execute(ctx, envelope{
		Type:    staking.CommandTypeFundRewards,
		Payload: staking.FundPayload{Amount: amount},
	})
	return err
}
