package staking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
)

// Decide returns the decision for a staking command against current custody state.
func Decide(params Params, state *State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	at := now().UTC()
	switch cmd.Type {
	case CommandTypeStake:
		return decideStake(params, state, cmd, at)
	case CommandTypeUnstake:
		return decideUnstake(params, state, cmd, at)
	case CommandTypeWithdraw:
		return decideWithdraw(state, cmd, at)
	case CommandTypeClaimRewards:
		return decideClaim(params, state, cmd, at)
	case CommandTypeSlash:
		return decideSlash(params, state, cmd, at)
	case CommandTypeCreditWallet:
		return decideCredit(cmd, at)
	case CommandTypeFundRewards:
		return decideFundRewards(state, cmd, at)
	default:
		return command.Rejectf(command.RejectionCodeCommandTypeUnsupported, fmt.Sprintf("command type %s is not supported by staking", cmd.Type))
	}
}

func decideStake(params Params, state *State, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[StakePayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeStakeAmountInvalid, "stake amount must be positive")
	}
	if !payload.Purpose.Valid() {
		return rejectWith(apperrors.CodeStakePurposeInvalid, "stake purpose is invalid", "Purpose", string(payload.Purpose))
	}
	if payload.Strategy == "" {
		payload.Strategy = StrategyStandard
	}
	if !payload.Strategy.Valid() {
		return rejectWith(apperrors.CodeStakeStrategyInvalid, "unstake strategy is invalid", "Strategy", string(payload.Strategy))
	}
	account := cmd.ActorID
	if state.Balance(account) < payload.Amount {
		return command.Rejectf(apperrors.CodeStakeInsufficientBalance, "wallet balance is below stake amount")
	}

	pos, exists := state.Position(account, payload.Purpose)
	if exists {
		pos = checkpoint(params, pos, now)
		pos.Amount += payload.Amount
		if payload.ChangeStrategy {
			pos.Strategy = payload.Strategy
		}
	} else {
		pos = Position{
			Account:     account,
			Purpose:     payload.Purpose,
			Amount:      payload.Amount,
			Strategy:    payload.Strategy,
			StakedAt:    now,
			LastClaimAt: now,
		}
	}

	em := command.NewEmitter(cmd, now).ForOrganization("")
	em.Emit(EventTypeStakeDeposited, EntityTypePosition, positionEntityID(account, payload.Purpose), StakeDepositedPayload{
		Account:  account,
		Purpose:  payload.Purpose,
		Amount:   payload.Amount,
		Opened:   !exists,
		Position: pos,
	})
	return em.Decision()
}

func decideUnstake(params Params, state *State, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[UnstakePayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeStakeAmountInvalid, "unstake amount must be positive")
	}
	account := cmd.ActorID
	pos, ok := state.Position(account, payload.Purpose)
	if !ok {
		return command.Rejectf(apperrors.CodeStakePositionNotFound, "no open position for purpose")
	}
	if payload.Amount > pos.Amount {
		return command.Rejectf(apperrors.CodeUnstakeExceedsPosition, "unstake amount exceeds position")
	}
	if locked := state.LockedStake(account, payload.Purpose); pos.Amount-payload.Amount < locked {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeStakeLocked,
			Message:  "unstake would release stake reserved by an organization",
			Metadata: map[string]string{"Locked": strconv.FormatInt(locked, 10)},
		})
	}

	out := StakeUnstakedPayload{
		Account:  account,
		Purpose:  payload.Purpose,
		Strategy: pos.Strategy,
		Amount:   payload.Amount,
	}
	remaining := checkpoint(params, pos, now)
	remaining.Amount -= payload.Amount

	switch pos.Strategy {
	case StrategyRageQuit:
		out.Penalty = params.Penalty(payload.Amount)
		out.Payout = payload.Amount - out.Penalty
		out.Forfeited = remaining.AccruedRewards
		remaining.AccruedRewards = 0
	case StrategyPatient:
		bonus := min(params.Bonus(payload.Amount), state.RewardPool)
		out.Withdrawal = newWithdrawal(state, pos, payload.Amount, bonus, now, params.PatientDelay)
		settleOnExit(params, state, &out, &remaining, bonus, now)
	default:
		out.Withdrawal = newWithdrawal(state, pos, payload.Amount, 0, now, params.StandardDelay)
		settleOnExit(params, state, &out, &remaining, 0, now)
	}
	if remaining.Amount > 0 {
		out.Position = &remaining
	}

	em := command.NewEmitter(cmd, now).ForOrganization("")
	em.Emit(EventTypeStakeUnstaked, EntityTypePosition, positionEntityID(account, payload.Purpose), out)
	return em.Decision()
}

// settleOnExit pays checkpointed rewards when the position closes. Whatever the
// reward pool cannot cover after the bonus reservation is forfeited.
func settleOnExit(params Params, state *State, out *StakeUnstakedPayload, remaining *Position, bonus int64, now time.Time) {
	if remaining.Amount > 0 {
		return
	}
	claim := params.Claimable(*remaining, now)
	paid := max(min(claim, state.RewardPool-bonus), 0)
	out.Rewards = paid
	out.Forfeited = claim - paid
	remaining.AccruedRewards = 0
}

func newWithdrawal(state *State, pos Position, amount, bonus int64, now time.Time, delay time.Duration) *Withdrawal {
	return &Withdrawal{
		ID:          WithdrawalID(state.WithdrawalSeq + 1),
		Account:     pos.Account,
		Purpose:     pos.Purpose,
		Strategy:    pos.Strategy,
		Amount:      amount,
		Bonus:       bonus,
		RequestedAt: now,
		AvailableAt: now.Add(delay),
	}
}

// WithdrawalID formats the deterministic id of the nth withdrawal.
func WithdrawalID(seq uint64) string {
	return "wd-" + strconv.FormatUint(seq, 10)
}

func decideWithdraw(state *State, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[WithdrawPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	id := strings.TrimSpace(payload.WithdrawalID)
	w, ok := state.Withdrawal(id)
	if !ok {
		return rejectWith(apperrors.CodeWithdrawalNotFound, "withdrawal not found", "WithdrawalID", id)
	}
	if w.Account != cmd.ActorID {
		return command.Rejectf(apperrors.CodeWithdrawalNotOwner, "withdrawal belongs to another account")
	}
	if w.Withdrawn {
		return command.Rejectf(apperrors.CodeWithdrawalCompleted, "withdrawal already completed")
	}
	if now.Before(w.AvailableAt) {
		return rejectWith(apperrors.CodeWithdrawalLocked, "withdrawal still locked", "AvailableAt", w.AvailableAt.Format(time.RFC3339))
	}
	em := command.NewEmitter(cmd, now).ForOrganization("")
	em.Emit(EventTypeStakeWithdrawn, EntityTypeWithdrawal, w.ID, StakeWithdrawnPayload{
		WithdrawalID: w.ID,
		Account:      w.Account,
		Amount:       w.Amount,
		Bonus:        w.Bonus,
	})
	return em.Decision()
}

func decideClaim(params Params, state *State, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[ClaimPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	pos, ok := state.Position(cmd.ActorID, payload.Purpose)
	if !ok {
		return command.Rejectf(apperrors.CodeStakePositionNotFound, "no open position for purpose")
	}
	reward := params.Claimable(pos, now)
	if reward <= 0 {
		return command.Rejectf(apperrors.CodeInsufficientRewards, "no rewards accrued")
	}
	if state.RewardPool < reward {
		return command.Rejectf(apperrors.CodeRewardPoolInsufficient, "reward pool cannot cover claim")
	}
	em := command.NewEmitter(cmd, now).ForOrganization("")
	em.Emit(EventTypeRewardsClaimed, EntityTypePosition, positionEntityID(pos.Account, pos.Purpose), RewardsClaimedPayload{
		Account: pos.Account,
		Purpose: pos.Purpose,
		Reward:  reward,
	})
	return em.Decision()
}

func decideSlash(params Params, state *State, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[SlashPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeSlashAmountInvalid, "slash amount must be positive")
	}
	account := strings.TrimSpace(payload.Account)
	pos, ok := state.Position(account, payload.Purpose)
	if !ok {
		return command.Rejectf(apperrors.CodeStakePositionNotFound, "no open position for purpose")
	}
	slashed := min(payload.Amount, pos.Amount)
	remaining := checkpoint(params, pos, now)
	remaining.Amount -= slashed
	out := StakeSlashedPayload{
		Account:   account,
		Purpose:   payload.Purpose,
		Requested: payload.Amount,
		Slashed:   slashed,
		Partial:   payload.Amount > pos.Amount,
		Reason:    strings.TrimSpace(payload.Reason),
	}
	if remaining.Amount > 0 {
		out.Position = &remaining
	}
	em := command.NewEmitter(cmd, now).ForOrganization("")
	em.Emit(EventTypeStakeSlashed, EntityTypePosition, positionEntityID(account, payload.Purpose), out)
	return em.Decision()
}

func decideCredit(cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[CreditPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeStakeAmountInvalid, "credit amount must be positive")
	}
	account := strings.TrimSpace(payload.Account)
	em := command.NewEmitter(cmd, now).ForOrganization("")
	em.Emit(EventTypeWalletCredited, EntityTypeWallet, account, WalletCreditedPayload{Account: account, Amount: payload.Amount})
	return em.Decision()
}

func decideFundRewards(state *State, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[FundPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeStakeAmountInvalid, "funding amount must be positive")
	}
	if state.Balance(cmd.ActorID) < payload.Amount {
		return command.Rejectf(apperrors.CodeStakeInsufficientBalance, "wallet balance is below funding amount")
	}
	em := command.NewEmitter(cmd, now).ForOrganization("")
	em.Emit(EventTypeRewardPoolFunded, EntityTypePool, "reward_pool", RewardPoolFundedPayload{From: cmd.ActorID, Amount: payload.Amount})
	return em.Decision()
}

// checkpoint moves newly accrued base rewards into AccruedRewards at now.
func checkpoint(params Params, pos Position, now time.Time) Position {
	pos.AccruedRewards = params.PendingBase(pos, now)
	pos.LastClaimAt = now
	return pos
}

func positionEntityID(account string, purpose Purpose) string {
	return account + "/" + string(purpose)
}

func rejectWith(code apperrors.Code, message, key, value string) command.Decision {
	return command.Reject(command.Rejection{Code: code, Message: message, Metadata: map[string]string{key: value}})
}
