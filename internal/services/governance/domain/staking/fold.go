package staking

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Mutation applies a prepared event to custody state. It never fails.
type Mutation func(*State)

// Prepare decodes evt into a mutation. Decoding happens before the journal
// append so a malformed event aborts the command without side effects.
func Prepare(evt event.Event) (Mutation, error) {
	switch evt.Type {
	case EventTypeWalletCredited:
		var p WalletCreditedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.Wallets[p.Account] += p.Amount
		}, nil
	case EventTypeStakeDeposited:
		var p StakeDepositedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.Wallets[p.Account] -= p.Amount
			s.Positions[PositionKey{Account: p.Account, Purpose: p.Purpose}] = p.Position
			s.TotalStaked[p.Purpose] += p.Amount
		}, nil
	case EventTypeStakeUnstaked:
		var p StakeUnstakedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			key := PositionKey{Account: p.Account, Purpose: p.Purpose}
			setPosition(s, key, p.Position)
			s.TotalStaked[p.Purpose] -= p.Amount
			s.Wallets[p.Account] += p.Payout + p.Rewards
			s.RewardPool -= p.Rewards
			s.TreasuryPool += p.Penalty
			s.TotalPenalty += p.Penalty
			if p.Withdrawal != nil {
				s.Withdrawals[p.Withdrawal.ID] = *p.Withdrawal
				s.WithdrawalSeq++
				s.RewardPool -= p.Withdrawal.Bonus
			}
		}, nil
	case EventTypeStakeWithdrawn:
		var p StakeWithdrawnPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		at := evt.Timestamp
		return func(s *State) {
			w := s.Withdrawals[p.WithdrawalID]
			w.Withdrawn = true
			w.WithdrawnAt = at
			s.Withdrawals[p.WithdrawalID] = w
			s.Wallets[p.Account] += p.Amount + p.Bonus
		}, nil
	case EventTypeRewardsClaimed:
		var p RewardsClaimedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		at := evt.Timestamp
		return func(s *State) {
			key := PositionKey{Account: p.Account, Purpose: p.Purpose}
			pos := s.Positions[key]
			pos.AccruedRewards = 0
			pos.LastClaimAt = at
			s.Positions[key] = pos
			s.RewardPool -= p.Reward
			s.Wallets[p.Account] += p.Reward
		}, nil
	case EventTypeStakeSlashed:
		var p StakeSlashedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			setPosition(s, PositionKey{Account: p.Account, Purpose: p.Purpose}, p.Position)
			s.TotalStaked[p.Purpose] -= p.Slashed
			s.TreasuryPool += p.Slashed
			s.TotalSlashed += p.Slashed
		}, nil
	case EventTypeRewardPoolFunded:
		var p RewardPoolFundedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.Wallets[p.From] -= p.Amount
			s.RewardPool += p.Amount
		}, nil
	case EventTypeStakeLocked, EventTypeStakeReleased:
		var p StakeLockPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		amount := p.Amount
		if evt.Type == EventTypeStakeReleased {
			amount = -amount
		}
		return func(s *State) {
			key := PositionKey{Account: p.Account, Purpose: p.Purpose}
			if next := s.Locked[key] + amount; next > 0 {
				s.Locked[key] = next
			} else {
				delete(s.Locked, key)
			}
		}, nil
	case EventTypeTreasuryDeposited, EventTypeTreasuryFee:
		var p TreasuryMovedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.Wallets[p.Account] -= p.Amount
			s.OrgTreasuries[p.OrganizationID] += p.Amount
		}, nil
	case EventTypeTreasuryTransferred:
		var p TreasuryMovedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.OrgTreasuries[p.OrganizationID] -= p.Amount
			s.Wallets[p.Account] += p.Amount
		}, nil
	default:
		return nil, fmt.Errorf("staking: unsupported event type %s", evt.Type)
	}
}

func setPosition(s *State, key PositionKey, pos *Position) {
	if pos == nil || pos.Amount <= 0 {
		delete(s.Positions, key)
		return
	}
	s.Positions[key] = *pos
}

func decode(evt event.Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return nil
}
