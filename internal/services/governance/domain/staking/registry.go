package staking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

const (
	CommandTypeStake        command.Type = "stake.deposit"
	CommandTypeUnstake      command.Type = "stake.unstake"
	CommandTypeWithdraw     command.Type = "stake.withdraw"
	CommandTypeClaimRewards command.Type = "stake.claim_rewards"
	CommandTypeSlash        command.Type = "stake.slash"
	CommandTypeCreditWallet command.Type = "wallet.credit"
	CommandTypeFundRewards  command.Type = "reward_pool.fund"

	EventTypeWalletCredited      event.Type = "wallet.credited"
	EventTypeStakeDeposited      event.Type = "stake.deposited"
	EventTypeStakeUnstaked       event.Type = "stake.unstaked"
	EventTypeStakeWithdrawn      event.Type = "stake.withdrawn"
	EventTypeRewardsClaimed      event.Type = "stake.rewards_claimed"
	EventTypeStakeSlashed        event.Type = "stake.slashed"
	EventTypeStakeLocked         event.Type = "stake.locked"
	EventTypeStakeReleased       event.Type = "stake.released"
	EventTypeRewardPoolFunded    event.Type = "reward_pool.funded"
	EventTypeTreasuryDeposited   event.Type = "treasury.deposited"
	EventTypeTreasuryFee         event.Type = "treasury.fee_collected"
	EventTypeTreasuryTransferred event.Type = "treasury.transferred"

	EntityTypeWallet     = "wallet"
	EntityTypePosition   = "stake_position"
	EntityTypeWithdrawal = "withdrawal"
	EntityTypePool       = "pool"
	EntityTypeTreasury   = "treasury"
)

// RegisterCommands registers staking commands with the shared registry.
func RegisterCommands(registry *command.Registry) error {
	if registry == nil {
		return errors.New("command registry is required")
	}
	defs := []command.Definition{
		{Type: CommandTypeStake, ValidatePayload: validateJSON[StakePayload]},
		{Type: CommandTypeUnstake, ValidatePayload: validateJSON[UnstakePayload]},
		{Type: CommandTypeWithdraw, ValidatePayload: validateWithdrawPayload},
		{Type: CommandTypeClaimRewards, ValidatePayload: validateJSON[ClaimPayload]},
		{Type: CommandTypeSlash, Requires: authz.CapabilitySlash, ValidatePayload: validateSlashPayload},
		{Type: CommandTypeCreditWallet, Requires: authz.CapabilityTreasury, ValidatePayload: validateCreditPayload},
		{Type: CommandTypeFundRewards, ValidatePayload: validateJSON[FundPayload]},
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers staking events with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	defs := []event.Definition{
		{Type: EventTypeWalletCredited, Scope: event.ScopeProtocol, EntityType: EntityTypeWallet, ValidatePayload: validateJSON[WalletCreditedPayload]},
		{Type: EventTypeStakeDeposited, Scope: event.ScopeProtocol, EntityType: EntityTypePosition, ValidatePayload: validateJSON[StakeDepositedPayload]},
		{Type: EventTypeStakeUnstaked, Scope: event.ScopeProtocol, EntityType: EntityTypePosition, ValidatePayload: validateJSON[StakeUnstakedPayload]},
		{Type: EventTypeStakeWithdrawn, Scope: event.ScopeProtocol, EntityType: EntityTypeWithdrawal, ValidatePayload: validateJSON[StakeWithdrawnPayload]},
		{Type: EventTypeRewardsClaimed, Scope: event.ScopeProtocol, EntityType: EntityTypePosition, ValidatePayload: validateJSON[RewardsClaimedPayload]},
		{Type: EventTypeStakeSlashed, Scope: event.ScopeProtocol, EntityType: EntityTypePosition, ValidatePayload: validateJSON[StakeSlashedPayload]},
		{Type: EventTypeStakeLocked, Scope: event.ScopeOrganization, EntityType: EntityTypePosition, ValidatePayload: validateJSON[StakeLockPayload]},
		{Type: EventTypeStakeReleased, Scope: event.ScopeOrganization, EntityType: EntityTypePosition, ValidatePayload: validateJSON[StakeLockPayload]},
		{Type: EventTypeRewardPoolFunded, Scope: event.ScopeProtocol, EntityType: EntityTypePool, ValidatePayload: validateJSON[RewardPoolFundedPayload]},
		{Type: EventTypeTreasuryDeposited, Scope: event.ScopeOrganization, EntityType: EntityTypeTreasury, ValidatePayload: validateJSON[TreasuryMovedPayload]},
		{Type: EventTypeTreasuryFee, Scope: event.ScopeOrganization, EntityType: EntityTypeTreasury, ValidatePayload: validateJSON[TreasuryMovedPayload]},
		{Type: EventTypeTreasuryTransferred, Scope: event.ScopeOrganization, EntityType: EntityTypeTreasury, ValidatePayload: validateJSON[TreasuryMovedPayload]},
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// EventTypes lists the event types folded by this package.
func EventTypes() []event.Type {
	return []event.Type{
		EventTypeWalletCredited, EventTypeStakeDeposited, EventTypeStakeUnstaked,
		EventTypeStakeWithdrawn, EventTypeRewardsClaimed, EventTypeStakeSlashed,
		EventTypeRewardPoolFunded, EventTypeTreasuryDeposited, EventTypeTreasuryFee,
		EventTypeTreasuryTransferred, EventTypeStakeLocked, EventTypeStakeReleased,
	}
}

func validateJSON[T any](raw json.RawMessage) error {
	var payload T
	return json.Unmarshal(raw, &payload)
}

func validateWithdrawPayload(raw json.RawMessage) error {
	var payload WithdrawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.WithdrawalID) == "" {
		return errors.New("withdrawal_id is required")
	}
	return nil
}

func validateSlashPayload(raw json.RawMessage) error {
	var payload SlashPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Account) == "" {
		return errors.New("account is required")
	}
	return nil
}

func validateCreditPayload(raw json.RawMessage) error {
	var payload CreditPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Account) == "" {
		return fmt.Errorf("account is required")
	}
	return nil
}
