// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

// Kind classifies a code into the rejection taxonomy callers branch on.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindAlreadyExists   Kind = "already_exists"
	KindUnauthorized    Kind = "unauthorized"
	KindInvalidState    Kind = "invalid_state"
	KindInvalidAmount   Kind = "invalid_amount"
	KindLimitExceeded   Kind = "limit_exceeded"
	KindOutOfRange      Kind = "out_of_range"
	KindInvalidArgument Kind = "invalid_argument"
	KindInternal        Kind = "internal"
)

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Generic errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"

	// Command pipeline errors
	CodePayloadDecodeFailed    Code = "PAYLOAD_DECODE_FAILED"
	CodeCommandTypeUnsupported Code = "COMMAND_TYPE_UNSUPPORTED"

	// Capability errors
	CodeCapabilityRequired     Code = "CAPABILITY_REQUIRED"
	CodeCapabilityTokenInvalid Code = "CAPABILITY_TOKEN_INVALID"
	CodeCapabilityTokenExpired Code = "CAPABILITY_TOKEN_EXPIRED"

	// Staking errors
	CodeStakeAmountInvalid       Code = "STAKE_AMOUNT_INVALID"
	CodeStakeInsufficientBalance Code = "STAKE_INSUFFICIENT_BALANCE"
	CodeStakePurposeInvalid      Code = "STAKE_PURPOSE_INVALID"
	CodeStakeStrategyInvalid     Code = "STAKE_STRATEGY_INVALID"
	CodeStakePositionNotFound    Code = "STAKE_POSITION_NOT_FOUND"
	CodeUnstakeExceedsPosition   Code = "UNSTAKE_EXCEEDS_POSITION"
	CodeStakeLocked              Code = "STAKE_LOCKED"
	CodeWithdrawalNotFound       Code = "WITHDRAWAL_NOT_FOUND"
	CodeWithdrawalNotOwner       Code = "WITHDRAWAL_NOT_OWNER"
	CodeWithdrawalLocked         Code = "WITHDRAWAL_LOCKED"
	CodeWithdrawalCompleted      Code = "WITHDRAWAL_COMPLETED"
	CodeInsufficientRewards      Code = "INSUFFICIENT_REWARDS"
	CodeRewardPoolInsufficient   Code = "REWARD_POOL_INSUFFICIENT"
	CodeSlashAmountInvalid       Code = "SLASH_AMOUNT_INVALID"
	CodeTreasuryInsufficient     Code = "TREASURY_INSUFFICIENT"

	// Organization errors
	CodeOrganizationNotFound          Code = "ORGANIZATION_NOT_FOUND"
	CodeOrganizationAlreadyExists     Code = "ORGANIZATION_ALREADY_EXISTS"
	CodeOrganizationNotActive         Code = "ORGANIZATION_NOT_ACTIVE"
	CodeOrganizationDissolved         Code = "ORGANIZATION_DISSOLVED"
	CodeOrganizationInvalidTransition Code = "ORGANIZATION_INVALID_TRANSITION"
	CodeOrganizationCreationStake     Code = "ORGANIZATION_CREATION_STAKE_INSUFFICIENT"
	CodeOrganizationSettingsInvalid   Code = "ORGANIZATION_SETTINGS_INVALID"
	CodeOrganizationNotManager        Code = "ORGANIZATION_NOT_MANAGER"

	// Membership errors
	CodeMemberNotFound          Code = "MEMBER_NOT_FOUND"
	CodeMemberAlreadyExists     Code = "MEMBER_ALREADY_EXISTS"
	CodeMemberLimitReached      Code = "MEMBER_LIMIT_REACHED"
	CodeMemberAccessDenied      Code = "MEMBER_ACCESS_DENIED"
	CodeMemberTierInvalid       Code = "MEMBER_TIER_INVALID"
	CodeMemberStakeInsufficient Code = "MEMBER_STAKE_INSUFFICIENT"
	CodeMemberStakeExceedsHeld  Code = "MEMBER_STAKE_EXCEEDS_HELD"
	CodeMemberFeeUnpaid         Code = "MEMBER_FEE_UNPAID"
	CodeMemberNotActive         Code = "MEMBER_NOT_ACTIVE"
	CodeMemberInvalidTransition Code = "MEMBER_INVALID_TRANSITION"
	CodeMemberTierDelegations   Code = "MEMBER_TIER_BELOW_DELEGATIONS"

	// Delegation errors
	CodeDelegationSelf        Code = "DELEGATION_SELF"
	CodeDelegationAmount      Code = "DELEGATION_AMOUNT_INVALID"
	CodeDelegationExceedsBase Code = "DELEGATION_EXCEEDS_CAPACITY"
	CodeDelegationNotFound    Code = "DELEGATION_NOT_FOUND"
	CodeDelegationExceedsHeld Code = "UNDELEGATION_EXCEEDS_DELEGATED"

	// Reputation errors
	CodeReputationOutOfRange   Code = "REPUTATION_OUT_OF_RANGE"
	CodeReputationDeltaInvalid Code = "REPUTATION_DELTA_INVALID"

	// Proposal errors
	CodeProposalNotFound          Code = "PROPOSAL_NOT_FOUND"
	CodeProposalInvalid           Code = "PROPOSAL_INVALID"
	CodeProposalNoVotingPower     Code = "PROPOSAL_NO_VOTING_POWER"
	CodeProposalNotActive         Code = "PROPOSAL_NOT_ACTIVE"
	CodeProposalVotingClosed      Code = "PROPOSAL_VOTING_CLOSED"
	CodeProposalVotingOpen        Code = "PROPOSAL_VOTING_OPEN"
	CodeProposalInvalidTransition Code = "PROPOSAL_INVALID_TRANSITION"
	CodeProposalTimelocked        Code = "PROPOSAL_TIMELOCKED"
	CodeProposalExecutionReverted Code = "PROPOSAL_EXECUTION_REVERTED"
	CodeProposalCancelForbidden   Code = "PROPOSAL_CANCEL_FORBIDDEN"
	CodeVoteAlreadyCast           Code = "VOTE_ALREADY_CAST"
	CodeVoteNotFound              Code = "VOTE_NOT_FOUND"
	CodeVoteChoiceInvalid         Code = "VOTE_CHOICE_INVALID"
	CodeVoteNoWeight              Code = "VOTE_NO_WEIGHT"
)

var codeKinds = map[Code]Kind{
	CodeNotFound:        KindNotFound,
	CodeInvalidArgument: KindInvalidArgument,
	CodeUnauthorized:    KindUnauthorized,

	CodePayloadDecodeFailed:    KindInvalidArgument,
	CodeCommandTypeUnsupported: KindInvalidArgument,

	CodeCapabilityRequired:     KindUnauthorized,
	CodeCapabilityTokenInvalid: KindUnauthorized,
	CodeCapabilityTokenExpired: KindUnauthorized,

	CodeStakeAmountInvalid:       KindInvalidAmount,
	CodeStakeInsufficientBalance: KindInvalidAmount,
	CodeStakePurposeInvalid:      KindInvalidArgument,
	CodeStakeStrategyInvalid:     KindInvalidArgument,
	CodeStakePositionNotFound:    KindNotFound,
	CodeUnstakeExceedsPosition:   KindInvalidAmount,
	CodeStakeLocked:              KindInvalidState,
	CodeWithdrawalNotFound:       KindNotFound,
	CodeWithdrawalNotOwner:       KindUnauthorized,
	CodeWithdrawalLocked:         KindInvalidState,
	CodeWithdrawalCompleted:      KindInvalidState,
	CodeInsufficientRewards:      KindInvalidAmount,
	CodeRewardPoolInsufficient:   KindInvalidAmount,
	CodeSlashAmountInvalid:       KindInvalidAmount,
	CodeTreasuryInsufficient:     KindInvalidAmount,

	CodeOrganizationNotFound:          KindNotFound,
	CodeOrganizationAlreadyExists:     KindAlreadyExists,
	CodeOrganizationNotActive:         KindInvalidState,
	CodeOrganizationDissolved:         KindInvalidState,
	CodeOrganizationInvalidTransition: KindInvalidState,
	CodeOrganizationCreationStake:     KindInvalidAmount,
	CodeOrganizationSettingsInvalid:   KindInvalidArgument,
	CodeOrganizationNotManager:        KindUnauthorized,

	CodeMemberNotFound:          KindNotFound,
	CodeMemberAlreadyExists:     KindAlreadyExists,
	CodeMemberLimitReached:      KindLimitExceeded,
	CodeMemberAccessDenied:      KindUnauthorized,
	CodeMemberTierInvalid:       KindInvalidArgument,
	CodeMemberStakeInsufficient: KindInvalidAmount,
	CodeMemberStakeExceedsHeld:  KindInvalidAmount,
	CodeMemberFeeUnpaid:         KindInvalidAmount,
	CodeMemberNotActive:         KindInvalidState,
	CodeMemberInvalidTransition: KindInvalidState,
	CodeMemberTierDelegations:   KindLimitExceeded,

	CodeDelegationSelf:        KindInvalidArgument,
	CodeDelegationAmount:      KindInvalidAmount,
	CodeDelegationExceedsBase: KindLimitExceeded,
	CodeDelegationNotFound:    KindNotFound,
	CodeDelegationExceedsHeld: KindInvalidAmount,

	CodeReputationOutOfRange:   KindOutOfRange,
	CodeReputationDeltaInvalid: KindInvalidAmount,

	CodeProposalNotFound:          KindNotFound,
	CodeProposalInvalid:           KindInvalidArgument,
	CodeProposalNoVotingPower:     KindUnauthorized,
	CodeProposalNotActive:         KindInvalidState,
	CodeProposalVotingClosed:      KindInvalidState,
	CodeProposalVotingOpen:        KindInvalidState,
	CodeProposalInvalidTransition: KindInvalidState,
	CodeProposalTimelocked:        KindInvalidState,
	CodeProposalExecutionReverted: KindInvalidState,
	CodeProposalCancelForbidden:   KindInvalidState,
	CodeVoteAlreadyCast:           KindAlreadyExists,
	CodeVoteNotFound:              KindNotFound,
	CodeVoteChoiceInvalid:         KindInvalidArgument,
	CodeVoteNoWeight:              KindUnauthorized,
}

// Kind returns the taxonomy bucket for the code. Unregistered codes are internal.
func (c Code) Kind() Kind {
	if kind, ok := codeKinds[c]; ok {
		return kind
	}
	return KindInternal
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c.Kind() {
	case KindInvalidArgument, KindInvalidAmount:
		return codes.InvalidArgument
	case KindInvalidState:
		return codes.FailedPrecondition
	case KindNotFound:
		return codes.NotFound
	case KindAlreadyExists:
		return codes.AlreadyExists
	case KindUnauthorized:
		return codes.PermissionDenied
	case KindLimitExceeded:
		return codes.ResourceExhausted
	case KindOutOfRange:
		return codes.OutOfRange
	default:
		return codes.Internal
	}
}
