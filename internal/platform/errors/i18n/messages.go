package i18n

// Keys must match the codes defined in internal/platform/errors/codes.go.
var enUSMessages = map[Code]string{
	"NOT_FOUND":        "The requested resource was not found.",
	"INVALID_ARGUMENT": "The request is invalid.",
	"UNAUTHORIZED":     "You are not allowed to perform this operation.",

	"CAPABILITY_REQUIRED":      "This operation requires the {{.Capability}} capability.",
	"CAPABILITY_TOKEN_INVALID": "The capability token is invalid.",
	"CAPABILITY_TOKEN_EXPIRED": "The capability token has expired.",

	"STAKE_AMOUNT_INVALID":       "Stake amount must be greater than zero.",
	"STAKE_INSUFFICIENT_BALANCE": "Wallet balance is insufficient for this amount.",
	"STAKE_PURPOSE_INVALID":      "Stake purpose {{.Purpose}} is not supported.",
	"STAKE_STRATEGY_INVALID":     "Unstaking strategy {{.Strategy}} is not supported.",
	"STAKE_POSITION_NOT_FOUND":   "No open stake position for this purpose.",
	"UNSTAKE_EXCEEDS_POSITION":   "Cannot unstake more than the staked amount.",
	"STAKE_LOCKED":               "{{.Locked}} of this stake is locked by an organization.",
	"WITHDRAWAL_NOT_FOUND":       "Withdrawal {{.WithdrawalID}} was not found.",
	"WITHDRAWAL_NOT_OWNER":       "Only the owner can complete this withdrawal.",
	"WITHDRAWAL_LOCKED":          "Withdrawal is locked until {{.AvailableAt}}.",
	"WITHDRAWAL_COMPLETED":       "Withdrawal was already completed.",
	"INSUFFICIENT_REWARDS":       "No rewards have accrued yet.",
	"REWARD_POOL_INSUFFICIENT":   "The reward pool cannot cover this claim.",
	"SLASH_AMOUNT_INVALID":       "Slash amount must be greater than zero.",
	"TREASURY_INSUFFICIENT":      "The treasury balance is insufficient.",

	"ORGANIZATION_NOT_FOUND":                   "Organization {{.OrganizationID}} was not found.",
	"ORGANIZATION_ALREADY_EXISTS":              "Organization {{.OrganizationID}} already exists.",
	"ORGANIZATION_NOT_ACTIVE":                  "The organization is not active.",
	"ORGANIZATION_DISSOLVED":                   "The organization has been dissolved.",
	"ORGANIZATION_INVALID_TRANSITION":          "The organization cannot move from {{.From}} to {{.To}}.",
	"ORGANIZATION_CREATION_STAKE_INSUFFICIENT": "Creating an organization requires a creation stake of at least {{.Required}}.",
	"ORGANIZATION_SETTINGS_INVALID":            "Organization settings are invalid: {{.Reason}}.",
	"ORGANIZATION_NOT_MANAGER":                 "Only organization managers can perform this operation.",

	"MEMBER_NOT_FOUND":              "Member was not found.",
	"MEMBER_ALREADY_EXISTS":         "This account is already a member.",
	"MEMBER_LIMIT_REACHED":          "The organization has reached its member limit.",
	"MEMBER_ACCESS_DENIED":          "The organization access model does not allow this join.",
	"MEMBER_TIER_INVALID":           "Tier {{.Tier}} is not supported.",
	"MEMBER_STAKE_INSUFFICIENT":     "The {{.Tier}} tier requires a governance stake of at least {{.Required}}.",
	"MEMBER_STAKE_EXCEEDS_HELD":     "The declared stake exceeds the governance stake held.",
	"MEMBER_FEE_UNPAID":             "Wallet balance cannot cover the membership fee.",
	"MEMBER_NOT_ACTIVE":             "The member is not active.",
	"MEMBER_INVALID_TRANSITION":     "The member cannot move from {{.From}} to {{.To}}.",
	"MEMBER_TIER_BELOW_DELEGATIONS": "The new tier would leave outstanding delegations above base power.",

	"DELEGATION_SELF":                "Members cannot delegate to themselves.",
	"DELEGATION_AMOUNT_INVALID":      "Delegation amount must be greater than zero.",
	"DELEGATION_EXCEEDS_CAPACITY":    "Delegation exceeds the undelegated base power.",
	"DELEGATION_NOT_FOUND":           "No delegation exists between these members.",
	"UNDELEGATION_EXCEEDS_DELEGATED": "Cannot undelegate more than was delegated.",

	"REPUTATION_OUT_OF_RANGE":   "Reputation must stay between 0 and {{.Max}}.",
	"REPUTATION_DELTA_INVALID":  "Reputation delta must be non-zero.",
	"PROPOSAL_NOT_FOUND":        "Proposal {{.ProposalID}} was not found.",
	"PROPOSAL_INVALID":          "The proposal is invalid: {{.Reason}}.",
	"PROPOSAL_NO_VOTING_POWER":  "Creating a proposal requires voting power.",
	"PROPOSAL_NOT_ACTIVE":       "The proposal is not accepting votes.",
	"PROPOSAL_VOTING_CLOSED":    "The voting period has ended.",
	"PROPOSAL_VOTING_OPEN":      "The voting period has not ended yet.",
	"PROPOSAL_INVALID_TRANSITION": "The proposal cannot move from {{.From}} to {{.To}}.",
	"PROPOSAL_TIMELOCKED":         "The proposal can be executed after {{.ExecutableAt}}.",
	"PROPOSAL_EXECUTION_REVERTED": "Proposal execution reverted: {{.Reason}}.",
	"PROPOSAL_CANCEL_FORBIDDEN":   "The proposal can no longer be cancelled.",
	"VOTE_ALREADY_CAST":           "This account has already voted on the proposal.",
	"VOTE_NOT_FOUND":              "Vote was not found.",
	"VOTE_CHOICE_INVALID":         "Vote choice {{.Choice}} is not supported.",
	"VOTE_NO_WEIGHT":              "The voter has no voting weight.",
}

var ptBRMessages = map[Code]string{
	"NOT_FOUND":                  "O recurso solicitado não foi encontrado.",
	"UNAUTHORIZED":               "Você não tem permissão para esta operação.",
	"CAPABILITY_REQUIRED":        "Esta operação exige a capacidade {{.Capability}}.",
	"STAKE_AMOUNT_INVALID":       "O valor do stake deve ser maior que zero.",
	"STAKE_INSUFFICIENT_BALANCE": "Saldo insuficiente para este valor.",
	"INSUFFICIENT_REWARDS":       "Nenhuma recompensa acumulada ainda.",
	"MEMBER_ALREADY_EXISTS":      "Esta conta já é membro.",
	"MEMBER_LIMIT_REACHED":       "A organização atingiu o limite de membros.",
	"REPUTATION_OUT_OF_RANGE":    "A reputação deve ficar entre 0 e {{.Max}}.",
	"VOTE_ALREADY_CAST":          "Esta conta já votou nesta proposta.",
	"PROPOSAL_VOTING_CLOSED":     "O período de votação terminou.",
}
