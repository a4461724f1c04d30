package membership

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// Rules bundles the parameters membership decisions depend on.
type Rules struct {
	Membership Params
	Reputation reputation.Params
}

// DefaultRules returns protocol defaults.
func DefaultRules() Rules {
	return Rules{Membership: DefaultParams(), Reputation: reputation.DefaultParams()}
}

// View is the read-only state a membership decision consults.
type View struct {
	Organizations *organization.State
	Members       *State
	Staking       *staking.State
	Reputation    *reputation.State
}

// Decide returns the decision for a membership command.
func Decide(rules Rules, v View, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	at := now().UTC()
	org, rejection := organization.RequireActive(v.Organizations, cmd.OrganizationID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	switch cmd.Type {
	case CommandTypeAdd:
		return decideAdd(rules, v, org, cmd, at)
	case CommandTypeRemove:
		return decideRemove(v, org, cmd, at)
	case CommandTypeUpdateTier:
		return decideUpdateTier(rules, v, org, cmd, at)
	case CommandTypePause, CommandTypeResume, CommandTypeSuspend, CommandTypeReactivate:
		return decideStatus(v, org, cmd, at)
	case CommandTypeDelegate:
		return decideDelegate(v, cmd, at)
	case CommandTypeUndelegate:
		return decideUndelegate(v, cmd, at)
	case CommandTypeUpdateReputation:
		return decideReputation(rules, v, org, cmd, at)
	default:
		return command.Rejectf(command.RejectionCodeCommandTypeUnsupported, fmt.Sprintf("command type %s is not supported by membership", cmd.Type))
	}
}

// Admission describes a prospective member.
type Admission struct {
	Account      string
	Tier         Tier
	InitialStake int64
	// GovernanceHeld is the account's current governance stake.
	GovernanceHeld int64
	// Exists and MemberCount describe the organization at decision time.
	Exists      bool
	MemberCount int64
}

// Admit applies every joining rule except caller authorization and fees,
// returning the member to insert.
func Admit(params Params, org organization.Organization, a Admission, now time.Time) (Member, *command.Rejection) {
	if !a.Tier.Valid() {
		return Member{}, &command.Rejection{Code: apperrors.CodeMemberTierInvalid, Message: "tier is invalid", Metadata: map[string]string{"Tier": string(a.Tier)}}
	}
	if a.Exists {
		return Member{}, &command.Rejection{Code: apperrors.CodeMemberAlreadyExists, Message: "account is already a member"}
	}
	if a.MemberCount >= org.MemberLimit {
		return Member{}, &command.Rejection{Code: apperrors.CodeMemberLimitReached, Message: "member limit reached"}
	}
	required := params.StakeRequirement(a.Tier)
	if a.InitialStake < required {
		return Member{}, &command.Rejection{
			Code:     apperrors.CodeMemberStakeInsufficient,
			Message:  "initial stake below tier requirement",
			Metadata: map[string]string{"Tier": string(a.Tier), "Required": strconv.FormatInt(required, 10)},
		}
	}
	if a.InitialStake > a.GovernanceHeld {
		return Member{}, &command.Rejection{Code: apperrors.CodeMemberStakeExceedsHeld, Message: "initial stake exceeds governance stake held"}
	}
	return Member{
		OrganizationID:  org.ID,
		Account:         a.Account,
		Tier:            a.Tier,
		Status:          StatusActive,
		BaseVotingPower: params.BasePower(a.Tier),
		InitialStake:    a.InitialStake,
		JoinedAt:        now,
	}, nil
}

// CheckTierChange validates moving m to tier given the governance stake held.
func CheckTierChange(params Params, m Member, tier Tier, governanceHeld int64) *command.Rejection {
	if !tier.Valid() {
		return &command.Rejection{Code: apperrors.CodeMemberTierInvalid, Message: "tier is invalid", Metadata: map[string]string{"Tier": string(tier)}}
	}
	if tier == m.Tier {
		return &command.Rejection{
			Code:     apperrors.CodeMemberInvalidTransition,
			Message:  "member already holds tier",
			Metadata: map[string]string{"From": string(m.Tier), "To": string(tier)},
		}
	}
	required := params.StakeRequirement(tier)
	if governanceHeld < required {
		return &command.Rejection{
			Code:     apperrors.CodeMemberStakeInsufficient,
			Message:  "governance stake below tier requirement",
			Metadata: map[string]string{"Tier": string(tier), "Required": strconv.FormatInt(required, 10)},
		}
	}
	if m.DelegatedOut > params.BasePower(tier) {
		return &command.Rejection{Code: apperrors.CodeMemberTierDelegations, Message: "outstanding delegations exceed new base power"}
	}
	return nil
}

func decideAdd(rules Rules, v View, org organization.Organization, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[AddPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	account := strings.TrimSpace(payload.Account)
	if account == "" {
		account = cmd.ActorID
	}
	if account == "" {
		return command.Rejectf(apperrors.CodeInvalidArgument, "account is required")
	}
	if payload.Tier == "" {
		payload.Tier = TierBasic
	}
	if !mayAdmit(org, cmd, account) {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeMemberAccessDenied,
			Message:  "access model does not allow this admission",
			Metadata: map[string]string{"AccessModel": string(org.AccessModel)},
		})
	}
	_, exists := v.Members.Get(org.ID, account)
	member, rejection := Admit(rules.Membership, org, Admission{
		Account:        account,
		Tier:           payload.Tier,
		InitialStake:   payload.InitialStake,
		GovernanceHeld: v.Staking.Staked(account, staking.PurposeGovernance),
		Exists:         exists,
		MemberCount:    v.Members.OrganizationStats(org.ID).TotalMembers,
	}, now)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	if v.Staking.Balance(account) < org.MembershipFee {
		return command.Rejectf(apperrors.CodeMemberFeeUnpaid, "wallet cannot cover membership fee")
	}

	em := command.NewEmitter(cmd, now)
	if org.MembershipFee > 0 {
		em.Emit(staking.EventTypeTreasuryFee, staking.EntityTypeTreasury, org.ID, staking.TreasuryMovedPayload{
			OrganizationID: org.ID,
			Account:        account,
			Amount:         org.MembershipFee,
		})
	}
	EmitAdmission(em, rules.Reputation, member, "")
	return em.Decision()
}

// EmitAdmission emits the events that insert member and open its reputation entry.
func EmitAdmission(em *command.Emitter, rep reputation.Params, member Member, proposalID string) {
	em.Emit(EventTypeAdded, EntityTypeMember, member.Account, AddedPayload{Member: member, ProposalID: proposalID})
	em.Emit(reputation.EventTypeInitialized, reputation.EntityTypeReputation, member.Account, reputation.InitializedPayload{
		Account: member.Account,
		Score:   rep.Initial,
	})
}

// EmitTierChange emits a tier update for m.
func EmitTierChange(em *command.Emitter, params Params, m Member, tier Tier, proposalID string) {
	em.Emit(EventTypeTierUpdated, EntityTypeMember, m.Account, TierUpdatedPayload{
		Account:    m.Account,
		From:       m.Tier,
		To:         tier,
		BaseBefore: m.BaseVotingPower,
		BaseAfter:  params.BasePower(tier),
		ProposalID: proposalID,
	})
}

func mayAdmit(org organization.Organization, cmd command.Command, account string) bool {
	if cmd.ActorType == command.ActorTypeSystem || org.IsManager(cmd.ActorID) {
		return true
	}
	return org.AccessModel == organization.AccessOpen && cmd.ActorID == account
}

func decideRemove(v View, org organization.Organization, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[AccountPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	account := strings.TrimSpace(payload.Account)
	m, ok := v.Members.Get(org.ID, account)
	if !ok {
		return memberNotFound()
	}
	if cmd.ActorID != account && !org.IsManager(cmd.ActorID) && !cmd.Has(authz.CapabilityEmergency) {
		return command.Rejectf(apperrors.CodeOrganizationNotManager, "only the member, a manager or an emergency authority may remove a member")
	}
	em := command.NewEmitter(cmd, now)
	releaseDelegations(em, v, org.ID, account)
	if score, ok := v.Reputation.Score(org.ID, account); ok {
		em.Emit(reputation.EventTypeCleared, reputation.EntityTypeReputation, account, reputation.ClearedPayload{Account: account, Before: score})
	}
	em.Emit(EventTypeRemoved, EntityTypeMember, account, RemovedPayload{Account: account, Member: m})
	return em.Decision()
}

func decideUpdateTier(rules Rules, v View, org organization.Organization, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[TierPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if cmd.ActorType != command.ActorTypeSystem && !org.IsManager(cmd.ActorID) {
		return command.Rejectf(apperrors.CodeOrganizationNotManager, "only managers may change tiers")
	}
	m, ok := v.Members.Get(org.ID, strings.TrimSpace(payload.Account))
	if !ok {
		return memberNotFound()
	}
	if r := CheckTierChange(rules.Membership, m, payload.Tier, v.Staking.Staked(m.Account, staking.PurposeGovernance)); r != nil {
		return command.Reject(*r)
	}
	em := command.NewEmitter(cmd, now)
	EmitTierChange(em, rules.Membership, m, payload.Tier, "")
	return em.Decision()
}

var statusTransitions = map[command.Type]struct {
	from  []Status
	to    Status
	event event.Type
	self  bool
}{
	CommandTypePause:      {from: []Status{StatusActive}, to: StatusPaused, event: EventTypePaused, self: true},
	CommandTypeResume:     {from: []Status{StatusPaused}, to: StatusActive, event: EventTypeResumed, self: true},
	CommandTypeSuspend:    {from: []Status{StatusActive, StatusPaused}, to: StatusSuspended, event: EventTypeSuspended},
	CommandTypeReactivate: {from: []Status{StatusSuspended}, to: StatusActive, event: EventTypeReactivated},
}

func decideStatus(v View, org organization.Organization, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[AccountPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	transition := statusTransitions[cmd.Type]
	account := strings.TrimSpace(payload.Account)
	if account == "" && transition.self {
		account = cmd.ActorID
	}
	m, ok := v.Members.Get(org.ID, account)
	if !ok {
		return memberNotFound()
	}
	allowed := org.IsManager(cmd.ActorID) ||
		(transition.self && cmd.ActorID == account) ||
		(!transition.self && cmd.Has(authz.CapabilityEmergency))
	if !allowed {
		return command.Rejectf(apperrors.CodeOrganizationNotManager, "caller may not change this member's status")
	}
	valid := false
	for _, from := range transition.from {
		if m.Status == from {
			valid = true
		}
	}
	if !valid {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeMemberInvalidTransition,
			Message:  fmt.Sprintf("member cannot move from %s to %s", m.Status, transition.to),
			Metadata: map[string]string{"From": string(m.Status), "To": string(transition.to)},
		})
	}
	em := command.NewEmitter(cmd, now)
	if transition.to != StatusActive {
		releaseDelegations(em, v, org.ID, account)
	}
	em.Emit(transition.event, EntityTypeMember, account, StatusChangedPayload{Account: account, From: m.Status, To: transition.to})
	return em.Decision()
}

// releaseDelegations returns every delegation to or from account to its delegator.
func releaseDelegations(em *command.Emitter, v View, orgID, account string) {
	for _, d := range v.Members.DelegationsOf(orgID, account) {
		em.Emit(EventTypeUndelegated, EntityTypeDelegation, delegationEntityID(d.Delegator, d.Delegatee), DelegationPayload{
			From:   d.Delegator,
			To:     d.Delegatee,
			Amount: d.Amount,
		})
	}
}

func decideDelegate(v View, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[DelegatePayload](cmd)
	if rejected != nil {
		return *rejected
	}
	from, to := cmd.ActorID, strings.TrimSpace(payload.To)
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeDelegationAmount, "delegation amount must be positive")
	}
	if from == to {
		return command.Rejectf(apperrors.CodeDelegationSelf, "members cannot delegate to themselves")
	}
	delegator, ok := v.Members.Get(cmd.OrganizationID, from)
	if !ok {
		return memberNotFound()
	}
	delegatee, ok := v.Members.Get(cmd.OrganizationID, to)
	if !ok {
		return memberNotFound()
	}
	if delegator.Status != StatusActive || delegatee.Status != StatusActive {
		return command.Rejectf(apperrors.CodeMemberNotActive, "both members must be active to delegate")
	}
	if payload.Amount > delegator.Undelegated() {
		return command.Rejectf(apperrors.CodeDelegationExceedsBase, "delegation exceeds undelegated base power")
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeDelegated, EntityTypeDelegation, delegationEntityID(from, to), DelegationPayload{From: from, To: to, Amount: payload.Amount})
	return em.Decision()
}

func decideUndelegate(v View, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[DelegatePayload](cmd)
	if rejected != nil {
		return *rejected
	}
	from, to := cmd.ActorID, strings.TrimSpace(payload.To)
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeDelegationAmount, "undelegation amount must be positive")
	}
	outstanding := v.Members.Delegated(cmd.OrganizationID, from, to)
	if outstanding == 0 {
		return command.Rejectf(apperrors.CodeDelegationNotFound, "no delegation between these members")
	}
	if payload.Amount > outstanding {
		return command.Rejectf(apperrors.CodeDelegationExceedsHeld, "undelegation exceeds delegated amount")
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeUndelegated, EntityTypeDelegation, delegationEntityID(from, to), DelegationPayload{From: from, To: to, Amount: payload.Amount})
	return em.Decision()
}

func decideReputation(rules Rules, v View, org organization.Organization, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[ReputationPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	if !org.IsManager(cmd.ActorID) && !cmd.Has(authz.CapabilityReputationOracle) {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeCapabilityRequired,
			Message:  "reputation updates require a manager or reputation oracle",
			Metadata: map[string]string{"Capability": string(authz.CapabilityReputationOracle)},
		})
	}
	account := strings.TrimSpace(payload.Account)
	if _, ok := v.Members.Get(org.ID, account); !ok {
		return memberNotFound()
	}
	if payload.Delta == 0 {
		return command.Rejectf(apperrors.CodeReputationDeltaInvalid, "reputation delta must be non-zero")
	}
	score, _ := v.Reputation.Score(org.ID, account)
	next, err := rules.Reputation.Adjust(score, payload.Delta)
	if err != nil {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeReputationOutOfRange,
			Message:  fmt.Sprintf("reputation %d%+d leaves [0, %d]", score, payload.Delta, rules.Reputation.Max),
			Metadata: map[string]string{"Max": strconv.FormatInt(rules.Reputation.Max, 10)},
		})
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(reputation.EventTypeUpdated, reputation.EntityTypeReputation, account, reputation.UpdatedPayload{
		Account:    account,
		Before:     score,
		After:      next,
		Delta:      payload.Delta,
		Source:     reputation.SourceManual,
		ReasonHash: strings.TrimSpace(payload.ReasonHash),
	})
	return em.Decision()
}

func memberNotFound() command.Decision {
	return command.Rejectf(apperrors.CodeMemberNotFound, "member not found")
}

func delegationEntityID(from, to string) string {
	return from + "->" + to
}
