package proposal

import (
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/action"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

func decideExecute(rules membership.Rules, v View, p Proposal, cmd command.Command, now time.Time) command.Decision {
	if p.Status != StatusQueued {
		return transitionRejection(p.Status, StatusExecuted)
	}
	if now.Before(p.ExecutableAt) {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeProposalTimelocked,
			Message:  "execution delay has not elapsed",
			Metadata: map[string]string{"ExecutableAt": p.ExecutableAt.Format(time.RFC3339)},
		})
	}
	org, rejection := organization.RequireActive(v.Organizations, p.OrganizationID)
	if rejection != nil {
		return command.Reject(*rejection)
	}

	effects := append([]action.Effect(nil), p.Actions...)
	scripted, err := action.RunScript(p.Script, action.ScriptContext{
		OrganizationID: org.ID,
		ProposalID:     p.ID,
		Treasury:       v.Staking.Treasury(org.ID),
		Members:        v.Members.OrganizationStats(org.ID).TotalMembers,
		ForVotes:       p.ForVotes,
		AgainstVotes:   p.AgainstVotes,
		AbstainVotes:   p.AbstainVotes,
	})
	if err != nil {
		return reverted(err)
	}
	effects = append(effects, scripted...)
	if err := action.ValidateAll(effects); err != nil {
		return reverted(err)
	}

	em := command.NewEmitter(cmd, now)
	x := newExecution(rules, v, org, p.ID)
	for i, e := range effects {
		if err := x.apply(em, e, now); err != nil {
			return reverted(fmt.Errorf("effect %d (%s): %w", i+1, e.Kind, err))
		}
	}
	em.Emit(EventTypeExecuted, EntityTypeProposal, p.ID, ExecutedPayload{ProposalID: p.ID, Effects: effects})
	return em.Decision()
}

func reverted(err error) command.Decision {
	return command.Reject(command.Rejection{
		Code:     apperrors.CodeProposalExecutionReverted,
		Message:  "proposal execution reverted: " + err.Error(),
		Metadata: map[string]string{"Reason": err.Error()},
	})
}

// execution tracks the state an effect batch has changed so far, so later
// effects in the same batch see earlier ones.
type execution struct {
	rules      membership.Rules
	view       View
	org        organization.Organization
	proposalID string

	treasury int64
	members  int64
	settings organization.Settings
	touched  map[string]membership.Member
}

func newExecution(rules membership.Rules, v View, org organization.Organization, proposalID string) *execution {
	return &execution{
		rules:      rules,
		view:       v,
		org:        org,
		proposalID: proposalID,
		treasury:   v.Staking.Treasury(org.ID),
		members:    v.Members.OrganizationStats(org.ID).TotalMembers,
		settings:   org.Settings,
		touched:    map[string]membership.Member{},
	}
}

func (x *execution) member(account string) (membership.Member, bool) {
	if m, ok := x.touched[account]; ok {
		return m, true
	}
	return x.view.Members.Get(x.org.ID, account)
}

func (x *execution) apply(em *command.Emitter, e action.Effect, now time.Time) error {
	switch e.Kind {
	case action.KindTreasuryTransfer:
		if e.Amount > x.treasury {
			return fmt.Errorf("treasury holds %d, transfer needs %d", x.treasury, e.Amount)
		}
		x.treasury -= e.Amount
		em.Emit(staking.EventTypeTreasuryTransferred, staking.EntityTypeTreasury, x.org.ID, staking.TreasuryMovedPayload{
			OrganizationID: x.org.ID,
			Account:        e.To,
			Amount:         e.Amount,
		})
	case action.KindUpdateSettings:
		next := e.Settings.Apply(x.settings)
		if err := next.Validate(); err != nil {
			return err
		}
		em.Emit(organization.EventTypeSettingsUpdated, organization.EntityTypeOrganization, x.org.ID, organization.SettingsUpdatedPayload{
			Before:     x.settings,
			After:      next,
			ProposalID: x.proposalID,
		})
		x.settings = next
	case action.KindAddMember:
		tier := e.Tier
		if tier == "" {
			tier = membership.TierBasic
		}
		_, exists := x.member(e.Account)
		held := x.view.Staking.Staked(e.Account, staking.PurposeGovernance)
		m, rejection := membership.Admit(x.rules.Membership, x.org, membership.Admission{
			Account:        e.Account,
			Tier:           tier,
			InitialStake:   held,
			GovernanceHeld: held,
			Exists:         exists,
			MemberCount:    x.members,
		}, now)
		if rejection != nil {
			return rejectionError(rejection)
		}
		membership.EmitAdmission(em, x.rules.Reputation, m, x.proposalID)
		x.members++
		x.touched[m.Account] = m
	case action.KindUpdateTier:
		m, ok := x.member(e.Account)
		if !ok {
			return errors.New("member not found")
		}
		held := x.view.Staking.Staked(e.Account, staking.PurposeGovernance)
		if rejection := membership.CheckTierChange(x.rules.Membership, m, e.Tier, held); rejection != nil {
			return rejectionError(rejection)
		}
		membership.EmitTierChange(em, x.rules.Membership, m, e.Tier, x.proposalID)
		m.Tier = e.Tier
		m.BaseVotingPower = x.rules.Membership.BasePower(e.Tier)
		x.touched[m.Account] = m
	default:
		return fmt.Errorf("effect kind %q is not supported", e.Kind)
	}
	return nil
}

func rejectionError(r *command.Rejection) error {
	msg := r.Message
	if required, ok := r.Metadata["Required"]; ok {
		msg += " (required " + required + ")"
	}
	return errors.New(msg + " [" + string(r.Code) + "]")
}
