package scenario

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
	"github.com/louisbranch/governing.space/internal/services/governance/service"
)

// runStep executes one step. A step with expect_error passes only when it
// fails with that error code.
func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	err := r.dispatch(ctx, state, step)
	want := optionalString(step.Args, "expect_error", "")
	if want == "" {
		return err
	}
	got := apperrors.CodeOf(err)
	if err == nil {
		return r.assertions.Failf("expected error %s, step succeeded", want)
	}
	if string(got) != want {
		return r.assertions.Failf("error code = %s, want %s (%v)", got, want, err)
	}
	r.logf("expected error: %v", err)
	return nil
}

func (r *Runner) dispatch(ctx context.Context, state *scenarioState, step Step) error {
	args := step.Args
	switch step.Kind {
	case "credit":
		return r.runCredit(ctx, args)
	case "fund_rewards":
		return r.runFundRewards(ctx, args)
	case "stake":
		return r.runStake(ctx, args)
	case "unstake":
		return r.runUnstake(ctx, state, args)
	case "withdraw":
		return r.runWithdraw(ctx, state, args)
	case "claim":
		return r.runClaim(ctx, args)
	case "slash":
		return r.runSlash(ctx, args)
	case "organization":
		return r.runOrganization(ctx, state, args)
	case "activate", "dissolve":
		return r.runOrganizationTransition(ctx, state, step.Kind, args)
	case "deposit":
		return r.runDeposit(ctx, state, args)
	case "member":
		return r.runMember(ctx, state, args)
	case "remove_member", "pause", "resume", "suspend", "reactivate":
		return r.runMemberTransition(ctx, state, step.Kind, args)
	case "update_tier":
		return r.runUpdateTier(ctx, state, args)
	case "delegate", "undelegate":
		return r.runDelegation(ctx, state, step.Kind, args)
	case "reputation":
		return r.runReputation(ctx, state, args)
	case "propose":
		return r.runPropose(ctx, state, args)
	case "vote":
		return r.runVote(ctx, state, args)
	case "tally":
		return r.runTally(ctx, state, args)
	case "queue":
		return r.runQueue(ctx, state, args)
	case "execute":
		return r.runExecute(ctx, state, args)
	case "cancel":
		return r.runCancel(ctx, state, args)
	case "advance":
		return r.runAdvance(args)
	case "expect_power", "expect_balance", "expect_stake", "expect_reputation",
		"expect_status", "expect_treasury", "expect_pool":
		return r.runExpectation(state, step.Kind, args)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runCredit(ctx context.Context, args map[string]any) error {
	account, err := requiredString(args, "account")
	if err != nil {
		return err
	}
	amount, err := requiredInt(args, "amount")
	if err != nil {
		return err
	}
	callerCtx, err := callerContext(ctx, args, "treasury")
	if err != nil {
		return err
	}
	return r.svc.CreditWallet(callerCtx, account, amount)
}

func (r *Runner) runFundRewards(ctx context.Context, args map[string]any) error {
	amount, err := requiredInt(args, "amount")
	if err != nil {
		return err
	}
	callerCtx, err := callerContext(ctx, args, "treasury")
	if err != nil {
		return err
	}
	return r.svc.FundRewardPool(callerCtx, amount)
}

func (r *Runner) runStake(ctx context.Context, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	purpose, err := requiredString(args, "purpose")
	if err != nil {
		return err
	}
	amount, err := requiredInt(args, "amount")
	if err != nil {
		return err
	}
	change, err := optionalBool(args, "change_strategy", false)
	if err != nil {
		return err
	}
	pos, err := r.svc.Stake(callerCtx, service.StakeInput{
		Purpose:        staking.Purpose(purpose),
		Amount:         amount,
		Strategy:       staking.Strategy(optionalString(args, "strategy", "")),
		ChangeStrategy: change,
	})
	if err != nil {
		return err
	}
	r.logf("staked %s %d (position %d)", pos.Purpose, amount, pos.Amount)
	return nil
}

func (r *Runner) runUnstake(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	purpose, err := requiredString(args, "purpose")
	if err != nil {
		return err
	}
	amount, err := requiredInt(args, "amount")
	if err != nil {
		return err
	}
	result, err := r.svc.Unstake(callerCtx, staking.Purpose(purpose), amount)
	if err != nil {
		return err
	}
	if result.Withdrawal != nil {
		if name := optionalString(args, "name", ""); name != "" {
			state.withdrawals[name] = result.Withdrawal.ID
		}
		r.logf("withdrawal %s available at %s", result.Withdrawal.ID, result.Withdrawal.AvailableAt)
		return nil
	}
	r.logf("unstake paid %d, penalty %d", result.Payout, result.Penalty)
	return nil
}

func (r *Runner) runWithdraw(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	withdrawalID, err := state.withdrawal(args)
	if err != nil {
		return err
	}
	result, err := r.svc.Withdraw(callerCtx, withdrawalID)
	if err != nil {
		return err
	}
	r.logf("withdrew %d (bonus %d)", result.Amount, result.Bonus)
	return nil
}

func (r *Runner) runClaim(ctx context.Context, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	purpose, err := requiredString(args, "purpose")
	if err != nil {
		return err
	}
	claimed, err := r.svc.ClaimRewards(callerCtx, staking.Purpose(purpose))
	if err != nil {
		return err
	}
	r.logf("claimed %d", claimed)
	return nil
}

func (r *Runner) runSlash(ctx context.Context, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	account, err := requiredString(args, "account")
	if err != nil {
		return err
	}
	purpose, err := requiredString(args, "purpose")
	if err != nil {
		return err
	}
	amount, err := requiredInt(args, "amount")
	if err != nil {
		return err
	}
	result, err := r.svc.Slash(callerCtx, service.SlashInput{
		Account: account,
		Purpose: staking.Purpose(purpose),
		Amount:  amount,
		Reason:  optionalString(args, "reason", "scenario"),
	})
	if err != nil {
		return err
	}
	r.logf("slashed %d of %d (partial %t)", result.Slashed, result.Requested, result.Partial)
	return nil
}

func (r *Runner) runOrganization(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	name, err := requiredString(args, "name")
	if err != nil {
		return err
	}
	fee, err := optionalInt(args, "fee", 0)
	if err != nil {
		return err
	}
	limit, err := optionalInt(args, "member_limit", 0)
	if err != nil {
		return err
	}
	managers, err := optionalStrings(args, "managers")
	if err != nil {
		return err
	}
	settings, err := organizationSettings(args)
	if err != nil {
		return err
	}
	org, err := r.svc.CreateOrganization(callerCtx, service.CreateOrganizationInput{
		ID:            optionalString(args, "id", ""),
		Name:          name,
		AccessModel:   organization.AccessModel(optionalString(args, "access", string(organization.AccessOpen))),
		MembershipFee: fee,
		MemberLimit:   limit,
		Settings:      settings,
		Managers:      managers,
	})
	if err != nil {
		return err
	}
	state.orgID = org.ID
	r.logf("organization %s created", org.ID)
	return nil
}

// organizationSettings overlays the settings fields a step names on the defaults.
func organizationSettings(args map[string]any) (*organization.Settings, error) {
	keys := []string{"quorum_bps", "voting_model", "majority", "voting_delay", "voting_period", "execution_delay"}
	named := false
	for _, key := range keys {
		if _, ok := args[key]; ok {
			named = true
		}
	}
	if !named {
		return nil, nil
	}
	settings := organization.DefaultSettings()
	quorum, err := optionalInt(args, "quorum_bps", settings.QuorumBps)
	if err != nil {
		return nil, err
	}
	settings.QuorumBps = quorum
	settings.DefaultVotingModel = organization.VotingModel(optionalString(args, "voting_model", string(settings.DefaultVotingModel)))
	settings.DefaultMajority = organization.Majority(optionalString(args, "majority", string(settings.DefaultMajority)))
	for key, field := range map[string]*int64{
		"voting_delay":    &settings.VotingDelaySeconds,
		"voting_period":   &settings.VotingPeriodSeconds,
		"execution_delay": &settings.ExecutionDelaySeconds,
	} {
		if _, ok := args[key]; !ok {
			continue
		}
		d, err := parseDuration(args, key)
		if err != nil {
			return nil, err
		}
		*field = int64(d.Seconds())
	}
	return &settings, nil
}

func (r *Runner) runOrganizationTransition(ctx context.Context, state *scenarioState, kind string, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	if kind == "dissolve" {
		return r.svc.DissolveOrganization(callerCtx, orgID)
	}
	return r.svc.ActivateOrganization(callerCtx, orgID)
}

func (r *Runner) runDeposit(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	amount, err := requiredInt(args, "amount")
	if err != nil {
		return err
	}
	return r.svc.DepositTreasury(callerCtx, orgID, amount)
}

func (r *Runner) runMember(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	initial, err := optionalInt(args, "stake", 0)
	if err != nil {
		return err
	}
	member, err := r.svc.AddMember(callerCtx, orgID, service.AddMemberInput{
		Account:      optionalString(args, "account", ""),
		Tier:         membership.Tier(optionalString(args, "tier", string(membership.TierBasic))),
		InitialStake: initial,
	})
	if err != nil {
		return err
	}
	r.logf("member %s joined %s as %s", member.Account, orgID, member.Tier)
	return nil
}

func (r *Runner) runMemberTransition(ctx context.Context, state *scenarioState, kind string, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	account, err := requiredString(args, "account")
	if err != nil {
		return err
	}
	switch kind {
	case "remove_member":
		return r.svc.RemoveMember(callerCtx, orgID, account)
	case "pause":
		return r.svc.PauseMember(callerCtx, orgID, account)
	case "resume":
		return r.svc.ResumeMember(callerCtx, orgID, account)
	case "suspend":
		return r.svc.SuspendMember(callerCtx, orgID, account)
	default:
		return r.svc.ReactivateMember(callerCtx, orgID, account)
	}
}

func (r *Runner) runUpdateTier(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	account, err := requiredString(args, "account")
	if err != nil {
		return err
	}
	tier, err := requiredString(args, "tier")
	if err != nil {
		return err
	}
	return r.svc.UpdateMemberTier(callerCtx, orgID, account, membership.Tier(tier))
}

func (r *Runner) runDelegation(ctx context.Context, state *scenarioState, kind string, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	to, err := requiredString(args, "to")
	if err != nil {
		return err
	}
	amount, err := requiredInt(args, "amount")
	if err != nil {
		return err
	}
	if kind == "undelegate" {
		return r.svc.UndelegateVotingPower(callerCtx, orgID, to, amount)
	}
	return r.svc.DelegateVotingPower(callerCtx, orgID, to, amount)
}

func (r *Runner) runReputation(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	account, err := requiredString(args, "account")
	if err != nil {
		return err
	}
	delta, err := requiredInt(args, "delta")
	if err != nil {
		return err
	}
	score, err := r.svc.UpdateReputation(callerCtx, orgID, account, delta, optionalString(args, "reason", ""))
	if err != nil {
		return err
	}
	r.logf("reputation %s = %d", account, score)
	return nil
}

func (r *Runner) runPropose(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	orgID, err := state.organization(args)
	if err != nil {
		return err
	}
	name, err := requiredString(args, "name")
	if err != nil {
		return err
	}
	title, err := requiredString(args, "title")
	if err != nil {
		return err
	}
	var quorum *int64
	if _, ok := args["quorum_bps"]; ok {
		value, err := requiredInt(args, "quorum_bps")
		if err != nil {
			return err
		}
		quorum = &value
	}
	p, err := r.svc.CreateProposal(callerCtx, orgID, service.CreateProposalInput{
		Type:            proposal.Type(optionalString(args, "type", string(proposal.TypeGeneral))),
		Title:           title,
		DescriptionHash: optionalString(args, "description_hash", ""),
		VotingModel:     organization.VotingModel(optionalString(args, "voting_model", "")),
		Majority:        organization.Majority(optionalString(args, "majority", "")),
		QuorumBps:       quorum,
		Script:          optionalString(args, "script", ""),
	})
	if err != nil {
		return err
	}
	state.proposals[name] = p.ID
	r.logf("proposal %s = %s, voting %s to %s", name, p.ID, p.StartTime, p.EndTime)
	return nil
}

func (r *Runner) runVote(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	proposalID, err := state.proposal(args)
	if err != nil {
		return err
	}
	choice, err := requiredString(args, "choice")
	if err != nil {
		return err
	}
	vote, err := r.svc.CastVote(callerCtx, proposalID, proposal.Choice(choice))
	if err != nil {
		return err
	}
	r.logf("vote %s %s weight %d", vote.Voter, vote.Choice, vote.Weight)
	return nil
}

func (r *Runner) runTally(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := callerContext(ctx, args, "scenario")
	if err != nil {
		return err
	}
	proposalID, err := state.proposal(args)
	if err != nil {
		return err
	}
	result, err := r.svc.TallyProposal(callerCtx, proposalID)
	if err != nil {
		return err
	}
	r.logf("tally %s: %s (quorum %t)", proposalID, result.Status, result.QuorumReached)
	return nil
}

func (r *Runner) runQueue(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := callerContext(ctx, args, "scenario")
	if err != nil {
		return err
	}
	proposalID, err := state.proposal(args)
	if err != nil {
		return err
	}
	at, err := r.svc.QueueProposal(callerCtx, proposalID)
	if err != nil {
		return err
	}
	r.logf("queued %s until %s", proposalID, at)
	return nil
}

func (r *Runner) runExecute(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := callerContext(ctx, args, "scenario")
	if err != nil {
		return err
	}
	proposalID, err := state.proposal(args)
	if err != nil {
		return err
	}
	effects, err := r.svc.ExecuteProposal(callerCtx, proposalID)
	if err != nil {
		return err
	}
	r.logf("executed %s with %d effects", proposalID, len(effects))
	return nil
}

func (r *Runner) runCancel(ctx context.Context, state *scenarioState, args map[string]any) error {
	callerCtx, err := actorContext(ctx, args)
	if err != nil {
		return err
	}
	proposalID, err := state.proposal(args)
	if err != nil {
		return err
	}
	return r.svc.CancelProposal(callerCtx, proposalID)
}

func (r *Runner) runAdvance(args map[string]any) error {
	d, err := parseDuration(args, "duration")
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	r.clock.Advance(d)
	r.logf("clock advanced to %s", r.clock.Now())
	return nil
}

func (r *Runner) runExpectation(state *scenarioState, kind string, args map[string]any) error {
	switch kind {
	case "expect_power":
		orgID, err := state.organization(args)
		if err != nil {
			return err
		}
		account, err := requiredString(args, "account")
		if err != nil {
			return err
		}
		want, err := requiredInt(args, "power")
		if err != nil {
			return err
		}
		return r.assertions.Equal("voting power of "+account, r.svc.GetVotingPower(orgID, account), want)
	case "expect_balance":
		account, err := requiredString(args, "account")
		if err != nil {
			return err
		}
		want, err := requiredInt(args, "balance")
		if err != nil {
			return err
		}
		return r.assertions.Equal("balance of "+account, r.svc.GetWallet(account).Balance, want)
	case "expect_stake":
		account, err := requiredString(args, "account")
		if err != nil {
			return err
		}
		purpose, err := requiredString(args, "purpose")
		if err != nil {
			return err
		}
		want, err := requiredInt(args, "amount")
		if err != nil {
			return err
		}
		view, _ := r.svc.GetStakePosition(account, staking.Purpose(purpose))
		return r.assertions.Equal(purpose+" stake of "+account, view.Amount, want)
	case "expect_reputation":
		orgID, err := state.organization(args)
		if err != nil {
			return err
		}
		account, err := requiredString(args, "account")
		if err != nil {
			return err
		}
		want, err := requiredInt(args, "score")
		if err != nil {
			return err
		}
		member, ok := r.svc.GetMember(orgID, account)
		if !ok {
			return r.assertions.Failf("member %s not found in %s", account, orgID)
		}
		return r.assertions.Equal("reputation of "+account, member.Reputation, want)
	case "expect_status":
		proposalID, err := state.proposal(args)
		if err != nil {
			return err
		}
		want, err := requiredString(args, "status")
		if err != nil {
			return err
		}
		p, ok := r.svc.GetProposal(proposalID)
		if !ok {
			return r.assertions.Failf("proposal %s not found", proposalID)
		}
		if string(p.Status) != want {
			return r.assertions.Failf("proposal %s status = %s, want %s", proposalID, p.Status, want)
		}
		return nil
	case "expect_treasury":
		orgID, err := state.organization(args)
		if err != nil {
			return err
		}
		want, err := requiredInt(args, "amount")
		if err != nil {
			return err
		}
		org, ok := r.svc.GetOrganization(orgID)
		if !ok {
			return r.assertions.Failf("organization %s not found", orgID)
		}
		return r.assertions.Equal("treasury of "+orgID, org.Treasury, want)
	default:
		pool, err := requiredString(args, "pool")
		if err != nil {
			return err
		}
		want, err := requiredInt(args, "amount")
		if err != nil {
			return err
		}
		got, err := poolAmount(r.svc.GetProtocolStats(), pool)
		if err != nil {
			return err
		}
		return r.assertions.Equal(pool+" pool", got, want)
	}
}

func poolAmount(stats service.ProtocolStats, pool string) (int64, error) {
	switch pool {
	case "reward":
		return stats.RewardPool, nil
	case "treasury":
		return stats.TreasuryPool, nil
	case "supply":
		return stats.Supply, nil
	case "slashed":
		return stats.TotalSlashed, nil
	case "penalty":
		return stats.TotalPenalty, nil
	default:
		return 0, fmt.Errorf("unknown pool %q", pool)
	}
}
