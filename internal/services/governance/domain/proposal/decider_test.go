package proposal

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/action"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	view View
	now  time.Time
}

func newFixture(t *testing.T, configure func(*organization.Settings)) *fixture {
	t.Helper()
	settings := organization.DefaultSettings()
	if configure != nil {
		configure(&settings)
	}
	orgs := organization.NewState()
	orgs.Organizations["dao"] = organization.Organization{
		ID:          "dao",
		Name:        "Test DAO",
		Creator:     "founder",
		Managers:    []string{"m1"},
		AccessModel: organization.AccessOpen,
		MemberLimit: 10,
		Status:      organization.StatusActive,
		Settings:    settings,
	}
	stake := staking.NewState()
	stake.OrgTreasuries["dao"] = 100
	return &fixture{
		view: View{
			Organizations: orgs,
			Members:       membership.NewState(),
			Staking:       stake,
			Reputation:    reputation.NewState(),
			Proposals:     NewState(),
		},
		now: t0,
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) stake(account string, amount int64) {
	f.view.Staking.Positions[staking.PositionKey{Account: account, Purpose: staking.PurposeGovernance}] = staking.Position{
		Account: account, Purpose: staking.PurposeGovernance, Amount: amount,
	}
}

func (f *fixture) apply(t *testing.T, events []event.Event) {
	t.Helper()
	for _, evt := range events {
		var err error
		switch {
		case slices.Contains(EventTypes(), evt.Type):
			var m Mutation
			if m, err = Prepare(evt); err == nil {
				m(f.view.Proposals)
			}
		case slices.Contains(membership.EventTypes(), evt.Type):
			var m membership.Mutation
			if m, err = membership.Prepare(evt); err == nil {
				m(f.view.Members)
			}
		case slices.Contains(reputation.EventTypes(), evt.Type):
			var m reputation.Mutation
			if m, err = reputation.Prepare(evt); err == nil {
				m(f.view.Reputation)
			}
		case slices.Contains(organization.EventTypes(), evt.Type):
			var m organization.Mutation
			if m, err = organization.Prepare(evt); err == nil {
				m(f.view.Organizations)
			}
		default:
			var m staking.Mutation
			if m, err = staking.Prepare(evt); err == nil {
				m(f.view.Staking)
			}
		}
		if err != nil {
			t.Fatalf("prepare %s: %v", evt.Type, err)
		}
	}
}

func (f *fixture) addMember(t *testing.T, account string, tier membership.Tier) {
	t.Helper()
	cmd := newCmd(t, membership.CommandTypeAdd, "system", membership.AddPayload{Account: account, Tier: tier})
	cmd.ActorType = command.ActorTypeSystem
	d := membership.Decide(membership.DefaultRules(), f.view.membership(), cmd, f.clock)
	if !d.Accepted() {
		t.Fatalf("add member %s rejected: %+v", account, d.Rejections)
	}
	f.apply(t, d.Events)
}

func (f *fixture) run(t *testing.T, cmd command.Command) command.Decision {
	t.Helper()
	d := Decide(membership.DefaultRules(), f.view, cmd, f.clock)
	if d.Accepted() {
		f.apply(t, d.Events)
	}
	return d
}

func (f *fixture) mustRun(t *testing.T, cmd command.Command) command.Decision {
	t.Helper()
	d := f.run(t, cmd)
	if !d.Accepted() {
		t.Fatalf("%s rejected: %+v", cmd.Type, d.Rejections)
	}
	return d
}

func (f *fixture) propose(t *testing.T, creator string, payload CreatePayload) Proposal {
	t.Helper()
	d := f.mustRun(t, newCmd(t, CommandTypeCreate, creator, payload))
	id := d.Events[0].EntityID
	p, ok := f.view.Proposals.Get(id)
	if !ok {
		t.Fatalf("proposal %s missing", id)
	}
	return p
}

func (f *fixture) vote(t *testing.T, voter, id string, choice Choice) command.Decision {
	t.Helper()
	return f.run(t, newCmd(t, CommandTypeVote, voter, VotePayload{ProposalID: id, Choice: choice}))
}

func (f *fixture) target(t *testing.T, typ command.Type, actor, id string, grants ...authz.Capability) command.Decision {
	t.Helper()
	return f.run(t, newCmd(t, typ, actor, TargetPayload{ProposalID: id}, grants...))
}

func (f *fixture) proposal(t *testing.T, id string) Proposal {
	t.Helper()
	p, ok := f.view.Proposals.Get(id)
	if !ok {
		t.Fatalf("proposal %s missing", id)
	}
	return p
}

func newCmd(t *testing.T, typ command.Type, actor string, payload any, grants ...authz.Capability) command.Command {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return command.Command{
		Type: typ, OrganizationID: "dao", ActorType: command.ActorTypeAccount, ActorID: actor,
		PayloadJSON: data, Grants: authz.NewGrants(grants...),
	}
}

func rejectionCode(d command.Decision) apperrors.Code {
	if len(d.Rejections) == 0 {
		return ""
	}
	return d.Rejections[0].Code
}

func TestDemocraticVoteCountsOne(t *testing.T) {
	f := newFixture(t, nil)
	f.addMember(t, "a", membership.TierBasic)
	p := f.propose(t, "a", CreatePayload{Title: "Adopt charter"})

	if p.ID != "dao/1" || p.Status != StatusPending || p.EligiblePower != 1 {
		t.Fatalf("proposal = %+v", p)
	}
	if !p.StartTime.Equal(t0.Add(time.Hour)) || !p.EndTime.Equal(t0.Add(73*time.Hour)) {
		t.Fatalf("window = %s..%s", p.StartTime, p.EndTime)
	}

	f.advance(time.Hour)
	d := f.vote(t, "a", p.ID, ChoiceFor)
	if !d.Accepted() {
		t.Fatalf("vote rejected: %+v", d.Rejections)
	}
	if len(d.Events) != 3 || d.Events[0].Type != EventTypeActivated || d.Events[2].Type != reputation.EventTypeUpdated {
		t.Fatalf("events = %+v", d.Events)
	}
	got := f.proposal(t, p.ID)
	if got.Status != StatusActive || got.ForVotes != 1 || got.VoterCount != 1 {
		t.Fatalf("proposal = %+v", got)
	}
	if vote, ok := f.view.Proposals.Vote(p.ID, "a"); !ok || vote.Weight != 1 || vote.Choice != ChoiceFor {
		t.Fatalf("vote = %+v, %v", vote, ok)
	}
	if score, _ := f.view.Reputation.Score("dao", "a"); score != 1010 {
		t.Fatalf("reputation = %d, want 1010", score)
	}
}

func TestQuorumDefeatsRegardlessOfSplit(t *testing.T) {
	f := newFixture(t, func(s *organization.Settings) {
		s.DefaultVotingModel = organization.VotingStake
		s.QuorumBps = 1000
	})
	f.stake("a", 5)
	f.stake("b", 95)
	f.addMember(t, "a", membership.TierBasic)
	f.addMember(t, "b", membership.TierBasic)
	p := f.propose(t, "a", CreatePayload{Title: "Low turnout"})
	if p.EligiblePower != 100 {
		t.Fatalf("eligible = %d, want 100", p.EligiblePower)
	}

	f.advance(time.Hour)
	if d := f.vote(t, "a", p.ID, ChoiceFor); !d.Accepted() {
		t.Fatalf("vote rejected: %+v", d.Rejections)
	}
	f.advance(72 * time.Hour)
	if d := f.target(t, CommandTypeTally, "anyone", p.ID); !d.Accepted() {
		t.Fatalf("tally rejected: %+v", d.Rejections)
	}
	got := f.proposal(t, p.ID)
	if got.ForVotes != 5 || got.Status != StatusDefeated || got.QuorumReached {
		t.Fatalf("proposal = %+v", got)
	}
}

func TestProposalLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	for _, account := range []string{"a", "b", "c"} {
		f.addMember(t, account, membership.TierBasic)
	}
	p := f.propose(t, "a", CreatePayload{
		Type:    TypeTreasury,
		Title:   "Fund grantee",
		Actions: []action.Effect{{Kind: action.KindTreasuryTransfer, To: "grantee", Amount: 30}},
	})

	if got := rejectionCode(f.vote(t, "a", p.ID, ChoiceFor)); got != apperrors.CodeProposalNotActive {
		t.Fatalf("early vote code = %q", got)
	}
	f.advance(time.Hour)
	for voter, choice := range map[string]Choice{"a": ChoiceFor, "b": ChoiceFor, "c": ChoiceAgainst} {
		if d := f.vote(t, voter, p.ID, choice); !d.Accepted() {
			t.Fatalf("vote %s rejected: %+v", voter, d.Rejections)
		}
	}
	if got := rejectionCode(f.vote(t, "a", p.ID, ChoiceAgainst)); got != apperrors.CodeVoteAlreadyCast {
		t.Fatalf("double vote code = %q", got)
	}
	if got := rejectionCode(f.vote(t, "a", p.ID, "maybe")); got != apperrors.CodeVoteChoiceInvalid {
		t.Fatalf("bad choice code = %q", got)
	}
	if got := rejectionCode(f.target(t, CommandTypeTally, "a", p.ID)); got != apperrors.CodeProposalVotingOpen {
		t.Fatalf("early tally code = %q", got)
	}

	f.advance(72 * time.Hour)
	f.addMember(t, "late", membership.TierBasic)
	if got := rejectionCode(f.vote(t, "late", p.ID, ChoiceFor)); got != apperrors.CodeProposalVotingClosed {
		t.Fatalf("late vote code = %q", got)
	}

	if d := f.target(t, CommandTypeTally, "a", p.ID); !d.Accepted() || len(d.Events) != 1 {
		t.Fatalf("tally = %+v", d)
	}
	if got := f.proposal(t, p.ID).Status; got != StatusSucceeded {
		t.Fatalf("status = %q, want succeeded", got)
	}
	retally := f.target(t, CommandTypeTally, "a", p.ID)
	if !retally.Accepted() || len(retally.Events) != 0 || retally.Noop == "" {
		t.Fatalf("re-tally = %+v", retally)
	}

	if got := rejectionCode(f.target(t, CommandTypeExecute, "a", p.ID)); got != apperrors.CodeProposalInvalidTransition {
		t.Fatalf("execute before queue code = %q", got)
	}
	f.target(t, CommandTypeQueue, "a", p.ID)
	queued := f.proposal(t, p.ID)
	if queued.Status != StatusQueued || !queued.ExecutableAt.Equal(f.now.Add(24*time.Hour)) {
		t.Fatalf("queued = %+v", queued)
	}
	d := f.target(t, CommandTypeExecute, "a", p.ID)
	if got := rejectionCode(d); got != apperrors.CodeProposalTimelocked {
		t.Fatalf("timelocked code = %q", got)
	}

	f.advance(24 * time.Hour)
	if d := f.target(t, CommandTypeExecute, "anyone", p.ID); !d.Accepted() {
		t.Fatalf("execute rejected: %+v", d.Rejections)
	}
	if got := f.view.Staking.Treasury("dao"); got != 70 {
		t.Fatalf("treasury = %d, want 70", got)
	}
	if got := f.view.Staking.Balance("grantee"); got != 30 {
		t.Fatalf("grantee = %d, want 30", got)
	}
	if got := f.proposal(t, p.ID); got.Status != StatusExecuted || !got.ExecutedAt.Equal(f.now) {
		t.Fatalf("executed = %+v", got)
	}
	if got := rejectionCode(f.target(t, CommandTypeExecute, "anyone", p.ID)); got != apperrors.CodeProposalInvalidTransition {
		t.Fatalf("second execute code = %q", got)
	}
}

// passed drives a proposal through voting, tally and queue.
func (f *fixture) passed(t *testing.T, payload CreatePayload) Proposal {
	t.Helper()
	p := f.propose(t, "a", payload)
	f.advance(time.Hour)
	if d := f.vote(t, "a", p.ID, ChoiceFor); !d.Accepted() {
		t.Fatalf("vote rejected: %+v", d.Rejections)
	}
	f.advance(72 * time.Hour)
	if d := f.target(t, CommandTypeTally, "a", p.ID); !d.Accepted() {
		t.Fatalf("tally rejected: %+v", d.Rejections)
	}
	if d := f.target(t, CommandTypeQueue, "a", p.ID); !d.Accepted() {
		t.Fatalf("queue rejected: %+v", d.Rejections)
	}
	f.advance(24 * time.Hour)
	return f.proposal(t, p.ID)
}

func TestExecutionRevertsAtomically(t *testing.T) {
	tests := []struct {
		name    string
		payload CreatePayload
	}{
		{"overdraw", CreatePayload{Title: "Overdraw", Actions: []action.Effect{
			{Kind: action.KindTreasuryTransfer, To: "x", Amount: 150},
		}}},
		{"batch overdraw", CreatePayload{Title: "Two grants", Actions: []action.Effect{
			{Kind: action.KindTreasuryTransfer, To: "x", Amount: 60},
			{Kind: action.KindTreasuryTransfer, To: "y", Amount: 60},
		}}},
		{"script revert", CreatePayload{Title: "Guarded", Script: `revert("guard failed")`}},
		{"duplicate member", CreatePayload{Title: "Re-add", Actions: []action.Effect{
			{Kind: action.KindAddMember, Account: "z"},
			{Kind: action.KindAddMember, Account: "z"},
		}}},
		{"invalid settings", CreatePayload{Title: "Break quorum", Script: `return { settings{ quorum_bps = 20000 } }`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.addMember(t, "a", membership.TierBasic)
			p := f.passed(t, tt.payload)

			d := f.target(t, CommandTypeExecute, "a", p.ID)
			if got := rejectionCode(d); got != apperrors.CodeProposalExecutionReverted {
				t.Fatalf("code = %q, want execution reverted", got)
			}
			if got := apperrors.CodeProposalExecutionReverted.Kind(); got != apperrors.KindInvalidState {
				t.Fatalf("kind = %q", got)
			}
			if got := f.proposal(t, p.ID).Status; got != StatusQueued {
				t.Fatalf("status = %q, want queued", got)
			}
			if got := f.view.Staking.Treasury("dao"); got != 100 {
				t.Fatalf("treasury = %d, want 100", got)
			}
			if _, ok := f.view.Members.Get("dao", "z"); ok {
				t.Fatal("expected no member added")
			}
		})
	}
}

func TestExecuteScriptEffects(t *testing.T) {
	f := newFixture(t, nil)
	f.stake("a", 1000)
	f.addMember(t, "a", membership.TierBasic)
	p := f.passed(t, CreatePayload{
		Type:  TypeCustom,
		Title: "Reorganize",
		Script: `
return {
  add_member("newbie"),
  set_tier("a", "premium"),
  set_tier("newbie", "basic"),
  transfer("a", ctx.treasury),
  settings{ quorum_bps = 2000 },
}`,
	})

	d := f.target(t, CommandTypeExecute, "a", p.ID)
	if got := rejectionCode(d); got != apperrors.CodeProposalExecutionReverted {
		t.Fatalf("code = %q, want revert for no-op tier change", got)
	}

	q := f.propose(t, "a", CreatePayload{Title: "Reorganize", Script: `
return {
  add_member("newbie"),
  set_tier("a", "premium"),
  transfer("a", ctx.treasury),
  settings{ quorum_bps = 2000 },
}`})
	f.advance(time.Hour)
	f.vote(t, "a", q.ID, ChoiceFor)
	f.advance(72 * time.Hour)
	f.target(t, CommandTypeTally, "a", q.ID)
	f.target(t, CommandTypeQueue, "a", q.ID)
	f.advance(24 * time.Hour)
	if d := f.target(t, CommandTypeExecute, "a", q.ID); !d.Accepted() {
		t.Fatalf("execute rejected: %+v", d.Rejections)
	}

	newbie, ok := f.view.Members.Get("dao", "newbie")
	if !ok || newbie.Tier != membership.TierBasic || newbie.Status != membership.StatusActive {
		t.Fatalf("newbie = %+v, %v", newbie, ok)
	}
	a, _ := f.view.Members.Get("dao", "a")
	if a.Tier != membership.TierPremium || a.BaseVotingPower != 3 {
		t.Fatalf("a = %+v", a)
	}
	if got := f.view.Staking.Balance("a"); got != 100 {
		t.Fatalf("wallet = %d, want 100", got)
	}
	if got := f.view.Staking.Treasury("dao"); got != 0 {
		t.Fatalf("treasury = %d, want 0", got)
	}
	org, _ := f.view.Organizations.Get("dao")
	if org.Settings.QuorumBps != 2000 {
		t.Fatalf("quorum = %d, want 2000", org.Settings.QuorumBps)
	}
	stats := f.view.Members.OrganizationStats("dao")
	if stats.TotalMembers != 2 || stats.TotalVotingPower != 4 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.addMember(t, "a", membership.TierBasic)
	f.addMember(t, "b", membership.TierBasic)

	p := f.propose(t, "a", CreatePayload{Title: "One"})
	if got := rejectionCode(f.target(t, CommandTypeCancel, "b", p.ID)); got != apperrors.CodeUnauthorized {
		t.Fatalf("stranger cancel code = %q", got)
	}
	if d := f.target(t, CommandTypeCancel, "a", p.ID); !d.Accepted() {
		t.Fatalf("cancel rejected: %+v", d.Rejections)
	}
	if got := f.proposal(t, p.ID); got.Status != StatusCancelled || got.CancelledAt.IsZero() {
		t.Fatalf("proposal = %+v", got)
	}
	if got := rejectionCode(f.target(t, CommandTypeTally, "a", p.ID)); got != apperrors.CodeProposalInvalidTransition {
		t.Fatalf("tally cancelled code = %q", got)
	}
	if got := rejectionCode(f.vote(t, "a", p.ID, ChoiceFor)); got != apperrors.CodeProposalNotActive {
		t.Fatalf("vote cancelled code = %q", got)
	}

	q := f.propose(t, "b", CreatePayload{Title: "Two"})
	if q.ID != "dao/2" {
		t.Fatalf("second id = %q", q.ID)
	}
	f.advance(time.Hour)
	f.vote(t, "a", q.ID, ChoiceAgainst)
	if got := rejectionCode(f.target(t, CommandTypeCancel, "ops", q.ID, authz.CapabilityEmergency)); got != apperrors.CodeProposalCancelForbidden {
		t.Fatalf("cancel after vote code = %q", got)
	}

	r := f.propose(t, "b", CreatePayload{Title: "Three"})
	if d := f.target(t, CommandTypeCancel, "m1", r.ID); !d.Accepted() {
		t.Fatalf("manager cancel rejected: %+v", d.Rejections)
	}
}

func TestCreateRejections(t *testing.T) {
	tests := []struct {
		name   string
		actor  string
		pay    CreatePayload
		grants []authz.Capability
		expect apperrors.Code
	}{
		{"no voting power", "outsider", CreatePayload{Title: "x"}, nil, apperrors.CodeProposalNoVotingPower},
		{"propose capability", "outsider", CreatePayload{Title: "x"}, []authz.Capability{authz.CapabilityPropose}, ""},
		{"bad type", "a", CreatePayload{Title: "x", Type: "poll"}, nil, apperrors.CodeProposalInvalid},
		{"bad model", "a", CreatePayload{Title: "x", VotingModel: "quadratic"}, nil, apperrors.CodeProposalInvalid},
		{"bad quorum", "a", CreatePayload{Title: "x", QuorumBps: ptr(int64(10_001))}, nil, apperrors.CodeProposalInvalid},
		{"bad action", "a", CreatePayload{Title: "x", Actions: []action.Effect{{Kind: action.KindTreasuryTransfer, To: "x"}}}, nil, apperrors.CodeProposalInvalid},
		{"bad script", "a", CreatePayload{Title: "x", Script: "return {"}, nil, apperrors.CodeProposalInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.addMember(t, "a", membership.TierBasic)
			d := f.run(t, newCmd(t, CommandTypeCreate, tt.actor, tt.pay, tt.grants...))
			if got := rejectionCode(d); got != tt.expect {
				t.Fatalf("code = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestCreateOnDissolvedOrganization(t *testing.T) {
	f := newFixture(t, nil)
	f.addMember(t, "a", membership.TierBasic)
	org := f.view.Organizations.Organizations["dao"]
	org.Status = organization.StatusDissolved
	f.view.Organizations.Organizations["dao"] = org

	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeCreate, "a", CreatePayload{Title: "x"}))); got != apperrors.CodeOrganizationDissolved {
		t.Fatalf("code = %q", got)
	}
}

func TestSuperMajorityRecordsThreshold(t *testing.T) {
	f := newFixture(t, nil)
	f.addMember(t, "a", membership.TierBasic)
	p := f.propose(t, "a", CreatePayload{Title: "x", Majority: organization.MajoritySuper, QuorumBps: ptr(int64(0))})
	if p.ThresholdBps != 6667 || p.QuorumBps != 0 {
		t.Fatalf("proposal = %+v", p)
	}
}

func TestPausedMemberCannotVote(t *testing.T) {
	f := newFixture(t, nil)
	f.addMember(t, "a", membership.TierBasic)
	f.addMember(t, "b", membership.TierBasic)
	p := f.propose(t, "a", CreatePayload{Title: "x"})
	f.advance(time.Hour)

	pause := newCmd(t, membership.CommandTypePause, "b", membership.AccountPayload{})
	d := membership.Decide(membership.DefaultRules(), f.view.membership(), pause, f.clock)
	f.apply(t, d.Events)

	if got := rejectionCode(f.vote(t, "b", p.ID, ChoiceFor)); got != apperrors.CodeMemberNotActive {
		t.Fatalf("code = %q", got)
	}
	if got := rejectionCode(f.vote(t, "nobody", p.ID, ChoiceFor)); got != apperrors.CodeMemberNotFound {
		t.Fatalf("non-member code = %q", got)
	}
}

func TestUnknownProposal(t *testing.T) {
	f := newFixture(t, nil)
	d := f.target(t, CommandTypeTally, "a", "dao/9")
	if got := rejectionCode(d); got != apperrors.CodeProposalNotFound {
		t.Fatalf("code = %q", got)
	}
	if d.Rejections[0].Metadata["ProposalID"] != "dao/9" {
		t.Fatalf("metadata = %+v", d.Rejections[0].Metadata)
	}
}

func ptr[T any](v T) *T { return &v }
