package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/platform/requestctx"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t       *testing.T
	svc     *Service
	clock   *fakeClock
	journal *journal.Memory
	opts    Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registries, err := aggregate.BuildRegistries()
	if err != nil {
		t.Fatalf("build registries: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := journal.NewMemory(registries.Events)
	opts := Options{
		Journal:    store,
		Registries: &registries,
		Authorizer: authz.NewStaticAuthorizer(map[string][]authz.Capability{
			"mint":    {authz.CapabilityTreasury},
			"council": {authz.CapabilityActivateOrganization},
			"oracle":  {authz.CapabilityReputationOracle},
			"sheriff": {authz.CapabilitySlash},
		}),
		Now:    clock.Now,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	svc, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	return &fixture{t: t, svc: svc, clock: clock, journal: store, opts: opts}
}

func as(account string) context.Context {
	return requestctx.WithAccountID(context.Background(), account)
}

func (f *fixture) fund(account string, amount int64) {
	f.t.Helper()
	if err := f.svc.CreditWallet(as("mint"), account, amount); err != nil {
		f.t.Fatalf("credit %s: %v", account, err)
	}
}

func (f *fixture) stake(account string, purpose staking.Purpose, amount int64, strategy staking.Strategy) {
	f.t.Helper()
	f.fund(account, amount)
	if _, err := f.svc.Stake(as(account), StakeInput{Purpose: purpose, Amount: amount, Strategy: strategy}); err != nil {
		f.t.Fatalf("stake %s: %v", account, err)
	}
}

// openOrganization creates and activates "dao" founded by alice, who also joins it.
func (f *fixture) openOrganization() {
	f.t.Helper()
	f.stake("alice", staking.PurposeDAOCreation, 1000, staking.StrategyStandard)
	if _, err := f.svc.CreateOrganization(as("alice"), CreateOrganizationInput{
		ID:          "dao",
		Name:        "Test DAO",
		AccessModel: organization.AccessOpen,
		MemberLimit: 50,
	}); err != nil {
		f.t.Fatalf("create organization: %v", err)
	}
	if err := f.svc.ActivateOrganization(as("council"), "dao"); err != nil {
		f.t.Fatalf("activate organization: %v", err)
	}
	f.join("alice", membership.TierBasic, 0)
}

func (f *fixture) join(account string, tier membership.Tier, initialStake int64) {
	f.t.Helper()
	if _, err := f.svc.AddMember(as(account), "dao", AddMemberInput{Tier: tier, InitialStake: initialStake}); err != nil {
		f.t.Fatalf("add member %s: %v", account, err)
	}
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("error = %v, want *apperrors.Error with code %s", err, code)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s", domainErr.Code, code)
	}
}

func TestBasicMemberVoteCountsOnce(t *testing.T) {
	f := newFixture(t)
	f.openOrganization()
	f.join("bob", membership.TierBasic, 0)

	if got := f.svc.GetVotingPower("dao", "bob"); got != 1 {
		t.Fatalf("bob power = %d, want 1", got)
	}
	p, err := f.svc.CreateProposal(as("alice"), "dao", CreateProposalInput{Title: "Adopt charter"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if p.ID != "dao/1" || p.VotingModel != organization.VotingDemocratic {
		t.Fatalf("proposal = %s/%s", p.ID, p.VotingModel)
	}

	f.clock.Advance(2 * time.Hour)
	vote, err := f.svc.CastVote(as("bob"), p.ID, proposal.ChoiceFor)
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if vote.Weight != 1 {
		t.Fatalf("vote weight = %d, want 1", vote.Weight)
	}
	got, _ := f.svc.GetProposal(p.ID)
	if got.ForVotes != 1 || got.Status != proposal.StatusActive {
		t.Fatalf("proposal for = %d status = %s", got.ForVotes, got.Status)
	}

	_, err = f.svc.CastVote(as("bob"), p.ID, proposal.ChoiceAgainst)
	requireCode(t, err, apperrors.CodeVoteAlreadyCast)
	if again, _ := f.svc.GetProposal(p.ID); again.ForVotes != 1 || again.AgainstVotes != 0 {
		t.Fatalf("double vote changed tallies: %+v", again)
	}
	if view, _ := f.svc.GetOrganization("dao"); view.ProposalCount != 1 {
		t.Fatalf("proposal count = %d, want 1", view.ProposalCount)
	}
}

func TestDelegationMovesEffectivePower(t *testing.T) {
	f := newFixture(t)
	f.openOrganization()
	f.stake("ana", staking.PurposeGovernance, 5000, staking.StrategyStandard)
	f.join("ana", membership.TierVIP, 5000)
	f.join("ben", membership.TierBasic, 0)

	steps := []struct {
		name string
		run  func() error
		ana  int64
		ben  int64
	}{
		{"delegate two", func() error { return f.svc.DelegateVotingPower(as("ana"), "dao", "ben", 2) }, 3, 3},
		{"undelegate one", func() error { return f.svc.UndelegateVotingPower(as("ana"), "dao", "ben", 1) }, 4, 2},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := f.svc.GetVotingPower("dao", "ana"); got != step.ana {
			t.Fatalf("%s: ana power = %d, want %d", step.name, got, step.ana)
		}
		if got := f.svc.GetVotingPower("dao", "ben"); got != step.ben {
			t.Fatalf("%s: ben power = %d, want %d", step.name, got, step.ben)
		}
	}
	stats := f.svc.GetMembershipStats("dao")
	if stats.TotalVotingPower != 1+5+1 {
		t.Fatalf("total voting power = %d, want 7", stats.TotalVotingPower)
	}

	err := f.svc.DelegateVotingPower(as("ana"), "dao", "ana", 1)
	requireCode(t, err, apperrors.CodeDelegationSelf)
	err = f.svc.UndelegateVotingPower(as("ana"), "dao", "ben", 5)
	requireCode(t, err, apperrors.CodeDelegationExceedsHeld)
}

func TestRageQuitPaysPenaltyToTreasuryPool(t *testing.T) {
	f := newFixture(t)
	f.stake("carol", staking.PurposeGovernance, 2000, staking.StrategyRageQuit)
	supply := f.svc.GetProtocolStats().Supply

	result, err := f.svc.Unstake(as("carol"), staking.PurposeGovernance, 2000)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if result.Payout != 1600 || result.Penalty != 400 {
		t.Fatalf("payout = %d penalty = %d, want 1600/400", result.Payout, result.Penalty)
	}
	if result.Withdrawal != nil || result.Remaining != nil {
		t.Fatalf("expected immediate exit, got %+v", result)
	}
	if wallet := f.svc.GetWallet("carol"); wallet.Balance != 1600 || len(wallet.Positions) != 0 {
		t.Fatalf("wallet = %+v", wallet)
	}
	stats := f.svc.GetProtocolStats()
	if stats.TreasuryPool != 400 {
		t.Fatalf("treasury pool = %d, want 400", stats.TreasuryPool)
	}
	if stats.Supply != supply {
		t.Fatalf("supply = %d, want %d", stats.Supply, supply)
	}
	if _, ok := f.svc.GetStakePosition("carol", staking.PurposeGovernance); ok {
		t.Fatal("expected position to close")
	}
}

func TestQuorumMissDefeatsProposal(t *testing.T) {
	f := newFixture(t)
	f.openOrganization()
	f.stake("whale", staking.PurposeGovernance, 95, staking.StrategyStandard)
	f.stake("minnow", staking.PurposeGovernance, 5, staking.StrategyStandard)
	f.join("whale", membership.TierBasic, 0)
	f.join("minnow", membership.TierBasic, 0)

	quorum := int64(1000)
	p, err := f.svc.CreateProposal(as("whale"), "dao", CreateProposalInput{
		Title:       "Spend",
		VotingModel: organization.VotingStake,
		QuorumBps:   &quorum,
	})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if p.EligiblePower != 100 {
		t.Fatalf("eligible power = %d, want 100", p.EligiblePower)
	}

	f.clock.Advance(2 * time.Hour)
	if _, err := f.svc.CastVote(as("minnow"), p.ID, proposal.ChoiceFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	_, err = f.svc.TallyProposal(as("alice"), p.ID)
	requireCode(t, err, apperrors.CodeProposalVotingOpen)

	f.clock.Advance(4 * 24 * time.Hour)
	result, err := f.svc.TallyProposal(as("alice"), p.ID)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if result.Status != proposal.StatusDefeated || result.QuorumReached || result.AlreadyFinalized {
		t.Fatalf("tally = %+v, want defeated without quorum", result)
	}

	again, err := f.svc.TallyProposal(as("alice"), p.ID)
	if err != nil {
		t.Fatalf("re-tally: %v", err)
	}
	if !again.AlreadyFinalized || again.Status != proposal.StatusDefeated {
		t.Fatalf("re-tally = %+v", again)
	}
}

func TestReputationAboveMaxIsRejected(t *testing.T) {
	f := newFixture(t)
	f.openOrganization()
	f.join("dave", membership.TierBasic, 0)

	before, _ := f.svc.GetMember("dao", "dave")
	_, err := f.svc.UpdateReputation(as("oracle"), "dao", "dave", 15_000-before.Reputation, "")
	requireCode(t, err, apperrors.CodeReputationOutOfRange)
	if apperrors.KindOf(err) != apperrors.KindOutOfRange {
		t.Fatalf("kind = %s, want out of range", apperrors.KindOf(err))
	}
	after, _ := f.svc.GetMember("dao", "dave")
	if after.Reputation != before.Reputation {
		t.Fatalf("score = %d, want %d", after.Reputation, before.Reputation)
	}

	score, err := f.svc.UpdateReputation(as("oracle"), "dao", "dave", 500, "")
	if err != nil {
		t.Fatalf("update reputation: %v", err)
	}
	if score != before.Reputation+500 {
		t.Fatalf("score = %d, want %d", score, before.Reputation+500)
	}
}

func TestCallerIsRequired(t *testing.T) {
	f := newFixture(t)
	err := f.svc.FundRewardPool(context.Background(), 10)
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestCapabilitiesComeFromAuthorizer(t *testing.T) {
	f := newFixture(t)
	err := f.svc.CreditWallet(as("alice"), "alice", 10)
	requireCode(t, err, apperrors.CodeCapabilityRequired)

	// System calls get no implicit grants.
	err = f.svc.CreditWallet(WithSystemActor(context.Background(), "core"), "alice", 10)
	requireCode(t, err, apperrors.CodeCapabilityRequired)

	if got := f.svc.GetWallet("alice").Balance; got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestSlashReportsPartial(t *testing.T) {
	f := newFixture(t)
	f.stake("erin", staking.PurposeTreasuryBond, 300, staking.StrategyStandard)

	tests := []struct {
		amount  int64
		slashed int64
		partial bool
	}{
		{amount: 100, slashed: 100, partial: false},
		{amount: 500, slashed: 200, partial: true},
	}
	for _, tt := range tests {
		got, err := f.svc.Slash(as("sheriff"), SlashInput{Account: "erin", Purpose: staking.PurposeTreasuryBond, Amount: tt.amount})
		if err != nil {
			t.Fatalf("slash %d: %v", tt.amount, err)
		}
		if got.Slashed != tt.slashed || got.Partial != tt.partial {
			t.Fatalf("slash %d = %+v, want slashed %d partial %v", tt.amount, got, tt.slashed, tt.partial)
		}
	}
	if stats := f.svc.GetProtocolStats(); stats.TotalSlashed != 300 {
		t.Fatalf("total slashed = %d, want 300", stats.TotalSlashed)
	}
}

func TestOpenRestoresFromJournal(t *testing.T) {
	f := newFixture(t)
	f.openOrganization()
	f.stake("ana", staking.PurposeGovernance, 5000, staking.StrategyStandard)
	f.join("ana", membership.TierVIP, 5000)
	if err := f.svc.DelegateVotingPower(as("ana"), "dao", "alice", 2); err != nil {
		t.Fatalf("delegate: %v", err)
	}

	restored, err := Open(context.Background(), f.opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for _, account := range []string{"alice", "ana"} {
		if got, want := restored.GetVotingPower("dao", account), f.svc.GetVotingPower("dao", account); got != want {
			t.Fatalf("%s power = %d, want %d", account, got, want)
		}
	}
	if got, want := restored.GetProtocolStats(), f.svc.GetProtocolStats(); got.Supply != want.Supply || got.LastSeq != want.LastSeq {
		t.Fatalf("restored stats = %+v, want %+v", got, want)
	}

	page, err := restored.ListEventsPage(context.Background(), journal.PageRequest{Filter: `type = "voting_power.delegated"`})
	if err != nil {
		t.Fatalf("list events page: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].ActorID != "ana" {
		t.Fatalf("page = %+v", page)
	}
}
