package organization

import (
	"encoding/json"
	"testing"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

var t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	orgs  *State
	stake *staking.State
}

func newFixture() *fixture {
	f := &fixture{orgs: NewState(), stake: staking.NewState()}
	f.stake.Positions[staking.PositionKey{Account: "founder", Purpose: staking.PurposeDAOCreation}] = staking.Position{
		Account: "founder", Purpose: staking.PurposeDAOCreation, Amount: 1500,
	}
	f.stake.Wallets["founder"] = 200
	return f
}

func (f *fixture) run(t *testing.T, cmd command.Command) command.Decision {
	t.Helper()
	d := Decide(DefaultParams(), View{Organizations: f.orgs, Staking: f.stake}, cmd, func() time.Time { return t0 })
	for _, evt := range d.Events {
		if d := evt.Type.Domain(); d == "treasury" || d == "stake" {
			m, err := staking.Prepare(evt)
			if err != nil {
				t.Fatalf("prepare: %v", err)
			}
			m(f.stake)
			continue
		}
		m, err := Prepare(evt)
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}
		m(f.orgs)
	}
	return d
}

func newCmd(t *testing.T, typ command.Type, org, actor string, payload any, grants ...authz.Capability) command.Command {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return command.Command{
		Type: typ, OrganizationID: org, ActorType: command.ActorTypeAccount, ActorID: actor,
		PayloadJSON: data, Grants: authz.NewGrants(grants...),
	}
}

func createPayload() CreatePayload {
	return CreatePayload{OrganizationID: "dao", Name: "Test DAO", AccessModel: AccessOpen, MemberLimit: 10, Managers: []string{" m1 ", "founder", "m1"}}
}

func rejectionCode(d command.Decision) apperrors.Code {
	if len(d.Rejections) == 0 {
		return ""
	}
	return d.Rejections[0].Code
}

func TestCreateActivateDissolve(t *testing.T) {
	f := newFixture()
	if d := f.run(t, newCmd(t, CommandTypeCreate, "", "founder", createPayload())); !d.Accepted() {
		t.Fatalf("create rejected: %+v", d.Rejections)
	}
	org, ok := f.orgs.Get("dao")
	if !ok || org.Status != StatusCreated || org.CreationStake != 1500 {
		t.Fatalf("org = %+v", org)
	}
	if len(org.Managers) != 1 || org.Managers[0] != "m1" || !org.IsManager("founder") {
		t.Fatalf("managers = %v", org.Managers)
	}
	if org.Settings != DefaultSettings() {
		t.Fatalf("settings = %+v", org.Settings)
	}

	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeCreate, "", "founder", createPayload()))); got != apperrors.CodeOrganizationAlreadyExists {
		t.Fatalf("duplicate create = %s", got)
	}

	if d := f.run(t, newCmd(t, CommandTypeActivate, "dao", "ops", nil, authz.CapabilityActivateOrganization)); !d.Accepted() {
		t.Fatalf("activate rejected: %+v", d.Rejections)
	}
	org, _ = f.orgs.Get("dao")
	if !org.Active() || !org.ActivatedAt.Equal(t0) {
		t.Fatalf("org = %+v", org)
	}
	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeActivate, "dao", "ops", nil))); got != apperrors.CodeOrganizationInvalidTransition {
		t.Fatalf("second activate = %s", got)
	}

	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeDissolve, "dao", "stranger", nil))); got != apperrors.CodeOrganizationNotManager {
		t.Fatalf("stranger dissolve = %s", got)
	}
	if d := f.run(t, newCmd(t, CommandTypeDissolve, "dao", "stranger", nil, authz.CapabilityEmergency)); !d.Accepted() {
		t.Fatalf("emergency dissolve rejected: %+v", d.Rejections)
	}
	if _, r := RequireActive(f.orgs, "dao"); r == nil || r.Code != apperrors.CodeOrganizationDissolved {
		t.Fatalf("RequireActive = %+v", r)
	}
	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeDissolve, "dao", "founder", nil))); got != apperrors.CodeOrganizationInvalidTransition {
		t.Fatalf("dissolve twice = %s", got)
	}
}

func TestCreationStakeLockedUntilDissolved(t *testing.T) {
	f := newFixture()
	if d := f.run(t, newCmd(t, CommandTypeCreate, "", "founder", createPayload())); !d.Accepted() {
		t.Fatalf("create rejected: %+v", d.Rejections)
	}
	if got := f.stake.LockedStake("founder", staking.PurposeDAOCreation); got != 1000 {
		t.Fatalf("locked = %d, want 1000", got)
	}
	org, _ := f.orgs.Get("dao")
	if org.LockedStake != 1000 {
		t.Fatalf("org locked stake = %d, want 1000", org.LockedStake)
	}

	second := createPayload()
	second.OrganizationID = "dao2"
	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeCreate, "", "founder", second))); got != apperrors.CodeOrganizationCreationStake {
		t.Fatalf("second create = %s, want %s", got, apperrors.CodeOrganizationCreationStake)
	}

	if d := f.run(t, newCmd(t, CommandTypeDissolve, "dao", "founder", nil)); !d.Accepted() {
		t.Fatalf("dissolve rejected: %+v", d.Rejections)
	}
	if got := f.stake.LockedStake("founder", staking.PurposeDAOCreation); got != 0 {
		t.Fatalf("locked after dissolve = %d, want 0", got)
	}
	if d := f.run(t, newCmd(t, CommandTypeCreate, "", "founder", second)); !d.Accepted() {
		t.Fatalf("create after release rejected: %+v", d.Rejections)
	}
}

func TestCreateRejections(t *testing.T) {
	bad := DefaultSettings()
	bad.QuorumBps = 10_001
	tests := []struct {
		name   string
		actor  string
		mutate func(*CreatePayload)
		code   apperrors.Code
	}{
		{"insufficient stake", "poor", func(*CreatePayload) {}, apperrors.CodeOrganizationCreationStake},
		{"zero limit", "founder", func(p *CreatePayload) { p.MemberLimit = 0 }, apperrors.CodeOrganizationSettingsInvalid},
		{"bad access", "founder", func(p *CreatePayload) { p.AccessModel = "secret" }, apperrors.CodeOrganizationSettingsInvalid},
		{"bad quorum", "founder", func(p *CreatePayload) { p.Settings = &bad }, apperrors.CodeOrganizationSettingsInvalid},
		{"missing id", "founder", func(p *CreatePayload) { p.OrganizationID = "" }, apperrors.CodeInvalidArgument},
		{"slash in id", "founder", func(p *CreatePayload) { p.OrganizationID = "a/b" }, apperrors.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := createPayload()
			tt.mutate(&p)
			if got := rejectionCode(f.run(t, newCmd(t, CommandTypeCreate, "", tt.actor, p))); got != tt.code {
				t.Fatalf("code = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestDepositTreasury(t *testing.T) {
	f := newFixture()
	f.run(t, newCmd(t, CommandTypeCreate, "", "founder", createPayload()))
	if d := f.run(t, newCmd(t, CommandTypeDepositTreasury, "dao", "founder", DepositPayload{Amount: 150})); !d.Accepted() {
		t.Fatalf("deposit rejected: %+v", d.Rejections)
	}
	if f.stake.Treasury("dao") != 150 || f.stake.Balance("founder") != 50 {
		t.Fatalf("treasury=%d wallet=%d", f.stake.Treasury("dao"), f.stake.Balance("founder"))
	}
	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeDepositTreasury, "dao", "founder", DepositPayload{Amount: 51}))); got != apperrors.CodeStakeInsufficientBalance {
		t.Fatalf("overdraw = %s", got)
	}
	if got := rejectionCode(f.run(t, newCmd(t, CommandTypeDepositTreasury, "nope", "founder", DepositPayload{Amount: 1}))); got != apperrors.CodeOrganizationNotFound {
		t.Fatalf("unknown org = %s", got)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	s.VotingPeriodSeconds = 0
	if err := s.Validate(); err == nil {
		t.Fatal("expected zero voting period to be invalid")
	}
	if got := DefaultSettings().VotingPeriod(); got != 72*time.Hour {
		t.Fatalf("voting period = %v", got)
	}
}
