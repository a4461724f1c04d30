package action

import (
	"errors"
	"strings"
	"testing"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
)

var testContext = ScriptContext{
	OrganizationID: "dao",
	ProposalID:     "dao/1",
	Treasury:       100,
	Members:        4,
	ForVotes:       3,
	AgainstVotes:   1,
}

func TestRunScriptBuildsEffects(t *testing.T) {
	script := `
local payout = math.floor(ctx.treasury / 2)
return {
  transfer("alice", payout),
  add_member("carol"),
  set_tier("bob", "premium"),
}
`
	effects, err := RunScript(script, testContext)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []Effect{
		{Kind: KindTreasuryTransfer, To: "alice", Amount: 50},
		{Kind: KindAddMember, Account: "carol", Tier: membership.TierBasic},
		{Kind: KindUpdateTier, Account: "bob", Tier: membership.TierPremium},
	}
	if len(effects) != len(want) {
		t.Fatalf("effects = %+v", effects)
	}
	for i := range want {
		if effects[i] != want[i] {
			t.Fatalf("effect %d = %+v, want %+v", i, effects[i], want[i])
		}
	}
}

func TestRunScriptSettingsPatch(t *testing.T) {
	effects, err := RunScript(`return { settings{ quorum_bps = 2500, default_majority = "super" } }`, testContext)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(effects) != 1 || effects[0].Kind != KindUpdateSettings || effects[0].Settings == nil {
		t.Fatalf("effects = %+v", effects)
	}
	got := effects[0].Settings.Apply(organization.DefaultSettings())
	if got.QuorumBps != 2500 || got.DefaultMajority != organization.MajoritySuper {
		t.Fatalf("settings = %+v", got)
	}
	if got.VotingPeriodSeconds != organization.DefaultSettings().VotingPeriodSeconds {
		t.Fatal("expected untouched fields to keep their values")
	}
}

func TestRunScriptEmpty(t *testing.T) {
	for _, script := range []string{"", "return nil", "return {}", "local x = 1"} {
		effects, err := RunScript(script, testContext)
		if err != nil {
			t.Fatalf("%q: %v", script, err)
		}
		if len(effects) != 0 {
			t.Fatalf("%q: effects = %+v", script, effects)
		}
	}
}

func TestRunScriptRevert(t *testing.T) {
	script := `
if ctx.for_votes < 10 then
  revert("not enough support")
end
return {}
`
	_, err := RunScript(script, testContext)
	var reverted *RevertError
	if !errors.As(err, &reverted) {
		t.Fatalf("err = %v, want revert", err)
	}
	if reverted.Reason != "not enough support" {
		t.Fatalf("reason = %q", reverted.Reason)
	}
}

func TestRunScriptRevertIsSticky(t *testing.T) {
	_, err := RunScript(`pcall(revert, "swallowed") return {}`, testContext)
	var reverted *RevertError
	if !errors.As(err, &reverted) {
		t.Fatalf("err = %v, want revert", err)
	}
}

func TestRunScriptInstructionBudget(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"busy loop", `while true do end`},
		{"pcall loop", `while true do pcall(function() while true do end end) end`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunScript(tt.script, testContext)
			if !errors.Is(err, ErrScriptBudget) {
				t.Fatalf("err = %v, want %v", err, ErrScriptBudget)
			}
		})
	}
}

func TestRunScriptWithinBudget(t *testing.T) {
	script := `
local total = 0
for i = 1, 1000 do total = total + i end
return { transfer("alice", total % 97 + 1) }
`
	effects, err := RunScript(script, testContext)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(effects) != 1 || effects[0].Amount != 500500%97+1 {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestRunScriptSandbox(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"io", `return io.open("/etc/passwd")`},
		{"os", `os.exit(1)`},
		{"require", `require("os")`},
		{"load", `load("return 1")()`},
		{"dofile", `dofile("/tmp/x.lua")`},
		{"random", `return { transfer("a", math.random(10)) }`},
		{"ctx write", `ctx.treasury = 0`},
		{"rawset ctx", `rawset(ctx, "treasury", 0)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RunScript(tt.script, testContext); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunScriptRejectsInvalidOutput(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"syntax", `return {`},
		{"number", `return 5`},
		{"non table entry", `return { 1 }`},
		{"unknown kind", `return { { kind = "mint", amount = 5 } }`},
		{"zero transfer", `return { transfer("a", 0) }`},
		{"bad tier", `return { set_tier("a", "gold") }`},
		{"fractional amount", `return { { kind = "treasury.transfer", to = "a", amount = 1.5 } }`},
		{"unknown field", `return { { kind = "treasury.transfer", to = "a", amount = 1, memo = "x" } }`},
		{"empty settings", `return { settings{} }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RunScript(tt.script, testContext); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunScriptSizeLimit(t *testing.T) {
	script := "return {}" + strings.Repeat(" ", MaxScriptBytes)
	if _, err := RunScript(script, testContext); err == nil {
		t.Fatal("expected size error")
	}
}

func TestRunScriptContextFields(t *testing.T) {
	script := `
if ctx.organization_id ~= "dao" or ctx.proposal_id ~= "dao/1" or ctx.members ~= 4 then
  revert("bad ctx")
end
return { transfer("x", ctx.for_votes + ctx.against_votes) }
`
	effects, err := RunScript(script, testContext)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(effects) != 1 || effects[0].Amount != 4 {
		t.Fatalf("effects = %+v", effects)
	}
}

func TestCheckScript(t *testing.T) {
	if err := CheckScript(`return { transfer("a", 1) }`); err != nil {
		t.Fatalf("CheckScript: %v", err)
	}
	if err := CheckScript(`return {`); err == nil {
		t.Fatal("expected syntax error")
	}
}
