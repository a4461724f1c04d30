package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/governing.space/internal/platform/requestctx"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
	"github.com/louisbranch/governing.space/internal/services/governance/service"
	"github.com/louisbranch/governing.space/internal/services/governance/storage/integrity"
)

func testKeyring(t *testing.T) *integrity.Keyring {
	t.Helper()
	keyring, err := integrity.NewKeyring(map[string][]byte{"v1": bytes.Repeat([]byte{3}, 32)}, "v1")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	return keyring
}

// seededStore records a credit and a stake through the service.
func seededStore(t *testing.T, keyring *integrity.Keyring) *fakeClosableStore {
	t.Helper()
	registries, err := aggregate.BuildRegistries()
	if err != nil {
		t.Fatalf("build registries: %v", err)
	}
	store := &fakeClosableStore{Memory: journal.NewMemory(registries.Events, journal.WithSigner(keyring))}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, err := service.Open(context.Background(), service.Options{
		Journal:    store.Memory,
		Registries: &registries,
		Authorizer: authz.NewStaticAuthorizer(map[string][]authz.Capability{"mint": {authz.CapabilityTreasury}}),
		Now:        func() time.Time { return now },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	mint := requestctx.WithAccountID(context.Background(), "mint")
	if err := svc.CreditWallet(mint, "alice", 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	alice := requestctx.WithAccountID(context.Background(), "alice")
	if _, err := svc.Stake(alice, service.StakeInput{Purpose: staking.PurposeGovernance, Amount: 120}); err != nil {
		t.Fatalf("stake: %v", err)
	}
	return store
}

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("GOVERNING_SPACE_EVENTS_DB_PATH", "")
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.EventsDBPath != "data/governance-events.db" {
		t.Fatalf("events db path = %q", cfg.EventsDBPath)
	}
	if cfg.Timeout != 10*time.Minute || cfg.PageSize != 50 || cfg.WarningsCap != 25 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("GOVERNING_SPACE_EVENTS_DB_PATH", "env.db")
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-verify", "-list", "-filter", `type = "stake.deposited"`, "-organization-ids", "a,b"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.EventsDBPath != "env.db" || !cfg.Verify || !cfg.List || cfg.Replay {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Filter != `type = "stake.deposited"` || cfg.OrganizationIDs != "a,b" {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing path", cfg: Config{}},
		{name: "negative warnings cap", cfg: Config{EventsDBPath: "x", WarningsCap: -1}},
		{name: "page size too large", cfg: Config{EventsDBPath: "x", List: true, PageSize: journal.MaxPageSize + 1}},
		{name: "filter without list", cfg: Config{EventsDBPath: "x", Filter: `type = "x"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateConfig(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(" a, b ,, "); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected trimmed entries, got %v", got)
	}
}

func TestCapWarnings(t *testing.T) {
	warnings := []string{"a", "b", "c"}
	if got, total := capWarnings(warnings, 0); total != 3 || len(got) != 3 {
		t.Fatalf("expected all warnings, got %v (total=%d)", got, total)
	}
	if got, total := capWarnings(warnings, 2); total != 3 || len(got) != 2 {
		t.Fatalf("expected capped warnings, got %v (total=%d)", got, total)
	}
}

func TestRunWithDepsDefaultsToReplay(t *testing.T) {
	keyring := testKeyring(t)
	store := seededStore(t, keyring)
	out := &bytes.Buffer{}

	if err := runWithDeps(context.Background(), Config{WarningsCap: 25}, store, keyring, out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !store.closed {
		t.Fatal("expected store to be closed")
	}
	if !strings.Contains(out.String(), "Replayed 2 events through seq 2") {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "Supply 300") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunWithDepsVerifyAndListJSON(t *testing.T) {
	keyring := testKeyring(t)
	store := seededStore(t, keyring)
	out := &bytes.Buffer{}
	cfg := Config{Verify: true, List: true, Filter: `type = "stake.deposited"`, PageSize: 10, JSONOutput: true}

	if err := runWithDeps(context.Background(), cfg, store, keyring, out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %q", len(lines), out.String())
	}

	var verified struct {
		Mode   string       `json:"mode"`
		Report verifyReport `json:"report"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &verified); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if verified.Mode != "verify" || verified.Report.Checked != 2 || verified.Report.Signed != 2 {
		t.Fatalf("verify = %+v", verified)
	}

	var listed struct {
		Mode   string     `json:"mode"`
		Report listReport `json:"report"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listed.Report.TotalSize != 1 || len(listed.Report.Events) != 1 || listed.Report.Events[0].Type != "stake.deposited" {
		t.Fatalf("list = %+v", listed.Report)
	}
	if listed.Report.Events[0].Actor != "account:alice" {
		t.Fatalf("actor = %q, want account:alice", listed.Report.Events[0].Actor)
	}
}

func TestRunWithDepsDetectsTampering(t *testing.T) {
	keyring := testKeyring(t)
	store := seededStore(t, keyring)
	store.tamper = func(events []event.Event) {
		for i := range events {
			if events[i].Seq == 2 {
				events[i].PayloadJSON = []byte(`{"purpose":"governance","amount":999}`)
			}
		}
	}
	errOut := &bytes.Buffer{}

	err := runWithDeps(context.Background(), Config{Verify: true}, store, keyring, io.Discard, errOut)
	if err == nil {
		t.Fatal("expected maintenance failure")
	}
	if !strings.Contains(errOut.String(), "event hash mismatch seq=2") {
		t.Fatalf("errOut = %q", errOut.String())
	}
}

func TestRunWithDepsReportsCloseError(t *testing.T) {
	keyring := testKeyring(t)
	store := seededStore(t, keyring)
	store.closeErr = errors.New("disk gone")
	errOut := &bytes.Buffer{}

	if err := runWithDeps(context.Background(), Config{}, store, keyring, io.Discard, errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(errOut.String(), "close event store: disk gone") {
		t.Fatalf("errOut = %q", errOut.String())
	}
}

func TestRunReplaySummarizesOrganizations(t *testing.T) {
	keyring := testKeyring(t)
	store := seededStore(t, keyring)

	result := runReplay(context.Background(), store, 0, []string{"ghost"}, 0)
	if result.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1 for unknown organization", result.ExitCode)
	}
	if len(result.Warnings) != 1 || result.Warnings[0] != "organization ghost not found" {
		t.Fatalf("warnings = %v", result.Warnings)
	}
	var report replayReport
	if err := json.Unmarshal(result.Report, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalStaked["governance"] != 120 {
		t.Fatalf("total staked = %v", report.TotalStaked)
	}
}

func TestCheckConsistencyFlagsDrift(t *testing.T) {
	state := aggregate.NewState()
	state.Staking.Positions[staking.PositionKey{Account: "a", Purpose: staking.PurposeGovernance}] = staking.Position{Account: "a", Purpose: staking.PurposeGovernance, Amount: 10}
	state.Staking.TotalStaked[staking.PurposeGovernance] = 12
	state.Staking.Wallets["b"] = -1

	want := []string{
		"total staked for governance = 12, positions sum to 10",
		"wallet b is negative: -1",
	}
	if got := checkConsistency(state); !reflect.DeepEqual(got, want) {
		t.Fatalf("warnings = %v, want %v", got, want)
	}
}
