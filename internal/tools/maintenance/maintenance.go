// Package maintenance inspects a governance event journal: it verifies the
// hash chain, replays events into a fresh aggregate and lists filtered events.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/governing.space/internal/platform/config"
	"github.com/louisbranch/governing.space/internal/platform/timeouts"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/replay"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
	"github.com/louisbranch/governing.space/internal/services/governance/storage/integrity"
	"github.com/louisbranch/governing.space/internal/services/governance/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	EventsDBPath    string
	Timeout         time.Duration
	OrganizationIDs string
	UntilSeq        uint64
	Verify          bool
	Replay          bool
	List            bool
	Filter          string
	PageSize        int
	PageToken       string
	Descending      bool
	WarningsCap     int
	JSONOutput      bool
}

type envConfig struct {
	EventsDBPath string        `env:"GOVERNING_SPACE_EVENTS_DB_PATH"`
	Timeout      time.Duration `env:"GOVERNING_SPACE_MAINTENANCE_TIMEOUT"`
}

// ParseConfig parses env and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}

	cfg := Config{
		EventsDBPath: envCfg.EventsDBPath,
		Timeout:      envCfg.Timeout,
		PageSize:     50,
		WarningsCap:  25,
	}
	if cfg.EventsDBPath == "" {
		cfg.EventsDBPath = filepath.Join("data", "governance-events.db")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Maintenance
	}

	fs.StringVar(&cfg.EventsDBPath, "events-db-path", cfg.EventsDBPath, "path to events sqlite database (default: GOVERNING_SPACE_EVENTS_DB_PATH or data/governance-events.db)")
	fs.StringVar(&cfg.OrganizationIDs, "organization-ids", "", "comma-separated organizations to summarize after replay")
	fs.Uint64Var(&cfg.UntilSeq, "until-seq", 0, "replay up to this event sequence (0 = latest)")
	fs.BoolVar(&cfg.Verify, "verify", false, "verify seq continuity, hashes, chain links and signatures")
	fs.BoolVar(&cfg.Replay, "replay", false, "replay the journal into a fresh aggregate and check custody totals (default when no mode is set)")
	fs.BoolVar(&cfg.List, "list", false, "list events matching -filter")
	fs.StringVar(&cfg.Filter, "filter", "", `AIP-160 event filter, e.g. type = "vote.cast" AND organization_id = "dao"`)
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "events per listed page")
	fs.StringVar(&cfg.PageToken, "page-token", "", "page token from a previous -list")
	fs.BoolVar(&cfg.Descending, "descending", false, "list newest events first")
	fs.IntVar(&cfg.WarningsCap, "warnings-cap", cfg.WarningsCap, "max warnings to print (0 = no limit)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the journal named by cfg and executes the selected modes.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return fmt.Errorf("load event keyring: %w", err)
	}
	registries, err := aggregate.BuildRegistries()
	if err != nil {
		return fmt.Errorf("build registries: %w", err)
	}
	store, err := sqlite.OpenEvents(cfg.EventsDBPath, keyring, registries.Events)
	if err != nil {
		return fmt.Errorf("open events db: %w", err)
	}
	return runWithDeps(ctx, cfg, store, keyring, out, errOut)
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.EventsDBPath) == "" {
		return errors.New("-events-db-path is required")
	}
	if cfg.WarningsCap < 0 {
		return errors.New("-warnings-cap must be >= 0")
	}
	if cfg.List && (cfg.PageSize <= 0 || cfg.PageSize > journal.MaxPageSize) {
		return fmt.Errorf("-page-size must be within [1, %d]", journal.MaxPageSize)
	}
	if !cfg.List && (cfg.Filter != "" || cfg.PageToken != "") {
		return errors.New("-filter and -page-token require -list")
	}
	return nil
}

// runWithDeps contains the core maintenance logic with injectable dependencies.
// It owns the lifecycle of the store (closing it on return).
func runWithDeps(ctx context.Context, cfg Config, store closableEventStore, verifier journal.Verifier, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close event store: %v\n", err)
		}
	}()

	if !cfg.Verify && !cfg.Replay && !cfg.List {
		cfg.Replay = true
	}

	var results []runResult
	if cfg.Verify {
		results = append(results, runVerify(ctx, store, verifier))
	}
	if cfg.Replay {
		results = append(results, runReplay(ctx, store, cfg.UntilSeq, splitCSV(cfg.OrganizationIDs), cfg.WarningsCap))
	}
	if cfg.List {
		results = append(results, runList(ctx, store, journal.PageRequest{
			Filter:     cfg.Filter,
			PageSize:   cfg.PageSize,
			PageToken:  cfg.PageToken,
			Descending: cfg.Descending,
		}))
	}

	failed := false
	for _, result := range results {
		if cfg.JSONOutput {
			outputJSON(out, errOut, result)
		} else {
			printResult(out, errOut, result)
		}
		if result.ExitCode != 0 {
			failed = true
		}
	}
	if failed {
		return errors.New("maintenance failed")
	}
	return nil
}

type runResult struct {
	Mode          string          `json:"mode"`
	Report        json.RawMessage `json:"report,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	WarningsTotal int             `json:"warnings_total,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExitCode      int             `json:"-"`
}

func (r *runResult) fail(format string, args ...any) runResult {
	r.Error = fmt.Sprintf(format, args...)
	r.ExitCode = 1
	return *r
}

func (r *runResult) setReport(report any) runResult {
	payload, err := json.Marshal(report)
	if err != nil {
		return r.fail("encode report: %v", err)
	}
	r.Report = payload
	return *r
}

type verifyReport struct {
	Checked int    `json:"checked"`
	Signed  int    `json:"signed"`
	LastSeq uint64 `json:"last_seq"`
}

func runVerify(ctx context.Context, store journal.Source, verifier journal.Verifier) runResult {
	result := runResult{Mode: "verify"}
	checked, err := journal.Verify(ctx, store, verifier)
	if err != nil {
		result.setReport(verifyReport{Checked: checked.Checked, Signed: checked.Signed, LastSeq: checked.LastSeq})
		return result.fail("verify journal: %v", err)
	}
	return result.setReport(verifyReport{Checked: checked.Checked, Signed: checked.Signed, LastSeq: checked.LastSeq})
}

type organizationSummary struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	Members          int64  `json:"members"`
	ActiveMembers    int64  `json:"active_members"`
	TotalVotingPower int64  `json:"total_voting_power"`
	Proposals        int64  `json:"proposals"`
	Treasury         int64  `json:"treasury"`
}

type replayReport struct {
	LastSeq       uint64                `json:"last_seq"`
	Applied       int                   `json:"applied"`
	Supply        int64                 `json:"supply"`
	RewardPool    int64                 `json:"reward_pool"`
	TreasuryPool  int64                 `json:"treasury_pool"`
	TotalStaked   map[string]int64      `json:"total_staked"`
	Organizations map[string]int64      `json:"organizations"`
	Summaries     []organizationSummary `json:"summaries,omitempty"`
}

func runReplay(ctx context.Context, store replay.EventStore, untilSeq uint64, orgIDs []string, warningsCap int) runResult {
	result := runResult{Mode: "replay"}
	state := aggregate.NewState()
	replayed, err := replay.Replay(ctx, store, nil, state, replay.Options{UntilSeq: untilSeq})
	if err != nil {
		return result.fail("replay journal: %v", err)
	}

	report := replayReport{
		LastSeq:       replayed.LastSeq,
		Applied:       replayed.Applied,
		Supply:        state.Staking.Supply(),
		RewardPool:    state.Staking.RewardPool,
		TreasuryPool:  state.Staking.TreasuryPool,
		TotalStaked:   map[string]int64{},
		Organizations: map[string]int64{},
	}
	for purpose, amount := range state.Staking.TotalStaked {
		report.TotalStaked[string(purpose)] = amount
	}
	for status, count := range state.Organizations.Count() {
		report.Organizations[string(status)] = count
	}

	warnings := checkConsistency(state)
	for _, id := range orgIDs {
		org, ok := state.Organizations.Get(id)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("organization %s not found", id))
			continue
		}
		stats := state.Members.OrganizationStats(id)
		report.Summaries = append(report.Summaries, organizationSummary{
			ID:               id,
			Status:           string(org.Status),
			Members:          stats.TotalMembers,
			ActiveMembers:    stats.ActiveMembers,
			TotalVotingPower: stats.TotalVotingPower,
			Proposals:        state.Proposals.Count(id),
			Treasury:         state.Staking.Treasury(id),
		})
	}
	result.Warnings, result.WarningsTotal = capWarnings(warnings, warningsCap)
	result.setReport(report)
	if result.WarningsTotal > 0 && result.ExitCode == 0 {
		result.ExitCode = 1
	}
	return result
}

// checkConsistency recomputes the aggregates folds maintain incrementally.
func checkConsistency(state *aggregate.State) []string {
	var warnings []string

	staked := map[staking.Purpose]int64{}
	for _, pos := range state.Staking.Positions {
		staked[pos.Purpose] += pos.Amount
	}
	purposes := map[staking.Purpose]struct{}{}
	for purpose := range staked {
		purposes[purpose] = struct{}{}
	}
	for purpose := range state.Staking.TotalStaked {
		purposes[purpose] = struct{}{}
	}
	for purpose := range purposes {
		if got, want := state.Staking.TotalStaked[purpose], staked[purpose]; got != want {
			warnings = append(warnings, fmt.Sprintf("total staked for %s = %d, positions sum to %d", purpose, got, want))
		}
	}
	for account, balance := range state.Staking.Wallets {
		if balance < 0 {
			warnings = append(warnings, fmt.Sprintf("wallet %s is negative: %d", account, balance))
		}
	}
	for orgID, balance := range state.Staking.OrgTreasuries {
		if balance < 0 {
			warnings = append(warnings, fmt.Sprintf("treasury %s is negative: %d", orgID, balance))
		}
	}

	type tally struct{ forVotes, against, abstain, voters int64 }
	tallies := map[string]*tally{}
	for _, vote := range state.Proposals.Votes {
		t := tallies[vote.ProposalID]
		if t == nil {
			t = &tally{}
			tallies[vote.ProposalID] = t
		}
		t.voters++
		switch vote.Choice {
		case proposal.ChoiceFor:
			t.forVotes += vote.Weight
		case proposal.ChoiceAgainst:
			t.against += vote.Weight
		default:
			t.abstain += vote.Weight
		}
	}
	for id, p := range state.Proposals.Proposals {
		t := tallies[id]
		if t == nil {
			t = &tally{}
		}
		if p.ForVotes != t.forVotes || p.AgainstVotes != t.against || p.AbstainVotes != t.abstain || p.VoterCount != t.voters {
			warnings = append(warnings, fmt.Sprintf("proposal %s tallies %d/%d/%d by %d voters, ballots sum to %d/%d/%d by %d",
				id, p.ForVotes, p.AgainstVotes, p.AbstainVotes, p.VoterCount, t.forVotes, t.against, t.abstain, t.voters))
		}
	}
	sort.Strings(warnings)
	return warnings
}

type listReport struct {
	Events        []listedEvent `json:"events"`
	NextPageToken string        `json:"next_page_token,omitempty"`
	TotalSize     int           `json:"total_size"`
}

type listedEvent struct {
	Seq            uint64          `json:"seq"`
	Type           string          `json:"type"`
	Timestamp      time.Time       `json:"ts"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Actor          string          `json:"actor"`
	Entity         string          `json:"entity"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func runList(ctx context.Context, store journal.Journal, req journal.PageRequest) runResult {
	result := runResult{Mode: "list"}
	page, err := store.ListEventsPage(ctx, req)
	if err != nil {
		return result.fail("list events: %v", err)
	}
	report := listReport{NextPageToken: page.NextPageToken, TotalSize: page.TotalSize}
	for _, evt := range page.Events {
		report.Events = append(report.Events, listedEvent{
			Seq:            evt.Seq,
			Type:           string(evt.Type),
			Timestamp:      evt.Timestamp,
			OrganizationID: evt.OrganizationID,
			Actor:          string(evt.ActorType) + ":" + evt.ActorID,
			Entity:         evt.EntityType + ":" + evt.EntityID,
			Payload:        json.RawMessage(evt.PayloadJSON),
		})
	}
	return result.setReport(report)
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func capWarnings(warnings []string, limit int) ([]string, int) {
	total := len(warnings)
	if limit == 0 || total <= limit {
		return warnings, total
	}
	return warnings[:limit], total
}

func outputJSON(out io.Writer, errOut io.Writer, result runResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(errOut, "Error: encode report: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(encoded))
}

func printResult(out io.Writer, errOut io.Writer, result runResult) {
	if result.Error != "" {
		fmt.Fprintf(errOut, "Error: %s\n", result.Error)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(errOut, "Warning: %s\n", warning)
	}
	if result.WarningsTotal > len(result.Warnings) {
		fmt.Fprintf(errOut, "Warning: %d more warnings suppressed\n", result.WarningsTotal-len(result.Warnings))
	}
	if len(result.Report) == 0 {
		return
	}
	switch result.Mode {
	case "verify":
		var report verifyReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "Error: decode report: %v\n", err)
			return
		}
		fmt.Fprintf(out, "Verified %d events through seq %d (%d signatures)\n", report.Checked, report.LastSeq, report.Signed)
	case "replay":
		var report replayReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "Error: decode report: %v\n", err)
			return
		}
		fmt.Fprintf(out, "Replayed %d events through seq %d\n", report.Applied, report.LastSeq)
		fmt.Fprintf(out, "Supply %d (reward pool %d, treasury pool %d)\n", report.Supply, report.RewardPool, report.TreasuryPool)
		for _, s := range report.Summaries {
			fmt.Fprintf(out, "[%s] %s: %d members (%d active), power %d, %d proposals, treasury %d\n",
				s.ID, s.Status, s.Members, s.ActiveMembers, s.TotalVotingPower, s.Proposals, s.Treasury)
		}
	case "list":
		var report listReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "Error: decode report: %v\n", err)
			return
		}
		for _, evt := range report.Events {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\n", evt.Seq, evt.Timestamp.Format(time.RFC3339), evt.Type, evt.Actor, evt.Entity)
		}
		fmt.Fprintf(out, "%d of %d matching events\n", len(report.Events), report.TotalSize)
		if report.NextPageToken != "" {
			fmt.Fprintf(out, "Next page: -page-token %s\n", report.NextPageToken)
		}
	}
}
