package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 987654321, time.UTC)

type failingJournal struct{}

func (failingJournal) BatchAppend(context.Context, []event.Event) ([]event.Event, error) {
	return nil, errors.New("disk full")
}

type skewedJournal struct{}

func (skewedJournal) BatchAppend(_ context.Context, events []event.Event) ([]event.Event, error) {
	out := append([]event.Event(nil), events...)
	for i := range out {
		out[i].Seq = uint64(10 + i)
	}
	return out, nil
}

type errAuthorizer struct{ err error }

func (a errAuthorizer) Grants(context.Context, authz.Principal) (authz.Grants, error) {
	return nil, a.err
}

type clockSpy struct {
	seen []time.Time
}

func (c *clockSpy) Decide(_ *aggregate.State, cmd command.Command, now func() time.Time) command.Decision {
	c.seen = append(c.seen, now(), now())
	return command.Noop("spy")
}

func newHandler(t *testing.T, j EventJournal, authorizer authz.Authorizer) *Handler {
	t.Helper()
	regs, err := aggregate.BuildRegistries()
	if err != nil {
		t.Fatalf("registries: %v", err)
	}
	h, err := New(Config{
		Commands:   regs.Commands,
		Events:     regs.Events,
		Journal:    j,
		Authorizer: authorizer,
		Rules:      aggregate.DefaultRules(),
		Now:        func() time.Time { return t0 },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return h
}

func treasurer() authz.Authorizer {
	return authz.NewStaticAuthorizer(map[string][]authz.Capability{"mint": {authz.CapabilityTreasury}})
}

func creditCmd(t *testing.T, actor, account string, amount int64) command.Command {
	t.Helper()
	payload, err := json.Marshal(staking.CreditPayload{Account: account, Amount: amount})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return command.Command{Type: staking.CommandTypeCreditWallet, ActorID: actor, PayloadJSON: payload}
}

func balance(h *Handler, account string) int64 {
	var got int64
	h.Read(func(s *aggregate.State) { got = s.Staking.Balance(account) })
	return got
}

func TestNewRequiresWiring(t *testing.T) {
	regs, err := aggregate.BuildRegistries()
	if err != nil {
		t.Fatalf("registries: %v", err)
	}
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "commands", cfg: Config{Events: regs.Events, Journal: journal.NewMemory(nil)}, want: ErrCommandRegistryRequired},
		{name: "events", cfg: Config{Commands: regs.Commands, Journal: journal.NewMemory(nil)}, want: ErrEventRegistryRequired},
		{name: "journal", cfg: Config{Commands: regs.Commands, Events: regs.Events}, want: ErrJournalRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExecuteRequiresCapability(t *testing.T) {
	store := journal.NewMemory(nil)
	h := newHandler(t, store, treasurer())
	ctx := context.Background()

	denied, err := h.Execute(ctx, creditCmd(t, "alice", "alice", 100))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(denied.Decision.Rejections) != 1 || denied.Decision.Rejections[0].Code != apperrors.CodeCapabilityRequired {
		t.Fatalf("decision = %+v", denied.Decision)
	}
	if got := denied.Decision.Rejections[0].Metadata["Capability"]; got != string(authz.CapabilityTreasury) {
		t.Fatalf("capability metadata = %q", got)
	}
	if last, _ := store.LastSeq(ctx); last != 0 {
		t.Fatalf("journal seq = %d, want 0", last)
	}

	granted, err := h.Execute(ctx, creditCmd(t, "mint", "alice", 100))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(granted.Events) != 1 || granted.Events[0].Seq != 1 || granted.Events[0].ChainHash == "" {
		t.Fatalf("events = %+v", granted.Events)
	}
	if got := balance(h, "alice"); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
	if h.LastSeq() != 1 {
		t.Fatalf("last seq = %d, want 1", h.LastSeq())
	}
}

func TestExecuteRejectionLeavesStateUntouched(t *testing.T) {
	store := journal.NewMemory(nil)
	h := newHandler(t, store, treasurer())
	payload, _ := json.Marshal(staking.StakePayload{Purpose: staking.PurposeGovernance, Amount: 50})

	result, err := h.Execute(context.Background(), command.Command{Type: staking.CommandTypeStake, ActorID: "alice", PayloadJSON: payload})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Decision.Accepted() {
		t.Fatal("expected rejection")
	}
	if result.Decision.Rejections[0].Code != apperrors.CodeStakeInsufficientBalance {
		t.Fatalf("code = %s", result.Decision.Rejections[0].Code)
	}
	if last, _ := store.LastSeq(context.Background()); last != 0 {
		t.Fatalf("journal seq = %d, want 0", last)
	}
}

func TestExecuteInvalidEnvelope(t *testing.T) {
	h := newHandler(t, journal.NewMemory(nil), treasurer())
	_, err := h.Execute(context.Background(), command.Command{Type: "ghost.summon", ActorID: "alice"})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("err = %v, want invalid argument", err)
	}
	_, err = h.Execute(context.Background(), command.Command{Type: staking.CommandTypeCreditWallet, PayloadJSON: []byte(`{"account":"a"}`)})
	if err == nil {
		t.Fatal("expected missing actor error")
	}
}

func TestExecuteAuthorizerErrors(t *testing.T) {
	tokenErr := apperrors.New(apperrors.CodeCapabilityTokenExpired, "expired")
	h := newHandler(t, journal.NewMemory(nil), errAuthorizer{err: tokenErr})
	result, err := h.Execute(context.Background(), creditCmd(t, "mint", "alice", 1))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Decision.Rejections[0].Code != apperrors.CodeCapabilityTokenExpired {
		t.Fatalf("decision = %+v", result.Decision)
	}

	h = newHandler(t, journal.NewMemory(nil), errAuthorizer{err: errors.New("backend down")})
	if _, err := h.Execute(context.Background(), creditCmd(t, "mint", "alice", 1)); err == nil {
		t.Fatal("expected infrastructure error")
	}
}

func TestExecuteJournalFailureAbortsWithoutEffect(t *testing.T) {
	h := newHandler(t, failingJournal{}, treasurer())
	if _, err := h.Execute(context.Background(), creditCmd(t, "mint", "alice", 100)); err == nil {
		t.Fatal("expected append error")
	}
	if got := balance(h, "alice"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	if IsNonRetryable(errors.New("plain")) {
		t.Fatal("plain errors are retryable")
	}
}

func TestExecuteDetectsJournalDrift(t *testing.T) {
	h := newHandler(t, skewedJournal{}, treasurer())
	_, err := h.Execute(context.Background(), creditCmd(t, "mint", "alice", 100))
	if !IsNonRetryable(err) {
		t.Fatalf("err = %v, want non-retryable", err)
	}
	if got := balance(h, "alice"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
}

func TestExecuteReadsClockOnce(t *testing.T) {
	regs, err := aggregate.BuildRegistries()
	if err != nil {
		t.Fatalf("registries: %v", err)
	}
	calls := 0
	spy := &clockSpy{}
	h, err := New(Config{
		Commands: regs.Commands,
		Events:   regs.Events,
		Journal:  journal.NewMemory(nil),
		Decider:  spy,
		Now: func() time.Time {
			calls++
			return t0.Add(time.Duration(calls) * time.Hour)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := h.Execute(context.Background(), command.Command{Type: staking.CommandTypeStake, ActorID: "alice", PayloadJSON: []byte(`{}`)})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Decision.Noop != "spy" {
		t.Fatalf("decision = %+v", result.Decision)
	}
	if calls != 1 {
		t.Fatalf("clock calls = %d, want 1", calls)
	}
	if !spy.seen[0].Equal(spy.seen[1]) {
		t.Fatalf("clock drifted: %v vs %v", spy.seen[0], spy.seen[1])
	}
	if spy.seen[0].Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("clock = %v, want millisecond precision", spy.seen[0])
	}
}

func TestExecuteTimestampsFollowSequence(t *testing.T) {
	regs, err := aggregate.BuildRegistries()
	if err != nil {
		t.Fatalf("registries: %v", err)
	}
	store := journal.NewMemory(nil)
	var ticks atomic.Int64
	h, err := New(Config{
		Commands:   regs.Commands,
		Events:     regs.Events,
		Journal:    store,
		Authorizer: treasurer(),
		Rules:      aggregate.DefaultRules(),
		Now: func() time.Time {
			return t0.Add(time.Duration(ticks.Add(1)) * time.Second)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	const workers = 16
	cmd := creditCmd(t, "mint", "alice", 1)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Execute(context.Background(), cmd); err != nil {
				t.Errorf("execute: %v", err)
			}
		}()
	}
	wg.Wait()

	events, err := store.ListEvents(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != workers {
		t.Fatalf("events = %d, want %d", len(events), workers)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatalf("seq %d at %v precedes seq %d at %v", events[i].Seq, events[i].Timestamp, events[i-1].Seq, events[i-1].Timestamp)
		}
	}
}

func TestRestoreRebuildsState(t *testing.T) {
	store := journal.NewMemory(nil)
	h := newHandler(t, store, treasurer())
	ctx := context.Background()
	for _, amount := range []int64{100, 50} {
		if _, err := h.Execute(ctx, creditCmd(t, "mint", "alice", amount)); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}

	restored := newHandler(t, store, treasurer())
	result, err := restored.Restore(ctx, store)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if result.Applied != 2 || restored.LastSeq() != 2 {
		t.Fatalf("restore = %+v, last seq %d", result, restored.LastSeq())
	}
	if got := balance(restored, "alice"); got != 150 {
		t.Fatalf("restored balance = %d, want 150", got)
	}

	if _, err := restored.Execute(ctx, creditCmd(t, "mint", "alice", 1)); err != nil {
		t.Fatalf("execute after restore: %v", err)
	}
	if restored.LastSeq() != 3 {
		t.Fatalf("last seq = %d, want 3", restored.LastSeq())
	}
}
