package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(
		Definition{Type: "member.added", Scope: ScopeOrganization, EntityType: "member"},
		Definition{Type: "wallet.credited", Scope: ScopeProtocol, EntityType: "wallet",
			ValidatePayload: func(raw json.RawMessage) error {
				var p struct {
					Amount int64 `json:"amount"`
				}
				if err := json.Unmarshal(raw, &p); err != nil {
					return err
				}
				if p.Amount <= 0 {
					return errors.New("amount must be positive")
				}
				return nil
			}},
	)
	return r
}

func TestTypeDomain(t *testing.T) {
	if got := Type("stake.deposited").Domain(); got != "stake" {
		t.Fatalf("Domain() = %q", got)
	}
	if got := Type("plain").Domain(); got != "plain" {
		t.Fatalf("Domain() = %q", got)
	}
}

func TestValidateForAppendNormalizes(t *testing.T) {
	r := testRegistry(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600))
	evt, err := r.ValidateForAppend(Event{
		Type:           " member.added ",
		Timestamp:      now,
		OrganizationID: "org",
		ActorType:      ActorTypeAccount,
		ActorID:        "alice",
		EntityID:       "bob",
		PayloadJSON:    []byte(`{"b":1, "a":2}`),
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if evt.EntityType != "member" {
		t.Fatalf("entity type = %q, want default member", evt.EntityType)
	}
	if evt.Timestamp.Location() != time.UTC {
		t.Fatal("expected UTC timestamp")
	}
	if string(evt.PayloadJSON) != `{"a":2,"b":1}` {
		t.Fatalf("payload = %s", evt.PayloadJSON)
	}
}

func TestValidateForAppendErrors(t *testing.T) {
	r := testRegistry(t)
	now := time.Now()
	tests := []struct {
		name string
		evt  Event
		want error
	}{
		{"missing type", Event{}, ErrTypeRequired},
		{"unknown type", Event{Type: "nope"}, ErrTypeUnknown},
		{"missing timestamp", Event{Type: "member.added"}, ErrTimestampRequired},
		{"missing org", Event{Type: "member.added", Timestamp: now, EntityID: "x"}, ErrOrganizationIDRequired},
		{"bad actor", Event{Type: "wallet.credited", Timestamp: now, ActorType: "robot", EntityID: "x"}, ErrActorTypeInvalid},
		{"missing actor id", Event{Type: "wallet.credited", Timestamp: now, ActorType: ActorTypeAccount, EntityID: "x"}, ErrActorIDRequired},
		{"missing entity", Event{Type: "wallet.credited", Timestamp: now}, ErrEntityIDRequired},
		{"bad payload", Event{Type: "wallet.credited", Timestamp: now, EntityID: "x", PayloadJSON: []byte("{")}, ErrPayloadInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.ValidateForAppend(tt.evt); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateForAppendRunsPayloadValidator(t *testing.T) {
	r := testRegistry(t)
	_, err := r.ValidateForAppend(Event{Type: "wallet.credited", Timestamp: time.Now(), EntityID: "a", PayloadJSON: []byte(`{"amount":0}`)})
	if err == nil {
		t.Fatal("expected validator error")
	}
}

func TestRegisterRejectsDuplicateAndBadScope(t *testing.T) {
	r := testRegistry(t)
	if err := r.Register(Definition{Type: "member.added"}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := r.Register(Definition{Type: "x.y", Scope: "galaxy"}); err == nil {
		t.Fatal("expected scope error")
	}
	if len(r.ListDefinitions()) != 2 {
		t.Fatalf("definitions = %d", len(r.ListDefinitions()))
	}
}
