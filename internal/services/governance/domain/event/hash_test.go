package event

import (
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		Seq:            1,
		Timestamp:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:           "member.added",
		OrganizationID: "org",
		ActorType:      ActorTypeAccount,
		ActorID:        "alice",
		EntityType:     "member",
		EntityID:       "bob",
		PayloadJSON:    []byte(`{"tier":"basic"}`),
	}
}

func TestEventHashIgnoresIntegrityFields(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	b.Signature = "sig"
	b.ChainHash = "chain"
	ha, err := EventHash(a)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hb, _ := EventHash(b)
	if ha != hb {
		t.Fatal("integrity fields must not affect content hash")
	}
	if len(ha) != 32 {
		t.Fatalf("hash length = %d", len(ha))
	}
}

func TestEventHashChangesWithContent(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()
	b.PayloadJSON = []byte(`{"tier":"vip"}`)
	ha, _ := EventHash(a)
	hb, _ := EventHash(b)
	if ha == hb {
		t.Fatal("payload change must change hash")
	}
}

func TestChainHashLinksPredecessor(t *testing.T) {
	evt := sampleEvent()
	if _, err := ChainHash(evt, ""); err == nil {
		t.Fatal("expected error without event hash")
	}
	evt.Hash, _ = EventHash(evt)
	first, err := ChainHash(evt, "")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	second, _ := ChainHash(evt, "abc")
	if first == second || len(first) != 64 {
		t.Fatalf("chain hashes = %q, %q", first, second)
	}
}
