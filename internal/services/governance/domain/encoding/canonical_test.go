package encoding

import (
	"encoding/json"
	"testing"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(json.RawMessage(`{"b":2,"a":{"d":1,"c":[3,{"z":0,"y":1}]}}`))
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	want := `{"a":{"c":[3,{"y":1,"z":0}],"d":1},"b":2}`
	if string(got) != want {
		t.Fatalf("canonical = %s, want %s", got, want)
	}
}

func TestCanonicalJSONKeepsLargeIntegers(t *testing.T) {
	got, err := CanonicalJSON(map[string]int64{"amount": 9007199254740993})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if string(got) != `{"amount":9007199254740993}` {
		t.Fatalf("canonical = %s", got)
	}
}

func TestCanonicalJSONDoesNotEscapeHTML(t *testing.T) {
	got, err := CanonicalJSON(map[string]string{"reason": "<a&b>"})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if string(got) != `{"reason":"<a&b>"}` {
		t.Fatalf("canonical = %s", got)
	}
}

func TestContentHashIsOrderIndependent(t *testing.T) {
	first, err := ContentHash(json.RawMessage(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := ContentHash(json.RawMessage(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first != second {
		t.Fatalf("hashes differ: %s vs %s", first, second)
	}
	if len(first) != 32 {
		t.Fatalf("hash length = %d, want 32", len(first))
	}
}
