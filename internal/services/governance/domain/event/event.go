package event

import (
	"strings"
	"time"
)

// Type identifies the type of a governance event.
type Type string

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates an event emitted by the core itself.
	ActorTypeSystem ActorType = "system"
	// ActorTypeAccount indicates an event triggered by an account.
	ActorTypeAccount ActorType = "account"
)

// Event represents an immutable event in the governance journal.
type Event struct {
	// Seq is the journal-wide sequence number (starts at 1).
	// Assigned by the journal on append.
	Seq uint64
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by the journal on append.
	Hash string
	// PrevHash is the previous event's chain hash (empty for the first event).
	// Assigned by the journal on append.
	PrevHash string
	// ChainHash links this event to the previous event hash (SHA-256).
	// Assigned by the journal on append.
	ChainHash string
	// SignatureKeyID identifies the HMAC key used to sign the chain hash.
	SignatureKeyID string
	// Signature is the HMAC signature of the chain hash.
	Signature string

	Timestamp time.Time
	Type      Type
	// OrganizationID scopes the event; empty for protocol-level staking facts.
	OrganizationID string
	ActorType      ActorType
	ActorID        string
	// EntityType and EntityID name the subject of the event.
	EntityType    string
	EntityID      string
	RequestID     string
	CorrelationID string
	CausationID   string
	PayloadJSON   []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the prefix of the event type (e.g., "stake", "member").
func (t Type) Domain() string {
	if before, _, ok := strings.Cut(string(t), "."); ok {
		return before
	}
	return string(t)
}
