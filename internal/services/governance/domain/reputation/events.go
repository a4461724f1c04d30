package reputation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

const (
	EventTypeInitialized event.Type = "reputation.initialized"
	EventTypeUpdated     event.Type = "reputation.updated"
	EventTypeCleared     event.Type = "reputation.cleared"

	EntityTypeReputation = "reputation"
)

// Source identifies why a score changed.
type Source string

const (
	SourceManual Source = "manual"
	SourceVote   Source = "vote"
)

// InitializedPayload captures the payload for reputation.initialized events.
type InitializedPayload struct {
	Account string `json:"account"`
	Score   int64  `json:"score"`
}

// UpdatedPayload captures the payload for reputation.updated events.
type UpdatedPayload struct {
	Account    string `json:"account"`
	Before     int64  `json:"before"`
	After      int64  `json:"after"`
	Delta      int64  `json:"delta"`
	Source     Source `json:"source"`
	ReasonHash string `json:"reason_hash,omitempty"`
}

// ClearedPayload captures the payload for reputation.cleared events.
type ClearedPayload struct {
	Account string `json:"account"`
	Before  int64  `json:"before"`
}

// RegisterEvents registers reputation events.
func RegisterEvents(registry *event.Registry) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	for _, def := range []event.Definition{
		{Type: EventTypeInitialized, EntityType: EntityTypeReputation, ValidatePayload: validate[InitializedPayload]},
		{Type: EventTypeUpdated, EntityType: EntityTypeReputation, ValidatePayload: validateUpdated},
		{Type: EventTypeCleared, EntityType: EntityTypeReputation, ValidatePayload: validate[ClearedPayload]},
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// EventTypes lists the event types folded by this package.
func EventTypes() []event.Type {
	return []event.Type{EventTypeInitialized, EventTypeUpdated, EventTypeCleared}
}

func validate[T any](raw json.RawMessage) error {
	var p T
	return json.Unmarshal(raw, &p)
}

func validateUpdated(raw json.RawMessage) error {
	var p UpdatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if p.After-p.Before != p.Delta {
		return errors.New("reputation delta does not match before/after")
	}
	return nil
}

// Mutation applies a prepared event to the ledger.
type Mutation func(*State)

// Prepare decodes evt into a ledger mutation.
func Prepare(evt event.Event) (Mutation, error) {
	org := evt.OrganizationID
	at := evt.Timestamp
	switch evt.Type {
	case EventTypeInitialized:
		var p InitializedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		return func(s *State) {
			key := Key{OrganizationID: org, Account: p.Account}
			totals := s.Totals[org]
			if prev, ok := s.Entries[key]; ok {
				totals.Sum -= prev.Score
			} else {
				totals.Count++
			}
			totals.Sum += p.Score
			s.Totals[org] = totals
			s.Entries[key] = Entry{Score: p.Score, UpdatedAt: at}
		}, nil
	case EventTypeUpdated:
		var p UpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		return func(s *State) {
			key := Key{OrganizationID: org, Account: p.Account}
			totals := s.Totals[org]
			totals.Sum += p.After - s.Entries[key].Score
			s.Totals[org] = totals
			s.Entries[key] = Entry{Score: p.After, UpdatedAt: at}
		}, nil
	case EventTypeCleared:
		var p ClearedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		return func(s *State) {
			key := Key{OrganizationID: org, Account: p.Account}
			prev, ok := s.Entries[key]
			if !ok {
				return
			}
			totals := s.Totals[org]
			totals.Sum -= prev.Score
			totals.Count--
			s.Totals[org] = totals
			delete(s.Entries, key)
		}, nil
	default:
		return nil, fmt.Errorf("reputation: unsupported event type %s", evt.Type)
	}
}
