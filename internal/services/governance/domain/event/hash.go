package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/encoding"
)

// hashEnvelope lists the fields covered by the content hash. Integrity fields
// assigned by the journal (hashes, signatures) are excluded.
func hashEnvelope(evt Event) map[string]any {
	return map[string]any{
		"seq":             strconv.FormatUint(evt.Seq, 10),
		"timestamp":       evt.Timestamp.UTC().Format(time.RFC3339Nano),
		"type":            string(evt.Type),
		"organization_id": evt.OrganizationID,
		"actor_type":      string(evt.ActorType),
		"actor_id":        evt.ActorID,
		"entity_type":     evt.EntityType,
		"entity_id":       evt.EntityID,
		"request_id":      evt.RequestID,
		"correlation_id":  evt.CorrelationID,
		"causation_id":    evt.CausationID,
		"payload":         json.RawMessage(evt.PayloadJSON),
	}
}

// EventHash computes the content hash of an event envelope.
func EventHash(evt Event) (string, error) {
	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}
	hash, err := encoding.ContentHash(hashEnvelope(evt))
	if err != nil {
		return "", fmt.Errorf("event hash: %w", err)
	}
	return hash, nil
}

// ChainHash links an event hash to its predecessor's chain hash.
func ChainHash(evt Event, prevChainHash string) (string, error) {
	if evt.Hash == "" {
		return "", fmt.Errorf("event hash is required")
	}
	canonical, err := encoding.CanonicalJSON(map[string]string{
		"seq":        strconv.FormatUint(evt.Seq, 10),
		"event_hash": evt.Hash,
		"prev_hash":  prevChainHash,
	})
	if err != nil {
		return "", fmt.Errorf("chain hash: %w", err)
	}
	return encoding.SHA256Hex(canonical), nil
}
