package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Signer signs chain hashes.
type Signer interface {
	SignChainHash(organizationID, chainHash string) (signature, keyID string, err error)
}

// Verifier checks chain hash signatures.
type Verifier interface {
	VerifyChainHash(organizationID, chainHash, signature, keyID string) error
}

// Seal assigns seq and integrity fields to evt. The timestamp is truncated to
// millisecond precision before hashing so every journal backend hashes the
// same envelope.
func Seal(evt event.Event, seq uint64, prevChainHash string, signer Signer) (event.Event, error) {
	evt.Seq = seq
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}

	hash, err := event.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	if strings.TrimSpace(hash) == "" {
		return event.Event{}, fmt.Errorf("event hash is required")
	}
	evt.Hash = hash

	chainHash, err := event.ChainHash(evt, prevChainHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.PrevHash = prevChainHash
	evt.ChainHash = chainHash
	evt.Signature = ""
	evt.SignatureKeyID = ""

	if signer != nil {
		signature, keyID, err := signer.SignChainHash(evt.OrganizationID, chainHash)
		if err != nil {
			return event.Event{}, fmt.Errorf("sign chain hash: %w", err)
		}
		evt.Signature = signature
		evt.SignatureKeyID = keyID
	}
	return evt, nil
}

// Source lists journal events in seq order.
type Source interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// VerifyResult reports what Verify checked.
type VerifyResult struct {
	Checked int
	LastSeq uint64
	// Signed counts events whose signature was verified.
	Signed int
}

// Verify walks the whole journal and checks seq continuity, content hashes,
// chain links and, when verifier is non-nil, signatures.
func Verify(ctx context.Context, source Source, verifier Verifier) (VerifyResult, error) {
	var result VerifyResult
	prevChainHash := ""
	for {
		events, err := source.ListEvents(ctx, result.LastSeq, MaxPageSize)
		if err != nil {
			return result, fmt.Errorf("list events after %d: %w", result.LastSeq, err)
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if evt.Seq != result.LastSeq+1 {
				return result, fmt.Errorf("event sequence gap: expected %d got %d", result.LastSeq+1, evt.Seq)
			}
			if evt.PrevHash != prevChainHash {
				return result, fmt.Errorf("prev hash mismatch seq=%d", evt.Seq)
			}
			hash, err := event.EventHash(evt)
			if err != nil {
				return result, fmt.Errorf("compute event hash seq=%d: %w", evt.Seq, err)
			}
			if hash != evt.Hash {
				return result, fmt.Errorf("event hash mismatch seq=%d", evt.Seq)
			}
			chainHash, err := event.ChainHash(evt, prevChainHash)
			if err != nil {
				return result, fmt.Errorf("compute chain hash seq=%d: %w", evt.Seq, err)
			}
			if chainHash != evt.ChainHash {
				return result, fmt.Errorf("chain hash mismatch seq=%d", evt.Seq)
			}
			if verifier != nil {
				if err := verifier.VerifyChainHash(evt.OrganizationID, chainHash, evt.Signature, evt.SignatureKeyID); err != nil {
					return result, fmt.Errorf("signature mismatch seq=%d: %w", evt.Seq, err)
				}
				result.Signed++
			}
			prevChainHash = evt.ChainHash
			result.LastSeq = evt.Seq
			result.Checked++
		}
	}
}
