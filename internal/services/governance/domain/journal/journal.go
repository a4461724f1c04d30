// Package journal defines the append-only governance event journal and its
// in-memory implementation.
//
// A journal owns sequencing and the tamper-evident chain: every appended
// event gets the next journal-wide seq, a content hash, a chain hash linking
// it to its predecessor and, when a signer is configured, an HMAC signature
// over the chain hash.
package journal

import (
	"context"
	"errors"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

const (
	// DefaultPageSize applies when a page request leaves PageSize unset.
	DefaultPageSize = 50
	// MaxPageSize caps page requests.
	MaxPageSize = 200
)

// ErrEmptyBatch indicates BatchAppend was called without events.
var ErrEmptyBatch = errors.New("event batch is empty")

// Journal appends and lists governance events.
type Journal interface {
	// BatchAppend appends events atomically and returns them with journal
	// fields assigned. Either every event is stored or none is.
	BatchAppend(ctx context.Context, events []event.Event) ([]event.Event, error)
	// ListEvents returns up to limit events with seq greater than afterSeq.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	// ListEventsPage returns a filtered page of events.
	ListEventsPage(ctx context.Context, req PageRequest) (Page, error)
	// LastSeq returns the seq of the newest event, or zero.
	LastSeq(ctx context.Context) (uint64, error)
}

// PageRequest selects a page of events.
type PageRequest struct {
	// Filter is an AIP-160 expression over type, organization_id,
	// actor_type, actor_id, entity_type, entity_id and ts.
	Filter     string
	PageSize   int
	PageToken  string
	Descending bool
}

// Page is one page of events.
type Page struct {
	Events        []event.Event
	NextPageToken string
	// TotalSize counts every event matching the filter.
	TotalSize int
}
