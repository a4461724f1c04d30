package journal

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/louisbranch/governing.space/internal/platform/pagination"
	"github.com/louisbranch/governing.space/internal/services/governance/core/filter"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Memory is an in-process journal for tests, scenarios and single-run tools.
type Memory struct {
	mu       sync.RWMutex
	registry *event.Registry
	signer   Signer
	events   []event.Event
}

// MemoryOption configures a Memory journal.
type MemoryOption func(*Memory)

// WithSigner signs every appended chain hash.
func WithSigner(signer Signer) MemoryOption {
	return func(m *Memory) { m.signer = signer }
}

// NewMemory returns an empty journal. A non-nil registry validates events
// before append.
func NewMemory(registry *event.Registry, opts ...MemoryOption) *Memory {
	m := &Memory{registry: registry}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// BatchAppend implements Journal.
func (m *Memory) BatchAppend(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if len(events) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prevChain := ""
	if n := len(m.events); n > 0 {
		prevChain = m.events[n-1].ChainHash
	}
	base := uint64(len(m.events))
	stored := make([]event.Event, 0, len(events))
	for i, evt := range events {
		if m.registry != nil {
			validated, err := m.registry.ValidateForAppend(evt)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			evt = validated
		}
		sealed, err := Seal(evt, base+uint64(i)+1, prevChain, m.signer)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		prevChain = sealed.ChainHash
		stored = append(stored, sealed)
	}
	m.events = append(m.events, stored...)
	return cloneEvents(stored), nil
}

// ListEvents implements Journal.
func (m *Memory) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if afterSeq >= uint64(len(m.events)) {
		return nil, nil
	}
	end := uint64(len(m.events))
	if limit > 0 && afterSeq+uint64(limit) < end {
		end = afterSeq + uint64(limit)
	}
	return cloneEvents(m.events[afterSeq:end]), nil
}

// ListEventsPage implements Journal.
func (m *Memory) ListEventsPage(ctx context.Context, req PageRequest) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	match, err := filter.ParseEventPredicate(req.Filter)
	if err != nil {
		return Page{}, err
	}
	cursor, err := pagination.DecodeSeqToken(req.PageToken)
	if err != nil {
		return Page{}, err
	}
	pageSize := pagination.ClampPageSize(req.PageSize, pagination.PageSizeConfig{Default: DefaultPageSize, Max: MaxPageSize})

	m.mu.RLock()
	matched := make([]event.Event, 0)
	for _, evt := range m.events {
		if match(evt) {
			matched = append(matched, evt)
		}
	}
	m.mu.RUnlock()
	if req.Descending {
		slices.Reverse(matched)
	}

	page := Page{TotalSize: len(matched)}
	for _, evt := range matched {
		if cursor > 0 && ((!req.Descending && evt.Seq <= cursor) || (req.Descending && evt.Seq >= cursor)) {
			continue
		}
		if len(page.Events) == pageSize {
			page.NextPageToken = pagination.EncodeSeqToken(page.Events[len(page.Events)-1].Seq)
			break
		}
		page.Events = append(page.Events, evt)
	}
	page.Events = cloneEvents(page.Events)
	return page, nil
}

// LastSeq implements Journal.
func (m *Memory) LastSeq(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.events)), nil
}

func cloneEvents(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	for i, evt := range events {
		evt.PayloadJSON = append([]byte(nil), evt.PayloadJSON...)
		out[i] = evt
	}
	return out
}
