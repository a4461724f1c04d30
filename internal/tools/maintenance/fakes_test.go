package maintenance

import (
	"context"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
)

// fakeClosableStore wraps a memory journal with Close and an optional hook
// that rewrites listed events.
type fakeClosableStore struct {
	*journal.Memory
	tamper   func([]event.Event)
	closeErr error
	closed   bool
}

func (f *fakeClosableStore) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	events, err := f.Memory.ListEvents(ctx, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	if f.tamper != nil {
		f.tamper(events)
	}
	return events, nil
}

func (f *fakeClosableStore) Close() error {
	f.closed = true
	return f.closeErr
}
