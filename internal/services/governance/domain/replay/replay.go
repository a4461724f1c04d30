// Package replay rebuilds aggregate state from the event journal.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/aggregate"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrStateRequired indicates a missing target state.
	ErrStateRequired = errors.New("state is required")
)

// EventStore lists events for replay.
type EventStore interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Options configures replay behavior.
type Options struct {
	AfterSeq uint64
	// UntilSeq stops replay after this seq; zero replays everything.
	UntilSeq uint64
	PageSize int
}

// Result captures replay outcomes.
type Result struct {
	LastSeq uint64
	Applied int
}

// Replay folds journal events into state in seq order. Replay stops at the
// first sequence gap or fold failure and reports how far it got.
func Replay(ctx context.Context, store EventStore, folder *aggregate.Folder, state *aggregate.State, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	if state == nil {
		return Result{}, ErrStateRequired
	}
	if folder == nil {
		folder = &aggregate.Folder{}
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{LastSeq: options.AfterSeq}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		events, err := store.ListEvents(ctx, result.LastSeq, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return result, nil
			}
			expectedSeq := result.LastSeq + 1
			if evt.Seq != expectedSeq {
				return result, fmt.Errorf("event sequence gap: expected %d got %d", expectedSeq, evt.Seq)
			}
			if err := folder.Fold(state, evt); err != nil {
				return result, fmt.Errorf("fold seq %d: %w", evt.Seq, err)
			}
			result.LastSeq = evt.Seq
			result.Applied++
		}
	}
}
