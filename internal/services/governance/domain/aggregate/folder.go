package aggregate

import (
	"fmt"
	"sync"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Mutation applies a prepared event to aggregate state. Mutations cannot
// fail; everything that can is done while preparing.
type Mutation func(*State)

// Folder turns events into mutations.
//
// Decoding is split from applying so a batch of events can be fully
// prepared, and rejected as a whole, before any state changes.
type Folder struct {
	foldOnce  sync.Once
	foldIndex map[event.Type]func(event.Event) (Mutation, error)
}

func (f *Folder) initFoldIndex() {
	f.foldOnce.Do(func() {
		f.foldIndex = make(map[event.Type]func(event.Event) (Mutation, error))
		for _, entry := range foldEntries() {
			for _, t := range entry.types() {
				f.foldIndex[t] = entry.prepare
			}
		}
	})
}

// DispatchedTypes returns every event type the folder can prepare.
func (f *Folder) DispatchedTypes() []event.Type {
	f.initFoldIndex()
	types := make([]event.Type, 0, len(f.foldIndex))
	for t := range f.foldIndex {
		types = append(types, t)
	}
	return types
}

// Prepare decodes evt into a mutation.
func (f *Folder) Prepare(evt event.Event) (Mutation, error) {
	f.initFoldIndex()
	prepare, ok := f.foldIndex[evt.Type]
	if !ok {
		return nil, fmt.Errorf("no fold registered for event type %s", evt.Type)
	}
	return prepare(evt)
}

// PrepareAll decodes a batch, failing on the first event that cannot be
// prepared.
func (f *Folder) PrepareAll(events []event.Event) ([]Mutation, error) {
	mutations := make([]Mutation, 0, len(events))
	for _, evt := range events {
		m, err := f.Prepare(evt)
		if err != nil {
			return nil, fmt.Errorf("prepare event %s: %w", evt.Type, err)
		}
		mutations = append(mutations, m)
	}
	return mutations, nil
}

// Fold prepares and applies a single event.
func (f *Folder) Fold(state *State, evt event.Event) error {
	m, err := f.Prepare(evt)
	if err != nil {
		return err
	}
	m(state)
	return nil
}
