package aggregate

import (
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/proposal"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// foldEntry maps a set of event types to the package that prepares them
// and the state slice the resulting mutation touches.
type foldEntry struct {
	types   func() []event.Type
	prepare func(evt event.Event) (Mutation, error)
}

// foldEntries is the declarative dispatch table. A new slice needs only
// an entry here.
func foldEntries() []foldEntry {
	return []foldEntry{
		{
			types: staking.EventTypes,
			prepare: func(evt event.Event) (Mutation, error) {
				m, err := staking.Prepare(evt)
				if err != nil {
					return nil, err
				}
				return func(s *State) { m(s.Staking) }, nil
			},
		},
		{
			types: organization.EventTypes,
			prepare: func(evt event.Event) (Mutation, error) {
				m, err := organization.Prepare(evt)
				if err != nil {
					return nil, err
				}
				return func(s *State) { m(s.Organizations) }, nil
			},
		},
		{
			types: membership.EventTypes,
			prepare: func(evt event.Event) (Mutation, error) {
				m, err := membership.Prepare(evt)
				if err != nil {
					return nil, err
				}
				return func(s *State) { m(s.Members) }, nil
			},
		},
		{
			types: reputation.EventTypes,
			prepare: func(evt event.Event) (Mutation, error) {
				m, err := reputation.Prepare(evt)
				if err != nil {
					return nil, err
				}
				return func(s *State) { m(s.Reputation) }, nil
			},
		},
		{
			types: proposal.EventTypes,
			prepare: func(evt event.Event) (Mutation, error) {
				m, err := proposal.Prepare(evt)
				if err != nil {
					return nil, err
				}
				return func(s *State) { m(s.Proposals) }, nil
			},
		},
	}
}
