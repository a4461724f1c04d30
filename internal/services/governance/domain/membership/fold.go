package membership

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Mutation applies a prepared event to membership state.
type Mutation func(*State)

// Prepare decodes evt into a membership mutation.
func Prepare(evt event.Event) (Mutation, error) {
	orgID := evt.OrganizationID
	switch evt.Type {
	case EventTypeAdded:
		var p AddedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			m := p.Member
			m.OrganizationID = orgID
			s.Members[Key{OrganizationID: orgID, Account: m.Account}] = m
			stats := s.Stats[orgID]
			stats.TotalMembers++
			if m.Status == StatusActive {
				stats.ActiveMembers++
			}
			stats.TotalVotingPower += m.EffectivePower()
			s.Stats[orgID] = stats
		}, nil
	case EventTypeRemoved:
		var p RemovedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			key := Key{OrganizationID: orgID, Account: p.Account}
			m, ok := s.Members[key]
			if !ok {
				return
			}
			delete(s.Members, key)
			stats := s.Stats[orgID]
			stats.TotalMembers--
			if m.Status == StatusActive {
				stats.ActiveMembers--
			}
			stats.TotalVotingPower -= m.EffectivePower()
			s.Stats[orgID] = stats
		}, nil
	case EventTypeTierUpdated:
		var p TierUpdatedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.update(orgID, p.Account, func(m *Member) {
				m.Tier = p.To
				m.BaseVotingPower = p.BaseAfter
			})
		}, nil
	case EventTypePaused, EventTypeResumed, EventTypeSuspended, EventTypeReactivated:
		var p StatusChangedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.update(orgID, p.Account, func(m *Member) { m.Status = p.To })
		}, nil
	case EventTypeDelegated, EventTypeUndelegated:
		var p DelegationPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		amount := p.Amount
		if evt.Type == EventTypeUndelegated {
			amount = -amount
		}
		return func(s *State) {
			key := DelegationKey{OrganizationID: orgID, Delegator: p.From, Delegatee: p.To}
			if next := s.Delegations[key] + amount; next > 0 {
				s.Delegations[key] = next
			} else {
				delete(s.Delegations, key)
			}
			s.update(orgID, p.From, func(m *Member) { m.DelegatedOut += amount })
			s.update(orgID, p.To, func(m *Member) { m.DelegatedIn += amount })
		}, nil
	default:
		return nil, fmt.Errorf("membership: unsupported event type %s", evt.Type)
	}
}

// update mutates one member and keeps the organization aggregates in step.
func (s *State) update(orgID, account string, fn func(*Member)) {
	key := Key{OrganizationID: orgID, Account: account}
	m, ok := s.Members[key]
	if !ok {
		return
	}
	wasActive, before := m.Status == StatusActive, m.EffectivePower()
	fn(&m)
	s.Members[key] = m

	stats := s.Stats[orgID]
	isActive := m.Status == StatusActive
	switch {
	case wasActive && !isActive:
		stats.ActiveMembers--
	case !wasActive && isActive:
		stats.ActiveMembers++
	}
	stats.TotalVotingPower += m.EffectivePower() - before
	s.Stats[orgID] = stats
}

func decode(evt event.Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return nil
}
