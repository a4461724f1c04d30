package organization

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Mutation applies a prepared event to organization state.
type Mutation func(*State)

// Prepare decodes evt into an organization mutation.
func Prepare(evt event.Event) (Mutation, error) {
	orgID := evt.OrganizationID
	at := evt.Timestamp
	switch evt.Type {
	case EventTypeCreated:
		var p CreatedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			s.Organizations[p.Organization.ID] = p.Organization
		}, nil
	case EventTypeActivated, EventTypeDissolved:
		var p TransitionPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			org := s.Organizations[orgID]
			org.Status = p.To
			if p.To == StatusActive {
				org.ActivatedAt = at
			} else {
				org.DissolvedAt = at
			}
			s.Organizations[orgID] = org
		}, nil
	case EventTypeSettingsUpdated:
		var p SettingsUpdatedPayload
		if err := decode(evt, &p); err != nil {
			return nil, err
		}
		return func(s *State) {
			org := s.Organizations[orgID]
			org.Settings = p.After
			s.Organizations[orgID] = org
		}, nil
	default:
		return nil, fmt.Errorf("organization: unsupported event type %s", evt.Type)
	}
}

func decode(evt event.Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return nil
}
