package command

import (
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Shared rejection codes used by every decider.
const (
	RejectionCodePayloadDecodeFailed    = apperrors.CodePayloadDecodeFailed
	RejectionCodeCommandTypeUnsupported = apperrors.CodeCommandTypeUnsupported
)

// Decision represents the pure outcome of handling a command.
type Decision struct {
	Events     []event.Event
	Rejections []Rejection
	// Noop marks an accepted command that intentionally emits nothing
	// (for example re-tallying a finalized proposal).
	Noop string
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code     apperrors.Code
	Message  string
	Metadata map[string]string
}

// Err converts the rejection to an application error.
func (r Rejection) Err() *apperrors.Error {
	return apperrors.WithMetadata(r.Code, r.Message, r.Metadata)
}

// Accept returns a decision that emits the provided events.
func Accept(events ...event.Event) Decision {
	return Decision{Events: append([]event.Event(nil), events...)}
}

// Reject returns a decision that carries the provided rejections.
func Reject(rejections ...Rejection) Decision {
	return Decision{Rejections: append([]Rejection(nil), rejections...)}
}

// Rejectf builds a single-rejection decision.
func Rejectf(code apperrors.Code, message string) Decision {
	return Reject(Rejection{Code: code, Message: message})
}

// Noop returns an accepted decision with no events.
func Noop(reason string) Decision {
	return Decision{Noop: reason}
}

// Accepted reports whether the decision carries no rejections.
func (d Decision) Accepted() bool {
	return len(d.Rejections) == 0
}

// Validate checks that the decision is either events, rejections or an explicit no-op.
func (d Decision) Validate() error {
	switch {
	case len(d.Events) > 0 && len(d.Rejections) > 0:
		return errors.New("decision must not carry events and rejections")
	case len(d.Events) == 0 && len(d.Rejections) == 0 && d.Noop == "":
		return errors.New("decision must carry events, rejections or a no-op reason")
	}
	return nil
}

// NewEvent builds an event.Event by copying the shared envelope fields from a
// command. Callers supply the event-specific type, entity addressing, payload,
// and timestamp.
func NewEvent(cmd Command, eventType event.Type, entityType, entityID string, payloadJSON []byte, now time.Time) event.Event {
	return event.Event{
		OrganizationID: cmd.OrganizationID,
		Type:           eventType,
		Timestamp:      now,
		ActorType:      event.ActorType(cmd.ActorType),
		ActorID:        cmd.ActorID,
		RequestID:      cmd.RequestID,
		EntityType:     entityType,
		EntityID:       entityID,
		CorrelationID:  cmd.CorrelationID,
		CausationID:    cmd.CausationID,
		PayloadJSON:    payloadJSON,
	}
}

// Emitter accumulates events for one decision; the first marshal failure
// turns the decision into a rejection.
type Emitter struct {
	cmd    Command
	now    time.Time
	org    string
	events []event.Event
	err    error
}

// NewEmitter starts an emitter for cmd at the decision time.
func NewEmitter(cmd Command, now time.Time) *Emitter {
	return &Emitter{cmd: cmd, now: now, org: cmd.OrganizationID}
}

// ForOrganization overrides the organization id of subsequently emitted events.
func (e *Emitter) ForOrganization(orgID string) *Emitter {
	e.org = orgID
	return e
}

// Emit marshals payload and appends an event.
func (e *Emitter) Emit(eventType event.Type, entityType, entityID string, payload any) {
	if e.err != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.err = err
		return
	}
	evt := NewEvent(e.cmd, eventType, entityType, entityID, data, e.now)
	evt.OrganizationID = e.org
	e.events = append(e.events, evt)
}

// Decision returns the accumulated decision.
func (e *Emitter) Decision() Decision {
	if e.err != nil {
		return Rejectf(apperrors.CodeUnknown, "encode event payload: "+e.err.Error())
	}
	return Accept(e.events...)
}

// Decode unmarshals a command payload, reporting failure as a rejection.
func Decode[T any](cmd Command) (T, *Decision) {
	var payload T
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		d := Rejectf(RejectionCodePayloadDecodeFailed, "decode "+string(cmd.Type)+" payload: "+err.Error())
		return payload, &d
	}
	return payload, nil
}
