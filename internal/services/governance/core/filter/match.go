package filter

import (
	"cmp"
	"strings"
	"time"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/event"
)

// Predicate reports whether an event satisfies a filter.
type Predicate func(event.Event) bool

// ParseEventPredicate parses an AIP-160 filter into an in-memory predicate.
func ParseEventPredicate(filterStr string) (Predicate, error) {
	node, err := Parse(filterStr)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return func(event.Event) bool { return true }, nil
	}
	return node.Match, nil
}

// Match evaluates the node against evt.
func (n Node) Match(evt event.Event) bool {
	switch {
	case n.Comparison != nil:
		return n.Comparison.match(evt)
	case len(n.And) > 0:
		for _, child := range n.And {
			if !child.Match(evt) {
				return false
			}
		}
		return true
	case len(n.Or) > 0:
		for _, child := range n.Or {
			if child.Match(evt) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func (c Comparison) match(evt event.Event) bool {
	if c.Field == "ts" {
		want, _ := c.Value.(time.Time)
		// Journals store millisecond precision.
		got := evt.Timestamp.UTC().Truncate(time.Millisecond).UnixMilli()
		return compare(cmp.Compare(got, want.UnixMilli()), c.Op)
	}
	want, _ := c.Value.(string)
	return compare(strings.Compare(fieldValue(evt, c.Field), want), c.Op)
}

func fieldValue(evt event.Event, field string) string {
	switch field {
	case "type":
		return string(evt.Type)
	case "organization_id":
		return evt.OrganizationID
	case "actor_type":
		return string(evt.ActorType)
	case "actor_id":
		return evt.ActorID
	case "entity_type":
		return evt.EntityType
	case "entity_id":
		return evt.EntityID
	default:
		return ""
	}
}

func compare(result int, op string) bool {
	switch op {
	case "=":
		return result == 0
	case "!=":
		return result != 0
	case "<":
		return result < 0
	case "<=":
		return result <= 0
	case ">":
		return result > 0
	case ">=":
		return result >= 0
	default:
		return false
	}
}
