package filter

import (
	"fmt"
	"time"
)

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "event_type = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// ParseEventFilter parses an AIP-160 filter expression and returns a SQL
// condition. Timestamps are bound as unix milliseconds. Returns an empty
// condition for an empty filter string.
func ParseEventFilter(filterStr string) (SQLCondition, error) {
	node, err := Parse(filterStr)
	if err != nil || node == nil {
		return SQLCondition{}, err
	}
	return node.SQL(), nil
}

// SQL renders the node as a WHERE clause fragment.
func (n Node) SQL() SQLCondition {
	switch {
	case n.Comparison != nil:
		c := n.Comparison
		value := c.Value
		if t, ok := value.(time.Time); ok {
			value = t.UnixMilli()
		}
		return SQLCondition{
			Clause: fmt.Sprintf("%s %s ?", fieldMapping[c.Field], c.Op),
			Params: []any{value},
		}
	case len(n.And) == 2:
		return join(n.And, "AND")
	case len(n.Or) == 2:
		return join(n.Or, "OR")
	default:
		return SQLCondition{Clause: "1 = 1"}
	}
}

func join(nodes []Node, op string) SQLCondition {
	left, right := nodes[0].SQL(), nodes[1].SQL()
	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}
}
