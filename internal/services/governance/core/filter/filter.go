// Package filter parses AIP-160 event filters and translates them into SQL
// conditions or in-memory predicates.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// EventDeclarations returns the field declarations for event filtering.
func EventDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("type", filtering.TypeString),
		filtering.DeclareIdent("organization_id", filtering.TypeString),
		filtering.DeclareIdent("actor_type", filtering.TypeString),
		filtering.DeclareIdent("actor_id", filtering.TypeString),
		filtering.DeclareIdent("entity_type", filtering.TypeString),
		filtering.DeclareIdent("entity_id", filtering.TypeString),
		filtering.DeclareIdent("ts", filtering.TypeTimestamp),
	)
}

// fieldMapping maps filter field names to journal column names.
var fieldMapping = map[string]string{
	"type":            "event_type",
	"organization_id": "organization_id",
	"actor_type":      "actor_type",
	"actor_id":        "actor_id",
	"entity_type":     "entity_type",
	"entity_id":       "entity_id",
	"ts":              "timestamp",
}

// Comparison is a single field-operator-value leaf of a filter.
type Comparison struct {
	Field string
	Op    string
	// Value is a string for text fields and a time.Time for ts.
	Value any
}

// Node is a parsed filter tree. Exactly one of Comparison, And, Or is set.
type Node struct {
	Comparison *Comparison
	And        []Node
	Or         []Node
}

// Parse parses an AIP-160 filter expression. An empty filter returns a nil
// node, which matches everything.
func Parse(filterStr string) (*Node, error) {
	if strings.TrimSpace(filterStr) == "" {
		return nil, nil
	}
	decls, err := EventDeclarations()
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}
	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	node, err := translateExpr(filter.CheckedExpr.GetExpr())
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func translateExpr(e *expr.Expr) (Node, error) {
	if e == nil {
		return Node{}, fmt.Errorf("nil expression")
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return Node{}, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	return translateCall(call.CallExpr)
}

func translateCall(call *expr.Expr_Call) (Node, error) {
	switch call.Function {
	case "_&&_", "AND":
		left, right, err := translatePair(call.Args)
		if err != nil {
			return Node{}, fmt.Errorf("AND: %w", err)
		}
		return Node{And: []Node{left, right}}, nil
	case "_||_", "OR":
		left, right, err := translatePair(call.Args)
		if err != nil {
			return Node{}, fmt.Errorf("OR: %w", err)
		}
		return Node{Or: []Node{left, right}}, nil
	case "_==_", "=":
		return translateComparison(call.Args, "=")
	case "_!=_", "!=":
		return translateComparison(call.Args, "!=")
	case "_<_", "<":
		return translateComparison(call.Args, "<")
	case "_<=_", "<=":
		return translateComparison(call.Args, "<=")
	case "_>_", ">":
		return translateComparison(call.Args, ">")
	case "_>=_", ">=":
		return translateComparison(call.Args, ">=")
	default:
		return Node{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translatePair(args []*expr.Expr) (Node, Node, error) {
	if len(args) != 2 {
		return Node{}, Node{}, fmt.Errorf("requires 2 arguments")
	}
	left, err := translateExpr(args[0])
	if err != nil {
		return Node{}, Node{}, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return Node{}, Node{}, err
	}
	return left, right, nil
}

func translateComparison(args []*expr.Expr, op string) (Node, error) {
	if len(args) != 2 {
		return Node{}, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return Node{}, err
	}
	if _, ok := fieldMapping[field]; !ok {
		return Node{}, fmt.Errorf("unknown field: %s", field)
	}
	value, err := extractValue(args[1])
	if err != nil {
		return Node{}, err
	}
	if field == "ts" {
		if _, ok := value.(time.Time); !ok {
			return Node{}, fmt.Errorf("ts must be compared with timestamp(...)")
		}
	} else if _, ok := value.(string); !ok {
		return Node{}, fmt.Errorf("%s must be compared with a string", field)
	}
	return Node{Comparison: &Comparison{Field: field, Op: op, Value: value}}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.ExprKind)
	}
	return ident.IdentExpr.Name, nil
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		if s, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue); ok {
			return s.StringValue, nil
		}
		return nil, fmt.Errorf("unsupported constant type: %T", kind.ConstExpr.ConstantKind)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractTimestampValue(e *expr.Expr) (time.Time, error) {
	constant, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	s, ok := constant.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, s.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", s.StringValue)
	}
	return t.UTC(), nil
}
