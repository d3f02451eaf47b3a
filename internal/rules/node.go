// internal/rules/node.go
package rules

import (
	"fmt"

	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Schema tree types.
 *
 * Node is a sealed sum type: *TypeCheck | *ExistsCheck | *And | *Or. The
 * unexported marker method keeps other packages from adding variants, and
 * evaluation, encoding and cost all dispatch with a type switch so a new
 * variant fails loudly in every place that must handle it.
 *
 * Schemas are immutable after NewSchema returns. Callers that build trees by
 * hand must not mutate them afterwards; parsed schemas are never exposed to
 * mutation by the store.
 */

// Node is one element of a schema tree.
type Node interface {
	node()
}

// TypeCheck asserts the structural type of every value matched by Path.
type TypeCheck struct {
	Path        string
	Expected    ValueType
	Description string
	Comment     string
}

// ExistsCheck asserts presence (Expected=true) or absence of Path.
type ExistsCheck struct {
	Path        string
	Expected    bool
	Description string
	Comment     string
}

// And passes when every child passes. Empty And passes.
type And struct {
	Children []Node
}

// Or passes when at least one child passes. Empty Or fails.
type Or struct {
	Children []Node
}

func (*TypeCheck) node()   {}
func (*ExistsCheck) node() {}
func (*And) node()         {}
func (*Or) node()          {}

// Schema is an immutable, validated schema tree.
type Schema struct {
	root  Node
	cost  int
	nodes int
}

// NewSchema validates root against resource limits and wraps it.
// Rejects nil children, trees deeper than MaxSchemaDepth (which also rules
// out cycles), more than MaxSchemaNodes nodes, or cost above MaxSchemaCost.
func NewSchema(root Node) (*Schema, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: schema has no root node", types.ErrSchemaTooComplex)
	}
	nodes, err := countNodes(root, 1)
	if err != nil {
		return nil, err
	}
	cost := Cost(root)
	if cost > types.MaxSchemaCost {
		return nil, fmt.Errorf("%w: cost %d exceeds %d", types.ErrSchemaTooComplex, cost, types.MaxSchemaCost)
	}
	return &Schema{root: root, cost: cost, nodes: nodes}, nil
}

// MustSchema is NewSchema for trees known valid at compile time.
func MustSchema(root Node) *Schema {
	s, err := NewSchema(root)
	if err != nil {
		panic(err)
	}
	return s
}

// Root returns the root node.
func (s *Schema) Root() Node { return s.root }

// Cost returns the evaluation cost computed at construction.
func (s *Schema) Cost() int { return s.cost }

// NodeCount returns the number of nodes in the tree.
func (s *Schema) NodeCount() int { return s.nodes }

func countNodes(n Node, depth int) (int, error) {
	if depth > types.MaxSchemaDepth {
		return 0, fmt.Errorf("%w: nesting exceeds %d levels", types.ErrSchemaTooComplex, types.MaxSchemaDepth)
	}

	var children []Node
	switch v := n.(type) {
	case *TypeCheck:
		if v == nil {
			return 0, fmt.Errorf("%w: nil node", types.ErrSchemaTooComplex)
		}
		return 1, nil
	case *ExistsCheck:
		if v == nil {
			return 0, fmt.Errorf("%w: nil node", types.ErrSchemaTooComplex)
		}
		return 1, nil
	case *And:
		if v == nil {
			return 0, fmt.Errorf("%w: nil node", types.ErrSchemaTooComplex)
		}
		children = v.Children
	case *Or:
		if v == nil {
			return 0, fmt.Errorf("%w: nil node", types.ErrSchemaTooComplex)
		}
		children = v.Children
	case nil:
		return 0, fmt.Errorf("%w: nil node", types.ErrSchemaTooComplex)
	default:
		return 0, fmt.Errorf("unknown node type %T", n)
	}

	total := 1
	for _, c := range children {
		if c == nil {
			return 0, fmt.Errorf("%w: nil child node", types.ErrSchemaTooComplex)
		}
		count, err := countNodes(c, depth+1)
		if err != nil {
			return 0, err
		}
		total += count
		if total > types.MaxSchemaNodes {
			return 0, fmt.Errorf("%w: more than %d nodes", types.ErrSchemaTooComplex, types.MaxSchemaNodes)
		}
	}
	return total, nil
}

// EqualNodes reports structural equality of two trees.
// Nil and empty child lists are equal.
func EqualNodes(a, b Node) bool {
	switch x := a.(type) {
	case *TypeCheck:
		y, ok := b.(*TypeCheck)
		return ok && (x == y || (x != nil && y != nil && *x == *y))
	case *ExistsCheck:
		y, ok := b.(*ExistsCheck)
		return ok && (x == y || (x != nil && y != nil && *x == *y))
	case *And:
		y, ok := b.(*And)
		return ok && (x == y || (x != nil && y != nil && equalChildren(x.Children, y.Children)))
	case *Or:
		y, ok := b.(*Or)
		return ok && (x == y || (x != nil && y != nil && equalChildren(x.Children, y.Children)))
	default:
		return a == nil && b == nil
	}
}

func equalChildren(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualNodes(a[i], b[i]) {
			return false
		}
	}
	return true
}
