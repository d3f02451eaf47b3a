// internal/rules/cost.go
package rules

import "github.com/solatis/hl7keeper/internal/types"

/*
 * Cost model for schema evaluation.
 *
 * Canonical cost constants and Cost, used by NewSchema to reject schemas
 * whose worst-case evaluation is unbounded in practice (MaxSchemaCost) and
 * surfaced on stored snapshots for operators.
 *
 * Cost formula per predicate:
 *   lookup_cost * segments + predicate_cost * 8^wildcards
 * Combinators add CostCombinatorChild per child on top of their children.
 *
 * Wildcard execution multiplier: 8^n reflects assumed fan-out per wildcard.
 * With MaxNestedWildcards=2 the ceiling is 64x predicate cost.
 */

const (
	// Predicate base costs
	CostExists = 1
	CostType   = 2

	// Field lookup cost per path segment
	CostLookupPerSegment = 128

	// Dispatch overhead per combinator child
	CostCombinatorChild = 4

	// Assumed fan-out per wildcard segment
	WildcardFanout = 8
)

// Cost computes the evaluation cost of a tree.
// Invalid paths cost only the predicate base: they fail before resolving.
func Cost(n Node) int {
	switch v := n.(type) {
	case *TypeCheck:
		if v == nil {
			return 0
		}
		return predicateCost(v.Path, CostType)
	case *ExistsCheck:
		if v == nil {
			return 0
		}
		return predicateCost(v.Path, CostExists)
	case *And:
		if v == nil {
			return 0
		}
		return combinatorCost(v.Children)
	case *Or:
		if v == nil {
			return 0
		}
		return combinatorCost(v.Children)
	default:
		return 0
	}
}

func predicateCost(expr string, base int) int {
	path, err := ParsePath(expr)
	if err != nil {
		return base
	}

	execMult := 1
	for i := 0; i < path.Wildcards() && execMult <= types.MaxSchemaCost; i++ {
		execMult *= WildcardFanout
	}
	return len(path)*CostLookupPerSegment + base*execMult
}

func combinatorCost(children []Node) int {
	total := 0
	for _, c := range children {
		total += CostCombinatorChild + Cost(c)
	}
	return total
}
