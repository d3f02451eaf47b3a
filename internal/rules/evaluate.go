// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Schema evaluation orchestration.
 *
 * Walks a Schema tree against a candidate document and folds per-node
 * outcomes into a single Verdict.
 *
 * Evaluation flow:
 *   1. Dispatch on node variant (type switch, exhaustive)
 *   2. Predicates resolve their path and contribute <= 1 failure each
 *   3. $and evaluates every child left-to-right, no short-circuit
 *   4. $or evaluates every child left-to-right; any pass clears failures
 *   5. Failures are concatenated in evaluation order
 *
 * Neither combinator short-circuits, so evaluation order fully determines
 * failure order.
 *
 * Matched paths: passing $exists:true predicates record the concrete paths
 * they found. Combinators keep matches only from children that passed, so
 * a rejected $or alternative never contributes a category.
 *
 * Concurrency: evaluation reads the schema and document and allocates a
 * fresh Verdict; any number of evaluations may share one Schema.
 */

// FailureReason classifies why a node failed.
type FailureReason string

const (
	ReasonTypeMismatch      FailureReason = "type_mismatch"
	ReasonExistenceMismatch FailureReason = "existence_mismatch"
	ReasonInvalidPath       FailureReason = "invalid_path"
	ReasonNoAlternatives    FailureReason = "no_alternatives"
	ReasonInvalidNode       FailureReason = "invalid_node"
)

// Failure is one diagnostic entry of a Verdict.
type Failure struct {
	Path        string        `json:"path"`                   // path expression as written in the schema
	MatchedPath string        `json:"matched_path,omitempty"` // concrete branch that failed
	Reason      FailureReason `json:"reason"`
	Expected    string        `json:"expected,omitempty"`
	Actual      string        `json:"actual,omitempty"`
	Message     string        `json:"message,omitempty"`
	Description string        `json:"description"`
	Comment     string        `json:"comment"`
}

// Verdict is the result of evaluating a schema against a document.
type Verdict struct {
	Valid    bool      `json:"valid"`
	Failures []Failure `json:"failures"`
	Matched  []string  `json:"matched,omitempty"`
}

// Evaluate checks doc against schema. schema must not be nil.
func Evaluate(schema *Schema, doc types.Value) Verdict {
	return EvaluateNode(schema.Root(), doc)
}

// EvaluateNode checks doc against an unvalidated tree.
// Prefer Evaluate; this exists for callers composing trees ad hoc.
func EvaluateNode(root Node, doc types.Value) Verdict {
	out := evaluateNode(root, doc)
	verdict := Verdict{
		Valid:    out.valid,
		Failures: out.failures,
		Matched:  out.matched,
	}
	if verdict.Failures == nil {
		verdict.Failures = []Failure{}
	}
	return verdict
}

// evaluateNode dispatches on the node variant.
func evaluateNode(n Node, doc types.Value) outcome {
	switch v := n.(type) {
	case *TypeCheck:
		if v != nil {
			return evaluateTypeCheck(v, doc)
		}
	case *ExistsCheck:
		if v != nil {
			return evaluateExistsCheck(v, doc)
		}
	case *And:
		if v != nil {
			return evaluateAnd(v, doc)
		}
	case *Or:
		if v != nil {
			return evaluateOr(v, doc)
		}
	}
	return fail(Failure{
		Reason:  ReasonInvalidNode,
		Message: "nil or unsupported schema node",
	})
}

// evaluateAnd requires every child to pass. Empty And passes.
func evaluateAnd(n *And, doc types.Value) outcome {
	result := outcome{valid: true}
	for _, child := range n.Children {
		out := evaluateNode(child, doc)
		if out.valid {
			result.matched = append(result.matched, out.matched...)
			continue
		}
		result.valid = false
		result.failures = append(result.failures, out.failures...)
	}
	return result
}

// evaluateOr requires at least one child to pass. When every child fails
// the failures of all alternatives are reported. Empty Or fails with a
// single no_alternatives entry so the rejection is still explained.
func evaluateOr(n *Or, doc types.Value) outcome {
	if len(n.Children) == 0 {
		return fail(Failure{
			Reason:  ReasonNoAlternatives,
			Message: "$or has no alternatives",
		})
	}

	result := outcome{}
	var failures []Failure
	for _, child := range n.Children {
		out := evaluateNode(child, doc)
		if out.valid {
			result.valid = true
			result.matched = append(result.matched, out.matched...)
			continue
		}
		failures = append(failures, out.failures...)
	}
	if !result.valid {
		result.failures = failures
	}
	return result
}
