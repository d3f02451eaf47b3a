// internal/rules/operators.go
package rules

import (
	"fmt"

	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Leaf predicate evaluation.
 *
 * Implements the two predicates of the schema language:
 *   - $type: every resolved branch exists and has the expected ValueType
 *   - $exists: some branch exists (true) / no branch exists (false)
 *
 * Each predicate contributes at most one Failure no matter how many
 * wildcard branches disagree; the failure names the first offending branch
 * in document order. Diagnostics stay one-per-node so an $or over N
 * predicates reports exactly N failures.
 *
 * Zero branches (wildcard over an empty object) is a vacuous pass for
 * $type: there is no child whose type could be wrong. For $exists:true it
 * is a failure, for $exists:false a pass.
 *
 * Path errors are reported as invalid_path failures, never dropped.
 */

const (
	presencePresent = "present"
	presenceAbsent  = "absent"
)

// outcome is the internal per-node result folded into a Verdict.
type outcome struct {
	valid    bool
	failures []Failure
	matched  []string
}

func pass(matched ...string) outcome {
	return outcome{valid: true, matched: matched}
}

func fail(f Failure) outcome {
	return outcome{failures: []Failure{f}}
}

// evaluateTypeCheck applies a $type predicate to doc.
func evaluateTypeCheck(n *TypeCheck, doc types.Value) outcome {
	path, err := ParsePath(n.Path)
	if err != nil {
		return fail(invalidPathFailure(n.Path, n.Description, n.Comment, err))
	}

	for _, m := range Resolve(path, doc) {
		if !m.Exists {
			return fail(Failure{
				Path:        n.Path,
				MatchedPath: m.Path,
				Reason:      ReasonTypeMismatch,
				Expected:    n.Expected.String(),
				Actual:      presenceAbsent,
				Message:     fmt.Sprintf("%s: expected %s, value is missing", m.Path, n.Expected),
				Description: n.Description,
				Comment:     n.Comment,
			})
		}
		if got := TypeOf(m.Value); got != n.Expected {
			return fail(Failure{
				Path:        n.Path,
				MatchedPath: m.Path,
				Reason:      ReasonTypeMismatch,
				Expected:    n.Expected.String(),
				Actual:      got.String(),
				Message:     fmt.Sprintf("%s: expected %s, got %s", m.Path, n.Expected, got),
				Description: n.Description,
				Comment:     n.Comment,
			})
		}
	}
	return pass()
}

// evaluateExistsCheck applies an $exists predicate to doc.
// Passing presence checks report every existing branch as matched.
func evaluateExistsCheck(n *ExistsCheck, doc types.Value) outcome {
	path, err := ParsePath(n.Path)
	if err != nil {
		return fail(invalidPathFailure(n.Path, n.Description, n.Comment, err))
	}

	var found []string
	firstMissing := ""
	for _, m := range Resolve(path, doc) {
		if m.Exists {
			found = append(found, m.Path)
		} else if firstMissing == "" {
			firstMissing = m.Path
		}
	}

	if n.Expected {
		if len(found) > 0 {
			return pass(found...)
		}
		if firstMissing == "" {
			firstMissing = n.Path
		}
		return fail(Failure{
			Path:        n.Path,
			MatchedPath: firstMissing,
			Reason:      ReasonExistenceMismatch,
			Expected:    presencePresent,
			Actual:      presenceAbsent,
			Message:     fmt.Sprintf("%s: expected to exist", n.Path),
			Description: n.Description,
			Comment:     n.Comment,
		})
	}

	if len(found) == 0 {
		return pass()
	}
	return fail(Failure{
		Path:        n.Path,
		MatchedPath: found[0],
		Reason:      ReasonExistenceMismatch,
		Expected:    presenceAbsent,
		Actual:      presencePresent,
		Message:     fmt.Sprintf("%s: expected to be absent", found[0]),
		Description: n.Description,
		Comment:     n.Comment,
	})
}

func invalidPathFailure(path, description, comment string, err error) Failure {
	return Failure{
		Path:        path,
		Reason:      ReasonInvalidPath,
		Message:     err.Error(),
		Description: description,
		Comment:     comment,
	}
}
