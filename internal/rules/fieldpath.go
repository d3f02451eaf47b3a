// internal/rules/fieldpath.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Path expression parsing and resolution over JSON documents.
 *
 * Resolves `$`-rooted dot paths with one-level `*` wildcards against a
 * types.Value. Unlike a first-match resolver, Resolve returns every branch:
 * predicates need ALL wildcard children to decide type checks, and any
 * existing branch to decide presence checks.
 *
 * Key functions:
 *   - ParsePath: string expression -> types.Path
 *   - Resolve: walks the document, one Match per branch
 *
 * Branch semantics:
 *   - literal key present on an object: descend
 *   - literal key otherwise: branch ends with Exists=false
 *   - wildcard on an object: one branch per member, in document order
 *   - wildcard on an empty object: no branches (vacuous)
 *   - wildcard on a non-object: branch ends with Exists=false
 *
 * Limits (MaxPathDepth, MaxNestedWildcards) are enforced when schemas are
 * parsed, not here, so ad-hoc resolution stays a pure total function.
 */

// InvalidPathError reports a path expression that is not rooted at `$` or
// has an empty segment.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid path expression %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid path expression %q: must be %q or start with %q", e.Path, types.PathRoot, types.PathRoot+".")
}

// Unwrap lets errors.Is match types.ErrInvalidPath.
func (e *InvalidPathError) Unwrap() error {
	return types.ErrInvalidPath
}

// ParsePath parses a path expression into segments below the root.
// Returns *InvalidPathError when expr is neither `$` nor `$.`-prefixed, or
// when a segment is empty (`$.`, `$.a..b`, `$.a.`).
func ParsePath(expr string) (types.Path, error) {
	if expr == types.PathRoot {
		return types.Path{}, nil
	}
	if !strings.HasPrefix(expr, types.PathRoot+".") {
		return nil, &InvalidPathError{Path: expr}
	}

	parts := strings.Split(expr[len(types.PathRoot)+1:], ".")
	path := make(types.Path, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, &InvalidPathError{Path: expr, Reason: fmt.Sprintf("segment %d is empty", i+1)}
		}
		if part == types.PathWildcard {
			path = append(path, types.PathSegment{Wildcard: true})
			continue
		}
		path = append(path, types.PathSegment{Key: part})
	}
	return path, nil
}

// Match is one resolution branch.
type Match struct {
	Path   string      // concrete path; wildcards replaced by the keys taken
	Value  types.Value // resolved value (null when !Exists)
	Exists bool        // true if the branch reached the end of the path
}

// Resolve traverses doc following path and returns one Match per branch.
// A path without wildcards always yields exactly one Match.
func Resolve(path types.Path, doc types.Value) []Match {
	var out []Match
	resolveRecursive(path, doc, make(types.Path, 0, len(path)), &out)
	return out
}

// resolveRecursive walks one branch. resolvedSoFar holds the concrete
// segments taken; on a miss the remaining segments are appended verbatim so
// the reported path still names what was looked for.
func resolveRecursive(path types.Path, current types.Value, resolvedSoFar types.Path, out *[]Match) {
	if len(path) == 0 {
		*out = append(*out, Match{
			Path:   resolvedSoFar.String(),
			Value:  current,
			Exists: true,
		})
		return
	}

	seg := path[0]
	remaining := path[1:]

	if current.Kind() != types.KindObject {
		// Scalar, array or null with path still to walk
		*out = append(*out, missing(resolvedSoFar, path))
		return
	}

	if seg.Wildcard {
		for _, m := range current.Members() {
			resolved := appendSegment(resolvedSoFar, types.PathSegment{Key: m.Key})
			resolveRecursive(remaining, m.Value, resolved, out)
		}
		return
	}

	val, ok := current.Get(seg.Key)
	if !ok {
		*out = append(*out, missing(resolvedSoFar, path))
		return
	}
	resolveRecursive(remaining, val, appendSegment(resolvedSoFar, seg), out)
}

// appendSegment copies before appending so sibling wildcard branches never
// share a backing array.
func appendSegment(p types.Path, seg types.PathSegment) types.Path {
	next := make(types.Path, len(p), len(p)+1)
	copy(next, p)
	return append(next, seg)
}

func missing(resolvedSoFar, remaining types.Path) Match {
	full := make(types.Path, 0, len(resolvedSoFar)+len(remaining))
	full = append(full, resolvedSoFar...)
	full = append(full, remaining...)
	return Match{Path: full.String()}
}
