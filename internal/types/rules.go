// internal/types/rules.go
package types

import "strings"

/*
 * Path expression types for rule evaluation.
 *
 * A path expression is `$` (the document root) optionally followed by
 * `.`-separated segments. A `*` segment is a one-level wildcard over the keys
 * of an object; there is no recursive descent and no array indexing.
 *
 * Key types:
 *   - PathSegment: one component of a parsed path (key or wildcard)
 *   - Path: parsed segments below the root
 *
 * Parsing lives in internal/rules (ParsePath); these types carry no
 * behaviour beyond rendering so the store and API can hold them.
 */

// PathRoot is the token that denotes the document itself.
const PathRoot = "$"

// PathWildcard is the segment that matches every key of an object.
const PathWildcard = "*"

// PathSegment represents one component of a path expression below the root.
type PathSegment struct {
	Key      string // object key (ignored when Wildcard)
	Wildcard bool   // true = every direct child of an object
}

// String renders the segment as it appears in a path expression.
func (s PathSegment) String() string {
	if s.Wildcard {
		return PathWildcard
	}
	return s.Key
}

// Path is a parsed path expression; an empty Path is the root.
type Path []PathSegment

// String renders the path back into `$`-rooted dot form.
func (p Path) String() string {
	if len(p) == 0 {
		return PathRoot
	}
	var b strings.Builder
	b.WriteString(PathRoot)
	for _, seg := range p {
		b.WriteByte('.')
		b.WriteString(seg.String())
	}
	return b.String()
}

// Wildcards counts wildcard segments in the path.
func (p Path) Wildcards() int {
	n := 0
	for _, seg := range p {
		if seg.Wildcard {
			n++
		}
	}
	return n
}
