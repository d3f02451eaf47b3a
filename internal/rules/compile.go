// internal/rules/compile.go
package rules

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Schema parsing and validation.
 *
 * Compiles a schema wire document into a validated Schema tree. Parsing is
 * all-or-nothing: the first grammar or limit violation aborts with a
 * *SchemaParseError and no partial tree escapes.
 *
 * Wire grammar:
 *   node      := { "$and": [node...] } | { "$or": [node...] }
 *              | { "$type":   predicate(type-name) }
 *              | { "$exists": predicate(bool) }
 *   predicate := { path: expected, ..., "$description"?: string, "$comment"?: string }
 *
 * A node object carries exactly one operator key. A predicate with several
 * path entries compiles into an And of single-path predicates that share the
 * metadata, in document order; zero path entries is an error.
 *
 * Compilation workflow:
 *   1. Decode JSON into types.Value (ordered)
 *   2. Recursively parse nodes, tracking a pointer-style location
 *   3. Validate each path (root, MaxPathDepth, MaxNestedWildcards)
 *   4. NewSchema enforces depth, node count and cost limits
 */

// Wire keys of the schema language.
const (
	KeyAnd         = "$and"
	KeyOr          = "$or"
	KeyType        = "$type"
	KeyExists      = "$exists"
	KeyDescription = "$description"
	KeyComment     = "$comment"
)

// SchemaParseError reports a schema document that does not match the grammar.
// Location is a slash-separated pointer into the document ("" is the root).
type SchemaParseError struct {
	Location string
	Msg      string
	Err      error // underlying cause, may be nil
}

func (e *SchemaParseError) Error() string {
	loc := e.Location
	if loc == "" {
		loc = "/"
	}
	if e.Err != nil {
		return fmt.Sprintf("schema parse error at %s: %s: %v", loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("schema parse error at %s: %s", loc, e.Msg)
}

// Unwrap exposes both types.ErrSchemaParse and the underlying cause.
func (e *SchemaParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{types.ErrSchemaParse}
	}
	return []error{types.ErrSchemaParse, e.Err}
}

func parseErr(loc, msg string, cause error) error {
	return &SchemaParseError{Location: loc, Msg: msg, Err: cause}
}

// ParseSchema decodes and compiles a JSON schema document.
func ParseSchema(data []byte) (*Schema, error) {
	doc, err := types.ParseJSON(data)
	if err != nil {
		return nil, parseErr("", "malformed JSON", err)
	}
	return ParseSchemaValue(doc)
}

// ParseSchemaValue compiles an already decoded schema document.
func ParseSchemaValue(doc types.Value) (*Schema, error) {
	root, err := parseNode(doc, "", 1)
	if err != nil {
		return nil, err
	}
	schema, err := NewSchema(root)
	if err != nil {
		return nil, parseErr("", "schema rejected", err)
	}
	return schema, nil
}

// ParseRuleSetSchema compiles the schema of one named rule set. The name is
// validated and parse error locations are reported under "/<name>".
func ParseRuleSetSchema(name string, doc types.Value) (*Schema, error) {
	loc := "/" + name
	if err := types.ValidateName(name); err != nil {
		return nil, parseErr(loc, "invalid rule set name", err)
	}
	schema, err := ParseSchemaValue(doc)
	if err != nil {
		var spe *SchemaParseError
		if errors.As(err, &spe) {
			return nil, &SchemaParseError{Location: loc + spe.Location, Msg: spe.Msg, Err: spe.Err}
		}
		return nil, parseErr(loc, "invalid schema", err)
	}
	return schema, nil
}

// MustParseSchema panics on error; for schemas embedded at build time.
func MustParseSchema(data []byte) *Schema {
	s, err := ParseSchema(data)
	if err != nil {
		panic(err)
	}
	return s
}

// parseNode parses one single-key node object at loc.
// depth is checked here as well as in NewSchema so that hostile documents
// cannot recurse past MaxSchemaDepth before the tree is even built.
func parseNode(v types.Value, loc string, depth int) (Node, error) {
	if depth > types.MaxSchemaDepth {
		return nil, parseErr(loc, fmt.Sprintf("nesting exceeds %d levels", types.MaxSchemaDepth), types.ErrSchemaTooComplex)
	}
	if v.Kind() != types.KindObject {
		return nil, parseErr(loc, fmt.Sprintf("node must be an object, got %s", v.Kind()), nil)
	}
	members := v.Members()
	if len(members) != 1 {
		return nil, parseErr(loc, fmt.Sprintf("node must have exactly one operator key, got %d", len(members)), nil)
	}

	op := members[0]
	opLoc := loc + "/" + op.Key
	switch op.Key {
	case KeyAnd, KeyOr:
		children, err := parseChildren(op.Value, opLoc, depth)
		if err != nil {
			return nil, err
		}
		if op.Key == KeyAnd {
			return &And{Children: children}, nil
		}
		return &Or{Children: children}, nil
	case KeyType, KeyExists:
		return parsePredicate(op.Key, op.Value, opLoc)
	default:
		return nil, parseErr(loc, fmt.Sprintf("unknown operator %q", op.Key), nil)
	}
}

func parseChildren(v types.Value, loc string, depth int) ([]Node, error) {
	if v.Kind() != types.KindArray {
		return nil, parseErr(loc, fmt.Sprintf("combinator expects an array, got %s", v.Kind()), nil)
	}
	items := v.Items()
	children := make([]Node, 0, len(items))
	for i, item := range items {
		child, err := parseNode(item, loc+"/"+strconv.Itoa(i), depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// predicateEntry is one path/expected pair of a predicate body.
type predicateEntry struct {
	path     string
	expected types.Value
	loc      string
}

// parsePredicate parses a $type or $exists body.
func parsePredicate(op string, body types.Value, loc string) (Node, error) {
	if body.Kind() != types.KindObject {
		return nil, parseErr(loc, fmt.Sprintf("predicate expects an object, got %s", body.Kind()), nil)
	}

	var description, comment string
	var entries []predicateEntry
	for _, m := range body.Members() {
		entryLoc := loc + "/" + m.Key
		switch m.Key {
		case KeyDescription, KeyComment:
			s, ok := m.Value.AsString()
			if !ok {
				return nil, parseErr(entryLoc, fmt.Sprintf("%s must be a string, got %s", m.Key, m.Value.Kind()), nil)
			}
			if m.Key == KeyDescription {
				description = s
			} else {
				comment = s
			}
		default:
			if err := validatePath(m.Key, entryLoc); err != nil {
				return nil, err
			}
			entries = append(entries, predicateEntry{path: m.Key, expected: m.Value, loc: entryLoc})
		}
	}

	if len(entries) == 0 {
		return nil, parseErr(loc, "predicate has no path entries", nil)
	}

	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		n, err := buildPredicate(op, e, description, comment)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &And{Children: nodes}, nil
}

func buildPredicate(op string, e predicateEntry, description, comment string) (Node, error) {
	switch op {
	case KeyType:
		name, ok := e.expected.AsString()
		if !ok {
			return nil, parseErr(e.loc, fmt.Sprintf("$type expects a type name, got %s", e.expected.Kind()), nil)
		}
		t, err := ParseValueType(name)
		if err != nil {
			return nil, parseErr(e.loc, "invalid type name", err)
		}
		return &TypeCheck{Path: e.path, Expected: t, Description: description, Comment: comment}, nil
	case KeyExists:
		b, ok := e.expected.AsBool()
		if !ok {
			return nil, parseErr(e.loc, fmt.Sprintf("$exists expects a boolean, got %s", e.expected.Kind()), nil)
		}
		return &ExistsCheck{Path: e.path, Expected: b, Description: description, Comment: comment}, nil
	default:
		return nil, parseErr(e.loc, fmt.Sprintf("unknown predicate %q", op), nil)
	}
}

// validatePath enforces the path grammar and resource limits.
func validatePath(expr, loc string) error {
	path, err := ParsePath(expr)
	if err != nil {
		return parseErr(loc, "invalid path", err)
	}
	if len(path) > types.MaxPathDepth {
		return parseErr(loc, fmt.Sprintf("path has %d segments", len(path)), types.ErrPathTooDeep)
	}
	if path.Wildcards() > types.MaxNestedWildcards {
		return parseErr(loc, fmt.Sprintf("path has %d wildcards", path.Wildcards()), types.ErrTooManyWildcards)
	}
	return nil
}

// IsSchemaParseError reports whether err is (or wraps) a *SchemaParseError.
func IsSchemaParseError(err error) bool {
	var spe *SchemaParseError
	return errors.As(err, &spe)
}
