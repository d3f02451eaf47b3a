// Package types provides domain models shared across hl7keeper components.
//
// Value is the closed JSON variant the rule engine walks; it lives here rather
// than in internal/rules so the store and API layers can carry documents
// without importing evaluation code. ID utilities in ids.go import uuid but
// are isolated from the rest of the package.
package types

import "strings"

// RevisionID represents a UUIDv7 rule set revision identifier.
// Every accepted put produces a new revision; snapshots never change in place.
type RevisionID string

// APIKeyID represents a UUIDv7 API key identifier.
type APIKeyID string

// Profile names a message-processing profile that owns rule sets.
type Profile string

// RuleSetName names one rule set within a profile (pii, warning, error, ...).
type RuleSetName string

// Resource limits enforced when schemas and documents enter the system.
const (
	// MaxPathDepth bounds the number of segments in a path expression.
	// 16 levels handles deeply nested message JSON ($.a.b.c...) without recursion concerns.
	MaxPathDepth = 16

	// MaxNestedWildcards limits wildcard expansion to prevent combinatorial explosion.
	// 2 wildcards allow patterns like $.*.*.id without exponential fan-out.
	MaxNestedWildcards = 2

	// MaxSchemaDepth bounds combinator nesting in a schema tree.
	MaxSchemaDepth = 32

	// MaxSchemaNodes bounds the total number of nodes in a schema tree.
	MaxSchemaNodes = 1024

	// MaxSchemaCost caps the summed evaluation cost of a schema (see rules.Cost).
	MaxSchemaCost = 1 << 20

	// MaxDocumentSize limits candidate documents and rule set payloads to 1MB.
	MaxDocumentSize = 1024 * 1024

	// MaxNameLength bounds profile and rule set names.
	MaxNameLength = 128
)

// ValidateName checks a profile or rule set name.
// Names are path-like identifiers: non-empty, bounded, no whitespace or slashes.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if strings.ContainsAny(name, " \t\r\n/") {
		return ErrInvalidName
	}
	return nil
}
