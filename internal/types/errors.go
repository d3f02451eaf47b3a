package types

import "errors"

// Sentinel errors for hl7keeper operations.
var (
	// ErrInvalidPath indicates a path expression not rooted at $.
	ErrInvalidPath = errors.New("invalid path expression")

	// ErrSchemaParse indicates a schema document does not match the node grammar.
	ErrSchemaParse = errors.New("schema parse error")

	// ErrPathTooDeep indicates a path expression exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("path expression exceeds maximum depth")

	// ErrTooManyWildcards indicates a path expression exceeds MaxNestedWildcards.
	ErrTooManyWildcards = errors.New("path expression has too many wildcards")

	// ErrSchemaTooComplex indicates a schema exceeds MaxSchemaDepth, MaxSchemaNodes or MaxSchemaCost.
	ErrSchemaTooComplex = errors.New("schema exceeds complexity limits")

	// ErrDocumentTooLarge indicates a document exceeds MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrInvalidJSON indicates a document could not be decoded.
	ErrInvalidJSON = errors.New("invalid JSON document")

	// ErrNotFound indicates a profile or rule set does not exist.
	ErrNotFound = errors.New("rule set not found")

	// ErrStorage indicates the backing database failed; callers may retry later.
	ErrStorage = errors.New("database error")

	// ErrEmptyName indicates a missing profile or rule set name.
	ErrEmptyName = errors.New("name is required")

	// ErrNameTooLong indicates a profile or rule set name exceeds MaxNameLength.
	ErrNameTooLong = errors.New("name too long")

	// ErrInvalidName indicates a name containing whitespace or slashes.
	ErrInvalidName = errors.New("name contains invalid characters")
)
