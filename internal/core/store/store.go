// Package store persists rule sets and hands out immutable snapshots.
//
// A Snapshot pairs a compiled *rules.Schema with the document it was compiled
// from and the revision that produced it. Snapshots are never modified: every
// accepted put creates a new revision and a new Snapshot, so evaluators
// holding an older Snapshot keep a complete, consistent schema.
package store

import (
	"context"
	"time"

	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
)

// Snapshot is one immutable revision of a stored rule set.
type Snapshot struct {
	Profile   types.Profile
	RuleSet   types.RuleSetName
	Revision  types.RevisionID
	Schema    *rules.Schema
	Document  types.Value
	Author    string
	UpdatedAt time.Time
}

// RawRuleSet is an uncompiled rule set document.
type RawRuleSet struct {
	Name     types.RuleSetName
	Document types.Value
}

// PutRequest replaces several rule sets of one profile at once.
type PutRequest struct {
	Profile  types.Profile
	Author   string
	RuleSets []RawRuleSet
}

// Revision is one entry of a rule set's history.
type Revision struct {
	Revision  types.RevisionID  `db:"revision_id"`
	Profile   types.Profile     `db:"profile"`
	RuleSet   types.RuleSetName `db:"name"`
	Author    string            `db:"author"`
	CreatedAt time.Time         `db:"created_at"`
}

// RuleStore stores and retrieves compiled rule sets.
//
// GetSchema returns an error wrapping types.ErrNotFound when the rule set
// does not exist. Puts compile their input first and return a
// *rules.SchemaParseError without writing anything when it is malformed.
// PutRuleSets is all-or-nothing across the request.
type RuleStore interface {
	GetSchema(ctx context.Context, profile types.Profile, ruleSet types.RuleSetName) (*Snapshot, error)
	PutSchema(ctx context.Context, profile types.Profile, ruleSet types.RuleSetName, author string, raw []byte) (*Snapshot, error)
	PutRuleSets(ctx context.Context, req PutRequest) ([]*Snapshot, error)
	ListRuleSets(ctx context.Context, profile types.Profile) ([]types.RuleSetName, error)
}
