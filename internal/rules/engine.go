// internal/rules/engine.go
package rules

import (
	_ "embed"

	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Rule set documents.
 *
 * A rule set document maps rule set names to schemas:
 *   { "pii": <schema>, "warning": <schema>, "error": <schema>, ... }
 *
 * Before its members are compiled the document itself is evaluated against
 * the embedded rule set schema (root is an object, every member is an
 * object, at least one of pii/warning/error is present). That verdict is what
 * CheckRules returns to API callers.
 */

//go:embed ruleset_schema.json
var ruleSetSchemaJSON []byte

// RuleSet is one compiled member of a rule set document.
type RuleSet struct {
	Name     types.RuleSetName
	Schema   *Schema
	Document types.Value
}

// Engine holds the built-in rule set schema and compiles rule set documents.
// Immutable after NewEngine; safe for concurrent use.
type Engine struct {
	ruleSetSchema *Schema
}

// NewEngine creates a rules engine with the embedded rule set schema.
func NewEngine() *Engine {
	return &Engine{ruleSetSchema: MustParseSchema(ruleSetSchemaJSON)}
}

// RuleSetSchema returns the schema every rule set document must satisfy.
func (e *Engine) RuleSetSchema() *Schema {
	return e.ruleSetSchema
}

// Evaluate checks doc against schema.
func (e *Engine) Evaluate(schema *Schema, doc types.Value) Verdict {
	return Evaluate(schema, doc)
}

// CheckRuleSet checks a rule set document against the built-in schema.
func (e *Engine) CheckRuleSet(doc types.Value) Verdict {
	return Evaluate(e.ruleSetSchema, doc)
}

// CompileRuleSets checks doc and compiles each top-level member into a
// schema. An invalid verdict returns no rule sets and a nil error; a member
// that is not a valid schema returns a *SchemaParseError located under the
// member name. Nothing is returned partially.
func (e *Engine) CompileRuleSets(doc types.Value) ([]RuleSet, Verdict, error) {
	verdict := e.CheckRuleSet(doc)
	if !verdict.Valid {
		return nil, verdict, nil
	}

	members := doc.Members()
	sets := make([]RuleSet, 0, len(members))
	for _, m := range members {
		schema, err := ParseRuleSetSchema(m.Key, m.Value)
		if err != nil {
			return nil, verdict, err
		}
		sets = append(sets, RuleSet{
			Name:     types.RuleSetName(m.Key),
			Schema:   schema,
			Document: m.Value,
		})
	}
	return sets, verdict, nil
}
