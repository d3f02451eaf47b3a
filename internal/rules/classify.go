// internal/rules/classify.go
package rules

import (
	"strings"

	"github.com/solatis/hl7keeper/internal/types"
)

/*
 * Message classification.
 *
 * A profile's rule sets are named after the category they feed:
 *   - pii:     the message carries PII when this rule set PASSES
 *   - error:   every failure counts as an error and makes the message invalid
 *   - warning: every failure counts as a warning; validity is unaffected
 *   - other names are informational and only reported
 *
 * Classify folds per-rule-set verdicts into a Report. Categories maps the
 * matched paths of a verdict (from passing $exists:true checks) back to the
 * top-level key they live under, which is how a rule set document advertises
 * which categories it covers.
 */

// Category is the classification a rule set contributes to.
type Category string

const (
	CategoryPII           Category = "pii"
	CategoryWarning       Category = "warning"
	CategoryError         Category = "error"
	CategoryInformational Category = "informational"
)

// CategoryOf returns the category of a rule set name.
func CategoryOf(name types.RuleSetName) Category {
	switch Category(name) {
	case CategoryPII, CategoryWarning, CategoryError:
		return Category(name)
	default:
		return CategoryInformational
	}
}

// Categories returns the categories whose top-level key was matched by a
// passing $exists check, deduplicated, in match order.
func Categories(v Verdict) []Category {
	var out []Category
	seen := make(map[Category]bool)
	for _, p := range v.Matched {
		key, ok := topLevelKey(p)
		if !ok {
			continue
		}
		c := CategoryOf(types.RuleSetName(key))
		if c == CategoryInformational || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func topLevelKey(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, types.PathRoot+".")
	if !ok {
		return "", false
	}
	key, _, _ := strings.Cut(rest, ".")
	return key, true
}

// RuleSetResult is the verdict of one rule set against a message.
type RuleSetResult struct {
	RuleSet  types.RuleSetName `json:"ruleset"`
	Category Category          `json:"category"`
	Revision types.RevisionID  `json:"revision,omitempty"`
	Verdict  Verdict           `json:"verdict"`
}

// Report is the classification of one message under one profile.
// Categories lists the non-informational categories the profile covers.
type Report struct {
	Profile    types.Profile   `json:"profile"`
	Valid      bool            `json:"valid"`
	Errors     int             `json:"errors"`
	Warnings   int             `json:"warnings"`
	PII        bool            `json:"pii"`
	Categories []Category      `json:"categories"`
	Results    []RuleSetResult `json:"results"`
}

// Classify folds rule set results into a Report. Results keep their order.
func Classify(profile types.Profile, results []RuleSetResult) Report {
	report := Report{
		Profile:    profile,
		Valid:      true,
		Categories: []Category{},
		Results:    make([]RuleSetResult, 0, len(results)),
	}
	seen := make(map[Category]bool)
	for _, r := range results {
		r.Category = CategoryOf(r.RuleSet)
		if r.Category != CategoryInformational && !seen[r.Category] {
			seen[r.Category] = true
			report.Categories = append(report.Categories, r.Category)
		}
		switch r.Category {
		case CategoryError:
			if !r.Verdict.Valid {
				report.Valid = false
				report.Errors += len(r.Verdict.Failures)
			}
		case CategoryWarning:
			if !r.Verdict.Valid {
				report.Warnings += len(r.Verdict.Failures)
			}
		case CategoryPII:
			if r.Verdict.Valid {
				report.PII = true
			}
		}
		report.Results = append(report.Results, r)
	}
	return report
}
