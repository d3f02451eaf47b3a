// internal/rules/classify_test.go
package rules

import (
	"testing"

	"github.com/solatis/hl7keeper/internal/types"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name     string
		expected Category
	}{
		{name: "pii", expected: CategoryPII},
		{name: "warning", expected: CategoryWarning},
		{name: "error", expected: CategoryError},
		{name: "audit", expected: CategoryInformational},
		{name: "PII", expected: CategoryInformational},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(types.RuleSetName(tt.name)); got != tt.expected {
				t.Errorf("CategoryOf(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	verdict := NewEngine().CheckRuleSet(mustJSON(t, `{"error": {}, "audit": {}, "pii": {}}`))
	got := Categories(verdict)

	want := []Category{CategoryPII, CategoryError}
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClassify_Categories(t *testing.T) {
	report := Classify("adt", []RuleSetResult{
		{RuleSet: "error", Verdict: Verdict{Valid: true}},
		{RuleSet: "audit", Verdict: Verdict{Valid: true}},
		{RuleSet: "pii", Verdict: Verdict{Valid: true}},
	})
	if len(report.Categories) != 2 || report.Categories[0] != CategoryError || report.Categories[1] != CategoryPII {
		t.Errorf("Categories = %v, want [error pii]", report.Categories)
	}
}

func TestCategories_Dedup(t *testing.T) {
	got := Categories(Verdict{Valid: true, Matched: []string{"$.pii.a", "$.pii.b", "$", "$.warning"}})
	if len(got) != 2 || got[0] != CategoryPII || got[1] != CategoryWarning {
		t.Errorf("Categories() = %v, want [pii warning]", got)
	}
}

func TestClassify(t *testing.T) {
	failing := func(n int) Verdict {
		return Verdict{Failures: make([]Failure, n)}
	}
	passing := Verdict{Valid: true, Failures: []Failure{}}

	tests := []struct {
		name     string
		results  []RuleSetResult
		valid    bool
		errors   int
		warnings int
		pii      bool
	}{
		{name: "no rule sets", valid: true},
		{
			name:    "pii detected",
			results: []RuleSetResult{{RuleSet: "pii", Verdict: passing}},
			valid:   true,
			pii:     true,
		},
		{
			name:    "pii not detected",
			results: []RuleSetResult{{RuleSet: "pii", Verdict: failing(1)}},
			valid:   true,
		},
		{
			name: "errors and warnings",
			results: []RuleSetResult{
				{RuleSet: "error", Verdict: failing(2)},
				{RuleSet: "warning", Verdict: failing(1)},
				{RuleSet: "audit", Verdict: failing(4)},
			},
			valid:    false,
			errors:   2,
			warnings: 1,
		},
		{
			name: "passing error rule set",
			results: []RuleSetResult{
				{RuleSet: "error", Verdict: passing},
				{RuleSet: "warning", Verdict: passing},
			},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Classify("adt", tt.results)
			if report.Profile != "adt" {
				t.Errorf("Profile = %q, want adt", report.Profile)
			}
			if report.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v", report.Valid, tt.valid)
			}
			if report.Errors != tt.errors {
				t.Errorf("Errors = %d, want %d", report.Errors, tt.errors)
			}
			if report.Warnings != tt.warnings {
				t.Errorf("Warnings = %d, want %d", report.Warnings, tt.warnings)
			}
			if report.PII != tt.pii {
				t.Errorf("PII = %v, want %v", report.PII, tt.pii)
			}
			if len(report.Categories) > len(tt.results) {
				t.Errorf("Categories = %v, more than rule sets", report.Categories)
			}
			if len(report.Results) != len(tt.results) {
				t.Fatalf("len(Results) = %d, want %d", len(report.Results), len(tt.results))
			}
			for i, r := range report.Results {
				if r.Category != CategoryOf(tt.results[i].RuleSet) {
					t.Errorf("Results[%d].Category = %q", i, r.Category)
				}
			}
		})
	}
}
