package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
	"google.golang.org/protobuf/types/known/structpb"
)

// ValidateMessage classifies a JSON-form message with every rule set of a
// profile. Request: {"profile": "adt", "message": <document>}.
// Rule sets are evaluated in name order; one that disappears between listing
// and loading is skipped.
func (s *RulesAPIService) ValidateMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	profile, err := stringField(req, "profile")
	if err != nil {
		return nil, s.fail("ValidateMessage", err)
	}
	message, err := documentField(req, "message")
	if err != nil {
		return nil, s.fail("ValidateMessage", err)
	}

	report, err := s.classify(ctx, types.Profile(profile), message)
	if err != nil {
		return nil, s.fail("ValidateMessage", err)
	}

	s.logger.Debug("message classified",
		"profile", profile,
		"valid", report.Valid,
		"errors", report.Errors,
		"warnings", report.Warnings,
		"pii", report.PII,
	)

	out, err := toStruct(report)
	if err != nil {
		return nil, s.fail("ValidateMessage", err)
	}
	return out, nil
}

func (s *RulesAPIService) classify(ctx context.Context, profile types.Profile, message types.Value) (rules.Report, error) {
	names, err := s.store.ListRuleSets(ctx, profile)
	if err != nil {
		return rules.Report{}, err
	}
	if len(names) == 0 {
		return rules.Report{}, fmt.Errorf("%w: profile %s has no rule sets", types.ErrNotFound, profile)
	}

	results := make([]rules.RuleSetResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return rules.Report{}, err
		}
		snap, err := s.store.GetSchema(ctx, profile, name)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return rules.Report{}, err
		}
		verdict := s.engine.Evaluate(snap.Schema, message)
		verdict.Failures = failures(verdict)
		results = append(results, rules.RuleSetResult{
			RuleSet:  name,
			Revision: snap.Revision,
			Verdict:  verdict,
		})
	}
	return rules.Classify(profile, results), nil
}
