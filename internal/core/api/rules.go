package api

import (
	"context"
	"time"

	"github.com/solatis/hl7keeper/internal/core/auth"
	"github.com/solatis/hl7keeper/internal/core/store"
	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type checkRulesResponse struct {
	Valid      bool             `json:"valid"`
	Categories []rules.Category `json:"categories"`
	Failures   []rules.Failure  `json:"failures"`
}

type storedRuleSet struct {
	Name     types.RuleSetName `json:"name"`
	Revision types.RevisionID  `json:"revision"`
	Cost     int               `json:"cost"`
}

type putRulesResponse struct {
	Success    bool             `json:"success"`
	Profile    types.Profile    `json:"profile"`
	Categories []rules.Category `json:"categories"`
	RuleSets   []storedRuleSet  `json:"rulesets"`
	Failures   []rules.Failure  `json:"failures"`
}

type listRulesResponse struct {
	Profile  types.Profile       `json:"profile"`
	RuleSets []types.RuleSetName `json:"rulesets"`
}

// GetRulesSchema returns the document every rule set document must satisfy.
func (s *RulesAPIService) GetRulesSchema(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	doc := s.engine.RuleSetSchema().Document()
	out, err := toStruct(doc)
	if err != nil {
		return nil, s.fail("GetRulesSchema", err)
	}
	return out, nil
}

// CheckRules evaluates a rule set document against the built-in schema
// without storing it. Request: {"rules": <document>}.
func (s *RulesAPIService) CheckRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := documentField(req, "rules")
	if err != nil {
		return nil, s.fail("CheckRules", err)
	}

	verdict := s.engine.CheckRuleSet(doc)
	out, err := toStruct(checkRulesResponse{
		Valid:      verdict.Valid,
		Categories: categories(verdict),
		Failures:   failures(verdict),
	})
	if err != nil {
		return nil, s.fail("CheckRules", err)
	}
	return out, nil
}

// PutRules checks, compiles and stores every rule set of a document under a
// profile. Request: {"profile": "adt", "rules": <document>}.
//
// A document failing the built-in schema is answered with success=false and
// its failures. A member that is not a valid schema is INVALID_ARGUMENT.
// Nothing is stored unless every member compiles.
func (s *RulesAPIService) PutRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	profile, err := stringField(req, "profile")
	if err != nil {
		return nil, s.fail("PutRules", err)
	}
	doc, err := documentField(req, "rules")
	if err != nil {
		return nil, s.fail("PutRules", err)
	}

	sets, verdict, err := s.engine.CompileRuleSets(doc)
	if err != nil {
		return nil, s.fail("PutRules", err)
	}
	resp := putRulesResponse{
		Success:    verdict.Valid,
		Profile:    types.Profile(profile),
		Categories: categories(verdict),
		RuleSets:   []storedRuleSet{},
		Failures:   failures(verdict),
	}
	if !verdict.Valid {
		out, err := toStruct(resp)
		if err != nil {
			return nil, s.fail("PutRules", err)
		}
		return out, nil
	}

	author := auth.OwnerFromContext(ctx)
	if author == "" {
		author = anonymousAuthor
	}
	putReq := store.PutRequest{Profile: types.Profile(profile), Author: author}
	for _, rs := range sets {
		putReq.RuleSets = append(putReq.RuleSets, store.RawRuleSet{Name: rs.Name, Document: rs.Document})
	}

	snaps, err := s.store.PutRuleSets(ctx, putReq)
	if err != nil {
		return nil, s.fail("PutRules", err)
	}
	for _, snap := range snaps {
		resp.RuleSets = append(resp.RuleSets, storedRuleSet{
			Name:     snap.RuleSet,
			Revision: snap.Revision,
			Cost:     snap.Schema.Cost(),
		})
	}

	s.logger.Info("rule sets stored", "profile", profile, "author", author, "count", len(snaps))

	out, err := toStruct(resp)
	if err != nil {
		return nil, s.fail("PutRules", err)
	}
	return out, nil
}

// GetRules returns the current revision of one rule set.
// Request: {"profile": "adt", "ruleset": "pii"}.
func (s *RulesAPIService) GetRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	profile, err := stringField(req, "profile")
	if err != nil {
		return nil, s.fail("GetRules", err)
	}
	ruleSet, err := stringField(req, "ruleset")
	if err != nil {
		return nil, s.fail("GetRules", err)
	}

	snap, err := s.store.GetSchema(ctx, types.Profile(profile), types.RuleSetName(ruleSet))
	if err != nil {
		return nil, s.fail("GetRules", err)
	}

	rulesValue, err := toValue(snap.Document)
	if err != nil {
		return nil, s.fail("GetRules", err)
	}
	document, err := snap.Document.MarshalJSON()
	if err != nil {
		return nil, s.fail("GetRules", err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"profile":    structpb.NewStringValue(string(snap.Profile)),
		"ruleset":    structpb.NewStringValue(string(snap.RuleSet)),
		"revision":   structpb.NewStringValue(string(snap.Revision)),
		"author":     structpb.NewStringValue(snap.Author),
		"updated_at": structpb.NewStringValue(snap.UpdatedAt.UTC().Format(time.RFC3339Nano)),
		"cost":       structpb.NewNumberValue(float64(snap.Schema.Cost())),
		"rules":      rulesValue,
		"document":   structpb.NewStringValue(string(document)),
	}}, nil
}

// ListRules returns the rule set names of a profile.
// Request: {"profile": "adt"}.
func (s *RulesAPIService) ListRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	profile, err := stringField(req, "profile")
	if err != nil {
		return nil, s.fail("ListRules", err)
	}
	names, err := s.store.ListRuleSets(ctx, types.Profile(profile))
	if err != nil {
		return nil, s.fail("ListRules", err)
	}
	if names == nil {
		names = []types.RuleSetName{}
	}

	out, err := toStruct(listRulesResponse{Profile: types.Profile(profile), RuleSets: names})
	if err != nil {
		return nil, s.fail("ListRules", err)
	}
	return out, nil
}

// failures returns the verdict failures, never nil.
func failures(v rules.Verdict) []rules.Failure {
	if v.Failures == nil {
		return []rules.Failure{}
	}
	return v.Failures
}

// categories lists which of pii/warning/error a rule set document covers.
func categories(v rules.Verdict) []rules.Category {
	c := rules.Categories(v)
	if c == nil {
		return []rules.Category{}
	}
	return c
}
