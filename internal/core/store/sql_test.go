package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/hl7keeper/internal/core/db"
	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v, want nil", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := db.MigrateUp(context.Background(), conn); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	s, err := NewSQLStore(conn)
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v, want nil", err)
	}
	return s
}

func mustValue(t *testing.T, data string) types.Value {
	t.Helper()
	v, err := types.ParseJSON([]byte(data))
	if err != nil {
		t.Fatalf("ParseJSON(%s) error = %v", data, err)
	}
	return v
}

const piiSchema = `{"$exists":{"$.PID.ssn":true,"$description":"SSN present"}}`

func TestSQLStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	put, err := s.PutSchema(ctx, "adt", "pii", "alice", []byte(piiSchema))
	if err != nil {
		t.Fatalf("PutSchema() error = %v, want nil", err)
	}
	if put.Revision == "" || put.Author != "alice" || !put.UpdatedAt.Equal(fixed) {
		t.Errorf("PutSchema() = %+v", put)
	}

	got, err := s.GetSchema(ctx, "adt", "pii")
	if err != nil {
		t.Fatalf("GetSchema() error = %v, want nil", err)
	}
	if got.Revision != put.Revision {
		t.Errorf("Revision = %s, want %s", got.Revision, put.Revision)
	}
	if !got.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, fixed)
	}
	if !rules.EqualNodes(got.Schema.Root(), put.Schema.Root()) {
		t.Errorf("stored schema differs from the one put")
	}
	out, err := got.Document.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(out) != piiSchema {
		t.Errorf("Document = %s, want %s", out, piiSchema)
	}

	verdict := rules.Evaluate(got.Schema, mustValue(t, `{"PID": {"ssn": "x"}}`))
	if !verdict.Valid {
		t.Errorf("stored schema does not evaluate: %+v", verdict)
	}
}

func TestSQLStore_GetNotFound(t *testing.T) {
	_, err := newTestStore(t).GetSchema(context.Background(), "adt", "pii")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("GetSchema() error = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_PutRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{`},
		{name: "bad grammar", raw: `{"$exists": {"$.a": "yes"}}`},
		{name: "bad path", raw: `{"$exists": {"a": true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.PutSchema(ctx, "adt", "error", "alice", []byte(tt.raw))
			if !errors.Is(err, types.ErrSchemaParse) {
				t.Fatalf("PutSchema() error = %v, want ErrSchemaParse", err)
			}
			if !rules.IsSchemaParseError(err) {
				t.Errorf("error %T is not a *SchemaParseError", err)
			}
		})
	}

	names, err := s.ListRuleSets(ctx, "adt")
	if err != nil {
		t.Fatalf("ListRuleSets() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("ListRuleSets() = %v, want nothing stored", names)
	}
}

func TestSQLStore_PutRuleSetsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.PutRuleSets(ctx, PutRequest{
		Profile: "adt",
		Author:  "alice",
		RuleSets: []RawRuleSet{
			{Name: "pii", Document: mustValue(t, piiSchema)},
			{Name: "error", Document: mustValue(t, `{"$type": {"$.MSH": "object"}}`)},
		},
	})
	var spe *rules.SchemaParseError
	if !errors.As(err, &spe) {
		t.Fatalf("PutRuleSets() error = %v, want *SchemaParseError", err)
	}
	if spe.Location != "/error/$type/$.MSH" {
		t.Errorf("Location = %q, want /error/$type/$.MSH", spe.Location)
	}

	if _, err := s.GetSchema(ctx, "adt", "pii"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetSchema(pii) error = %v, want ErrNotFound after rejected put", err)
	}
}

func TestSQLStore_PutRuleSetsValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name string
		req  PutRequest
		want error
	}{
		{name: "empty profile", req: PutRequest{RuleSets: []RawRuleSet{{Name: "pii", Document: mustValue(t, piiSchema)}}}, want: types.ErrEmptyName},
		{name: "no rule sets", req: PutRequest{Profile: "adt"}, want: types.ErrSchemaParse},
		{
			name: "duplicate rule set",
			req: PutRequest{Profile: "adt", RuleSets: []RawRuleSet{
				{Name: "pii", Document: mustValue(t, piiSchema)},
				{Name: "pii", Document: mustValue(t, piiSchema)},
			}},
			want: types.ErrSchemaParse,
		},
		{name: "invalid rule set name", req: PutRequest{Profile: "adt", RuleSets: []RawRuleSet{{Name: "a/b", Document: mustValue(t, piiSchema)}}}, want: types.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.PutRuleSets(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("PutRuleSets() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSQLStore_RevisionsAndListing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.PutRuleSets(ctx, PutRequest{
		Profile: "adt",
		Author:  "alice",
		RuleSets: []RawRuleSet{
			{Name: "warning", Document: mustValue(t, `{"$exists": {"$.EVN": true}}`)},
			{Name: "pii", Document: mustValue(t, piiSchema)},
		},
	})
	if err != nil {
		t.Fatalf("PutRuleSets() error = %v, want nil", err)
	}
	second, err := s.PutSchema(ctx, "adt", "pii", "bob", []byte(`{"$exists": {"$.PID.name": true}}`))
	if err != nil {
		t.Fatalf("PutSchema() error = %v, want nil", err)
	}
	if _, err := s.PutSchema(ctx, "orm", "error", "bob", []byte(`{"$type": {"$": "Object"}}`)); err != nil {
		t.Fatalf("PutSchema() error = %v, want nil", err)
	}

	got, err := s.GetSchema(ctx, "adt", "pii")
	if err != nil {
		t.Fatalf("GetSchema() error = %v", err)
	}
	if got.Revision != second.Revision || got.Author != "bob" {
		t.Errorf("GetSchema() = %s by %s, want latest revision %s by bob", got.Revision, got.Author, second.Revision)
	}

	history, err := s.History(ctx, "adt", "pii", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(history))
	}
	if history[0].Revision != second.Revision || history[1].Revision != first[1].Revision {
		t.Errorf("History() = %+v, want newest first", history)
	}

	names, err := s.ListRuleSets(ctx, "adt")
	if err != nil {
		t.Fatalf("ListRuleSets() error = %v", err)
	}
	if len(names) != 2 || names[0] != "pii" || names[1] != "warning" {
		t.Errorf("ListRuleSets() = %v, want [pii warning]", names)
	}

	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles() error = %v", err)
	}
	if len(profiles) != 2 || profiles[0] != "adt" || profiles[1] != "orm" {
		t.Errorf("ListProfiles() = %v, want [adt orm]", profiles)
	}
}
