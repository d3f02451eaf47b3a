package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/hl7keeper/internal/core/db"
	"github.com/solatis/hl7keeper/internal/rules"
	"github.com/solatis/hl7keeper/internal/types"
)

// SQLStore is a RuleStore backed by the rule_sets and rule_set_revisions
// tables. Documents are stored as JSON text and recompiled on read.
type SQLStore struct {
	db      *sqlx.DB
	queries *db.Queries
	now     func() time.Time
}

// NewSQLStore creates a store on a migrated database.
func NewSQLStore(conn *sqlx.DB) (*SQLStore, error) {
	queries, err := db.LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: conn, queries: queries, now: time.Now}, nil
}

type ruleSetRow struct {
	Profile    string    `db:"profile"`
	Name       string    `db:"name"`
	RevisionID string    `db:"revision_id"`
	Document   string    `db:"document"`
	Cost       int       `db:"cost"`
	Author     string    `db:"author"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// GetSchema loads and compiles the current revision of a rule set.
func (s *SQLStore) GetSchema(ctx context.Context, profile types.Profile, ruleSet types.RuleSetName) (*Snapshot, error) {
	var row ruleSetRow
	err := s.queries.Get(ctx, "get-rule-set", &row, string(profile), string(ruleSet))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", types.ErrNotFound, profile, ruleSet)
	}
	if err != nil {
		return nil, storageErr(err)
	}

	doc, err := types.ParseJSON([]byte(row.Document))
	if err != nil {
		return nil, fmt.Errorf("stored rule set %s/%s is corrupt: %w", profile, ruleSet, err)
	}
	schema, err := rules.ParseSchemaValue(doc)
	if err != nil {
		return nil, fmt.Errorf("stored rule set %s/%s is corrupt: %w", profile, ruleSet, err)
	}

	return &Snapshot{
		Profile:   types.Profile(row.Profile),
		RuleSet:   types.RuleSetName(row.Name),
		Revision:  types.RevisionID(row.RevisionID),
		Schema:    schema,
		Document:  doc,
		Author:    row.Author,
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

// PutSchema compiles raw JSON and stores it as a new revision.
func (s *SQLStore) PutSchema(ctx context.Context, profile types.Profile, ruleSet types.RuleSetName, author string, raw []byte) (*Snapshot, error) {
	doc, err := types.ParseJSON(raw)
	if err != nil {
		return nil, &rules.SchemaParseError{Location: "/" + string(ruleSet), Msg: "malformed JSON", Err: err}
	}
	snaps, err := s.PutRuleSets(ctx, PutRequest{
		Profile:  profile,
		Author:   author,
		RuleSets: []RawRuleSet{{Name: ruleSet, Document: doc}},
	})
	if err != nil {
		return nil, err
	}
	return snaps[0], nil
}

// PutRuleSets compiles every rule set of req and stores them in one
// transaction. Nothing is written unless all of them compile.
func (s *SQLStore) PutRuleSets(ctx context.Context, req PutRequest) ([]*Snapshot, error) {
	snaps, docs, err := compileRequest(req, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr(err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	for i, snap := range snaps {
		if _, err := q.Exec(ctx, "upsert-rule-set",
			string(snap.Profile), string(snap.RuleSet), string(snap.Revision),
			docs[i], snap.Schema.Cost(), snap.Author, snap.UpdatedAt,
		); err != nil {
			return nil, storageErr(err)
		}
		if _, err := q.Exec(ctx, "insert-rule-set-revision",
			string(snap.Revision), string(snap.Profile), string(snap.RuleSet),
			docs[i], snap.Author, snap.UpdatedAt,
		); err != nil {
			return nil, storageErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr(err)
	}
	return snaps, nil
}

// compileRequest validates and compiles req without touching the database.
// Returns the snapshots to store and their serialised documents.
func compileRequest(req PutRequest, now time.Time) ([]*Snapshot, []string, error) {
	if err := types.ValidateName(string(req.Profile)); err != nil {
		return nil, nil, fmt.Errorf("invalid profile %q: %w", req.Profile, err)
	}
	if len(req.RuleSets) == 0 {
		return nil, nil, fmt.Errorf("%w: no rule sets for profile %s", types.ErrSchemaParse, req.Profile)
	}

	seen := make(map[types.RuleSetName]bool, len(req.RuleSets))
	snaps := make([]*Snapshot, 0, len(req.RuleSets))
	docs := make([]string, 0, len(req.RuleSets))
	for _, rs := range req.RuleSets {
		if seen[rs.Name] {
			return nil, nil, fmt.Errorf("%w: duplicate rule set %q", types.ErrSchemaParse, rs.Name)
		}
		seen[rs.Name] = true

		schema, err := rules.ParseRuleSetSchema(string(rs.Name), rs.Document)
		if err != nil {
			return nil, nil, err
		}
		data, err := rs.Document.MarshalJSON()
		if err != nil {
			return nil, nil, fmt.Errorf("encode rule set %s: %w", rs.Name, err)
		}

		snaps = append(snaps, &Snapshot{
			Profile:   req.Profile,
			RuleSet:   rs.Name,
			Revision:  types.NewRevisionID(),
			Schema:    schema,
			Document:  rs.Document,
			Author:    req.Author,
			UpdatedAt: now,
		})
		docs = append(docs, string(data))
	}
	return snaps, docs, nil
}

// ListRuleSets returns the rule set names of a profile in name order.
// An unknown profile has no rule sets.
func (s *SQLStore) ListRuleSets(ctx context.Context, profile types.Profile) ([]types.RuleSetName, error) {
	var names []string
	if err := s.queries.Select(ctx, "list-rule-set-names", &names, string(profile)); err != nil {
		return nil, storageErr(err)
	}
	out := make([]types.RuleSetName, len(names))
	for i, n := range names {
		out[i] = types.RuleSetName(n)
	}
	return out, nil
}

// ListProfiles returns every profile that owns at least one rule set.
func (s *SQLStore) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	var names []string
	if err := s.queries.Select(ctx, "list-profiles", &names); err != nil {
		return nil, storageErr(err)
	}
	out := make([]types.Profile, len(names))
	for i, n := range names {
		out[i] = types.Profile(n)
	}
	return out, nil
}

// History returns up to limit revisions of a rule set, newest first.
func (s *SQLStore) History(ctx context.Context, profile types.Profile, ruleSet types.RuleSetName, limit int) ([]Revision, error) {
	var revisions []Revision
	if err := s.queries.Select(ctx, "list-rule-set-revisions", &revisions, string(profile), string(ruleSet), limit); err != nil {
		return nil, storageErr(err)
	}
	for i := range revisions {
		revisions[i].CreatedAt = revisions[i].CreatedAt.UTC()
	}
	return revisions, nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", types.ErrStorage, err)
}
