package api

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/hl7keeper/internal/core/auth"
	"github.com/solatis/hl7keeper/internal/core/db"
	"github.com/solatis/hl7keeper/internal/core/store"
	"github.com/solatis/hl7keeper/internal/rules"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

const adtRules = `{
	"pii": {"$exists": {"$.PID.ssn": true, "$description": "SSN present"}},
	"error": {"$type": {"$.MSH": "Object", "$description": "MSH segment"}},
	"warning": {"$exists": {"$.NTE": true, "$description": "Notes present"}}
}`

type testEnv struct {
	client *RulesAPIClient
	key    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v, want nil", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := db.MigrateUp(ctx, conn); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v, want nil", err)
	}
	sqlStore, err := store.NewSQLStore(conn)
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v, want nil", err)
	}

	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: []byte("api-test-secret")}, queries, logger)
	key, _, err := authenticator.Issue(ctx, testSecretID, "test", "alice")
	if err != nil {
		t.Fatalf("Issue() error = %v, want nil", err)
	}

	service, err := NewRulesAPIService(rules.NewEngine(), store.NewCache(sqlStore, logger), logger, 5*time.Second)
	if err != nil {
		t.Fatalf("NewRulesAPIService() error = %v, want nil", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(authenticator.UnaryInterceptor(WriteMethods...)))
	RegisterRulesAPIServer(srv, service)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient() error = %v, want nil", err)
	}
	t.Cleanup(func() { cc.Close() })

	return &testEnv{client: NewRulesAPIClient(cc), key: key}
}

func (e *testEnv) authed(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, auth.MetadataKey, e.key)
}

func mustStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("structpb.NewStruct() error = %v", err)
	}
	return s
}

func (e *testEnv) putADT(t *testing.T) *structpb.Struct {
	t.Helper()
	resp, err := e.client.PutRules(e.authed(context.Background()), mustStruct(t, map[string]interface{}{
		"profile": "adt",
		"rules":   adtRules,
	}))
	if err != nil {
		t.Fatalf("PutRules() error = %v, want nil", err)
	}
	return resp
}

func TestGetRulesSchema(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.GetRulesSchema(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetRulesSchema() error = %v, want nil", err)
	}
	and := resp.GetFields()[rules.KeyAnd].GetListValue()
	if and == nil || len(and.GetValues()) != 3 {
		t.Fatalf("GetRulesSchema() = %v, want $and with 3 children", resp)
	}
}

func TestCheckRules(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		rules      interface{}
		valid      bool
		failures   int
		categories []string
	}{
		{name: "json string", rules: `{"pii": {}}`, valid: true, categories: []string{"pii"}},
		{name: "nested struct", rules: map[string]interface{}{"error": map[string]interface{}{}}, valid: true, categories: []string{"error"}},
		{name: "pii and error", rules: `{"pii": {}, "error": {}}`, valid: true, categories: []string{"pii", "error"}},
		{name: "no category", rules: `{"other": {}}`, failures: 3},
		{name: "child not object", rules: map[string]interface{}{"pii": 1.0}, failures: 1, categories: []string{"pii"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.client.CheckRules(context.Background(), mustStruct(t, map[string]interface{}{"rules": tt.rules}))
			if err != nil {
				t.Fatalf("CheckRules() error = %v, want nil", err)
			}
			if got := resp.GetFields()["valid"].GetBoolValue(); got != tt.valid {
				t.Errorf("valid = %v, want %v", got, tt.valid)
			}
			if got := len(resp.GetFields()["failures"].GetListValue().GetValues()); got != tt.failures {
				t.Errorf("len(failures) = %d, want %d", got, tt.failures)
			}
			cats := resp.GetFields()["categories"].GetListValue().GetValues()
			if len(cats) != len(tt.categories) {
				t.Fatalf("categories = %v, want %v", cats, tt.categories)
			}
			for i, want := range tt.categories {
				if got := cats[i].GetStringValue(); got != want {
					t.Errorf("categories[%d] = %q, want %q", i, got, want)
				}
			}
		})
	}

	t.Run("missing rules", func(t *testing.T) {
		_, err := env.client.CheckRules(context.Background(), mustStruct(t, map[string]interface{}{}))
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("CheckRules() code = %v, want InvalidArgument", status.Code(err))
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := env.client.CheckRules(context.Background(), mustStruct(t, map[string]interface{}{"rules": `{"pii":`}))
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("CheckRules() code = %v, want InvalidArgument", status.Code(err))
		}
	})
}

func TestPutRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("requires api key", func(t *testing.T) {
		_, err := env.client.PutRules(ctx, mustStruct(t, map[string]interface{}{"profile": "adt", "rules": adtRules}))
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("PutRules() code = %v, want Unauthenticated", status.Code(err))
		}
	})

	t.Run("stores every rule set", func(t *testing.T) {
		resp := env.putADT(t)
		if !resp.GetFields()["success"].GetBoolValue() {
			t.Fatalf("success = false: %v", resp)
		}
		cats := resp.GetFields()["categories"].GetListValue().GetValues()
		if len(cats) != 3 || cats[0].GetStringValue() != "pii" || cats[1].GetStringValue() != "warning" || cats[2].GetStringValue() != "error" {
			t.Errorf("categories = %v, want [pii warning error]", cats)
		}
		sets := resp.GetFields()["rulesets"].GetListValue().GetValues()
		if len(sets) != 3 {
			t.Fatalf("len(rulesets) = %d, want 3", len(sets))
		}
		for _, s := range sets {
			if s.GetStructValue().GetFields()["revision"].GetStringValue() == "" {
				t.Errorf("rule set without revision: %v", s)
			}
		}
	})

	t.Run("document failing the rule set schema", func(t *testing.T) {
		resp, err := env.client.PutRules(env.authed(ctx), mustStruct(t, map[string]interface{}{
			"profile": "adt",
			"rules":   `{"other": {"$exists": {"$.a": true}}}`,
		}))
		if err != nil {
			t.Fatalf("PutRules() error = %v, want nil", err)
		}
		if resp.GetFields()["success"].GetBoolValue() {
			t.Error("success = true, want false")
		}
		if got := len(resp.GetFields()["failures"].GetListValue().GetValues()); got != 3 {
			t.Errorf("len(failures) = %d, want 3", got)
		}
	})

	t.Run("malformed member schema", func(t *testing.T) {
		_, err := env.client.PutRules(env.authed(ctx), mustStruct(t, map[string]interface{}{
			"profile": "adt",
			"rules":   `{"pii": {"$exists": {"$.a": "yes"}}}`,
		}))
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("PutRules() code = %v, want InvalidArgument", status.Code(err))
		}
		loc, ok := ParseErrorLocation(err)
		if !ok || loc != "/pii/$exists/$.a" {
			t.Errorf("ParseErrorLocation() = (%q, %v), want /pii/$exists/$.a", loc, ok)
		}
	})

	t.Run("invalid profile name", func(t *testing.T) {
		_, err := env.client.PutRules(env.authed(ctx), mustStruct(t, map[string]interface{}{
			"profile": "bad profile",
			"rules":   adtRules,
		}))
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("PutRules() code = %v, want InvalidArgument", status.Code(err))
		}
	})
}

func TestGetRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	put := env.putADT(t)

	var piiRevision string
	for _, s := range put.GetFields()["rulesets"].GetListValue().GetValues() {
		f := s.GetStructValue().GetFields()
		if f["name"].GetStringValue() == "pii" {
			piiRevision = f["revision"].GetStringValue()
		}
	}

	resp, err := env.client.GetRules(ctx, mustStruct(t, map[string]interface{}{"profile": "adt", "ruleset": "pii"}))
	if err != nil {
		t.Fatalf("GetRules() error = %v, want nil", err)
	}
	f := resp.GetFields()
	if f["revision"].GetStringValue() != piiRevision {
		t.Errorf("revision = %q, want %q", f["revision"].GetStringValue(), piiRevision)
	}
	if f["author"].GetStringValue() != "alice" {
		t.Errorf("author = %q, want alice", f["author"].GetStringValue())
	}
	if f["document"].GetStringValue() != `{"$exists":{"$.PID.ssn":true,"$description":"SSN present"}}` {
		t.Errorf("document = %s", f["document"].GetStringValue())
	}
	if _, err := time.Parse(time.RFC3339Nano, f["updated_at"].GetStringValue()); err != nil {
		t.Errorf("updated_at = %q: %v", f["updated_at"].GetStringValue(), err)
	}
	if f["rules"].GetStructValue().GetFields()[rules.KeyExists] == nil {
		t.Errorf("rules = %v, want $exists node", f["rules"])
	}

	_, err = env.client.GetRules(ctx, mustStruct(t, map[string]interface{}{"profile": "adt", "ruleset": "audit"}))
	if status.Code(err) != codes.NotFound {
		t.Errorf("GetRules(unknown) code = %v, want NotFound", status.Code(err))
	}
}

func TestListRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.client.ListRules(ctx, mustStruct(t, map[string]interface{}{"profile": "adt"}))
	if err != nil {
		t.Fatalf("ListRules() error = %v, want nil", err)
	}
	if got := len(resp.GetFields()["rulesets"].GetListValue().GetValues()); got != 0 {
		t.Errorf("len(rulesets) = %d before put, want 0", got)
	}

	env.putADT(t)
	resp, err = env.client.ListRules(ctx, mustStruct(t, map[string]interface{}{"profile": "adt"}))
	if err != nil {
		t.Fatalf("ListRules() error = %v, want nil", err)
	}
	var names []string
	for _, v := range resp.GetFields()["rulesets"].GetListValue().GetValues() {
		names = append(names, v.GetStringValue())
	}
	want := []string{"error", "pii", "warning"}
	if len(names) != len(want) {
		t.Fatalf("rulesets = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("rulesets[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestValidateMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.putADT(t)

	tests := []struct {
		name     string
		message  string
		valid    bool
		errors   float64
		warnings float64
		pii      bool
	}{
		{
			name:     "valid message with pii",
			message:  `{"MSH": {"id": "1"}, "PID": {"ssn": "123-45-6789"}}`,
			valid:    true,
			warnings: 1,
			pii:      true,
		},
		{
			name:     "malformed header",
			message:  `{"MSH": "x", "NTE": {}}`,
			valid:    false,
			errors:   1,
			warnings: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.client.ValidateMessage(ctx, mustStruct(t, map[string]interface{}{
				"profile": "adt",
				"message": tt.message,
			}))
			if err != nil {
				t.Fatalf("ValidateMessage() error = %v, want nil", err)
			}
			f := resp.GetFields()
			if got := f["valid"].GetBoolValue(); got != tt.valid {
				t.Errorf("valid = %v, want %v", got, tt.valid)
			}
			if got := f["errors"].GetNumberValue(); got != tt.errors {
				t.Errorf("errors = %v, want %v", got, tt.errors)
			}
			if got := f["warnings"].GetNumberValue(); got != tt.warnings {
				t.Errorf("warnings = %v, want %v", got, tt.warnings)
			}
			if got := f["pii"].GetBoolValue(); got != tt.pii {
				t.Errorf("pii = %v, want %v", got, tt.pii)
			}
			if got := len(f["results"].GetListValue().GetValues()); got != 3 {
				t.Errorf("len(results) = %d, want 3", got)
			}
			if got := len(f["categories"].GetListValue().GetValues()); got != 3 {
				t.Errorf("len(categories) = %d, want 3", got)
			}
		})
	}

	t.Run("unknown profile", func(t *testing.T) {
		_, err := env.client.ValidateMessage(ctx, mustStruct(t, map[string]interface{}{
			"profile": "oru",
			"message": `{}`,
		}))
		if status.Code(err) != codes.NotFound {
			t.Errorf("ValidateMessage() code = %v, want NotFound", status.Code(err))
		}
	})

	t.Run("missing message", func(t *testing.T) {
		_, err := env.client.ValidateMessage(ctx, mustStruct(t, map[string]interface{}{"profile": "adt"}))
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("ValidateMessage() code = %v, want InvalidArgument", status.Code(err))
		}
	})
}
