// Package auth provides HMAC-based API key authentication for gRPC services.
//
// Keys are never stored: the database holds HMAC-SHA256(secret, key) and the
// secret lives only in the environment (HK_HMAC_SECRET, HK_HMAC_SECRET_N).
// Rotating a secret therefore invalidates every key issued under it.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/solatis/hl7keeper/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataKey is the gRPC metadata entry carrying the API key.
const MetadataKey = "x-api-key"

// lastUsedThrottle bounds how often last_used_at is written per key.
const lastUsedThrottle = time.Minute

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// ownerKey is the context key for the authenticated key owner.
const ownerKey = contextKey("owner")

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	Select(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// APIKey describes an issued key. The key itself is only known at creation.
type APIKey struct {
	ID         types.APIKeyID `db:"api_key_id"`
	Name       string         `db:"name"`
	Owner      string         `db:"owner"`
	CreatedAt  time.Time      `db:"created_at"`
	LastUsedAt sql.NullTime   `db:"last_used_at"`
	RevokedAt  sql.NullTime   `db:"revoked_at"`
}

// Authenticator validates and issues API keys.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets keyed by
// secret_id.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger,
		now:     time.Now,
	}
}

// Authenticate validates apiKey and returns the owner recorded for it.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}
	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches
	var row struct {
		APIKeyID   string       `db:"api_key_id"`
		Owner      string       `db:"owner"`
		KeyHash    []byte       `db:"key_hash"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-api-key-by-hash", &row, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	if !VerifyHMAC(row.KeyHash, computedHash) {
		return "", ErrInvalidKey
	}

	if row.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	if shouldUpdateLastUsed(row.LastUsedAt, a.now()) {
		if _, err := a.queries.Exec(ctx, "update-last-used", a.now().UTC(), row.APIKeyID); err != nil {
			a.logger.Warn("failed to update api key last_used_at", "api_key_id", row.APIKeyID, "error", err)
		}
	}

	return row.Owner, nil
}

// shouldUpdateLastUsed throttles last_used_at writes to one per minute.
func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > lastUsedThrottle
}

// Issue creates a new key under secretID and records its hash.
// The returned key is the only copy; it cannot be recovered later.
func (a *Authenticator) Issue(ctx context.Context, secretID, name, owner string) (string, types.APIKeyID, error) {
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", "", ErrUnknownKey
	}
	if owner == "" {
		return "", "", fmt.Errorf("API key owner is required")
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return "", "", err
	}
	id := types.NewAPIKeyID()

	if _, err := a.queries.Exec(ctx, "insert-api-key",
		string(id), name, owner, secretID, ComputeHMAC(secret, key), a.now().UTC(),
	); err != nil {
		return "", "", fmt.Errorf("%w: %w", types.ErrStorage, err)
	}

	a.logger.Info("api key issued", "api_key_id", id, "owner", owner, "name", name)
	return key, id, nil
}

// Revoke blocks a key. Revoking an unknown or already revoked key returns
// ErrKeyNotFound.
func (a *Authenticator) Revoke(ctx context.Context, id types.APIKeyID) error {
	res, err := a.queries.Exec(ctx, "revoke-api-key", a.now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}

	a.logger.Info("api key revoked", "api_key_id", id)
	return nil
}

// List returns every issued key, revoked ones included.
func (a *Authenticator) List(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	if err := a.queries.Select(ctx, "list-api-keys", &keys); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	return keys, nil
}

// DefaultSecretID picks the secret to issue keys under when the caller did
// not name one. Only unambiguous when exactly one secret is configured.
func DefaultSecretID(secrets map[string][]byte) (string, error) {
	if len(secrets) == 1 {
		for id := range secrets {
			return id, nil
		}
	}
	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return "", fmt.Errorf("no HMAC secrets configured (set HK_HMAC_SECRET)")
	}
	return "", fmt.Errorf("several HMAC secrets configured, choose one of %v", ids)
}

// UnaryInterceptor returns a gRPC interceptor that authenticates calls to
// the given full method names. Other methods pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor(protected ...string) grpc.UnaryServerInterceptor {
	guarded := make(map[string]bool, len(protected))
	for _, m := range protected {
		guarded[m] = true
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !guarded[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		owner, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			case errors.Is(err, types.ErrStorage):
				a.logger.Error("authentication unavailable", "method", info.FullMethod, "error", err)
				return nil, status.Error(codes.Unavailable, "authentication unavailable")
			default:
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		return handler(WithOwner(ctx, owner), req)
	}
}

// WithOwner returns a context carrying the authenticated key owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFromContext extracts the authenticated key owner.
// Returns empty string if the call was not authenticated.
func OwnerFromContext(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey).(string); ok {
		return owner
	}
	return ""
}
