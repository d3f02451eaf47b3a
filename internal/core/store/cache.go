package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/solatis/hl7keeper/internal/types"
)

type cacheKey struct {
	profile types.Profile
	ruleSet types.RuleSetName
}

// Cache is a read-through RuleStore that keeps the latest snapshot of every
// rule set it has seen.
//
// Readers load an immutable map through an atomic pointer and never block.
// Writers build a new map under mu and swap it in, so a reader sees either
// the old snapshot or the new one, never a partially built schema. Puts are
// forwarded to the backend first; the cache is updated only after the
// backend has committed.
type Cache struct {
	backend RuleStore
	logger  *slog.Logger

	mu      sync.Mutex // serialises writers
	entries atomic.Pointer[map[cacheKey]*Snapshot]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache wraps backend.
func NewCache(backend RuleStore, logger *slog.Logger) *Cache {
	c := &Cache{backend: backend, logger: logger}
	empty := make(map[cacheKey]*Snapshot)
	c.entries.Store(&empty)
	return c
}

// GetSchema returns the cached snapshot or loads it from the backend.
// Not-found results are not cached.
func (c *Cache) GetSchema(ctx context.Context, profile types.Profile, ruleSet types.RuleSetName) (*Snapshot, error) {
	key := cacheKey{profile: profile, ruleSet: ruleSet}
	if snap, ok := (*c.entries.Load())[key]; ok {
		c.hits.Add(1)
		return snap, nil
	}

	c.misses.Add(1)
	snap, err := c.backend.GetSchema(ctx, profile, ruleSet)
	if err != nil {
		return nil, err
	}
	c.store(snap)
	return snap, nil
}

// PutSchema stores through the backend and caches the new snapshot.
func (c *Cache) PutSchema(ctx context.Context, profile types.Profile, ruleSet types.RuleSetName, author string, raw []byte) (*Snapshot, error) {
	snap, err := c.backend.PutSchema(ctx, profile, ruleSet, author, raw)
	if err != nil {
		return nil, err
	}
	c.store(snap)
	return snap, nil
}

// PutRuleSets stores through the backend and caches the new snapshots.
func (c *Cache) PutRuleSets(ctx context.Context, req PutRequest) ([]*Snapshot, error) {
	snaps, err := c.backend.PutRuleSets(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(snaps...)
	return snaps, nil
}

// ListRuleSets is not cached.
func (c *Cache) ListRuleSets(ctx context.Context, profile types.Profile) ([]types.RuleSetName, error) {
	return c.backend.ListRuleSets(ctx, profile)
}

// store publishes snaps with a copy-on-write swap. A snapshot never replaces
// a newer revision of the same rule set: a slow read-through miss can finish
// after a put and must not resurrect the old revision.
func (c *Cache) store(snaps ...*Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := *c.entries.Load()
	next := make(map[cacheKey]*Snapshot, len(old)+len(snaps))
	for k, v := range old {
		next[k] = v
	}
	for _, snap := range snaps {
		key := cacheKey{profile: snap.Profile, ruleSet: snap.RuleSet}
		if cur, ok := next[key]; ok && cur.Revision > snap.Revision {
			continue
		}
		next[key] = snap
		c.logger.Debug("rule set cached",
			"profile", snap.Profile,
			"ruleset", snap.RuleSet,
			"revision", snap.Revision,
			"cost", snap.Schema.Cost(),
		)
	}
	c.entries.Store(&next)
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries: len(*c.entries.Load()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
