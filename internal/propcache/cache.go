// Package propcache caches knowledge-base property metadata and constraints,
// keeping remote lookups to a minimum while the mapping UI asks for the same
// handful of properties over and over.
package propcache

import (
	"context"
	"sync"
	"time"

	"github.com/glam-tools/wikimapper/internal/wikibase"
)

// DefaultTTL is how long a cache entry stays fresh unless configured
// otherwise.
const DefaultTTL = time.Hour

// EntityAPI is the slice of the wikibase client the cache needs. Narrowed to
// an interface so tests can count remote calls.
type EntityAPI interface {
	GetEntities(ctx context.Context, ids []string) (map[string]wikibase.Entity, error)
	GetConstraintStatements(ctx context.Context, propertyID, constraintProperty string) ([]wikibase.ConstraintClaim, error)
}

type entryKind int

const (
	kindInfo entryKind = iota
	kindConstraints
)

type cacheKey struct {
	id   string
	kind entryKind
}

type cacheEntry struct {
	record      PropertyRecord
	constraints Constraints
	fetchedAt   time.Time
}

// Cache is the property knowledge cache. Writes are last-write-wins; two
// concurrent fetches of the same id converge to the same record, so the race
// is benign.
type Cache struct {
	api                EntityAPI
	ttl                time.Duration
	constraintProperty string

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry

	// now is swapped in tests to drive TTL expiry
	now func() time.Time
}

// New creates a cache over the given API. ttl <= 0 selects DefaultTTL.
func New(api EntityAPI, ttl time.Duration, constraintProperty string) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if constraintProperty == "" {
		constraintProperty = "P2302"
	}
	return &Cache{
		api:                api,
		ttl:                ttl,
		constraintProperty: constraintProperty,
		entries:            make(map[cacheKey]cacheEntry),
		now:                time.Now,
	}
}

// lookup returns the entry for key if present and unexpired. Expired entries
// are purged here, on read, rather than by a background sweeper.
func (c *Cache) lookup(key cacheKey) (cacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return cacheEntry{}, false
	}
	if c.now().Sub(entry.fetchedAt) > c.ttl {
		c.mu.Lock()
		// re-check under the write lock; a fresher fetch may have landed
		if current, still := c.entries[key]; still && c.now().Sub(current.fetchedAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *Cache) store(key cacheKey, entry cacheEntry) {
	entry.fetchedAt = c.now()
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}
