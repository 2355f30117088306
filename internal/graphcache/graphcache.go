// Package graphcache implements the fixed-capacity, unlocked LRU-ish cache
// of fetched external graph descriptions described in spec.md §4.6.
//
// Grounded verbatim on the original's twine/common/graphcache.c: a linear
// scan over a fixed-size array, eviction of the oldest slot (index 0) via a
// left shift when full, and an in-place removal for discard.
package graphcache

import (
	"log/slog"
	"time"

	"github.com/spindle-coref/spindle/internal/rdf"
	"github.com/spindle-coref/spindle/internal/resilience"
)

// Capacity is the fixed number of slots the cache holds, matching the
// original's SPINDLE_GRAPHCACHE_SIZE.
const Capacity = 16

// defaultCoolDown is how long a fallback-fetcher breaker stays
// open before allowing a probe call through again.
const defaultCoolDown = 30 * time.Second

type slot struct {
	uri   string
	model rdf.Model
}

// Cache is a fixed-capacity, insertion-ordered cache of (uri, model) pairs.
// Not safe for concurrent use — spec.md §4.6/§5 specify it is used
// single-threadedly by one correlator.
type Cache struct {
	slots []slot
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{slots: make([]slot, 0, Capacity)}
}

// Get returns the cached model for uri, if present. The returned model MUST
// NOT be mutated by the caller.
func (c *Cache) Get(uri string) (rdf.Model, bool) {
	for _, s := range c.slots {
		if s.uri == uri {
			return s.model, true
		}
	}
	return nil, false
}

// Put inserts a freshly fetched model under uri. If the cache is already at
// [Capacity], the oldest entry (slot 0) is evicted first.
func (c *Cache) Put(uri string, model rdf.Model) {
	if len(c.slots) >= Capacity {
		c.slots = append(c.slots[:0], c.slots[1:]...)
	}
	c.slots = append(c.slots, slot{uri: uri, model: model})
}

// Discard removes uri's slot, if present.
func (c *Cache) Discard(uri string) {
	for i, s := range c.slots {
		if s.uri == uri {
			c.slots = append(c.slots[:i], c.slots[i+1:]...)
			return
		}
	}
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	return len(c.slots)
}

// Fetcher retrieves a graph model for an external URI, e.g. by dereferencing
// it over HTTP. Implementations are supplied by the host; this package has
// no network code of its own.
type Fetcher func(uri string) (rdf.Model, error)

// Fetch returns the cached model for uri if present, otherwise calls fetch,
// caches the result, and returns it.
func (c *Cache) Fetch(uri string, fetch Fetcher) (rdf.Model, error) {
	if m, ok := c.Get(uri); ok {
		return m, nil
	}
	m, err := fetch(uri)
	if err != nil {
		return nil, err
	}
	c.Put(uri, m)
	return m, nil
}

// FallbackFetcher wraps a primary and secondary [Fetcher] behind a
// [resilience.FallbackGroup], so a cache miss that fails against the
// primary external source (e.g. a SPARQL endpoint that is temporarily
// down) automatically retries against the fallback before the miss is
// reported to the caller.
func FallbackFetcher(primary Fetcher, fallback Fetcher) Fetcher {
	group := resilience.NewFallbackGroup(primary, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.BreakerConfig{
			FailureBudget: 3,
			CoolDown:      defaultCoolDown,
			ProbeBudget:   1,
			OnTrip: func(name string) {
				slog.Warn("graphcache: external fetch source tripped, failing over", "source", name)
			},
		},
	})
	group.AddFallback("fallback", fallback)

	return func(uri string) (rdf.Model, error) {
		return resilience.ExecuteWithResult(group, func(f Fetcher) (rdf.Model, error) {
			return f(uri)
		})
	}
}
