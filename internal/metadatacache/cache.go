// Package metadatacache implements the MetadataCache described in
// spec.md §3 and §4.6: a single per-process keyed store with TTL,
// backed by github.com/patrickmn/go-cache the same way the teacher's
// backend/cache/storage_memory.go wraps that library for its chunk store.
package metadatacache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shimomut/tfm-sub008/internal/metrics"
)

// CacheKey is an ordered record of operation tag + scheme-specific fields.
// Two distinct operations must produce distinct keys even when they
// overlap in arguments (spec.md §3, hard invariant): this is enforced by
// String always including the Op tag ahead of the fields, so e.g. a
// "stat" and a "listing" op on identical fields never collide.
type CacheKey struct {
	Op     string // operation tag, e.g. "listing", "complete_listing", "stat", "head"
	Scheme string // "file", "s3", "archive", "sftp"
	Fields map[string]string
}

// String renders the key deterministically: fields are sorted by name so
// equal field sets always serialize identically regardless of insertion
// order, which is what makes CacheKey usable as a go-cache string key.
func (k CacheKey) String() string {
	names := make([]string, 0, len(k.Fields))
	for name := range k.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(k.Op)
	b.WriteByte('|')
	b.WriteString(k.Scheme)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(k.Fields[name])
	}
	return b.String()
}

// entry is the value actually stored in go-cache: the payload plus the
// insertion time and ttl, so Get can re-validate TTL deterministically
// (Open Question 2 in DESIGN.md) without depending on go-cache's janitor
// sweep cadence, which runs on its own timer.
type entry struct {
	value      interface{}
	insertedAt time.Time
	ttl        time.Duration
}

// Cache is the MetadataCache. The zero value is not usable; use New.
type Cache struct {
	mu        sync.Mutex // guards nothing in go-cache itself (it's internally synchronized); serializes our own bookkeeping only
	store     *gocache.Cache
	defaultTTL time.Duration
	metrics   *metrics.Registry
	now       func() time.Time
}

// New builds a Cache with the given default TTL. The entry count is
// unbounded (go-cache has no built-in LRU bound; CacheManager.Invalidate
// is what keeps it from growing unboundedly in practice, since every
// mutating file op invalidates the entries it touches).
func New(defaultTTL time.Duration, m *metrics.Registry) *Cache {
	return &Cache{
		store:      gocache.New(defaultTTL, defaultTTL),
		defaultTTL: defaultTTL,
		metrics:    m,
		now:        time.Now,
	}
}

// Get returns the value for key if present and not expired (I1 in
// spec.md §8). It never blocks on I/O — it's a pure map lookup.
func (c *Cache) Get(key CacheKey) (interface{}, bool) {
	k := key.String()
	raw, found := c.store.Get(k)
	if !found {
		c.metrics.CacheMiss(key.Op, key.Scheme)
		return nil, false
	}
	e := raw.(*entry)
	if e.ttl > 0 && c.now().Sub(e.insertedAt) > e.ttl {
		c.store.Delete(k)
		c.metrics.CacheMiss(key.Op, key.Scheme)
		return nil, false
	}
	c.metrics.CacheHit(key.Op, key.Scheme)
	return e.value, true
}

// Put stores value under key. ttl of 0 uses the Cache's default TTL.
func (c *Cache) Put(key CacheKey, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	e := &entry{value: value, insertedAt: c.now(), ttl: ttl}
	c.store.Set(key.String(), e, ttl)
}

// GetOrInsertWith looks up key, and on a miss calls compute, stores the
// result under ttl (0 = default), and returns it — the decorator-style
// caching pattern from spec.md §9 ("Decorator-based caching: replace with
// explicit cache.get_or_insert_with(key, ttl, || compute())") expressed as
// a plain method instead of a decorator.
func (c *Cache) GetOrInsertWith(key CacheKey, ttl time.Duration, compute func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.Put(key, v, ttl)
	return v, nil
}

// Predicate decides whether a key should be invalidated.
type Predicate func(key CacheKey) bool

// Invalidate removes every entry whose key matches pred. go-cache has no
// native "iterate keys and test" primitive beyond Items(), which is what
// this is built on; Items() returns a snapshot copy so it's safe to
// Delete while iterating.
func (c *Cache) Invalidate(pred Predicate) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for rawKey := range c.store.Items() {
		key, ok := parseKey(rawKey)
		if !ok {
			continue
		}
		if pred(key) {
			c.store.Delete(rawKey)
			removed++
		}
	}
	return removed
}

// parseKey reverses CacheKey.String() well enough for predicate matching.
// It is intentionally forgiving: CacheManager predicates only inspect
// Op/Scheme/Fields that callers originally set, and String()'s format is
// stable, so splitting on "|" and "=" round-trips exactly.
func parseKey(raw string) (CacheKey, bool) {
	parts := strings.Split(raw, "|")
	if len(parts) < 2 {
		return CacheKey{}, false
	}
	k := CacheKey{Op: parts[0], Scheme: parts[1], Fields: map[string]string{}}
	for _, part := range parts[2:] {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k.Fields[kv[0]] = kv[1]
	}
	return k, true
}

// Len reports the number of stored entries, including expired ones that
// go-cache's janitor has not yet swept.
// Exposed for tests and for cache_max_entries diagnostics.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Key builds a CacheKey from op/scheme and an ordered list of field
// name/value pairs, e.g. Key("listing", "s3", "bucket", b, "prefix", p).
func Key(op, scheme string, kv ...string) CacheKey {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("metadatacache.Key: odd number of kv args for op %q", op))
	}
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return CacheKey{Op: op, Scheme: scheme, Fields: fields}
}
