package metadatacache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPutGetWithinAndAfterTTL is spec.md I1: cache.put(k,v); cache.get(k)
// returns v within ttl, and nothing once ttl has elapsed.
func TestPutGetWithinAndAfterTTL(t *testing.T) {
	c := New(time.Hour, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := Key("stat", "file", "path", "/a.txt")
	c.Put(key, "value", time.Minute)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "value", got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry must be gone once its ttl has elapsed")
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	c := New(time.Hour, nil)
	_, ok := c.Get(Key("stat", "file", "path", "/missing.txt"))
	assert.False(t, ok)
}

// TestDistinctOpsDoNotCollide is the cache-key hard invariant from
// metadatacache's own doc comment: two different ops over identical
// fields must never be confused with one another.
func TestDistinctOpsDoNotCollide(t *testing.T) {
	c := New(time.Hour, nil)
	statKey := Key("stat", "s3", "bucket", "b", "key", "k")
	listKey := Key("listing", "s3", "bucket", "b", "key", "k")

	c.Put(statKey, "stat-value", 0)
	_, ok := c.Get(listKey)
	assert.False(t, ok, "a listing key must not see a stat entry's value")

	c.Put(listKey, "listing-value", 0)
	got, ok := c.Get(statKey)
	require.True(t, ok)
	assert.Equal(t, "stat-value", got)
}

func TestFieldOrderDoesNotAffectKeyIdentity(t *testing.T) {
	a := Key("listing", "s3", "bucket", "b", "prefix", "p/")
	b := Key("listing", "s3", "prefix", "p/", "bucket", "b")
	assert.Equal(t, a.String(), b.String())
}

func TestGetOrInsertWithComputesOnceOnMiss(t *testing.T) {
	c := New(0, nil)
	key := Key("head", "file", "path", "/a.txt")
	calls := 0
	compute := func() (interface{}, error) {
		calls++
		return "computed", nil
	}

	v, err := c.GetOrInsertWith(key, 0, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)

	v, err = c.GetOrInsertWith(key, 0, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", v)
	assert.Equal(t, 1, calls, "compute must not run again once the key is cached")
}

func TestInvalidateRemovesMatchingKeysOnly(t *testing.T) {
	c := New(0, nil)
	c.Put(Key("listing", "file", "path", "/a/"), "a", 0)
	c.Put(Key("listing", "file", "path", "/b/"), "b", 0)

	removed := c.Invalidate(func(k CacheKey) bool {
		return k.Fields["path"] == "/a/"
	})
	assert.Equal(t, 1, removed)

	_, ok := c.Get(Key("listing", "file", "path", "/a/"))
	assert.False(t, ok)
	_, ok = c.Get(Key("listing", "file", "path", "/b/"))
	assert.True(t, ok)
}
