package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetLastWriteWins(t *testing.T) {
	ix := NewIndex(0)

	ix.Set("key1", "val1", false)
	got, ok := ix.Get("key1", 0)
	require.True(t, ok)
	assert.Equal(t, "val1", got)

	ix.Set("key1", "val2", false)
	got, ok = ix.Get("key1", 0)
	require.True(t, ok)
	assert.Equal(t, "val2", got)

	_, ok = ix.Get("missing", 0)
	assert.False(t, ok)
}

func TestDeleteLeavesTombstone(t *testing.T) {
	ix := NewIndex(0)
	ix.Set("a", "1", false)

	assert.True(t, ix.Delete("a", 0))
	assert.False(t, ix.Delete("a", 0), "second delete is a no-op")
	assert.False(t, ix.Exists("a", 0))

	// Slot survives as a tombstone.
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 0, ix.LiveLen(0))

	// Re-set over the tombstone.
	ix.Set("a", "2", false)
	got, ok := ix.Get("a", 0)
	require.True(t, ok)
	assert.Equal(t, "2", got)
	assert.Equal(t, 1, ix.Len())
}

func TestLazyExpiration(t *testing.T) {
	ix := NewIndex(0)
	ix.Set("k", "v", false)
	assert.Equal(t, 1, ix.ExpireAbsolute("k", 100, 50))

	// Still visible before the deadline.
	assert.True(t, ix.Exists("k", 99))
	assert.Equal(t, int64(1), ix.TTL("k", 99))

	// Deadline is <= now inclusive.
	_, ok := ix.Get("k", 100)
	assert.False(t, ok)
	assert.Equal(t, int64(TTLMissing), ix.TTL("k", 100))
	assert.False(t, ix.Exists("k", 200))
}

func TestExpireImmediate(t *testing.T) {
	ix := NewIndex(0)
	ix.Set("k", "v", false)

	// Deadline already due: expires right away instead of storing a past TTL.
	assert.Equal(t, 1, ix.ExpireAbsolute("k", 50, 50))
	assert.False(t, ix.Exists("k", 50))

	// Missing or dead keys report 0.
	assert.Equal(t, 0, ix.ExpireAbsolute("k", 500, 50))
	assert.Equal(t, 0, ix.ExpireAbsolute("nope", 500, 50))
}

func TestTTLAndPersist(t *testing.T) {
	ix := NewIndex(0)
	ix.Set("k", "v", false)

	assert.Equal(t, int64(TTLNone), ix.TTL("k", 0))
	assert.Equal(t, 0, ix.Persist("k", 0), "no TTL to clear")

	ix.ExpireAbsolute("k", 1000, 0)
	assert.Equal(t, int64(600), ix.TTL("k", 400))
	assert.Equal(t, 1, ix.Persist("k", 400))
	assert.Equal(t, int64(TTLNone), ix.TTL("k", 400))

	// Once cleared the key no longer expires.
	assert.True(t, ix.Exists("k", 5000))

	assert.Equal(t, int64(TTLMissing), ix.TTL("missing", 0))
}

func TestSetPreserveTTL(t *testing.T) {
	ix := NewIndex(0)
	ix.Set("k", "v", false)
	ix.ExpireAbsolute("k", 1000, 0)

	ix.Set("k", "v2", true)
	assert.Equal(t, int64(1000), ix.TTL("k", 0), "preserving set keeps the deadline")

	ix.Set("k", "v3", false)
	assert.Equal(t, int64(TTLNone), ix.TTL("k", 0), "clearing set drops the deadline")
}

func TestRangeKeys(t *testing.T) {
	ix := NewIndex(0)
	for _, k := range []string{"d", "b", "a", "c"} {
		ix.Set(k, "v", false)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ix.RangeKeys("a", "c", 0))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ix.RangeKeys("", "", 0), "open bounds cover everything")
	assert.Equal(t, []string{"c", "d"}, ix.RangeKeys("c", "", 0))
	assert.Equal(t, []string{"a", "b"}, ix.RangeKeys("", "b", 0))
	assert.Empty(t, ix.RangeKeys("x", "z", 0))

	// Tombstones and expired keys are filtered out.
	ix.Delete("b", 0)
	ix.ExpireAbsolute("c", 10, 0)
	assert.Equal(t, []string{"a", "d"}, ix.RangeKeys("", "", 10))
}

func TestRangeBoundsNotPresentAsKeys(t *testing.T) {
	ix := NewIndex(0)
	for _, k := range []string{"apple", "banana", "cherry"} {
		ix.Set(k, "v", false)
	}
	// Inclusive bounds that fall between keys.
	assert.Equal(t, []string{"banana"}, ix.RangeKeys("b", "c", 0))
}

func TestApplyMutatorsAreClockFree(t *testing.T) {
	ix := NewIndex(0)
	ix.Set("k", "v", false)

	// A deadline already in the past is stored, not deleted: the key is
	// hidden lazily once an accessor observes it past the deadline.
	ix.ApplyExpireAt("k", 10)
	got, ok := ix.Get("k", 5)
	require.True(t, ok)
	assert.Equal(t, "v", got)
	assert.False(t, ix.Exists("k", 10))

	// A clearing set revives the slot with no deadline.
	ix.Set("k", "v2", false)
	assert.True(t, ix.Exists("k", 1_000_000))

	ix.ApplyExpireAt("k", 2_000_000)
	ix.ApplyPersist("k")
	assert.Equal(t, int64(TTLNone), ix.TTL("k", 1_000_000))

	ix.ApplyDelete("k")
	assert.False(t, ix.Exists("k", 0))
	assert.Equal(t, 1, ix.Len(), "tombstone slot retained")

	// No-ops on missing or dead slots.
	ix.ApplyExpireAt("missing", 99)
	ix.ApplyPersist("missing")
	ix.ApplyDelete("missing")
	ix.ApplyExpireAt("k", 99)
	assert.Equal(t, int64(TTLMissing), ix.TTL("k", 0))
	assert.Equal(t, 1, ix.Len())
}

func TestCloneIsIndependent(t *testing.T) {
	ix := NewIndex(0)
	ix.Set("a", "1", false)
	ix.Set("b", "2", false)
	ix.ExpireAbsolute("b", 1000, 0)

	cp := ix.Clone()

	// Mutations on the clone never leak into the origin.
	cp.Set("a", "changed", false)
	cp.Delete("b", 0)
	cp.Set("c", "new", false)

	got, ok := ix.Get("a", 0)
	require.True(t, ok)
	assert.Equal(t, "1", got)
	assert.True(t, ix.Exists("b", 0))
	assert.Equal(t, int64(1000), ix.TTL("b", 0))
	assert.False(t, ix.Exists("c", 0))

	// And the other direction.
	ix.Set("a", "origin", false)
	got, ok = cp.Get("a", 0)
	require.True(t, ok)
	assert.Equal(t, "changed", got)
}
