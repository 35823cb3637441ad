package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache(time.Minute, 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("key", "value", 0)
	v, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache(time.Minute, 10)

	c.Set("short", 42, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache(time.Minute, 10)

	c.Set("key", 1, 0)
	assert.True(t, c.Delete("key"))
	assert.False(t, c.Delete("key"))

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestTTLCacheEvictsAtCap(t *testing.T) {
	c := NewTTLCache(time.Minute, 10)

	for i := 0; i < 25; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i, time.Duration(i+1)*time.Minute)
	}

	assert.LessOrEqual(t, c.Len(), 10)

	// Entries with the latest expiry survive eviction.
	_, ok := c.Get("key-24")
	assert.True(t, ok)
}

func TestTTLCacheClear(t *testing.T) {
	c := NewTTLCache(time.Minute, 10)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Clear()

	assert.Equal(t, 0, c.Len())
}

func TestMakeKeyStable(t *testing.T) {
	k1 := MakeKey("pois", 52.2297, 21.0122, 1000)
	k2 := MakeKey("pois", 52.2297, 21.0122, 1000)
	k3 := MakeKey("pois", 52.2297, 21.0123, 1000)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 32)
}
