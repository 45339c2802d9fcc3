package main

import (
	"testing"
	"time"
)

func newTestCache(ttl time.Duration) (*TTLCache, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestTTLCache_SetGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("a", 1)
	value, ok := c.Get("a")
	if !ok {
		t.Fatal("Expected entry to be present")
	}
	if value.(int) != 1 {
		t.Errorf("Expected 1, got %v", value)
	}

	c.Set("a", 2)
	value, _ = c.Get("a")
	if value.(int) != 2 {
		t.Errorf("Expected overwritten value 2, got %v", value)
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	c, now := newTestCache(time.Minute)
	c.Set("k", "v")

	*now = now.Add(time.Minute)
	if !c.Has("k") {
		t.Error("Expected entry to be valid exactly at the TTL")
	}

	*now = now.Add(time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry to be expired after the TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, got %d entries", c.Len())
	}
}

func TestTTLCache_HasMirrorsGet(t *testing.T) {
	c, now := newTestCache(time.Second)
	c.Set("k", "v")

	_, got := c.Get("k")
	if c.Has("k") != got {
		t.Error("Expected Has to agree with Get for a live entry")
	}

	*now = now.Add(2 * time.Second)
	if c.Has("k") {
		t.Error("Expected Has to report false for an expired entry")
	}
	if c.Has("missing") {
		t.Error("Expected Has to report false for a missing key")
	}
}

func TestTTLCache_KeyIsolationAndClear(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set(BuildCacheKey("search", "portal", 10), []int{1})
	c.Set(BuildCacheKey("search", "portal", 20), []int{2})

	a, _ := getTyped[[]int](c, "search:portal:10")
	b, _ := getTyped[[]int](c, "search:portal:20")
	if a[0] != 1 || b[0] != 2 {
		t.Errorf("Expected isolated entries, got %v and %v", a, b)
	}

	c.Clear()
	if c.Len() != 0 || c.Has("search:portal:10") {
		t.Error("Expected cache to be empty after Clear")
	}
}

func TestTTLCache_Stats(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("k", 1)
	c.Get("k")
	c.Get("k")
	c.Get("nope")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("Expected 2 hits, 1 miss, 1 entry, got %+v", stats)
	}
}

func TestGetTyped_WrongType(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("k", "string")
	if _, ok := getTyped[int](c, "k"); ok {
		t.Error("Expected type mismatch to be reported as a miss")
	}
}

func TestBuildCacheKey(t *testing.T) {
	testCases := []struct {
		name     string
		key      string
		expected string
	}{
		{"no parts", BuildCacheKey("most-played:ranks"), "most-played:ranks"},
		{"int part", BuildCacheKey("most-played", 20), "most-played:20"},
		{"mixed parts", BuildCacheKey("search", "portal", 10, true, false), "search:portal:10:true:false"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.key != tc.expected {
				t.Errorf("Expected key '%s', got '%s'", tc.expected, tc.key)
			}
		})
	}
}
