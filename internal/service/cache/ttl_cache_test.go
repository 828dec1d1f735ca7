package cache

import (
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", 42, time.Second)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected lazy eviction on read, len %d", c.Len())
	}
}

func TestTTLCacheExpiryBoundary(t *testing.T) {
	c := NewTTLCache()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Set("k", 42, time.Second)

	// Just inside the TTL the entry is still served.
	now = base.Add(time.Second - time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("expected hit just inside ttl, got %v %v", v, ok)
	}

	// Exactly at expiry the entry is still served; After is strict.
	now = base.Add(time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit exactly at expiry")
	}

	now = base.Add(time.Second + time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss past expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected eviction, len %d", c.Len())
	}
}

func TestTTLCacheForever(t *testing.T) {
	c := NewTTLCache()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v", 0)
	now = now.Add(24 * time.Hour)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected permanent entry, got %v %v", v, ok)
	}
}

func TestKey(t *testing.T) {
	if got := Key("chain", "SPY", 5); got != "chain:SPY:5" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key("quotes"); got != "quotes" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestGetTyped(t *testing.T) {
	c := NewTTLCache()
	c.Set("n", 7, 0)

	if v, ok := GetTyped[int](c, "n"); !ok || v != 7 {
		t.Fatalf("expected typed hit, got %v %v", v, ok)
	}
	if _, ok := GetTyped[string](c, "n"); ok {
		t.Fatalf("expected type mismatch miss")
	}
}
