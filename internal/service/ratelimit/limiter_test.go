package ratelimit

import "testing"

func TestAllowConsumesBurst(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("expected allow at %d", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatalf("expected deny after burst")
	}
}

func TestAllowKeysIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("expected allow for a")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("expected deny for a")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("expected allow for b")
	}
}
