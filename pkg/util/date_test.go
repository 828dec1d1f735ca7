package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2025-12-19")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2025 || got.Month() != time.December || got.Day() != 19 {
		t.Fatalf("unexpected date %v", got)
	}
	if _, ok := ParseDate("12/19/2025"); ok {
		t.Fatalf("expected failure for slash format")
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	days, ok := DaysUntil("2025-06-11", now)
	if !ok || days != 10 {
		t.Fatalf("expected 10 days, got %d ok=%v", days, ok)
	}

	days, ok = DaysUntil("2025-05-30", now)
	if !ok || days != -2 {
		t.Fatalf("expected -2 days, got %d ok=%v", days, ok)
	}

	if _, ok := DaysUntil("not-a-date", now); ok {
		t.Fatalf("expected failure")
	}
}
