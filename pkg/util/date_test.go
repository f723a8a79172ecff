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

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2025-01-17")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2025 || got.Month() != time.January || got.Day() != 17 {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDaysToExpiration(t *testing.T) {
	now := time.Date(2025, 1, 2, 21, 30, 0, 0, time.UTC)
	cases := []struct {
		exp  string
		want int
	}{
		{"2025-01-02", 0},
		{"2025-01-03", 1},
		{"2025-02-01", 30},
		{"2024-12-31", -2},
	}
	for _, c := range cases {
		got, ok := DTEFromString(c.exp, now)
		if !ok {
			t.Fatalf("parse %s failed", c.exp)
		}
		if got != c.want {
			t.Fatalf("dte(%s) = %d, want %d", c.exp, got, c.want)
		}
	}
	if _, ok := DTEFromString("not-a-date", now); ok {
		t.Fatalf("expected parse failure")
	}
}
