package util

import (
	"strconv"
	"time"
)

// DateLayout is the expiration date format used across chain snapshots.
const DateLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, plain dates and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// DaysToExpiration counts calendar days from now until the expiration date.
// Both ends are truncated to their UTC date; past dates give a negative count.
func DaysToExpiration(expiration, now time.Time) int {
	e := truncateDay(expiration)
	n := truncateDay(now)
	return int(e.Sub(n).Hours() / 24)
}

// DTEFromString parses an expiration date and returns its days to expiration.
func DTEFromString(s string, now time.Time) (int, bool) {
	t, ok := ParseTime(s)
	if !ok {
		return 0, false
	}
	return DaysToExpiration(t, now), true
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
