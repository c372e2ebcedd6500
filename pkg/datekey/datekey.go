// Package datekey provides calendar-day keys in a fixed reference timezone.
// Streaks and daily coin caps are defined over calendar days, not raw
// timestamps, so every component that reasons about "today" goes through
// this package. No external dependencies - uses only standard library.
package datekey

import (
	"time"
)

// Format is the wire and storage format for date keys (YYYY-MM-DD).
const Format = "2006-01-02"

// refZone is the fixed reference timezone for day boundaries.
// It is set once at startup via SetReferenceZone and never changes after
// that, so unsynchronized reads are safe.
var refZone = time.UTC

// SetReferenceZone pins the reference timezone for day boundaries.
// Call once during application startup, before any key is computed.
func SetReferenceZone(loc *time.Location) {
	if loc != nil {
		refZone = loc
	}
}

// ReferenceZone returns the current reference timezone.
func ReferenceZone() *time.Location {
	return refZone
}

// Key is a calendar-day key string in Format, e.g. "2026-03-14".
// The zero value "" means "no day recorded".
type Key string

// Of returns the Key for the calendar day containing t in the reference zone.
func Of(t time.Time) Key {
	return Key(t.In(refZone).Format(Format))
}

// Today returns the Key for the current calendar day.
func Today() Key {
	return Of(time.Now())
}

// IsZero reports whether the key is empty (no day recorded).
func (k Key) IsZero() bool {
	return k == ""
}

// Time returns the start of the key's day in the reference zone.
// Returns the zero time for empty or malformed keys.
func (k Key) Time() time.Time {
	if k == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(Format, string(k), refZone)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Valid reports whether the key parses as a calendar day.
func (k Key) Valid() bool {
	if k == "" {
		return false
	}
	_, err := time.ParseInLocation(Format, string(k), refZone)
	return err == nil
}

// AddDays returns the key shifted by n calendar days.
func (k Key) AddDays(n int) Key {
	t := k.Time()
	if t.IsZero() {
		return ""
	}
	return Of(t.AddDate(0, 0, n))
}

// DaysBetween returns the signed number of calendar days from a to b.
// Positive when b is after a, zero when either key is empty or malformed
// (malformed input is treated as "same day" so callers stay defensive).
func DaysBetween(a, b Key) int {
	ta, tb := a.Time(), b.Time()
	if ta.IsZero() || tb.IsZero() {
		return 0
	}
	// Re-anchor both civil dates at UTC midnight before subtracting. A
	// reference zone with DST has 23- and 25-hour days, and a raw duration
	// division would fold the short day into "same day".
	ua := time.Date(ta.Year(), ta.Month(), ta.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(tb.Year(), tb.Month(), tb.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// MidnightAfter returns the first instant of the day after the one
// containing t, in the reference zone. Used to expire per-day counters.
func MidnightAfter(t time.Time) time.Time {
	local := t.In(refZone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, refZone).AddDate(0, 0, 1)
}

// IsSameDay reports whether two instants fall on the same calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := t1.In(refZone), t2.In(refZone)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
