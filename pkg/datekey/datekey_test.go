package datekey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOf_FormatsCalendarDay(t *testing.T) {
	ts := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, Key("2026-03-14"), Of(ts))
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		want int
	}{
		{"same day", "2026-03-14", "2026-03-14", 0},
		{"next day", "2026-03-14", "2026-03-15", 1},
		{"three days", "2026-03-14", "2026-03-17", 3},
		{"backwards", "2026-03-15", "2026-03-14", -1},
		{"month boundary", "2026-01-31", "2026-02-01", 1},
		{"empty a", "", "2026-03-14", 0},
		{"empty b", "2026-03-14", "", 0},
		{"malformed", "not-a-date", "2026-03-14", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
		})
	}
}

func TestDaysBetween_DSTTransitions(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	prev := ReferenceZone()
	SetReferenceZone(loc)
	t.Cleanup(func() { SetReferenceZone(prev) })

	// 2026-03-29 is a 23-hour day (spring forward), 2026-10-25 a 25-hour
	// day (fall back). Both are still exactly one calendar day apart from
	// their neighbours.
	assert.Equal(t, 1, DaysBetween("2026-03-28", "2026-03-29"))
	assert.Equal(t, 1, DaysBetween("2026-03-29", "2026-03-30"))
	assert.Equal(t, 2, DaysBetween("2026-03-28", "2026-03-30"))
	assert.Equal(t, 1, DaysBetween("2026-10-24", "2026-10-25"))
	assert.Equal(t, 1, DaysBetween("2026-10-25", "2026-10-26"))
	assert.Equal(t, -1, DaysBetween("2026-03-30", "2026-03-29"))
}

func TestKey_AddDays(t *testing.T) {
	assert.Equal(t, Key("2026-03-15"), Key("2026-03-14").AddDays(1))
	assert.Equal(t, Key("2026-02-28"), Key("2026-03-01").AddDays(-1))
	assert.Equal(t, Key(""), Key("").AddDays(1))
}

func TestKey_Valid(t *testing.T) {
	assert.True(t, Key("2026-03-14").Valid())
	assert.False(t, Key("").Valid())
	assert.False(t, Key("14/03/2026").Valid())
}

func TestMidnightAfter(t *testing.T) {
	ts := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	next := MidnightAfter(ts)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), next)
}

func TestIsSameDay(t *testing.T) {
	a := time.Date(2026, 3, 14, 0, 0, 1, 0, time.UTC)
	b := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC)
	assert.True(t, IsSameDay(a, b))
	assert.False(t, IsSameDay(b, c))
}
