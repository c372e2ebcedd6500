package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/owlet-learn/owlet-core/pkg/datekey"
)

func TestCalcStreak_FirstActivityStartsAtOne(t *testing.T) {
	res := CalcStreak("", "2026-03-14", 0, 0)

	assert.Equal(t, 1, res.Current)
	assert.Equal(t, 1, res.Delta)
	assert.False(t, res.Reset)
	assert.False(t, res.FreezeUsed)
}

func TestCalcStreak_SameDayNeverDoubleIncrements(t *testing.T) {
	day := datekey.Key("2026-03-14")

	res := CalcStreak(day, day, 4, 2)
	assert.Equal(t, 4, res.Current)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, 2, res.FreezeTokens)

	// Repeated evaluation with unchanged inputs stays a no-op.
	again := CalcStreak(day, day, res.Current, res.FreezeTokens)
	assert.Equal(t, res, again)
}

func TestCalcStreak_NextDayIncrements(t *testing.T) {
	res := CalcStreak("2026-03-14", "2026-03-15", 2, 0)

	assert.Equal(t, 3, res.Current)
	assert.Equal(t, 1, res.Delta)
	assert.Equal(t, 0, res.FreezeTokens)
}

func TestCalcStreak_GapConsumesFreezeToken(t *testing.T) {
	res := CalcStreak("2026-03-14", "2026-03-17", 5, 1)

	assert.Equal(t, 5, res.Current)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, 0, res.FreezeTokens)
	assert.True(t, res.FreezeUsed)
	assert.False(t, res.Reset)
}

func TestCalcStreak_GapWithoutTokenResets(t *testing.T) {
	res := CalcStreak("2026-03-14", "2026-03-18", 4, 0)

	assert.Equal(t, 0, res.Current)
	assert.Equal(t, -4, res.Delta)
	assert.True(t, res.Reset)
	assert.False(t, res.FreezeUsed)
}

func TestCalcStreak_ClockWentBackwards(t *testing.T) {
	// Defensive: "now" before the last active day must not change anything.
	res := CalcStreak("2026-03-15", "2026-03-14", 3, 1)

	assert.Equal(t, 3, res.Current)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, 1, res.FreezeTokens)
}

func TestCalcStreak_NegativeInputsClamped(t *testing.T) {
	res := CalcStreak("2026-03-14", "2026-03-18", -2, -1)

	assert.Equal(t, 0, res.Current)
	assert.Equal(t, 0, res.Delta)
	assert.True(t, res.Reset)
}
