package progress

import (
	"github.com/owlet-learn/owlet-core/pkg/datekey"
)

// StreakResult is the outcome of one streak evaluation.
type StreakResult struct {
	// Current is the streak value after the evaluation.
	Current int

	// Delta is the change applied: +1 on start/continue, 0 on same-day or
	// freeze, negative of the prior value on reset.
	Delta int

	// FreezeTokens is the remaining token count after the evaluation.
	FreezeTokens int

	// FreezeUsed is set when a token was consumed to bridge a gap.
	FreezeUsed bool

	// Reset is set when the streak was reset to zero.
	Reset bool
}

// CalcStreak computes the next streak state from the last active day, the
// current day, the prior streak value, and the available freeze tokens.
//
// Day arithmetic runs on calendar-day keys in the reference timezone, never
// on raw timestamps, so time-of-day can not shift the result. Multiple
// completions on the same day never double-increment. A gap of two or more
// days consumes one freeze token if available (keeping the streak), and
// resets the streak otherwise.
//
// Pure and deterministic; no side effects, no I/O.
func CalcStreak(lastActive, today datekey.Key, previous, freezeTokens int) StreakResult {
	if previous < 0 {
		previous = 0
	}
	if freezeTokens < 0 {
		freezeTokens = 0
	}

	// First activity ever: a streak of one begins.
	if lastActive.IsZero() {
		return StreakResult{Current: 1, Delta: 1, FreezeTokens: freezeTokens}
	}

	diff := datekey.DaysBetween(lastActive, today)

	switch {
	case diff <= 0:
		// Same day, or a clock that went backwards. No change either way.
		return StreakResult{Current: previous, Delta: 0, FreezeTokens: freezeTokens}

	case diff == 1:
		return StreakResult{Current: previous + 1, Delta: 1, FreezeTokens: freezeTokens}

	case freezeTokens > 0:
		return StreakResult{
			Current:      previous,
			Delta:        0,
			FreezeTokens: freezeTokens - 1,
			FreezeUsed:   true,
		}

	default:
		return StreakResult{
			Current:      0,
			Delta:        -previous,
			FreezeTokens: 0,
			Reset:        true,
		}
	}
}
