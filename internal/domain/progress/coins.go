package progress

import (
	"math"
)

// FirstSessionBonus is the one-time payout added to a user's very first
// completed session.
const FirstSessionBonus = 5

// correctStreakGrace is the number of consecutive correct answers that earn
// no bonus; runs beyond it pay out two coins per answer.
const correctStreakGrace = 3

// CoinAward is the input to one coin payout computation.
type CoinAward struct {
	// Base is the session's base payout, supplied by the caller.
	Base int

	// CorrectStreak is the longest run of consecutive correct answers in
	// the session.
	CorrectStreak int

	// FirstSession marks the user's first completed session ever.
	FirstSession bool

	// Difficulty scales the base payout. Unknown values count as 1.0.
	Difficulty Difficulty
}

// CoinBreakdown itemizes a payout for display.
type CoinBreakdown struct {
	Base              int `json:"base"`
	StreakBonus       int `json:"streakBonus"`
	DifficultyBonus   int `json:"difficultyBonus"`
	FirstSessionBonus int `json:"firstSessionBonus"`
}

// CoinPayout is the result of one coin payout computation.
type CoinPayout struct {
	// Total is the number of coins awarded. Always at least 1.
	Total int `json:"total"`

	// Breakdown itemizes the total.
	Breakdown CoinBreakdown `json:"breakdown"`
}

// difficultyMultiplier returns the payout multiplier for a difficulty.
func difficultyMultiplier(d Difficulty) float64 {
	switch d {
	case DifficultyEasy:
		return 0.75
	case DifficultyHard:
		return 1.25
	default:
		// auto, normal, and anything unknown
		return 1.0
	}
}

// AwardCoins computes the coin payout for a completed session. The payout is
// never zero or negative. This function enforces no daily cap; the server
// applies its cap downstream during sync.
//
// Pure and deterministic; callable any number of times per day.
func AwardCoins(in CoinAward) CoinPayout {
	streakBonus := 0
	if in.CorrectStreak > correctStreakGrace {
		streakBonus = (in.CorrectStreak - correctStreakGrace) * 2
	}

	difficultyBonus := int(math.Round(float64(in.Base) * (difficultyMultiplier(in.Difficulty) - 1)))

	firstBonus := 0
	if in.FirstSession {
		firstBonus = FirstSessionBonus
	}

	total := in.Base + streakBonus + difficultyBonus + firstBonus
	if total < 1 {
		total = 1
	}

	return CoinPayout{
		Total: total,
		Breakdown: CoinBreakdown{
			Base:              in.Base,
			StreakBonus:       streakBonus,
			DifficultyBonus:   difficultyBonus,
			FirstSessionBonus: firstBonus,
		},
	}
}
