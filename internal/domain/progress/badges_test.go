package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaybeUnlockBadges_FirstLesson(t *testing.T) {
	p := NewProfile()
	s := Session{Correct: 3, Wrong: 2, Mode: "maths"}

	res := MaybeUnlockBadges(p, s)

	assert.Contains(t, res.Unlocked, "first-lesson")
}

func TestMaybeUnlockBadges_IdempotentOnceMerged(t *testing.T) {
	p := NewProfile()
	p.Streak.Current = 3
	s := Session{Correct: 5, Mode: "maths"}

	first := MaybeUnlockBadges(p, s)
	assert.Contains(t, first.Unlocked, "streak-3")

	// Merge the unlocks, as the caller would.
	p.Badges = append(p.Badges, first.Unlocked...)

	second := MaybeUnlockBadges(p, s)
	assert.NotContains(t, second.Unlocked, "streak-3")
	assert.NotContains(t, second.Unlocked, "first-lesson")

	third := MaybeUnlockBadges(p, s)
	assert.Equal(t, second, third)
}

func TestMaybeUnlockBadges_MultipleInOneSession(t *testing.T) {
	p := NewProfile()
	p.Streak.Current = 7
	p.Coins = 120
	s := Session{Correct: 10, Wrong: 0, Mode: "maths"}

	res := MaybeUnlockBadges(p, s)

	assert.Contains(t, res.Unlocked, "first-lesson")
	assert.Contains(t, res.Unlocked, "perfect-10")
	assert.Contains(t, res.Unlocked, "streak-3")
	assert.Contains(t, res.Unlocked, "streak-7")
	assert.Contains(t, res.Unlocked, "coins-100")
	assert.Len(t, res.Badges, len(res.Unlocked))
}

func TestMaybeUnlockBadges_RuleOrderPreserved(t *testing.T) {
	p := NewProfile()
	p.Streak.Current = 3
	s := Session{Correct: 10, Wrong: 0, Mode: "maths"}

	res := MaybeUnlockBadges(p, s)

	// first-lesson precedes perfect-10 precedes streak-3 in the rule list.
	assert.Equal(t, []string{"first-lesson", "perfect-10", "streak-3"}, res.Unlocked)
}

func TestBadgeByID(t *testing.T) {
	b, ok := BadgeByID("streak-7")
	assert.True(t, ok)
	assert.Equal(t, "Week of Fire", b.Label)

	_, ok = BadgeByID("no-such-badge")
	assert.False(t, ok)
}
