package progress

import (
	"strings"
)

// Badge describes one unlockable badge.
type Badge struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// BadgeRule pairs a badge with its unlock predicate. Rules are evaluated
// against the profile plus the just-finished session; they must be pure.
type BadgeRule struct {
	Badge Badge
	Test  func(p *Profile, s Session) bool
}

// badgeRules is the fixed, ordered rule list. Order determines the order
// newly unlocked badges are reported in.
var badgeRules = []BadgeRule{
	{
		Badge: Badge{ID: "first-lesson", Label: "First Lesson"},
		Test: func(p *Profile, s Session) bool {
			return s.Total() > 0
		},
	},
	{
		Badge: Badge{ID: "perfect-10", Label: "Perfect Ten"},
		Test: func(p *Profile, s Session) bool {
			return s.Correct >= 10 && s.Wrong == 0
		},
	},
	{
		Badge: Badge{ID: "streak-3", Label: "3-Day Streak"},
		Test: func(p *Profile, s Session) bool {
			return p.Streak.Current >= 3
		},
	},
	{
		Badge: Badge{ID: "streak-7", Label: "Week of Fire"},
		Test: func(p *Profile, s Session) bool {
			return p.Streak.Current >= 7
		},
	},
	{
		Badge: Badge{ID: "streak-30", Label: "Iron Will"},
		Test: func(p *Profile, s Session) bool {
			return p.Streak.Current >= 30
		},
	},
	{
		Badge: Badge{ID: "coins-100", Label: "Saver"},
		Test: func(p *Profile, s Session) bool {
			return p.Coins >= 100
		},
	},
	{
		Badge: Badge{ID: "coins-500", Label: "Treasure Hoard"},
		Test: func(p *Profile, s Session) bool {
			return p.Coins >= 500
		},
	},
	{
		Badge: Badge{ID: "all-rounder", Label: "All-Rounder"},
		Test: func(p *Profile, s Session) bool {
			// Practised at least three distinct modes.
			modes := 0
			for k := range p.Mastery {
				if strings.HasPrefix(k, "mode:") {
					modes++
				}
			}
			return modes >= 3
		},
	},
	{
		Badge: Badge{ID: "sessions-50", Label: "Dedicated Learner"},
		Test: func(p *Profile, s Session) bool {
			return p.SessionCount() >= 50
		},
	},
}

// BadgeRules returns the rule list in evaluation order.
func BadgeRules() []BadgeRule {
	return badgeRules
}

// BadgeUnlocks is the result of one badge evaluation pass.
type BadgeUnlocks struct {
	// Unlocked lists newly unlocked badge ids, in rule order.
	Unlocked []string `json:"unlocked"`

	// Badges carries the full badge descriptors for the unlocked ids.
	Badges []Badge `json:"badges"`
}

// MaybeUnlockBadges evaluates every rule against the profile and session
// snapshot and reports the badges that newly unlock. Badges already present
// on the profile are never re-awarded, so the call is idempotent per badge.
// Side-effect-free: the caller merges Unlocked into the profile's badge set.
func MaybeUnlockBadges(p *Profile, s Session) BadgeUnlocks {
	result := BadgeUnlocks{
		Unlocked: []string{},
		Badges:   []Badge{},
	}

	for _, rule := range badgeRules {
		if p.HasBadge(rule.Badge.ID) {
			continue
		}
		if rule.Test(p, s) {
			result.Unlocked = append(result.Unlocked, rule.Badge.ID)
			result.Badges = append(result.Badges, rule.Badge)
		}
	}

	return result
}

// BadgeByID returns the descriptor for a badge id.
func BadgeByID(id string) (Badge, bool) {
	for _, rule := range badgeRules {
		if rule.Badge.ID == id {
			return rule.Badge, true
		}
	}
	return Badge{}, false
}
