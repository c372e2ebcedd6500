// Package query contains read operations over the profile. Queries never
// mutate; they fold the profile snapshot into display-ready DTOs.
package query

import (
	"context"
	"sort"

	"github.com/owlet-learn/owlet-core/internal/application/profilestore"
	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/pkg/datekey"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS SUMMARY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressSummaryQuery contains options for the summary.
type GetProgressSummaryQuery struct {
	// IncludeMastery adds per-skill accuracy rows.
	IncludeMastery bool

	// IncludeBadges adds unlocked badge descriptors.
	IncludeBadges bool
}

// StreakSummaryDTO describes the day streak for display.
type StreakSummaryDTO struct {
	Current      int    `json:"current"`
	Best         int    `json:"best"`
	FreezeTokens int    `json:"freeze_tokens"`
	LastActive   string `json:"last_active,omitempty"`

	// Status is "active" (played today), "at_risk" (yesterday counted but
	// today has not), or "broken" (the gap already exceeds one day).
	Status string `json:"status"`
}

// MasteryRowDTO is one skill's accumulated accuracy.
type MasteryRowDTO struct {
	SkillKey string  `json:"skill_key"`
	Correct  int     `json:"correct"`
	Wrong    int     `json:"wrong"`
	Accuracy float64 `json:"accuracy"`
}

// ProgressSummaryDTO is the aggregate view of a profile.
type ProgressSummaryDTO struct {
	Coins     int              `json:"coins"`
	Streak    StreakSummaryDTO `json:"streak"`
	Sessions  int              `json:"sessions"`
	Purchases int              `json:"purchases"`
	LastMode  string           `json:"last_mode,omitempty"`

	Badges  []progress.Badge `json:"badges,omitempty"`
	Mastery []MasteryRowDTO  `json:"mastery,omitempty"`
}

// GetProgressSummaryHandler handles GetProgressSummaryQuery.
type GetProgressSummaryHandler struct {
	profiles *profilestore.Store
	today    func() datekey.Key
}

// NewGetProgressSummaryHandler creates a GetProgressSummaryHandler. The
// today function may be nil; the reference-zone current date is used.
func NewGetProgressSummaryHandler(profiles *profilestore.Store, today func() datekey.Key) *GetProgressSummaryHandler {
	if today == nil {
		today = datekey.Today
	}
	return &GetProgressSummaryHandler{profiles: profiles, today: today}
}

// Handle builds the summary from the current profile snapshot.
func (h *GetProgressSummaryHandler) Handle(_ context.Context, q GetProgressSummaryQuery) (*ProgressSummaryDTO, error) {
	p := h.profiles.Get()
	today := h.today()

	summary := &ProgressSummaryDTO{
		Coins: p.Coins,
		Streak: StreakSummaryDTO{
			Current:      p.Streak.Current,
			Best:         p.Streak.Best,
			FreezeTokens: p.Streak.FreezeTokens,
			LastActive:   string(p.Streak.LastActive),
			Status:       streakStatus(p.Streak, today),
		},
		Sessions:  p.SessionCount(),
		Purchases: len(p.Purchases),
		LastMode:  p.LastMode,
	}

	if q.IncludeBadges {
		for _, id := range p.Badges {
			if badge, ok := progress.BadgeByID(id); ok {
				summary.Badges = append(summary.Badges, badge)
			}
		}
	}

	if q.IncludeMastery {
		summary.Mastery = masteryRows(p.Mastery)
	}

	return summary, nil
}

// streakStatus classifies the streak relative to today.
func streakStatus(s progress.StreakState, today datekey.Key) string {
	if s.Current == 0 || s.LastActive.IsZero() {
		return "broken"
	}
	switch datekey.DaysBetween(s.LastActive, today) {
	case 0:
		return "active"
	case 1:
		return "at_risk"
	default:
		return "broken"
	}
}

// masteryRows flattens the mastery map into sorted display rows.
func masteryRows(mastery map[string]progress.MasteryStat) []MasteryRowDTO {
	rows := make([]MasteryRowDTO, 0, len(mastery))
	for key, stat := range mastery {
		rows = append(rows, MasteryRowDTO{
			SkillKey: key,
			Correct:  stat.Correct,
			Wrong:    stat.Wrong,
			Accuracy: stat.Accuracy(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SkillKey < rows[j].SkillKey })
	return rows
}
