package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlet-learn/owlet-core/internal/application/profilestore"
	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/local"
	"github.com/owlet-learn/owlet-core/pkg/datekey"
)

func summaryHarness(t *testing.T, today datekey.Key, seed func(*progress.Profile)) *GetProgressSummaryHandler {
	t.Helper()
	profiles := profilestore.New(profilestore.Config{Persistence: local.NewMemoryStore()})
	require.NoError(t, profiles.Load(context.Background()))
	if seed != nil {
		profiles.Update(context.Background(), seed)
	}
	return NewGetProgressSummaryHandler(profiles, func() datekey.Key { return today })
}

func TestGetProgressSummary_Basic(t *testing.T) {
	handler := summaryHarness(t, datekey.Key("2026-08-31"), func(p *progress.Profile) {
		p.Coins = 75
		p.Streak = progress.StreakState{Current: 3, Best: 5, LastActive: datekey.Key("2026-08-31")}
		p.LastMode = "spelling"
		p.Purchases = []string{"hat-wizard"}
	})

	summary, err := handler.Handle(context.Background(), GetProgressSummaryQuery{})
	require.NoError(t, err)

	assert.Equal(t, 75, summary.Coins)
	assert.Equal(t, 3, summary.Streak.Current)
	assert.Equal(t, 5, summary.Streak.Best)
	assert.Equal(t, "active", summary.Streak.Status)
	assert.Equal(t, "spelling", summary.LastMode)
	assert.Equal(t, 1, summary.Purchases)
	assert.Empty(t, summary.Badges)
	assert.Empty(t, summary.Mastery)
}

func TestGetProgressSummary_StreakStatus(t *testing.T) {
	cases := []struct {
		name       string
		lastActive datekey.Key
		current    int
		want       string
	}{
		{"played today", datekey.Key("2026-08-31"), 2, "active"},
		{"yesterday only", datekey.Key("2026-08-30"), 2, "at_risk"},
		{"gap too wide", datekey.Key("2026-08-25"), 2, "broken"},
		{"no streak", datekey.Key(""), 0, "broken"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := summaryHarness(t, datekey.Key("2026-08-31"), func(p *progress.Profile) {
				p.Streak.Current = tc.current
				p.Streak.LastActive = tc.lastActive
			})

			summary, err := handler.Handle(context.Background(), GetProgressSummaryQuery{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, summary.Streak.Status)
		})
	}
}

func TestGetProgressSummary_BadgesResolved(t *testing.T) {
	handler := summaryHarness(t, datekey.Key("2026-08-31"), func(p *progress.Profile) {
		p.Badges = []string{"first-lesson", "streak-3"}
	})

	summary, err := handler.Handle(context.Background(), GetProgressSummaryQuery{IncludeBadges: true})
	require.NoError(t, err)

	require.Len(t, summary.Badges, 2)
	assert.Equal(t, "first-lesson", summary.Badges[0].ID)
	assert.Equal(t, "3-Day Streak", summary.Badges[1].Label)
}

func TestGetProgressSummary_MasterySortedWithAccuracy(t *testing.T) {
	handler := summaryHarness(t, datekey.Key("2026-08-31"), func(p *progress.Profile) {
		p.Mastery["mode:maths"] = progress.MasteryStat{Correct: 9, Wrong: 1}
		p.Mastery["maths:times-tables"] = progress.MasteryStat{Correct: 3, Wrong: 3}
	})

	summary, err := handler.Handle(context.Background(), GetProgressSummaryQuery{IncludeMastery: true})
	require.NoError(t, err)

	require.Len(t, summary.Mastery, 2)
	assert.Equal(t, "maths:times-tables", summary.Mastery[0].SkillKey)
	assert.InDelta(t, 0.5, summary.Mastery[0].Accuracy, 1e-9)
	assert.Equal(t, "mode:maths", summary.Mastery[1].SkillKey)
	assert.InDelta(t, 0.9, summary.Mastery[1].Accuracy, 1e-9)
}
