package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgradeProfile_Idempotent(t *testing.T) {
	p := &Profile{
		Version: 1,
		Coins:   -5,
		Streak:  StreakState{Current: 4, Best: 2, FreezeTokens: -1},
		Badges:  []string{"streak-3", "streak-3", ""},
		Settings: Settings{
			Difficulty: "impossible",
		},
	}

	once := UpgradeProfile(p)
	twice := UpgradeProfile(once)

	assert.Equal(t, once, twice)
}

func TestUpgradeProfile_NormalizesInvariants(t *testing.T) {
	p := &Profile{
		Version: 0,
		Coins:   -20,
		Streak:  StreakState{Current: 6, Best: 3, LastActive: "garbage"},
		Badges:  []string{"a", "b", "a"},
	}

	up := UpgradeProfile(p)

	assert.Equal(t, SchemaVersion, up.Version)
	assert.Equal(t, 0, up.Coins)
	assert.Equal(t, 6, up.Streak.Best) // best raised to current
	assert.Equal(t, "", string(up.Streak.LastActive))
	assert.Equal(t, []string{"a", "b"}, up.Badges)
	assert.Equal(t, DifficultyAuto, up.Settings.Difficulty)
	assert.NotNil(t, up.Mastery)
	assert.NotNil(t, up.History)
}

func TestUpgradeProfile_NilYieldsDefault(t *testing.T) {
	up := UpgradeProfile(nil)
	assert.Equal(t, NewProfile(), up)
}

func TestDecodeProfile_LegacyBareNumberStreak(t *testing.T) {
	data := []byte(`{"version":1,"coins":30,"streak":5,"badges":["first-lesson"]}`)

	p, err := DecodeProfile(data)
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, p.Version)
	assert.Equal(t, 30, p.Coins)
	assert.Equal(t, 5, p.Streak.Current)
	assert.Equal(t, 5, p.Streak.Best)
	assert.Equal(t, []string{"first-lesson"}, p.Badges)
}

func TestDecodeProfile_LegacyBadgeMap(t *testing.T) {
	data := []byte(`{"version":2,"badges":{"streak-3":true,"first-lesson":true,"revoked":false}}`)

	p, err := DecodeProfile(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"first-lesson", "streak-3"}, p.Badges)
}

func TestDecodeProfile_RoundTripCurrentShape(t *testing.T) {
	p := NewProfile()
	p.Coins = 42
	p.Streak = StreakState{Current: 2, Best: 4, LastActive: "2026-03-14", FreezeTokens: 1}
	p.Badges = []string{"first-lesson"}
	p.Mastery["table:7"] = MasteryStat{Correct: 9, Wrong: 1}

	data, err := EncodeProfile(p)
	require.NoError(t, err)

	got, err := DecodeProfile(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodeProfile_Malformed(t *testing.T) {
	_, err := DecodeProfile([]byte(`{`))
	assert.Error(t, err)
}

func TestDeepCopy_Independent(t *testing.T) {
	p := NewProfile()
	p.Badges = append(p.Badges, "first-lesson")
	p.Mastery["mode:maths"] = MasteryStat{Correct: 1}

	cp := p.DeepCopy()
	cp.Coins = 99
	cp.Badges = append(cp.Badges, "streak-3")
	cp.Mastery["mode:maths"] = MasteryStat{Correct: 50}

	assert.Equal(t, 0, p.Coins)
	assert.Equal(t, []string{"first-lesson"}, p.Badges)
	assert.Equal(t, 1, p.Mastery["mode:maths"].Correct)
}

func TestMasteryStat_Accuracy(t *testing.T) {
	assert.Equal(t, 0.0, MasteryStat{}.Accuracy())
	assert.InDelta(t, 0.75, MasteryStat{Correct: 3, Wrong: 1}.Accuracy(), 1e-9)
}
