// Package progress contains the pure gamification core: the versioned
// profile model, the streak calculator, the coin awarder, and the badge
// engine. Everything here is deterministic and free of I/O; persistence and
// sync live in the infrastructure layer.
package progress

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/owlet-learn/owlet-core/pkg/datekey"
)

// SchemaVersion is the current profile schema version. A loaded profile with
// a different version is run through UpgradeProfile before first use.
const SchemaVersion = 3

// Difficulty is the lesson difficulty setting.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyAuto   Difficulty = "auto"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyAuto, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// StreakState holds the consecutive-day engagement counter.
type StreakState struct {
	// Current is the current streak length in days.
	Current int `json:"current"`

	// Best is the best streak ever reached.
	Best int `json:"best"`

	// LastActive is the date key of the last day that counted toward the
	// streak. Empty means no activity recorded yet.
	LastActive datekey.Key `json:"lastActiveISO"`

	// FreezeTokens is the number of streak freezes available. One token
	// forgives one gap of missed days.
	FreezeTokens int `json:"freezeTokens"`
}

// Settings holds user-tunable lesson settings.
type Settings struct {
	Difficulty Difficulty `json:"difficulty"`
	Sound      bool       `json:"sound"`
}

// MasteryStat accumulates per-skill accuracy. Never pruned; growth is
// bounded by the number of distinct skill keys in the curriculum.
type MasteryStat struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// Accuracy returns the fraction of correct answers, or 0 with no attempts.
func (m MasteryStat) Accuracy() float64 {
	total := m.Correct + m.Wrong
	if total == 0 {
		return 0
	}
	return float64(m.Correct) / float64(total)
}

// SessionRecord is the per-session history entry kept on the profile.
type SessionRecord struct {
	Correct     int       `json:"correct"`
	Wrong       int       `json:"wrong"`
	Mode        string    `json:"mode"`
	CompletedAt time.Time `json:"completedAt"`
}

// Profile is the durable, versioned record of one user's (or guest's)
// progress. The profile store owns the authoritative value; everyone else
// sees read-only snapshots.
type Profile struct {
	// Version is the schema version; mismatch triggers migration on load.
	Version int `json:"version"`

	// Coins is the local coin tally. Never negative.
	Coins int `json:"coins"`

	// Streak is the consecutive-day engagement state.
	Streak StreakState `json:"streak"`

	// Badges is the ordered set of unlocked badge ids. Append-only during a
	// profile's lifetime.
	Badges []string `json:"badges"`

	// Purchases is the ordered set of owned shop item ids. Append-only.
	Purchases []string `json:"purchases"`

	// Settings holds difficulty and sound preferences.
	Settings Settings `json:"settings"`

	// Mastery maps a skill key (e.g. "table:7", "mode:maths") to accumulated
	// accuracy stats.
	Mastery map[string]MasteryStat `json:"mastery"`

	// History maps a session key to its record.
	History map[string]SessionRecord `json:"history"`

	// LastMode is the last-used subject/mode, for round-robin progression.
	LastMode string `json:"lastMode"`
}

// NewProfile returns a default profile at the current schema version.
func NewProfile() *Profile {
	return &Profile{
		Version:   SchemaVersion,
		Coins:     0,
		Streak:    StreakState{},
		Badges:    []string{},
		Purchases: []string{},
		Settings: Settings{
			Difficulty: DifficultyAuto,
			Sound:      true,
		},
		Mastery: map[string]MasteryStat{},
		History: map[string]SessionRecord{},
	}
}

// HasBadge reports whether the badge id is already unlocked.
func (p *Profile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// HasPurchase reports whether the shop item is already owned.
func (p *Profile) HasPurchase(id string) bool {
	for _, b := range p.Purchases {
		if b == id {
			return true
		}
	}
	return false
}

// SessionCount returns the number of recorded sessions.
func (p *Profile) SessionCount() int {
	return len(p.History)
}

// DeepCopy returns an independent copy of the profile. The store mutates
// only copies, never the published snapshot.
func (p *Profile) DeepCopy() *Profile {
	cp := *p

	cp.Badges = make([]string, len(p.Badges))
	copy(cp.Badges, p.Badges)

	cp.Purchases = make([]string, len(p.Purchases))
	copy(cp.Purchases, p.Purchases)

	cp.Mastery = make(map[string]MasteryStat, len(p.Mastery))
	for k, v := range p.Mastery {
		cp.Mastery[k] = v
	}

	cp.History = make(map[string]SessionRecord, len(p.History))
	for k, v := range p.History {
		cp.History[k] = v
	}

	return &cp
}

// UpgradeProfile normalizes a profile of any prior shape into the current
// schema. It never fails: missing or out-of-range fields are coerced to
// safe defaults. Idempotent: UpgradeProfile(UpgradeProfile(x)) equals
// UpgradeProfile(x).
func UpgradeProfile(p *Profile) *Profile {
	if p == nil {
		return NewProfile()
	}

	up := p.DeepCopy()
	up.Version = SchemaVersion

	if up.Coins < 0 {
		up.Coins = 0
	}

	if up.Streak.Current < 0 {
		up.Streak.Current = 0
	}
	if up.Streak.Best < up.Streak.Current {
		up.Streak.Best = up.Streak.Current
	}
	if up.Streak.FreezeTokens < 0 {
		up.Streak.FreezeTokens = 0
	}
	if !up.Streak.LastActive.IsZero() && !up.Streak.LastActive.Valid() {
		up.Streak.LastActive = ""
	}

	up.Badges = dedupe(up.Badges)
	up.Purchases = dedupe(up.Purchases)

	if !up.Settings.Difficulty.Valid() {
		up.Settings.Difficulty = DifficultyAuto
	}

	if up.Mastery == nil {
		up.Mastery = map[string]MasteryStat{}
	}
	for k, v := range up.Mastery {
		if v.Correct < 0 {
			v.Correct = 0
		}
		if v.Wrong < 0 {
			v.Wrong = 0
		}
		up.Mastery[k] = v
	}

	if up.History == nil {
		up.History = map[string]SessionRecord{}
	}

	return up
}

// dedupe removes duplicate ids while preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// profileJSON is the tolerant decoding shape. Legacy profiles stored the
// streak as a bare number and the badge set as an id->bool map; both shapes
// are coerced here before UpgradeProfile enforces the remaining invariants.
type profileJSON struct {
	Version   int                      `json:"version"`
	Coins     int                      `json:"coins"`
	Streak    json.RawMessage          `json:"streak"`
	Badges    json.RawMessage          `json:"badges"`
	Purchases json.RawMessage          `json:"purchases"`
	Settings  Settings                 `json:"settings"`
	Mastery   map[string]MasteryStat   `json:"mastery"`
	History   map[string]SessionRecord `json:"history"`
	LastMode  string                   `json:"lastMode"`
}

// DecodeProfile decodes a stored profile of any supported legacy shape and
// upgrades it to the current schema.
func DecodeProfile(data []byte) (*Profile, error) {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("progress: decode profile: %w", err)
	}

	p := &Profile{
		Version:   raw.Version,
		Coins:     raw.Coins,
		Streak:    decodeStreak(raw.Streak),
		Badges:    decodeIDSet(raw.Badges),
		Purchases: decodeIDSet(raw.Purchases),
		Settings:  raw.Settings,
		Mastery:   raw.Mastery,
		History:   raw.History,
		LastMode:  raw.LastMode,
	}

	return UpgradeProfile(p), nil
}

// EncodeProfile encodes a profile for storage.
func EncodeProfile(p *Profile) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("progress: encode profile: %w", err)
	}
	return data, nil
}

// decodeStreak accepts the current object shape or the legacy bare number.
func decodeStreak(raw json.RawMessage) StreakState {
	if len(raw) == 0 {
		return StreakState{}
	}

	var st StreakState
	if err := json.Unmarshal(raw, &st); err == nil {
		return st
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			n = 0
		}
		return StreakState{Current: n, Best: n}
	}

	return StreakState{}
}

// decodeIDSet accepts a list of ids or the legacy id->bool map shape.
func decodeIDSet(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var set map[string]bool
	if err := json.Unmarshal(raw, &set); err == nil {
		out := make([]string, 0, len(set))
		for id, owned := range set {
			if owned {
				out = append(out, id)
			}
		}
		// Map iteration order is random; sort for stable storage.
		sort.Strings(out)
		return out
	}

	return []string{}
}
