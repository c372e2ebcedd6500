package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles. Flags gate optional gameplay
// mechanics so a build can ship with a mechanic dark and light it up later
// via environment, or roll it out to a percentage of players.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100). Players are assigned by a hash of
	// their guest or account ID, so assignment is sticky.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Gamification ===
	FeatureStreakFreeze    = "gamification.streak_freeze"     // freeze tokens absorb missed days
	FeatureCoinsPerCorrect = "gamification.coins_per_correct" // base payout follows correct count
	FeatureBadges          = "gamification.badges"            // badge engine

	// === Sync ===
	FeatureDailyCoinCap = "sync.daily_coin_cap" // server-side daily earn cap
	FeatureAutoPush     = "sync.auto_push"      // push progress after each lesson

	// === Content ===
	FeatureWordScramble = "content.word_scramble" // scramble generator in spelling
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureStreakFreeze] = &Feature{
		Name:           FeatureStreakFreeze,
		Description:    "Streak freeze tokens absorb missed days",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCoinsPerCorrect] = &Feature{
		Name:           FeatureCoinsPerCorrect,
		Description:    "Base coin payout scales with correct answers",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureBadges] = &Feature{
		Name:           FeatureBadges,
		Description:    "Badge unlock engine",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureDailyCoinCap] = &Feature{
		Name:           FeatureDailyCoinCap,
		Description:    "Server-side daily coin earn cap",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAutoPush] = &Feature{
		Name:           FeatureAutoPush,
		Description:    "Push progress to the server after each lesson",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureWordScramble] = &Feature{
		Name:           FeatureWordScramble,
		Description:    "Word scramble questions in spelling lessons",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment applies env overrides of the form
// FEATURE_<NAME>=true|false and FEATURE_<NAME>_ROLLOUT=<0-100>, with dots
// replaced by underscores: FEATURE_SYNC_AUTO_PUSH=false.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if val := os.Getenv(envKey); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = enabled
				if enabled && feature.RolloutPercent == 0 {
					feature.RolloutPercent = 100
				}
			}
		}

		if val := os.Getenv(envKey + "_ROLLOUT"); val != "" {
			if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
				feature.RolloutPercent = pct
			}
		}
	}
}

// IsEnabled reports whether the feature is on for everyone.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[name]
	return ok && feature.Enabled && feature.RolloutPercent >= 100
}

// IsEnabledFor reports whether the feature is on for the given player ID,
// respecting rollout percentage. Assignment is a stable hash of the ID.
func (ff *FeatureFlags) IsEnabledFor(name, playerID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[name]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 {
		return false
	}

	return bucketOf(name, playerID) < feature.RolloutPercent
}

// Set enables or disables a feature at runtime.
func (ff *FeatureFlags) Set(name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if feature, ok := ff.features[name]; ok {
		feature.Enabled = enabled
		if enabled && feature.RolloutPercent == 0 {
			feature.RolloutPercent = 100
		}
	}
}

// All returns a snapshot of every flag.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	return out
}

// bucketOf maps a (feature, player) pair to a stable bucket 0-99. Including
// the feature name decorrelates buckets across features.
func bucketOf(name, playerID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(playerID))
	return int(h.Sum32() % 100)
}
