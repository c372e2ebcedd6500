// Package command contains application-layer write operations. Each command
// validates its input, runs the domain calculators inside a single profile
// store update, and publishes the resulting events.
package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/owlet-learn/owlet-core/internal/application/profilestore"
	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/pkg/datekey"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// ProgressPusher sends accumulated progress to the server. The sync core
// implements it; commands call it best effort after committing locally.
type ProgressPusher interface {
	UpdateUserProgress(ctx context.Context)
}

// CompleteLessonCommand finishes a lesson session and banks its results.
type CompleteLessonCommand struct {
	Correct       int
	Wrong         int
	CorrectStreak int
	Mode          string
	Subject       string
	Year          int
	Topic         string
	StartedAt     time.Time
}

// Validate checks command invariants.
func (c CompleteLessonCommand) Validate() error {
	if c.Mode == "" {
		return shared.NewDomainError("progress", "complete_lesson", shared.ErrValidation, "mode is required")
	}
	if c.Correct < 0 || c.Wrong < 0 || c.CorrectStreak < 0 {
		return shared.NewDomainError("progress", "complete_lesson", shared.ErrNegativeValue, "counts cannot be negative")
	}
	if c.Correct+c.Wrong == 0 {
		return shared.NewDomainError("progress", "complete_lesson", shared.ErrEmptyValue, "session has no answers")
	}
	return nil
}

// CompleteLessonResult reports what the session earned.
type CompleteLessonResult struct {
	Payout         progress.CoinPayout
	Streak         progress.StreakResult
	UnlockedBadges []progress.Badge
	Coins          int
	FirstSession   bool
}

// CompleteLessonHandler handles CompleteLessonCommand.
type CompleteLessonHandler struct {
	profiles *profilestore.Store
	pusher   ProgressPusher
	bus      shared.EventPublisher
	logger   *logger.Logger

	coinsPerCorrect int
	freezeEnabled   bool
	today           func() datekey.Key
}

// CompleteLessonHandlerConfig contains dependencies and tuning for the handler.
type CompleteLessonHandlerConfig struct {
	// Profiles is the profile store. Required.
	Profiles *profilestore.Store

	// Pusher syncs progress after the commit. Optional.
	Pusher ProgressPusher

	// Bus receives progress events. Optional.
	Bus shared.EventPublisher

	// CoinsPerCorrect is the base payout per correct answer. Default 1.
	CoinsPerCorrect int

	// FreezeEnabled allows streak freeze tokens to absorb missed days.
	FreezeEnabled bool

	// Today overrides the current date key. For tests.
	Today func() datekey.Key

	// Logger for structured logging.
	Logger *logger.Logger
}

// NewCompleteLessonHandler creates a CompleteLessonHandler.
func NewCompleteLessonHandler(config CompleteLessonHandlerConfig) *CompleteLessonHandler {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	coinsPerCorrect := config.CoinsPerCorrect
	if coinsPerCorrect <= 0 {
		coinsPerCorrect = 1
	}
	today := config.Today
	if today == nil {
		today = datekey.Today
	}
	return &CompleteLessonHandler{
		profiles:        config.Profiles,
		pusher:          config.Pusher,
		bus:             config.Bus,
		logger:          log.With(logger.Component("complete_lesson")),
		coinsPerCorrect: coinsPerCorrect,
		freezeEnabled:   config.FreezeEnabled,
		today:           today,
	}
}

// Handle banks a finished session: advances the day streak, awards coins,
// accumulates mastery, records history, and evaluates badges, all in one
// profile commit. The post-commit server push is best effort.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	session := progress.Session{
		Correct:       cmd.Correct,
		Wrong:         cmd.Wrong,
		CorrectStreak: cmd.CorrectStreak,
		Mode:          cmd.Mode,
		Subject:       cmd.Subject,
		Year:          cmd.Year,
		Topic:         cmd.Topic,
		StartedAt:     cmd.StartedAt,
	}

	today := h.today()
	result := &CompleteLessonResult{}

	updated := h.profiles.Update(ctx, func(p *progress.Profile) {
		result.FirstSession = p.SessionCount() == 0 && p.Streak.LastActive.IsZero()

		tokens := 0
		if h.freezeEnabled {
			tokens = p.Streak.FreezeTokens
		}
		streak := progress.CalcStreak(p.Streak.LastActive, today, p.Streak.Current, tokens)
		p.Streak.Current = streak.Current
		if h.freezeEnabled {
			p.Streak.FreezeTokens = streak.FreezeTokens
		}
		if streak.Current > p.Streak.Best {
			p.Streak.Best = streak.Current
		}
		p.Streak.LastActive = today
		result.Streak = streak

		payout := progress.AwardCoins(progress.CoinAward{
			Base:          cmd.Correct * h.coinsPerCorrect,
			CorrectStreak: cmd.CorrectStreak,
			FirstSession:  result.FirstSession,
			Difficulty:    p.Settings.Difficulty,
		})
		p.Coins += payout.Total
		result.Payout = payout

		for _, key := range session.SkillKeys() {
			stat := p.Mastery[key]
			stat.Correct += cmd.Correct
			stat.Wrong += cmd.Wrong
			p.Mastery[key] = stat
		}

		p.History[uuid.NewString()] = progress.SessionRecord{
			Correct:     cmd.Correct,
			Wrong:       cmd.Wrong,
			Mode:        cmd.Mode,
			CompletedAt: time.Now(),
		}
		p.LastMode = cmd.Mode

		unlocks := progress.MaybeUnlockBadges(p, session)
		p.Badges = append(p.Badges, unlocks.Unlocked...)
		result.UnlockedBadges = unlocks.Badges
	})

	result.Coins = updated.Coins

	h.publishEvents(result, cmd.Mode)

	h.logger.Info("lesson completed",
		logger.Mode(cmd.Mode),
		logger.Coins(result.Payout.Total),
		logger.Streak(result.Streak.Current))

	if h.pusher != nil {
		h.pusher.UpdateUserProgress(ctx)
	}

	return result, nil
}

// publishEvents emits the coin, streak, and badge events for a banked session.
func (h *CompleteLessonHandler) publishEvents(result *CompleteLessonResult, mode string) {
	if h.bus == nil {
		return
	}

	h.publish(shared.NewCoinsAwardedEvent("local", result.Payout.Total, mode))

	if result.Streak.Delta != 0 || result.Streak.FreezeUsed || result.Streak.Reset {
		h.publish(shared.NewStreakChangedEvent("local",
			result.Streak.Current,
			result.Streak.Delta,
			result.Streak.FreezeUsed,
			result.Streak.Reset))
	}

	for _, badge := range result.UnlockedBadges {
		h.publish(shared.NewBadgeUnlockedEvent("local", badge.ID, badge.Label))
	}
}

func (h *CompleteLessonHandler) publish(event shared.Event) {
	if err := h.bus.Publish(event); err != nil {
		h.logger.Warn("event publish failed", logger.Err(err))
	}
}
