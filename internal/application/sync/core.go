// Package sync coordinates local progress with the account server. It owns
// the auth state machine, the guest identity, and the merge protocol; all of
// its network work is best effort and never blocks local play.
package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/owlet-learn/owlet-core/internal/application/profilestore"
	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/external/gameapi"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/local"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// State is the auth state of the sync core.
type State int

const (
	// StateGuest means no account: progress is local only, keyed by a
	// generated guest ID.
	StateGuest State = iota

	// StateAuthenticating means a token arrived and the initial
	// merge-and-fetch cycle is in flight.
	StateAuthenticating

	// StateAuthenticated means the account session is live and pushes
	// go to the server.
	StateAuthenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateGuest:
		return "guest"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// capWarningThreshold is the remaining-coins level at which a cap warning
// event is published.
const capWarningThreshold = 20

// API is the server surface the core needs. *gameapi.Client satisfies it.
type API interface {
	MyProgress(ctx context.Context) (*gameapi.ProgressDTO, error)
	MergeProgress(ctx context.Context, req gameapi.MergeRequest) (*gameapi.MergeResponse, error)
	SetToken(token string)
	ClearToken()
}

// Config contains dependencies for the sync core.
type Config struct {
	// API is the account server client. Required.
	API API

	// Profiles is the profile store. Required.
	Profiles *profilestore.Store

	// Meta is the local store for the token and guest ID. Required.
	Meta local.Store

	// Publisher receives sync lifecycle events. Optional.
	Publisher shared.EventPublisher

	// TZ is the IANA zone name sent with merges, for the server's daily
	// cap window. Defaults to UTC.
	TZ string

	// SettleDelay is how long to wait after a guest merge before fetching
	// totals, giving the server time to fold the guest record in.
	SettleDelay time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// Core is the sync coordinator. All methods are safe for concurrent use.
type Core struct {
	api       API
	profiles  *profilestore.Store
	meta      local.Store
	publisher shared.EventPublisher
	logger    *logger.Logger

	tz          string
	settleDelay time.Duration

	mu             gosync.Mutex
	state          State
	baselineCoins  int
	baselineStreak int
	baselineSet    bool
}

// New creates a sync core in the guest state.
func New(config Config) *Core {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	tz := config.TZ
	if tz == "" {
		tz = "UTC"
	}
	return &Core{
		api:         config.API,
		profiles:    config.Profiles,
		meta:        config.Meta,
		publisher:   config.Publisher,
		logger:      log.With(logger.Component("sync_core")),
		tz:          tz,
		settleDelay: config.SettleDelay,
		state:       StateGuest,
	}
}

// State returns the current auth state.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetOrSetGuestID returns the persisted guest identity, creating and
// persisting a fresh one on first call.
func (c *Core) GetOrSetGuestID(ctx context.Context) (string, error) {
	raw, err := c.meta.Get(ctx, local.PartitionMeta, local.KeyGuestID)
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}
	if err != nil && !local.IsNotFound(err) {
		return "", err
	}

	id := uuid.NewString()
	if err := c.meta.Put(ctx, local.PartitionMeta, local.KeyGuestID, []byte(id)); err != nil {
		return "", err
	}
	c.logger.Debug("guest identity created", logger.GuestID(id))
	return id, nil
}

// Restore resumes a previous session from the persisted token. Called once
// at startup; a missing token leaves the core in guest state.
func (c *Core) Restore(ctx context.Context) {
	raw, err := c.meta.Get(ctx, local.PartitionMeta, local.KeyJWT)
	if err != nil {
		if !local.IsNotFound(err) {
			c.logger.Warn("token restore failed", logger.Err(err))
		}
		return
	}
	token := string(raw)
	if token == "" {
		return
	}

	c.api.SetToken(token)
	c.mu.Lock()
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.FetchUserProgress(ctx)
	c.logger.Info("session restored", logger.Mode(c.State().String()))
}

// HandleIncomingToken runs the login cycle: persist the token, merge any
// guest progress into the account, then fetch the authoritative totals.
// Network failures are logged and swallowed; the session still becomes
// authenticated and the next push retries the sync.
func (c *Core) HandleIncomingToken(ctx context.Context, token string) error {
	if token == "" {
		return shared.ErrInvalidState
	}

	c.mu.Lock()
	if c.state == StateAuthenticating {
		c.mu.Unlock()
		return shared.ErrStateTransition
	}
	c.state = StateAuthenticating
	c.mu.Unlock()

	if err := c.meta.Put(ctx, local.PartitionMeta, local.KeyJWT, []byte(token)); err != nil {
		c.logger.Warn("token persist failed", logger.Err(err))
	}
	c.api.SetToken(token)

	merged := c.MergeGuestProgress(ctx)
	if merged && c.settleDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.settleDelay):
		}
	}

	c.FetchUserProgress(ctx)

	c.mu.Lock()
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.logger.Info("login completed")
	return nil
}

// FetchUserProgress pulls server totals and reconciles them into the local
// profile. Reconciliation takes the maximum of each counter: neither side
// can lose progress by syncing. The result becomes the push baseline.
// Failures are logged and swallowed.
func (c *Core) FetchUserProgress(ctx context.Context) {
	remote, err := c.api.MyProgress(ctx)
	if err != nil {
		c.logger.Warn("progress fetch failed", logger.Err(err))
		return
	}

	updated := c.profiles.Update(ctx, func(p *progress.Profile) {
		if remote.Coins > p.Coins {
			p.Coins = remote.Coins
		}
		if remote.Streak > p.Streak.Current {
			p.Streak.Current = remote.Streak
		}
	})

	c.setBaseline(updated.Coins, updated.Streak.Current)

	if c.publisher != nil {
		event := shared.NewSyncCompletedEvent("local", updated.Coins, updated.Streak.Current)
		if err := c.publisher.Publish(event); err != nil {
			c.logger.Warn("sync event publish failed", logger.Err(err))
		}
	}
}

// MergeGuestProgress folds pre-login guest progress into the account. It is
// a no-op when there is no guest identity or nothing worth merging. On
// success the guest identity is cleared everywhere so the merge can never
// run twice. Reports whether a merge request was sent.
func (c *Core) MergeGuestProgress(ctx context.Context) bool {
	raw, err := c.meta.Get(ctx, local.PartitionMeta, local.KeyGuestID)
	if err != nil || len(raw) == 0 {
		if err != nil && !local.IsNotFound(err) {
			c.logger.Warn("guest id read failed", logger.Err(err))
		}
		return false
	}
	guestID := string(raw)

	snapshot := c.profiles.Get()
	if snapshot.Coins == 0 && snapshot.Streak.Current == 0 && snapshot.SessionCount() == 0 {
		// Nothing earned as a guest. The identity stays put: it is only
		// discarded after a successful merge.
		c.logger.Debug("guest merge skipped, no progress", logger.GuestID(guestID))
		return false
	}

	// The guest sends what it earned, not its raw counters. Coins are
	// credited additively server-side, and the streak signal is the
	// coarse "a streak day was earned" 0|1 rather than the streak
	// length, so a long guest streak cannot inflate the account's.
	coinsEarned := snapshot.Coins
	streakEarned := 0
	if snapshot.Streak.Current > 0 {
		streakEarned = 1
	}

	resp, err := c.api.MergeProgress(ctx, gameapi.MergeRequest{
		GuestID: guestID,
		TZ:      c.tz,
		Progress: gameapi.MergeProgressDTO{
			CoinsEarned:  &coinsEarned,
			StreakEarned: &streakEarned,
		},
	})
	if err != nil {
		c.logger.Warn("guest merge failed", logger.GuestID(guestID), logger.Err(err))
		return false
	}

	// The merge succeeded server-side. Clear the identity first so a crash
	// between these steps cannot replay the merge.
	if err := c.meta.Delete(ctx, local.PartitionMeta, local.KeyGuestID); err != nil {
		c.logger.Warn("guest id clear failed", logger.Err(err))
	}

	c.applyServerTotals(ctx, resp)

	if c.publisher != nil {
		event := shared.NewGuestMergedEvent("local", snapshot.Coins, snapshot.Streak.Current)
		if err := c.publisher.Publish(event); err != nil {
			c.logger.Warn("merge event publish failed", logger.Err(err))
		}
	}

	c.logger.Info("guest progress merged",
		logger.GuestID(guestID),
		logger.Coins(resp.Coins),
		logger.Streak(resp.Streak))
	return true
}

// UpdateUserProgress pushes progress earned since the last successful sync.
// Only the deltas travel: total coins earned and whether the streak advanced
// today. A failed push is logged and swallowed; the baseline stays put so
// the next push carries the accumulated delta.
func (c *Core) UpdateUserProgress(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	baselineCoins := c.baselineCoins
	baselineStreak := c.baselineStreak
	baselineSet := c.baselineSet
	c.mu.Unlock()

	snapshot := c.profiles.Get()

	coinsEarned := 0
	streakEarned := 0
	if baselineSet {
		if d := snapshot.Coins - baselineCoins; d > 0 {
			coinsEarned = d
		}
		if snapshot.Streak.Current > baselineStreak {
			streakEarned = 1
		}
	}

	// Only the delta travels; resending totals would double-count
	// server-side.
	resp, err := c.api.MergeProgress(ctx, gameapi.MergeRequest{
		TZ: c.tz,
		Progress: gameapi.MergeProgressDTO{
			CoinsEarned:  &coinsEarned,
			StreakEarned: &streakEarned,
		},
	})
	if err != nil {
		c.logger.Warn("progress push failed", logger.Err(err))
		return
	}

	c.applyServerTotals(ctx, resp)

	if resp.RemainingToday != nil && (*resp.RemainingToday <= capWarningThreshold || resp.CapReached) {
		if c.publisher != nil {
			event := shared.NewCoinCapWarningEvent("local", *resp.RemainingToday, resp.CapReached)
			if err := c.publisher.Publish(event); err != nil {
				c.logger.Warn("cap event publish failed", logger.Err(err))
			}
		}
	}
}

// Logout drops the session: token and guest identity are cleared and the
// coin/streak counters reset to zero. Badges, purchases and mastery stay
// on the device; a fresh guest identity is minted lazily on the next
// anonymous progress.
func (c *Core) Logout(ctx context.Context) {
	c.api.ClearToken()
	if err := c.meta.Delete(ctx, local.PartitionMeta, local.KeyJWT); err != nil {
		c.logger.Warn("token clear failed", logger.Err(err))
	}
	if err := c.meta.Delete(ctx, local.PartitionMeta, local.KeyGuestID); err != nil && !local.IsNotFound(err) {
		c.logger.Warn("guest id clear failed", logger.Err(err))
	}

	c.profiles.Update(ctx, func(p *progress.Profile) {
		p.Coins = 0
		p.Streak.Current = 0
		p.Streak.LastActive = ""
	})

	c.mu.Lock()
	c.state = StateGuest
	c.baselineSet = false
	c.baselineCoins = 0
	c.baselineStreak = 0
	c.mu.Unlock()

	if c.publisher != nil {
		if err := c.publisher.Publish(shared.NewLoggedOutEvent("local")); err != nil {
			c.logger.Warn("logout event publish failed", logger.Err(err))
		}
	}

	c.logger.Info("logged out")
}

// applyServerTotals reconciles a merge response into the local profile and
// moves the baseline to the reconciled values.
func (c *Core) applyServerTotals(ctx context.Context, resp *gameapi.MergeResponse) {
	updated := c.profiles.Update(ctx, func(p *progress.Profile) {
		if resp.Coins > p.Coins {
			p.Coins = resp.Coins
		}
		if resp.Streak > p.Streak.Current {
			p.Streak.Current = resp.Streak
		}
	})
	c.setBaseline(updated.Coins, updated.Streak.Current)
}

func (c *Core) setBaseline(coins, streak int) {
	c.mu.Lock()
	c.baselineCoins = coins
	c.baselineStreak = streak
	c.baselineSet = true
	c.mu.Unlock()
}

// ErrNotAuthenticated reports push attempts without a session. Kept for
// callers that want to distinguish "skipped" from "failed".
var ErrNotAuthenticated = errors.New("not authenticated")
