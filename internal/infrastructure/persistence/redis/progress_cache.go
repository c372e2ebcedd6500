package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/postgres"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ErrCacheMiss is returned when the requested account has no cached totals.
var ErrCacheMiss = errors.New("redis: cache miss")

// progressKeyPrefix namespaces cached progress rows.
const progressKeyPrefix = "progress:"

// DefaultProgressTTL bounds how stale a cached row can get if an
// invalidation is ever lost.
const DefaultProgressTTL = 5 * time.Minute

// ProgressCache holds hot {coins, streak} totals so the fetch that
// every client performs on startup does not hit postgres.
type ProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressCache creates a cache with the given row TTL.
// A non-positive TTL falls back to DefaultProgressTTL.
func NewProgressCache(client *redis.Client, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &ProgressCache{client: client, ttl: ttl}
}

func (c *ProgressCache) key(accountID string) string {
	return progressKeyPrefix + accountID
}

// Get returns the cached totals for an account, or ErrCacheMiss.
func (c *ProgressCache) Get(ctx context.Context, accountID string) (*postgres.AccountProgress, error) {
	data, err := c.client.Get(ctx, c.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to read progress cache: %w", err)
	}

	var row postgres.AccountProgress
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("redis: failed to decode cached progress: %w", err)
	}
	return &row, nil
}

// Set stores the totals for an account.
func (c *ProgressCache) Set(ctx context.Context, row *postgres.AccountProgress) error {
	if row == nil {
		return nil
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("redis: failed to encode progress row: %w", err)
	}

	if err := c.client.Set(ctx, c.key(row.AccountID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to write progress cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached totals for an account.
func (c *ProgressCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, c.key(accountID)).Err(); err != nil {
		return fmt.Errorf("redis: failed to invalidate progress cache: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// READ-THROUGH DECORATOR
// ══════════════════════════════════════════════════════════════════════════════

// ProgressSource is the postgres surface the decorator wraps,
// implemented by postgres.ProgressRepository.
type ProgressSource interface {
	EnsureAccount(ctx context.Context, accountID string) error
	GetProgress(ctx context.Context, accountID string) (*postgres.AccountProgress, error)
	ApplyDelta(ctx context.Context, accountID string, coinsEarned, streakEarned int) (*postgres.AccountProgress, error)
	ReconcileTotals(ctx context.Context, accountID string, coins, streak int) (*postgres.AccountProgress, error)
	MergeGuest(ctx context.Context, accountID, guestID string, coinsEarned, streakEarned int) (*postgres.AccountProgress, bool, error)
}

// CachedProgressStore is a read-through cache in front of the
// progress repository. Reads populate the cache, writes invalidate it.
//
// Writes invalidate rather than update: two concurrent merges could
// otherwise race each other's Set and pin a stale row until the TTL.
// Cache failures are logged and degrade to postgres.
type CachedProgressStore struct {
	source ProgressSource
	cache  *ProgressCache
	logger *logger.Logger
}

// NewCachedProgressStore wraps a progress source with the cache.
func NewCachedProgressStore(source ProgressSource, cache *ProgressCache, log *logger.Logger) *CachedProgressStore {
	if log == nil {
		log = logger.Default()
	}
	return &CachedProgressStore{
		source: source,
		cache:  cache,
		logger: log.With(logger.Component("progress_cache")),
	}
}

// EnsureAccount delegates to the source; it does not touch totals.
func (s *CachedProgressStore) EnsureAccount(ctx context.Context, accountID string) error {
	return s.source.EnsureAccount(ctx, accountID)
}

// GetProgress returns cached totals when present, otherwise reads
// postgres and populates the cache.
func (s *CachedProgressStore) GetProgress(ctx context.Context, accountID string) (*postgres.AccountProgress, error) {
	row, err := s.cache.Get(ctx, accountID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("progress cache read failed", logger.AccountID(accountID), logger.Err(err))
	}

	row, err = s.source.GetProgress(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, row); err != nil {
		s.logger.Warn("progress cache write failed", logger.AccountID(accountID), logger.Err(err))
	}
	return row, nil
}

// ApplyDelta credits earned coins/streak and invalidates the cache.
func (s *CachedProgressStore) ApplyDelta(ctx context.Context, accountID string, coinsEarned, streakEarned int) (*postgres.AccountProgress, error) {
	row, err := s.source.ApplyDelta(ctx, accountID, coinsEarned, streakEarned)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, accountID)
	return row, nil
}

// ReconcileTotals applies greatest-value totals and invalidates the cache.
func (s *CachedProgressStore) ReconcileTotals(ctx context.Context, accountID string, coins, streak int) (*postgres.AccountProgress, error) {
	row, err := s.source.ReconcileTotals(ctx, accountID, coins, streak)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, accountID)
	return row, nil
}

// MergeGuest credits a guest's earned progress and invalidates the cache.
func (s *CachedProgressStore) MergeGuest(ctx context.Context, accountID, guestID string, coinsEarned, streakEarned int) (*postgres.AccountProgress, bool, error) {
	row, merged, err := s.source.MergeGuest(ctx, accountID, guestID, coinsEarned, streakEarned)
	if err != nil {
		return nil, false, err
	}
	s.invalidate(ctx, accountID)
	return row, merged, err
}

func (s *CachedProgressStore) invalidate(ctx context.Context, accountID string) {
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn("progress cache invalidation failed", logger.AccountID(accountID), logger.Err(err))
	}
}
