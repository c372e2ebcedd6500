// Package redis implements the Redis-backed daily coin cap and the hot
// progress cache for the Owlet sync backend.
//
// The cap is a per-account counter keyed by calendar day. Counters
// expire at the next midnight in the reference zone, so a player who
// hits the ceiling starts fresh the following day without any cleanup
// job.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/owlet-learn/owlet-core/pkg/datekey"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when the Redis connection fails.
	ErrConnection = errors.New("redis: connection failed")

	// ErrInvalidCap is returned when the counter is created with a
	// non-positive cap.
	ErrInvalidCap = errors.New("redis: daily cap must be positive")
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY CAP COUNTER
// ══════════════════════════════════════════════════════════════════════════════

// keyPrefix namespaces cap counter keys.
const keyPrefix = "coincap:"

// Grant is the outcome of asking the counter for coins.
type Grant struct {
	// Granted is how many of the requested coins were credited.
	Granted int

	// Remaining is how many coins the account may still earn today.
	Remaining int

	// CapReached reports that the counter is exhausted after this grant.
	CapReached bool
}

// CapCounter enforces a per-account daily coin ceiling.
type CapCounter struct {
	client *redis.Client
	cap    int
}

// NewCapCounter creates a counter with the given daily cap.
func NewCapCounter(client *redis.Client, dailyCap int) (*CapCounter, error) {
	if dailyCap <= 0 {
		return nil, ErrInvalidCap
	}
	return &CapCounter{client: client, cap: dailyCap}, nil
}

// Cap returns the configured daily ceiling.
func (c *CapCounter) Cap() int {
	return c.cap
}

func (c *CapCounter) key(accountID string, day datekey.Key) string {
	return keyPrefix + accountID + ":" + string(day)
}

// Grant tries to credit requested coins against the account's counter
// for the given day and returns what was actually granted.
//
// The credit path is INCRBY then a compensating DECRBY of this call's
// own overflow. Each concurrent caller only ever gives back what it
// added, so the counter never exceeds the cap and never loses grants.
func (c *CapCounter) Grant(ctx context.Context, accountID string, day datekey.Key, requested int) (*Grant, error) {
	if requested <= 0 {
		remaining, err := c.Remaining(ctx, accountID, day)
		if err != nil {
			return nil, err
		}
		return &Grant{Remaining: remaining, CapReached: remaining == 0}, nil
	}

	key := c.key(accountID, day)

	total, err := c.client.IncrBy(ctx, key, int64(requested)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to increment cap counter: %w", err)
	}

	// Fresh counters expire at the next midnight. ExpireNX leaves an
	// existing TTL alone, so a counter created at 23:59 keeps its
	// original deadline.
	ttl := time.Until(datekey.MidnightAfter(day.Time()))
	if ttl > 0 {
		if err := c.client.ExpireNX(ctx, key, ttl).Err(); err != nil {
			return nil, fmt.Errorf("redis: failed to set cap counter expiry: %w", err)
		}
	}

	granted := requested
	if total > int64(c.cap) {
		overflow := total - int64(c.cap)
		if overflow > int64(requested) {
			overflow = int64(requested)
		}
		if overflow > 0 {
			if err := c.client.DecrBy(ctx, key, overflow).Err(); err != nil {
				return nil, fmt.Errorf("redis: failed to return cap overflow: %w", err)
			}
		}
		granted = requested - int(overflow)
		total -= overflow
	}

	remaining := c.cap - int(total)
	if remaining < 0 {
		remaining = 0
	}

	return &Grant{
		Granted:    granted,
		Remaining:  remaining,
		CapReached: remaining == 0,
	}, nil
}

// Remaining returns how many coins the account may still earn on the
// given day. A missing counter means the full cap is available.
func (c *CapCounter) Remaining(ctx context.Context, accountID string, day datekey.Key) (int, error) {
	used, err := c.client.Get(ctx, c.key(accountID, day)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c.cap, nil
		}
		return 0, fmt.Errorf("redis: failed to read cap counter: %w", err)
	}

	remaining := c.cap - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the account's counter for the given day. Used by
// support tooling, not by the request path.
func (c *CapCounter) Reset(ctx context.Context, accountID string, day datekey.Key) error {
	if err := c.client.Del(ctx, c.key(accountID, day)).Err(); err != nil {
		return fmt.Errorf("redis: failed to reset cap counter: %w", err)
	}
	return nil
}
