package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/postgres"
)

// fakeProgressSource counts repository hits so tests can tell a cache
// hit from a read-through.
type fakeProgressSource struct {
	rows map[string]*postgres.AccountProgress
	gets int
}

func newFakeProgressSource() *fakeProgressSource {
	return &fakeProgressSource{rows: make(map[string]*postgres.AccountProgress)}
}

func (f *fakeProgressSource) row(accountID string) *postgres.AccountProgress {
	if r, ok := f.rows[accountID]; ok {
		return r
	}
	r := &postgres.AccountProgress{AccountID: accountID, UpdatedAt: time.Now()}
	f.rows[accountID] = r
	return r
}

func (f *fakeProgressSource) EnsureAccount(ctx context.Context, accountID string) error {
	f.row(accountID)
	return nil
}

func (f *fakeProgressSource) GetProgress(ctx context.Context, accountID string) (*postgres.AccountProgress, error) {
	f.gets++
	r := *f.row(accountID)
	return &r, nil
}

func (f *fakeProgressSource) ApplyDelta(ctx context.Context, accountID string, coinsEarned, streakEarned int) (*postgres.AccountProgress, error) {
	r := f.row(accountID)
	r.Coins += coinsEarned
	r.Streak += streakEarned
	out := *r
	return &out, nil
}

func (f *fakeProgressSource) ReconcileTotals(ctx context.Context, accountID string, coins, streak int) (*postgres.AccountProgress, error) {
	r := f.row(accountID)
	if coins > r.Coins {
		r.Coins = coins
	}
	if streak > r.Streak {
		r.Streak = streak
	}
	out := *r
	return &out, nil
}

func (f *fakeProgressSource) MergeGuest(ctx context.Context, accountID, guestID string, coinsEarned, streakEarned int) (*postgres.AccountProgress, bool, error) {
	row, err := f.ApplyDelta(ctx, accountID, coinsEarned, streakEarned)
	return row, true, err
}

func newTestCachedStore(t *testing.T) (*CachedProgressStore, *fakeProgressSource, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := newFakeProgressSource()
	store := NewCachedProgressStore(source, NewProgressCache(client, time.Minute), nil)

	return store, source, mr
}

func TestCachedStoreReadThroughPopulatesCache(t *testing.T) {
	store, source, _ := newTestCachedStore(t)
	ctx := context.Background()

	source.row("acct-1").Coins = 75
	source.row("acct-1").Streak = 4

	first, err := store.GetProgress(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 75, first.Coins)
	assert.Equal(t, 1, source.gets)

	// Second read is served from the cache.
	second, err := store.GetProgress(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 75, second.Coins)
	assert.Equal(t, 4, second.Streak)
	assert.Equal(t, 1, source.gets)
}

func TestCachedStoreWriteInvalidates(t *testing.T) {
	store, source, _ := newTestCachedStore(t)
	ctx := context.Background()

	_, err := store.GetProgress(ctx, "acct-1")
	require.NoError(t, err)
	require.Equal(t, 1, source.gets)

	_, err = store.ApplyDelta(ctx, "acct-1", 30, 1)
	require.NoError(t, err)

	row, err := store.GetProgress(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 30, row.Coins)
	assert.Equal(t, 1, row.Streak)
	assert.Equal(t, 2, source.gets, "write should have dropped the cached row")
}

func TestCachedStoreMergeGuestInvalidates(t *testing.T) {
	store, source, _ := newTestCachedStore(t)
	ctx := context.Background()

	_, err := store.GetProgress(ctx, "acct-1")
	require.NoError(t, err)

	_, merged, err := store.MergeGuest(ctx, "acct-1", "guest-1", 120, 6)
	require.NoError(t, err)
	assert.True(t, merged)

	row, err := store.GetProgress(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 120, row.Coins)
	assert.Equal(t, 6, row.Streak)
	assert.Equal(t, 2, source.gets)
}

func TestCachedStoreSurvivesRedisOutage(t *testing.T) {
	store, source, mr := newTestCachedStore(t)
	ctx := context.Background()

	source.row("acct-1").Coins = 50
	mr.Close()

	// Every cache operation fails; reads fall back to the source.
	row, err := store.GetProgress(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 50, row.Coins)

	_, err = store.ApplyDelta(ctx, "acct-1", 10, 0)
	require.NoError(t, err)
}

func TestProgressCacheMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewProgressCache(client, time.Minute)

	_, err := cache.Get(context.Background(), "acct-unknown")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProgressCacheRowsExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewProgressCache(client, time.Minute)
	ctx := context.Background()

	err := cache.Set(ctx, &postgres.AccountProgress{AccountID: "acct-1", Coins: 10})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Get(ctx, "acct-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
