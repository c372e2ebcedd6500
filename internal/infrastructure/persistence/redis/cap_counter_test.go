package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlet-learn/owlet-core/pkg/datekey"
)

func newTestCounter(t *testing.T, cap int) (*CapCounter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counter, err := NewCapCounter(client, cap)
	require.NoError(t, err)

	return counter, mr
}

func TestCapCounterGrantsUnderCap(t *testing.T) {
	counter, _ := newTestCounter(t, 150)
	day := datekey.Today()

	grant, err := counter.Grant(context.Background(), "acct-1", day, 40)
	require.NoError(t, err)

	assert.Equal(t, 40, grant.Granted)
	assert.Equal(t, 110, grant.Remaining)
	assert.False(t, grant.CapReached)
}

func TestCapCounterAccumulatesAcrossGrants(t *testing.T) {
	counter, _ := newTestCounter(t, 150)
	day := datekey.Today()
	ctx := context.Background()

	_, err := counter.Grant(ctx, "acct-1", day, 60)
	require.NoError(t, err)

	grant, err := counter.Grant(ctx, "acct-1", day, 60)
	require.NoError(t, err)

	assert.Equal(t, 60, grant.Granted)
	assert.Equal(t, 30, grant.Remaining)
	assert.False(t, grant.CapReached)
}

func TestCapCounterClampsAtCap(t *testing.T) {
	counter, _ := newTestCounter(t, 150)
	day := datekey.Today()
	ctx := context.Background()

	_, err := counter.Grant(ctx, "acct-1", day, 100)
	require.NoError(t, err)

	grant, err := counter.Grant(ctx, "acct-1", day, 100)
	require.NoError(t, err)

	assert.Equal(t, 50, grant.Granted)
	assert.Equal(t, 0, grant.Remaining)
	assert.True(t, grant.CapReached)

	// Exhausted counter grants nothing further.
	grant, err = counter.Grant(ctx, "acct-1", day, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, grant.Granted)
	assert.True(t, grant.CapReached)
}

func TestCapCounterIsolatesAccounts(t *testing.T) {
	counter, _ := newTestCounter(t, 150)
	day := datekey.Today()
	ctx := context.Background()

	_, err := counter.Grant(ctx, "acct-1", day, 150)
	require.NoError(t, err)

	grant, err := counter.Grant(ctx, "acct-2", day, 20)
	require.NoError(t, err)

	assert.Equal(t, 20, grant.Granted)
	assert.Equal(t, 130, grant.Remaining)
}

func TestCapCounterRemainingFreshAccount(t *testing.T) {
	counter, _ := newTestCounter(t, 150)

	remaining, err := counter.Remaining(context.Background(), "acct-new", datekey.Today())
	require.NoError(t, err)

	assert.Equal(t, 150, remaining)
}

func TestCapCounterZeroRequestReportsState(t *testing.T) {
	counter, _ := newTestCounter(t, 150)
	day := datekey.Today()
	ctx := context.Background()

	_, err := counter.Grant(ctx, "acct-1", day, 150)
	require.NoError(t, err)

	grant, err := counter.Grant(ctx, "acct-1", day, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, grant.Granted)
	assert.Equal(t, 0, grant.Remaining)
	assert.True(t, grant.CapReached)
}

func TestCapCounterSetsExpiry(t *testing.T) {
	counter, mr := newTestCounter(t, 150)
	day := datekey.Today()

	_, err := counter.Grant(context.Background(), "acct-1", day, 10)
	require.NoError(t, err)

	key := keyPrefix + "acct-1:" + string(day)
	assert.Positive(t, mr.TTL(key), "counter should expire at next midnight")
}

func TestCapCounterReset(t *testing.T) {
	counter, _ := newTestCounter(t, 150)
	day := datekey.Today()
	ctx := context.Background()

	_, err := counter.Grant(ctx, "acct-1", day, 150)
	require.NoError(t, err)

	require.NoError(t, counter.Reset(ctx, "acct-1", day))

	remaining, err := counter.Remaining(ctx, "acct-1", day)
	require.NoError(t, err)
	assert.Equal(t, 150, remaining)
}

func TestNewCapCounterRejectsNonPositiveCap(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewCapCounter(client, 0)
	assert.ErrorIs(t, err, ErrInvalidCap)
}
