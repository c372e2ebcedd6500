package profilestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/messaging"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/local"
)

func newTestStore(t *testing.T) (*Store, local.Store) {
	t.Helper()
	persistence := local.NewMemoryStore()
	store := New(Config{Persistence: persistence})
	require.NoError(t, store.Load(context.Background()))
	return store, persistence
}

func TestStore_LoadMissingYieldsDefault(t *testing.T) {
	store, _ := newTestStore(t)

	p := store.Get()
	assert.Equal(t, progress.SchemaVersion, p.Version)
	assert.Zero(t, p.Coins)
	assert.True(t, p.Settings.Sound)
}

func TestStore_LoadUpgradesLegacyRecord(t *testing.T) {
	ctx := context.Background()
	persistence := local.NewMemoryStore()

	// Legacy shape: bare-number streak, map-shaped badges, old version.
	legacy := []byte(`{"version":1,"coins":40,"streak":4,"badges":{"first-lesson":true}}`)
	require.NoError(t, persistence.Put(ctx, local.PartitionProgress, local.KeyProfile, legacy))

	store := New(Config{Persistence: persistence})
	require.NoError(t, store.Load(ctx))

	p := store.Get()
	assert.Equal(t, progress.SchemaVersion, p.Version)
	assert.Equal(t, 40, p.Coins)
	assert.Equal(t, 4, p.Streak.Current)
	assert.Equal(t, []string{"first-lesson"}, p.Badges)

	// The normalized form must have been written back.
	raw, err := persistence.Get(ctx, local.PartitionProgress, local.KeyProfile)
	require.NoError(t, err)
	stored, err := progress.DecodeProfile(raw)
	require.NoError(t, err)
	assert.Equal(t, progress.SchemaVersion, stored.Version)
}

func TestStore_LoadCorruptRecordStartsFresh(t *testing.T) {
	ctx := context.Background()
	persistence := local.NewMemoryStore()
	require.NoError(t, persistence.Put(ctx, local.PartitionProgress, local.KeyProfile, []byte("{broken")))

	store := New(Config{Persistence: persistence})
	require.NoError(t, store.Load(ctx))

	assert.Zero(t, store.Get().Coins)
}

func TestStore_UpdateCommitsAndPersists(t *testing.T) {
	ctx := context.Background()
	store, persistence := newTestStore(t)

	result := store.Update(ctx, func(p *progress.Profile) {
		p.Coins += 25
	})
	assert.Equal(t, 25, result.Coins)
	assert.Equal(t, 25, store.Get().Coins)

	raw, err := persistence.Get(ctx, local.PartitionProgress, local.KeyProfile)
	require.NoError(t, err)
	stored, err := progress.DecodeProfile(raw)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.Coins)
}

func TestStore_UpdateNormalizesMutationResult(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	result := store.Update(ctx, func(p *progress.Profile) {
		p.Coins = -10
		p.Badges = append(p.Badges, "first-lesson", "first-lesson")
	})

	assert.Zero(t, result.Coins)
	assert.Equal(t, []string{"first-lesson"}, result.Badges)
}

func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	store.Update(ctx, func(p *progress.Profile) { p.Coins = 10 })

	snapshot := store.Get()
	snapshot.Coins = 999
	snapshot.Badges = append(snapshot.Badges, "fake")

	assert.Equal(t, 10, store.Get().Coins)
	assert.Empty(t, store.Get().Badges)
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var seen []int
	unsubscribe := store.Subscribe(func(p *progress.Profile) {
		seen = append(seen, p.Coins)
	})

	store.Update(ctx, func(p *progress.Profile) { p.Coins = 5 })
	store.Update(ctx, func(p *progress.Profile) { p.Coins = 9 })
	unsubscribe()
	store.Update(ctx, func(p *progress.Profile) { p.Coins = 30 })

	assert.Equal(t, []int{5, 9}, seen)
}

func TestStore_PanickingListenerIsIsolated(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	secondSaw := 0
	store.Subscribe(func(*progress.Profile) { panic("ui bug") })
	store.Subscribe(func(p *progress.Profile) { secondSaw = p.Coins })

	result := store.Update(ctx, func(p *progress.Profile) { p.Coins = 7 })

	assert.Equal(t, 7, result.Coins)
	assert.Equal(t, 7, secondSaw)
}

func TestStore_UpdateSurvivesPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := New(Config{Persistence: readOnlyStore{local.NewMemoryStore()}})
	require.NoError(t, store.Load(ctx))

	result := store.Update(ctx, func(p *progress.Profile) { p.Coins = 15 })

	// In-memory state moves on even when the disk write failed.
	assert.Equal(t, 15, result.Coins)
	assert.Equal(t, 15, store.Get().Coins)
}

func TestStore_UpdatePublishesProfileUpdated(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	t.Cleanup(func() { _ = bus.Close() })

	var events []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventProfileUpdated, func(e shared.Event) {
		events = append(events, e)
	}))

	store := New(Config{Persistence: local.NewMemoryStore(), Publisher: bus})
	require.NoError(t, store.Load(ctx))

	store.Update(ctx, func(p *progress.Profile) { p.Coins = 11 })

	require.Len(t, events, 1)
	assert.Equal(t, 11, events[0].Payload()["coins"])
}

// readOnlyStore rejects writes, simulating a full or revoked disk.
type readOnlyStore struct {
	inner local.Store
}

func (s readOnlyStore) Get(ctx context.Context, p local.Partition, key string) ([]byte, error) {
	return s.inner.Get(ctx, p, key)
}

func (s readOnlyStore) Put(context.Context, local.Partition, string, []byte) error {
	return assert.AnError
}

func (s readOnlyStore) Delete(context.Context, local.Partition, string) error {
	return assert.AnError
}

func (s readOnlyStore) Close() error { return s.inner.Close() }
