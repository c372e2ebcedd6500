package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlet-learn/owlet-core/internal/application/profilestore"
	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/local"
)

func newPurchaseHarness(t *testing.T, coins int) (*PurchaseItemHandler, *profilestore.Store) {
	t.Helper()
	profiles := profilestore.New(profilestore.Config{Persistence: local.NewMemoryStore()})
	require.NoError(t, profiles.Load(context.Background()))
	profiles.Update(context.Background(), func(p *progress.Profile) { p.Coins = coins })

	return NewPurchaseItemHandler(profiles, nil, nil), profiles
}

func TestPurchaseItem_Succeeds(t *testing.T) {
	handler, profiles := newPurchaseHarness(t, 100)

	result, err := handler.Handle(context.Background(), PurchaseItemCommand{ItemID: "hat-wizard", Price: 40})
	require.NoError(t, err)

	assert.True(t, result.Purchased)
	assert.Equal(t, 60, result.Coins)

	p := profiles.Get()
	assert.Equal(t, 60, p.Coins)
	assert.True(t, p.HasPurchase("hat-wizard"))
}

func TestPurchaseItem_InsufficientCoins(t *testing.T) {
	handler, profiles := newPurchaseHarness(t, 10)

	result, err := handler.Handle(context.Background(), PurchaseItemCommand{ItemID: "hat-wizard", Price: 40})
	require.NoError(t, err)

	assert.False(t, result.Purchased)
	assert.ErrorIs(t, result.Reason, shared.ErrInsufficientCoins)
	assert.Equal(t, 10, profiles.Get().Coins)
	assert.False(t, profiles.Get().HasPurchase("hat-wizard"))
}

func TestPurchaseItem_AlreadyOwned(t *testing.T) {
	handler, profiles := newPurchaseHarness(t, 100)
	ctx := context.Background()

	_, err := handler.Handle(ctx, PurchaseItemCommand{ItemID: "hat-wizard", Price: 40})
	require.NoError(t, err)

	result, err := handler.Handle(ctx, PurchaseItemCommand{ItemID: "hat-wizard", Price: 40})
	require.NoError(t, err)

	assert.False(t, result.Purchased)
	assert.ErrorIs(t, result.Reason, shared.ErrAlreadyOwned)
	// No double charge.
	assert.Equal(t, 60, profiles.Get().Coins)
}

func TestPurchaseItem_Validation(t *testing.T) {
	handler, _ := newPurchaseHarness(t, 100)
	ctx := context.Background()

	_, err := handler.Handle(ctx, PurchaseItemCommand{Price: 10})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = handler.Handle(ctx, PurchaseItemCommand{ItemID: "x", Price: -5})
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestPurchaseItem_FreeItem(t *testing.T) {
	handler, profiles := newPurchaseHarness(t, 0)

	result, err := handler.Handle(context.Background(), PurchaseItemCommand{ItemID: "starter-sticker", Price: 0})
	require.NoError(t, err)

	assert.True(t, result.Purchased)
	assert.True(t, profiles.Get().HasPurchase("starter-sticker"))
}
