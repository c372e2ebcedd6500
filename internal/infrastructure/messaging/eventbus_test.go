package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlet-learn/owlet-core/internal/domain/shared"
)

func newTestBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestInMemoryEventBus_DeliversToTypedSubscriber(t *testing.T) {
	bus := newTestBus(t)

	var got []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventCoinsAwarded, func(e shared.Event) {
		got = append(got, e)
	}))

	event := shared.NewCoinsAwardedEvent("local", 12, "times-tables")
	require.NoError(t, bus.Publish(event))

	require.Len(t, got, 1)
	assert.Equal(t, shared.EventCoinsAwarded, got[0].EventType())
}

func TestInMemoryEventBus_TypedSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := newTestBus(t)

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventBadgeUnlocked, func(shared.Event) {
		calls++
	}))

	require.NoError(t, bus.Publish(shared.NewCoinsAwardedEvent("local", 5, "spelling")))
	assert.Zero(t, calls)
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newTestBus(t)

	var types []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) {
		types = append(types, e.EventType())
	}))

	require.NoError(t, bus.Publish(shared.NewCoinsAwardedEvent("local", 3, "reading")))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("local", "first-lesson", "First Steps")))

	assert.Equal(t, []shared.EventType{
		shared.EventCoinsAwarded,
		shared.EventBadgeUnlocked,
	}, types)
}

func TestInMemoryEventBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := newTestBus(t)

	secondRan := false
	require.NoError(t, bus.Subscribe(shared.EventCoinsAwarded, func(shared.Event) {
		panic("listener bug")
	}))
	require.NoError(t, bus.Subscribe(shared.EventCoinsAwarded, func(shared.Event) {
		secondRan = true
	}))

	require.NoError(t, bus.Publish(shared.NewCoinsAwardedEvent("local", 1, "times-tables")))

	assert.True(t, secondRan)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalDeliveries)
	assert.Equal(t, int64(1), snap.DeliveryPanics)
}

func TestInMemoryEventBus_NilHandlerRejected(t *testing.T) {
	bus := newTestBus(t)

	assert.Error(t, bus.Subscribe(shared.EventCoinsAwarded, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewCoinsAwardedEvent("local", 1, "times-tables"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventCoinsAwarded, func(shared.Event) {})
	assert.ErrorIs(t, err, ErrEventBusClosed)
}
