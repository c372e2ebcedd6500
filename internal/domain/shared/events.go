// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the progress core; the renderer subscribes to these to
// refresh coin/streak displays and show toasts.
const (
	// Profile events
	EventProfileUpdated  EventType = "profile.updated"
	EventProfileUpgraded EventType = "profile.upgraded"
	EventProfileReset    EventType = "profile.reset"

	// Progress events
	EventCoinsAwarded  EventType = "progress.coins_awarded"
	EventStreakChanged EventType = "progress.streak_changed"
	EventStreakFrozen  EventType = "progress.streak_frozen"
	EventStreakReset   EventType = "progress.streak_reset"
	EventBadgeUnlocked EventType = "progress.badge_unlocked"
	EventItemPurchased EventType = "progress.item_purchased"

	// Sync events
	EventSyncCompleted  EventType = "sync.completed"
	EventGuestMerged    EventType = "sync.guest_merged"
	EventCoinCapWarning EventType = "sync.coin_cap_warning"
	EventLoggedOut      EventType = "sync.logged_out"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	// For the single-profile client this is the guest or account identifier,
	// or "local" when neither exists yet.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]any
}

// EventHandler processes a published event. Handlers must not assume they
// run on any particular goroutine; the in-memory bus invokes them
// synchronously on the publisher's goroutine.
type EventHandler func(Event)

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event Event) error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	if aggregateID == "" {
		aggregateID = "local"
	}
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// ProfileUpdatedEvent is emitted after every successful profile store update.
type ProfileUpdatedEvent struct {
	BaseEvent
	Coins  int `json:"coins"`
	Streak int `json:"streak"`
}

// Payload implements Event interface.
func (e ProfileUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"coins":  e.Coins,
		"streak": e.Streak,
	}
}

// NewProfileUpdatedEvent creates a ProfileUpdatedEvent.
func NewProfileUpdatedEvent(aggregateID string, coins, streak int) ProfileUpdatedEvent {
	return ProfileUpdatedEvent{
		BaseEvent: NewBaseEvent(EventProfileUpdated, aggregateID),
		Coins:     coins,
		Streak:    streak,
	}
}

// CoinsAwardedEvent is emitted when a lesson completion pays out coins.
type CoinsAwardedEvent struct {
	BaseEvent
	Total int    `json:"total"`
	Mode  string `json:"mode"`
}

// Payload implements Event interface.
func (e CoinsAwardedEvent) Payload() map[string]any {
	return map[string]any{
		"total": e.Total,
		"mode":  e.Mode,
	}
}

// NewCoinsAwardedEvent creates a CoinsAwardedEvent.
func NewCoinsAwardedEvent(aggregateID string, total int, mode string) CoinsAwardedEvent {
	return CoinsAwardedEvent{
		BaseEvent: NewBaseEvent(EventCoinsAwarded, aggregateID),
		Total:     total,
		Mode:      mode,
	}
}

// StreakChangedEvent is emitted when the daily streak moves.
type StreakChangedEvent struct {
	BaseEvent
	Current    int  `json:"current"`
	Delta      int  `json:"delta"`
	FreezeUsed bool `json:"freeze_used"`
	Reset      bool `json:"reset"`
}

// Payload implements Event interface.
func (e StreakChangedEvent) Payload() map[string]any {
	return map[string]any{
		"current":     e.Current,
		"delta":       e.Delta,
		"freeze_used": e.FreezeUsed,
		"reset":       e.Reset,
	}
}

// NewStreakChangedEvent creates a StreakChangedEvent.
func NewStreakChangedEvent(aggregateID string, current, delta int, freezeUsed, reset bool) StreakChangedEvent {
	typ := EventStreakChanged
	if freezeUsed {
		typ = EventStreakFrozen
	} else if reset {
		typ = EventStreakReset
	}
	return StreakChangedEvent{
		BaseEvent:  NewBaseEvent(typ, aggregateID),
		Current:    current,
		Delta:      delta,
		FreezeUsed: freezeUsed,
		Reset:      reset,
	}
}

// BadgeUnlockedEvent is emitted once per newly unlocked badge.
type BadgeUnlockedEvent struct {
	BaseEvent
	BadgeID string `json:"badge_id"`
	Label   string `json:"label"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]any {
	return map[string]any{
		"badge_id": e.BadgeID,
		"label":    e.Label,
	}
}

// NewBadgeUnlockedEvent creates a BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(aggregateID, badgeID, label string) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, aggregateID),
		BadgeID:   badgeID,
		Label:     label,
	}
}

// ItemPurchasedEvent is emitted after a successful shop purchase.
type ItemPurchasedEvent struct {
	BaseEvent
	ItemID string `json:"item_id"`
	Price  int    `json:"price"`
}

// Payload implements Event interface.
func (e ItemPurchasedEvent) Payload() map[string]any {
	return map[string]any{
		"item_id": e.ItemID,
		"price":   e.Price,
	}
}

// NewItemPurchasedEvent creates an ItemPurchasedEvent.
func NewItemPurchasedEvent(aggregateID, itemID string, price int) ItemPurchasedEvent {
	return ItemPurchasedEvent{
		BaseEvent: NewBaseEvent(EventItemPurchased, aggregateID),
		ItemID:    itemID,
		Price:     price,
	}
}

// SyncCompletedEvent is emitted after a successful server reconciliation.
type SyncCompletedEvent struct {
	BaseEvent
	Coins  int `json:"coins"`
	Streak int `json:"streak"`
}

// Payload implements Event interface.
func (e SyncCompletedEvent) Payload() map[string]any {
	return map[string]any{
		"coins":  e.Coins,
		"streak": e.Streak,
	}
}

// NewSyncCompletedEvent creates a SyncCompletedEvent.
func NewSyncCompletedEvent(aggregateID string, coins, streak int) SyncCompletedEvent {
	return SyncCompletedEvent{
		BaseEvent: NewBaseEvent(EventSyncCompleted, aggregateID),
		Coins:     coins,
		Streak:    streak,
	}
}

// GuestMergedEvent is emitted once when guest progress merges into an account.
type GuestMergedEvent struct {
	BaseEvent
	CoinsEarned  int `json:"coins_earned"`
	StreakEarned int `json:"streak_earned"`
}

// Payload implements Event interface.
func (e GuestMergedEvent) Payload() map[string]any {
	return map[string]any{
		"coins_earned":  e.CoinsEarned,
		"streak_earned": e.StreakEarned,
	}
}

// NewGuestMergedEvent creates a GuestMergedEvent.
func NewGuestMergedEvent(aggregateID string, coinsEarned, streakEarned int) GuestMergedEvent {
	return GuestMergedEvent{
		BaseEvent:    NewBaseEvent(EventGuestMerged, aggregateID),
		CoinsEarned:  coinsEarned,
		StreakEarned: streakEarned,
	}
}

// CoinCapWarningEvent is emitted when the server reports the daily coin cap
// is at or near exhaustion. The renderer shows this as an informational toast.
type CoinCapWarningEvent struct {
	BaseEvent
	Remaining  int  `json:"remaining"`
	CapReached bool `json:"cap_reached"`
}

// Payload implements Event interface.
func (e CoinCapWarningEvent) Payload() map[string]any {
	return map[string]any{
		"remaining":   e.Remaining,
		"cap_reached": e.CapReached,
	}
}

// NewCoinCapWarningEvent creates a CoinCapWarningEvent.
func NewCoinCapWarningEvent(aggregateID string, remaining int, capReached bool) CoinCapWarningEvent {
	return CoinCapWarningEvent{
		BaseEvent:  NewBaseEvent(EventCoinCapWarning, aggregateID),
		Remaining:  remaining,
		CapReached: capReached,
	}
}

// LoggedOutEvent is emitted after an explicit logout.
type LoggedOutEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e LoggedOutEvent) Payload() map[string]any {
	return map[string]any{}
}

// NewLoggedOutEvent creates a LoggedOutEvent.
func NewLoggedOutEvent(aggregateID string) LoggedOutEvent {
	return LoggedOutEvent{
		BaseEvent: NewBaseEvent(EventLoggedOut, aggregateID),
	}
}
