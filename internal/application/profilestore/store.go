// Package profilestore holds the single in-memory profile and keeps it in
// step with local persistence. All progress mutations flow through
// Update, which normalizes, persists and notifies subscribers in one step.
package profilestore

import (
	"context"
	"sync"

	"github.com/owlet-learn/owlet-core/internal/domain/progress"
	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/local"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// Mutator changes the profile in place. It runs on a private deep copy, so
// it may mutate freely; the result is normalized before it becomes visible.
type Mutator func(*progress.Profile)

// Listener observes committed profile states. Listeners run synchronously
// on the updating goroutine and receive their own deep copy.
type Listener func(*progress.Profile)

// Store is the authoritative holder of the player profile.
type Store struct {
	persistence local.Store
	publisher   shared.EventPublisher
	logger      *logger.Logger

	mu        sync.RWMutex
	current   *progress.Profile
	listeners map[int]Listener
	nextID    int
}

// Config contains dependencies for the profile store.
type Config struct {
	// Persistence is the local store chain. Required.
	Persistence local.Store

	// Publisher receives a ProfileUpdatedEvent after each commit. Optional.
	Publisher shared.EventPublisher

	// Logger for structured logging.
	Logger *logger.Logger
}

// New creates a Store with a default profile. Call Load to hydrate it from
// persistence before first use.
func New(config Config) *Store {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Store{
		persistence: config.Persistence,
		publisher:   config.Publisher,
		logger:      log.With(logger.Component("profile_store")),
		current:     progress.NewProfile(),
		listeners:   make(map[int]Listener),
	}
}

// Load reads the persisted profile, upgrading older schema versions on the
// way in. A missing record yields a fresh default profile; a corrupt record
// is logged and replaced with the default rather than failing startup. When
// the upgrade changed anything the normalized form is written back.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.persistence.Get(ctx, local.PartitionProgress, local.KeyProfile)
	if err != nil {
		if !local.IsNotFound(err) {
			s.logger.Warn("profile read failed, starting fresh", logger.Err(err))
		}
		s.mu.Lock()
		s.current = progress.NewProfile()
		s.mu.Unlock()
		return nil
	}

	decoded, err := progress.DecodeProfile(raw)
	if err != nil {
		s.logger.Error("profile decode failed, starting fresh", logger.Err(err))
		decoded = nil
	}

	before := -1
	if decoded != nil {
		before = decoded.Version
	}
	upgraded := progress.UpgradeProfile(decoded)

	s.mu.Lock()
	s.current = upgraded
	s.mu.Unlock()

	if before != progress.SchemaVersion {
		s.persist(ctx, upgraded)
		s.logger.Info("profile upgraded",
			logger.Int("from_version", before),
			logger.Int("to_version", progress.SchemaVersion))
	}

	return nil
}

// Get returns a deep copy of the current profile. Callers may inspect or
// mutate it without affecting the store.
func (s *Store) Get() *progress.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.DeepCopy()
}

// Update applies the mutator to a copy of the current profile, normalizes
// the result, persists it and notifies subscribers. Persistence failure is
// logged but does not roll back the in-memory commit: the session keeps
// working and the next successful write catches up.
func (s *Store) Update(ctx context.Context, mutate Mutator) *progress.Profile {
	s.mu.Lock()
	next := s.current.DeepCopy()
	mutate(next)
	next = progress.UpgradeProfile(next)
	s.current = next

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.persist(ctx, next)

	for _, listener := range listeners {
		s.notify(listener, next)
	}

	if s.publisher != nil {
		event := shared.NewProfileUpdatedEvent("local", next.Coins, next.Streak.Current)
		if err := s.publisher.Publish(event); err != nil {
			s.logger.Warn("profile event publish failed", logger.Err(err))
		}
	}

	return next.DeepCopy()
}

// Subscribe registers a listener for committed profile states. The returned
// function removes the subscription.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// persist writes the profile to the local chain, best effort.
func (s *Store) persist(ctx context.Context, p *progress.Profile) {
	raw, err := progress.EncodeProfile(p)
	if err != nil {
		s.logger.Error("profile encode failed", logger.Err(err))
		return
	}
	if err := s.persistence.Put(ctx, local.PartitionProgress, local.KeyProfile, raw); err != nil {
		s.logger.Warn("profile persist failed", logger.Err(err))
	}
}

// notify runs one listener with panic isolation. A throwing listener must
// not break the update cycle or starve later listeners.
func (s *Store) notify(listener Listener, p *progress.Profile) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("profile listener panicked", logger.Any("panic", r))
		}
	}()
	listener(p.DeepCopy())
}
