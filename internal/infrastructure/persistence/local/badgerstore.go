package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// schemaVersionKey stores the store-level schema version. The version gate
// only ever moves forward; partition layout changes bump it and run their
// upgrade under the open lock.
const schemaVersionKey = "!schema_version"

// schemaVersion is the current local-store schema version.
const schemaVersion = 1

// BadgerConfig holds configuration for the primary store.
type BadgerConfig struct {
	// Path is the directory for the database files.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger for structured logging. Badger's own chatter is discarded.
	Logger *logger.Logger
}

// DefaultBadgerConfig returns sensible defaults for the primary store.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
	}
}

// BadgerStore is the durable primary store. The database is opened lazily
// on first use so that constructing the persistence chain can never fail;
// an open failure surfaces as an operation error and the layered store
// falls back to the secondary.
type BadgerStore struct {
	config BadgerConfig
	logger *logger.Logger

	openOnce sync.Once
	openErr  error
	db       *badger.DB

	mu     sync.Mutex
	closed bool
}

// NewBadgerStore creates a lazily-opened BadgerStore.
func NewBadgerStore(config BadgerConfig) *BadgerStore {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	return &BadgerStore{
		config: config,
		logger: log.With(logger.Component("badger_store")),
	}
}

// open opens the database once. Subsequent calls return the first outcome.
func (s *BadgerStore) open() error {
	s.openOnce.Do(func() {
		opts := badger.DefaultOptions(s.config.Path).
			WithInMemory(s.config.InMemory).
			WithSyncWrites(s.config.SyncWrites).
			WithNumVersionsToKeep(1).
			WithLogger(nil)

		if !s.config.InMemory {
			if err := os.MkdirAll(s.config.Path, 0o755); err != nil {
				s.openErr = fmt.Errorf("badger: create dir: %w", err)
				return
			}
		}

		start := time.Now()
		db, err := badger.Open(opts)
		if err != nil {
			s.openErr = fmt.Errorf("badger: open: %w", err)
			s.logger.Error("primary store open failed", logger.Err(err))
			return
		}
		s.db = db

		if err := s.ensureSchema(); err != nil {
			s.openErr = err
			_ = db.Close()
			s.db = nil
			return
		}

		s.logger.Debug("primary store opened",
			logger.String("path", s.config.Path),
			logger.Latency(time.Since(start)))
	})
	return s.openErr
}

// ensureSchema reads the stored schema version and writes the current one
// when absent or older. Partitions are key prefixes, so nothing else needs
// creating; the gate exists so future layout changes have a hook.
func (s *BadgerStore) ensureSchema() error {
	return s.db.Update(func(txn *badger.Txn) error {
		stored := 0
		item, err := txn.Get([]byte(schemaVersionKey))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// Fresh store.
		case err != nil:
			return fmt.Errorf("badger: read schema version: %w", err)
		default:
			if err := item.Value(func(v []byte) error {
				if len(v) == 1 {
					stored = int(v[0])
				}
				return nil
			}); err != nil {
				return fmt.Errorf("badger: read schema version: %w", err)
			}
		}

		if stored >= schemaVersion {
			return nil
		}
		return txn.Set([]byte(schemaVersionKey), []byte{byte(schemaVersion)})
	})
}

// dataKey builds the full key for a partition entry.
func dataKey(p Partition, key string) []byte {
	return []byte(string(p) + "/" + key)
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, p Partition, key string) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dataKey(p, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("badger: get %s/%s: %w", p, key, err)
	}
	return value, nil
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, p Partition, key string, value []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dataKey(p, key), value)
	})
	if err != nil {
		return fmt.Errorf("badger: put %s/%s: %w", p, key, err)
	}
	return nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(ctx context.Context, p Partition, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dataKey(p, key))
	})
	if err != nil {
		return fmt.Errorf("badger: delete %s/%s: %w", p, key, err)
	}
	return nil
}

// ready checks context and closed state and triggers the lazy open.
func (s *BadgerStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStoreClosed
	}

	return s.open()
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
