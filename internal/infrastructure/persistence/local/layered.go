package local

import (
	"context"
	"errors"

	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// MemoryStore keeps values in process memory only. It is the store of last
// resort: when every durable layer is unavailable the app still runs with
// session-scoped state, it just forgets on restart.
type MemoryStore struct {
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, p Partition, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, ok := s.data[string(p)+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, p Partition, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[string(p)+"/"+key] = stored
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, p Partition, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(s.data, string(p)+"/"+key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// LayeredStore chains stores from most to least durable. Writes go to every
// layer so a later primary failure still finds current data in the fallback;
// reads walk the chain until a layer has the key. Layer failures are logged
// and absorbed as long as at least one layer accepts the operation.
type LayeredStore struct {
	layers []Store
	logger *logger.Logger
}

// NewLayeredStore builds a chain over the given layers, ordered primary
// first. At least one layer is required.
func NewLayeredStore(log *logger.Logger, layers ...Store) *LayeredStore {
	if log == nil {
		log = logger.Default()
	}
	return &LayeredStore{
		layers: layers,
		logger: log.With(logger.Component("layered_store")),
	}
}

// Get implements Store. Layers are consulted in order; a layer error other
// than a miss is logged and the next layer tried.
func (s *LayeredStore) Get(ctx context.Context, p Partition, key string) ([]byte, error) {
	var lastErr error
	for i, layer := range s.layers {
		value, err := layer.Get(ctx, p, key)
		if err == nil {
			return value, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		lastErr = err
		s.logger.Warn("store layer read failed",
			logger.Int("layer", i),
			logger.Partition(string(p)),
			logger.String("key", key),
			logger.Err(err))
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// Put implements Store. The value is written to every layer; the write
// succeeds if any layer accepts it.
func (s *LayeredStore) Put(ctx context.Context, p Partition, key string, value []byte) error {
	var lastErr error
	ok := false
	for i, layer := range s.layers {
		if err := layer.Put(ctx, p, key, value); err != nil {
			lastErr = err
			s.logger.Warn("store layer write failed",
				logger.Int("layer", i),
				logger.Partition(string(p)),
				logger.String("key", key),
				logger.Err(err))
			continue
		}
		ok = true
	}
	if !ok {
		return lastErr
	}
	return nil
}

// Delete implements Store. The key is removed from every layer so a layer
// that was briefly unavailable cannot resurrect stale data.
func (s *LayeredStore) Delete(ctx context.Context, p Partition, key string) error {
	var lastErr error
	ok := false
	for i, layer := range s.layers {
		if err := layer.Delete(ctx, p, key); err != nil {
			lastErr = err
			s.logger.Warn("store layer delete failed",
				logger.Int("layer", i),
				logger.Partition(string(p)),
				logger.Err(err))
			continue
		}
		ok = true
	}
	if !ok {
		return lastErr
	}
	return nil
}

// Close implements Store. All layers are closed; the first error wins.
func (s *LayeredStore) Close() error {
	var firstErr error
	for _, layer := range s.layers {
		if err := layer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
