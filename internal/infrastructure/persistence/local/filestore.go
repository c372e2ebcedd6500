package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// FileStore is a simple key-value fallback persisted as a single JSON file.
// It trades throughput for robustness: every write rewrites the full file
// through an atomic rename, so a crash mid-write never leaves a torn file.
type FileStore struct {
	path   string
	logger *logger.Logger

	mu     sync.Mutex
	loaded bool
	data   map[string][]byte
	closed bool
}

// NewFileStore creates a FileStore backed by the given file path. The file
// is read lazily on first use; a missing file means an empty store.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	if log == nil {
		log = logger.Default()
	}
	return &FileStore{
		path:   path,
		logger: log.With(logger.Component("file_store")),
	}
}

// load reads the backing file into memory. Caller holds s.mu.
func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	s.data = make(map[string][]byte)
	raw, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		// Fresh store.
	case err != nil:
		return fmt.Errorf("filestore: read %s: %w", s.path, err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			// A corrupt fallback file is not worth failing over: start
			// empty and let the next write replace it.
			s.logger.Warn("fallback file corrupt, starting empty",
				logger.String("path", s.path),
				logger.Err(err))
			s.data = make(map[string][]byte)
		}
	}

	s.loaded = true
	return nil
}

// flush writes the in-memory map to disk atomically. Caller holds s.mu.
func (s *FileStore) flush() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("filestore: create dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("filestore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("filestore: rename %s: %w", s.path, err)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, p Partition, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := s.load(); err != nil {
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
func (s *FileStore) Put(ctx context.Context, p Partition, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := s.load(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[string(p)+"/"+key] = stored
	return s.flush()
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, p Partition, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := s.load(); err != nil {
		return err
	}

	if _, ok := s.data[string(p)+"/"+key]; !ok {
		return nil
	}
	delete(s.data, string(p)+"/"+key)
	return s.flush()
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
