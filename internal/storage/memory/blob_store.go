// Package memory keeps artifacts in memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/ats-job-scout/internal/storage"
)

// BlobStore stores artifacts in a map.
type BlobStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes []string
	lock   sync.Mutex
	// FailWrites makes Write fail for the named objects.
	FailWrites map[string]error
}

var _ storage.Backend = (*BlobStore)(nil)
var _ storage.Locker = (*BlobStore)(nil)

// NewBlobStore creates an empty in-memory store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// Read returns a copy of the object or storage.ErrNotExist.
func (s *BlobStore) Read(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data.
func (s *BlobStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailWrites[name]; err != nil {
		return err
	}
	s.data[name] = append([]byte(nil), data...)
	s.writes = append(s.writes, name)
	return nil
}

// URI returns a memory:// URI.
func (s *BlobStore) URI(name string) string {
	return "memory://" + name
}

// Writes lists object names in write order.
func (s *BlobStore) Writes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.writes...)
}

// Lock is process-local.
func (s *BlobStore) Lock(_ context.Context) (func() error, error) {
	if !s.lock.TryLock() {
		return nil, storage.ErrLocked
	}
	return func() error {
		s.lock.Unlock()
		return nil
	}, nil
}
