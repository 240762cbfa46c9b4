// Package memory provides an in-memory store implementation for testing
// and development.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/formflow/pkg/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	closed  bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		objects: make(map[string][]byte),
	}
}

// Put streams src into memory under key.
func (s *Store) Put(ctx context.Context, key string, src store.ChunkSource) (int64, error) {
	var buf bytes.Buffer

	for {
		chunk, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		buf.Write(chunk)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, store.ErrStoreClosed
	}

	s.objects[key] = buf.Bytes()
	return int64(buf.Len()), nil
}

// Get returns a reader over the object's content.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}

	data, ok := s.objects[key]
	if !ok {
		return nil, store.ErrObjectNotFound
	}

	// Copy to prevent mutation of the stored bytes through the reader
	copied := make([]byte, len(data))
	copy(copied, data)
	return io.NopCloser(bytes.NewReader(copied)), nil
}

// Delete removes an object from memory.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}

	delete(s.objects, key)
	return nil
}

// List returns all objects whose key starts with prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}

	var objects []store.Object
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, store.Object{Key: key, Size: int64(len(data))})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	return objects, nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = nil
	return nil
}

// HealthCheck verifies the store is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}
