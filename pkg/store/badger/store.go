// Package badger provides a BadgerDB-backed store implementation for
// local persistent storage.
//
// Objects are stored as chunked values so a streamed upload never has to
// be assembled in memory:
//
//	Data Type   Prefix   Key Format             Value Type
//	=========================================================
//	Manifest    "m:"     m:<key>                manifest (JSON)
//	Chunk       "d:"     d:<key>:<index>        raw bytes
//
// The manifest is written last, inside the same transaction as nothing
// else, so an object only becomes visible to Get and List once all of its
// chunks are durable. A failed Put deletes any chunks it already wrote.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/formflow/internal/logger"
	"github.com/marmos91/formflow/pkg/store"
)

const backendName = "badger"

// maxChunkSize caps the size of a single badger value. Incoming chunks
// larger than this are split before writing.
const maxChunkSize = 1 << 20

const (
	prefixManifest = "m:"
	prefixChunk    = "d:"
)

// manifest records a stored object's layout.
type manifest struct {
	Size   int64 `json:"size"`
	Chunks int   `json:"chunks"`
}

// keyManifest generates a manifest key: "m:<key>"
func keyManifest(key string) []byte {
	return []byte(prefixManifest + key)
}

// keyChunk generates a chunk key: "d:<key>:<index>"
func keyChunk(key string, index int) []byte {
	return fmt.Appendf(nil, "%s%s:%08d", prefixChunk, key, index)
}

// Store is a BadgerDB-backed implementation of store.Store.
type Store struct {
	db      *badgerdb.DB
	metrics store.Metrics
}

// Config contains configuration for the badger store.
type Config struct {
	// Path is the directory for the badger database files.
	Path string

	// Metrics is optional; pass nil to disable instrumentation.
	Metrics store.Metrics
}

// New opens or creates a badger database at cfg.Path.
func New(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).
		WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", cfg.Path, err)
	}

	logger.Debug("opened badger store", "path", cfg.Path)

	return &Store{db: db, metrics: cfg.Metrics}, nil
}

// Put streams src into badger under key, one transaction per chunk.
func (s *Store) Put(ctx context.Context, key string, src store.ChunkSource) (int64, error) {
	start := time.Now()
	size, err := s.put(ctx, key, src)
	if s.metrics != nil {
		s.metrics.ObserveOperation(backendName, "Put", time.Since(start), err)
		if err == nil {
			s.metrics.RecordBytes(backendName, "write", size)
		}
	}
	return size, err
}

func (s *Store) put(ctx context.Context, key string, src store.ChunkSource) (int64, error) {
	var (
		size   int64
		chunks int
	)

	writeChunk := func(data []byte) error {
		copied := make([]byte, len(data))
		copy(copied, data)
		err := s.db.Update(func(txn *badgerdb.Txn) error {
			return txn.Set(keyChunk(key, chunks), copied)
		})
		if err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", chunks, err)
		}
		chunks++
		size += int64(len(data))
		return nil
	}

	for {
		chunk, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			s.abort(key, chunks)
			return 0, err
		}

		for len(chunk) > maxChunkSize {
			if werr := writeChunk(chunk[:maxChunkSize]); werr != nil {
				s.abort(key, chunks)
				return 0, werr
			}
			chunk = chunk[maxChunkSize:]
		}
		if len(chunk) > 0 {
			if werr := writeChunk(chunk); werr != nil {
				s.abort(key, chunks)
				return 0, werr
			}
		}
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		encoded, err := json.Marshal(manifest{Size: size, Chunks: chunks})
		if err != nil {
			return err
		}
		return txn.Set(keyManifest(key), encoded)
	})
	if err != nil {
		s.abort(key, chunks)
		return 0, fmt.Errorf("failed to write manifest: %w", err)
	}

	return size, nil
}

// abort removes chunks written by a failed Put.
func (s *Store) abort(key string, chunks int) {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for i := range chunks {
			if err := txn.Delete(keyChunk(key, i)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("failed to clean up aborted upload", "key", key, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordUploadAborted(backendName)
	}
}

// Get returns a reader that yields the object's chunks in order.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.get(ctx, key)
	if s.metrics != nil {
		s.metrics.ObserveOperation(backendName, "Get", time.Since(start), err)
	}
	return rc, err
}

func (s *Store) get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m manifest
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyManifest(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, store.ErrObjectNotFound
	}
	if errors.Is(err, badgerdb.ErrDBClosed) {
		return nil, store.ErrStoreClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return &objectReader{store: s, key: key, chunks: m.Chunks}, nil
}

// objectReader streams an object chunk by chunk, one read transaction per
// chunk, so large objects are never materialized at once.
type objectReader struct {
	store  *Store
	key    string
	chunks int
	next   int
	buf    []byte
}

func (r *objectReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.next >= r.chunks {
			return 0, io.EOF
		}

		err := r.store.db.View(func(txn *badgerdb.Txn) error {
			item, err := txn.Get(keyChunk(r.key, r.next))
			if err != nil {
				return err
			}
			r.buf, err = item.ValueCopy(nil)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("failed to read chunk %d: %w", r.next, err)
		}
		r.next++
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	if r.store.metrics != nil {
		r.store.metrics.RecordBytes(backendName, "read", int64(n))
	}
	return n, nil
}

func (r *objectReader) Close() error {
	r.buf = nil
	r.next = r.chunks
	return nil
}

// Delete removes an object's manifest and chunks.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.delete(ctx, key)
	if s.metrics != nil {
		s.metrics.ObserveOperation(backendName, "Delete", time.Since(start), err)
	}
	return err
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var m manifest
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyManifest(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete(keyManifest(key)); err != nil {
			return err
		}
		for i := range m.Chunks {
			if err := txn.Delete(keyChunk(key, i)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List returns all objects whose key starts with prefix, sorted by key.
// Badger iterates keys in lexical order, so results come back sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Object, error) {
	start := time.Now()
	objects, err := s.list(ctx, prefix)
	if s.metrics != nil {
		s.metrics.ObserveOperation(backendName, "List", time.Since(start), err)
	}
	return objects, err
}

func (s *Store) list(ctx context.Context, prefix string) ([]store.Object, error) {
	var objects []store.Object

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(prefixManifest + prefix)
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), prefixManifest)

			err := item.Value(func(val []byte) error {
				var m manifest
				if err := json.Unmarshal(val, &m); err != nil {
					return err
				}
				objects = append(objects, store.Object{Key: key, Size: m.Size})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return objects, nil
}

// Close closes the underlying badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database can serve a read transaction.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badgerdb.Txn) error {
		// Just verify a transaction can start; badger errors out if the
		// database is closed or corrupted.
		return nil
	})
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}
