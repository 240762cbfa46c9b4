// Package store provides the upload sink interface for persisted form
// content and its backends (memory, badger, s3).
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by Store implementations.
var (
	// ErrObjectNotFound is returned when a requested object doesn't exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// ChunkSource yields content chunks for Put. Next returns the next chunk,
// or io.EOF when the source is exhausted. A streaming field's
// *multipart.ContentSeq satisfies this interface directly, so uploads can
// be persisted without buffering the whole body.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// Object describes a stored upload.
type Object struct {
	// Key is the full object key in storage.
	// Format: "{fieldName}/{uuid}"
	Key string

	// Size is the object size in bytes.
	Size int64
}

// Store defines the interface for upload storage backends.
// Objects are immutable byte streams stored under a string key.
type Store interface {
	// Put streams src into storage under key and returns the number of
	// bytes written. On error the partially written object is not visible
	// to Get or List.
	Put(ctx context.Context, key string, src ChunkSource) (int64, error)

	// Get returns a reader over the object's content.
	// Returns ErrObjectNotFound if the object doesn't exist.
	// The caller must close the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Returns nil if the object doesn't exist.
	Delete(ctx context.Context, key string) error

	// List returns all objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Close releases any resources held by the store.
	Close() error

	// HealthCheck verifies the store is accessible and operational.
	HealthCheck(ctx context.Context) error
}

// Metrics receives store observations. Implementations must be safe for
// concurrent use. A nil Metrics disables instrumentation; see
// pkg/metrics/prometheus for the Prometheus implementation.
type Metrics interface {
	// ObserveOperation records a completed store operation with its
	// backend ("memory", "badger", "s3"), operation name, duration, and
	// outcome.
	ObserveOperation(backend, operation string, duration time.Duration, err error)

	// RecordBytes records bytes moved through the store.
	// Direction is "write" or "read".
	RecordBytes(backend, direction string, n int64)

	// RecordUploadAborted increments the aborted upload counter. Called
	// when a streamed Put fails partway and its partial state is rolled
	// back.
	RecordUploadAborted(backend string)
}

// NewKey builds a storage key for an uploaded field. The field name keeps
// related uploads listable by prefix; the uuid makes the key unique.
func NewKey(fieldName string) string {
	if fieldName == "" {
		fieldName = "unnamed"
	}
	return fmt.Sprintf("%s/%s", fieldName, uuid.NewString())
}
