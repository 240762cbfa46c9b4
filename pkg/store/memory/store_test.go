package memory

import (
	"context"
	"io"
	"testing"

	"github.com/marmos91/formflow/pkg/store"
)

// sliceSource yields a fixed set of chunks.
type sliceSource struct {
	chunks [][]byte
	next   int
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

// failSource fails after yielding its chunks.
type failSource struct {
	sliceSource
	err error
}

func (s *failSource) Next(ctx context.Context) ([]byte, error) {
	chunk, err := s.sliceSource.Next(ctx)
	if err == io.EOF {
		return nil, s.err
	}
	return chunk, err
}

func TestStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	src := &sliceSource{chunks: [][]byte{[]byte("hello "), []byte("world")}}

	size, err := s.Put(ctx, "greeting/1", src)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if size != 11 {
		t.Errorf("Put returned size %d, want 11", size)
	}

	rc, err := s.Get(ctx, "greeting/1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("Get returned %q, want %q", data, "hello world")
	}
}

func TestStore_GetNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	_, err := s.Get(ctx, "nonexistent")
	if err != store.ErrObjectNotFound {
		t.Errorf("Get returned error %v, want %v", err, store.ErrObjectNotFound)
	}
}

func TestStore_PutSourceFailure(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	src := &failSource{
		sliceSource: sliceSource{chunks: [][]byte{[]byte("partial")}},
		err:         io.ErrUnexpectedEOF,
	}

	if _, err := s.Put(ctx, "broken/1", src); err != io.ErrUnexpectedEOF {
		t.Fatalf("Put returned error %v, want %v", err, io.ErrUnexpectedEOF)
	}

	// Failed Put must not leave a visible object
	if _, err := s.Get(ctx, "broken/1"); err != store.ErrObjectNotFound {
		t.Errorf("Get after failed Put returned %v, want %v", err, store.ErrObjectNotFound)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	src := &sliceSource{chunks: [][]byte{[]byte("data")}}
	if _, err := s.Put(ctx, "doc/1", src); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := s.Delete(ctx, "doc/1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Get(ctx, "doc/1"); err != store.ErrObjectNotFound {
		t.Errorf("Get after delete returned %v, want %v", err, store.ErrObjectNotFound)
	}

	// Deleting a missing object is not an error
	if err := s.Delete(ctx, "doc/1"); err != nil {
		t.Errorf("Delete of missing object returned %v", err)
	}
}

func TestStore_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	for _, key := range []string{"avatar/b", "avatar/a", "doc/1"} {
		src := &sliceSource{chunks: [][]byte{[]byte("x")}}
		if _, err := s.Put(ctx, key, src); err != nil {
			t.Fatalf("Put %q failed: %v", key, err)
		}
	}

	objects, err := s.List(ctx, "avatar/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("List returned %d objects, want 2", len(objects))
	}
	// Sorted by key
	if objects[0].Key != "avatar/a" || objects[1].Key != "avatar/b" {
		t.Errorf("List returned keys %q, %q; want avatar/a, avatar/b", objects[0].Key, objects[1].Key)
	}
	if objects[0].Size != 1 {
		t.Errorf("List returned size %d, want 1", objects[0].Size)
	}
}

func TestStore_ClosedStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Close()

	src := &sliceSource{chunks: [][]byte{[]byte("data")}}
	if _, err := s.Put(ctx, "x", src); err != store.ErrStoreClosed {
		t.Errorf("Put on closed store returned %v, want %v", err, store.ErrStoreClosed)
	}
	if err := s.HealthCheck(ctx); err != store.ErrStoreClosed {
		t.Errorf("HealthCheck on closed store returned %v, want %v", err, store.ErrStoreClosed)
	}
}
