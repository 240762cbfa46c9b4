package multipart

import (
	"context"
	"io"
	"net/textproto"
)

// FieldKind discriminates the two field variants.
type FieldKind uint8

const (
	// KindValue is a simple field whose value was fully materialized.
	KindValue FieldKind = iota

	// KindStream is a binary field whose content is consumed lazily.
	KindStream
)

func (k FieldKind) String() string {
	if k == KindStream {
		return "stream"
	}
	return "value"
}

// Field is one decoded form field: either a simple field with a
// materialized value, or a streaming binary field whose content arrives
// incrementally while the decoder keeps scanning the source.
//
// A simple field is immutable. A streaming field's Content sequence is
// single-pass and owned by whoever holds the field; it must be drained
// (or the decode abandoned) before subsequent fields can be delivered,
// because the producer blocks on the content queue.
type Field struct {
	kind    FieldKind
	header  PartHeader
	value   []byte
	content *ContentSeq
}

// Kind returns the field variant.
func (f *Field) Kind() FieldKind { return f.kind }

// Name returns the form field name from Content-Disposition.
func (f *Field) Name() string { return f.header.Name }

// Filename returns the Content-Disposition filename, if any.
func (f *Field) Filename() string { return f.header.Filename }

// ContentType returns the declared media type, or "" when absent.
func (f *Field) ContentType() string { return f.header.ContentType }

// Header returns all part headers with canonicalized keys.
func (f *Field) Header() textproto.MIMEHeader { return f.header.Header }

// Value returns the materialized value of a simple field. For a streaming
// field it returns "" unless the content has been drained via Bytes.
func (f *Field) Value() string { return string(f.value) }

// Content returns the lazy content sequence of a streaming field, or nil
// for a simple field.
func (f *Field) Content() *ContentSeq { return f.content }

// Bytes returns the field's content as a single byte slice, draining the
// content sequence for a streaming field. The drained content is cached,
// so Bytes may be called more than once.
func (f *Field) Bytes(ctx context.Context) ([]byte, error) {
	if f.kind == KindValue || f.content == nil || f.content.done {
		return f.value, nil
	}
	for {
		chunk, err := f.content.Next(ctx)
		if err == io.EOF {
			return f.value, nil
		}
		if err != nil {
			return nil, err
		}
		f.value = append(f.value, chunk...)
	}
}

// ContentSeq is the lazy, single-pass byte sequence of a streaming field.
//
// Next blocks until the decoder produces the next chunk. After the
// terminal marker is observed, Next keeps returning io.EOF. If the decode
// fails while the sequence is open, Next surfaces the decode failure; if
// the decode is abandoned it surfaces context.Canceled.
type ContentSeq struct {
	ch   chan Take[[]byte]
	run  *runState
	done bool
	err  error
}

// Next returns the next content chunk, io.EOF after the last one, or the
// failure that ended the decode. The returned slice is owned by the
// caller.
func (c *ContentSeq) Next(ctx context.Context) ([]byte, error) {
	if c.done {
		if c.err != nil {
			return nil, c.err
		}
		return nil, io.EOF
	}
	select {
	case t, ok := <-c.ch:
		if !ok {
			// Closed without a terminal marker: the decode failed or
			// was torn down while this part was streaming.
			c.done = true
			c.err = c.run.failure()
			if c.err != nil {
				return nil, c.err
			}
			return nil, io.EOF
		}
		switch t.Kind() {
		case TakeChunk:
			return t.Value(), nil
		case TakeFail:
			c.done = true
			c.err = t.Err()
			return nil, c.err
		default:
			c.done = true
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reader adapts the sequence to io.Reader for io.Copy-style consumers.
// The reader shares the sequence's single-pass cursor.
func (c *ContentSeq) Reader(ctx context.Context) io.Reader {
	return &contentReader{ctx: ctx, seq: c}
}

type contentReader struct {
	ctx  context.Context
	seq  *ContentSeq
	rest []byte
}

func (r *contentReader) Read(p []byte) (int, error) {
	for len(r.rest) == 0 {
		chunk, err := r.seq.Next(r.ctx)
		if err != nil {
			return 0, err
		}
		r.rest = chunk
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}
