package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/marmos91/formflow/pkg/bufpool"
)

// Queue capacities. Small on purpose: the queues exist to decouple the
// scanner from the consumer, not to buffer the body.
const (
	outerQueueCap = 4
	innerQueueCap = 3
)

// readChunkSize is the size of the source read buffer.
const readChunkSize = 4096

// Option configures a Decoder.
type Option func(*Decoder)

// WithBufferSize sets the scanner buffer's initial capacity (default
// DefaultBufferSize). Larger buffers trade memory for fewer partial
// flushes on long boundary-free content runs.
func WithBufferSize(n int) Option {
	return func(d *Decoder) { d.bufSize = n }
}

// WithMaxValueSize caps the materialized value of a simple field.
// Exceeding the cap fails the decode. Zero means unlimited.
func WithMaxValueSize(n int64) Option {
	return func(d *Decoder) { d.maxValue = n }
}

// WithMetrics attaches decoder instrumentation.
func WithMetrics(m Metrics) Option {
	return func(d *Decoder) { d.metrics = m }
}

// WithTokenizer replaces the default part tokenizer. The factory is
// invoked once per decode run.
func WithTokenizer(factory func(Boundary) Tokenizer) Option {
	return func(d *Decoder) { d.newTokenizer = factory }
}

// Decoder decodes multipart/form-data byte streams. A Decoder is
// immutable after construction and may be shared; each Decode call runs
// independently.
type Decoder struct {
	boundary     Boundary
	bufSize      int
	maxValue     int64
	metrics      Metrics
	newTokenizer func(Boundary) Tokenizer
}

// NewDecoder creates a decoder for the given boundary.
func NewDecoder(boundary Boundary, opts ...Option) *Decoder {
	d := &Decoder{
		boundary: boundary,
		bufSize:  DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode starts scanning src on a background goroutine and returns the
// lazy field sequence. The source is consumed strictly once, front to
// back.
//
// The returned sequence must either be drained to its end or released
// via Close (or ctx cancellation); otherwise the producer goroutine stays
// blocked on a full queue.
func (d *Decoder) Decode(ctx context.Context, src io.Reader) *FieldSeq {
	runCtx, cancel := context.WithCancel(ctx)
	fs := &FieldSeq{
		out:    make(chan Take[*Field], outerQueueCap),
		cancel: cancel,
		state:  &runState{},
	}
	go d.run(runCtx, src, fs)
	return fs
}

// runState is shared between the field sequence and any open content
// sequences so that an inner consumer can observe the run's outcome after
// its channel is closed.
type runState struct {
	mu       sync.Mutex
	err      error
	canceled bool
}

func (r *runState) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *runState) cancel() {
	r.mu.Lock()
	r.canceled = true
	r.mu.Unlock()
}

// failure returns the decode failure, context.Canceled for an abandoned
// run, or nil for a clean completion.
func (r *runState) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.canceled {
		return context.Canceled
	}
	return nil
}

// scanState is the automaton state threaded through the per-byte scan.
// It is owned exclusively by the producer goroutine.
type scanState struct {
	tok  Tokenizer
	scan *ScannerBuffer

	// inner is the open content channel of the currently streaming part,
	// or nil. Mutually exclusive with buffered.
	inner chan Take[[]byte]

	// buffered marks the current part as non-streaming: its value is
	// materialized from the tokenizer at the part boundary.
	buffered bool

	part   int
	offset int64
}

func (d *Decoder) run(ctx context.Context, src io.Reader, fs *FieldSeq) {
	if d.metrics != nil {
		d.metrics.DecodeStarted()
	}
	start := time.Now()

	tokFactory := d.newTokenizer
	if tokFactory == nil {
		tokFactory = func(b Boundary) Tokenizer {
			return newPartTokenizer(b, d.bufSize, d.maxValue)
		}
	}
	st := &scanState{
		tok:  tokFactory(d.boundary),
		scan: NewScannerBuffer(d.bufSize),
		part: -1,
	}

	err := d.scan(ctx, src, st, fs)

	status := "ok"
	switch {
	case err == nil:
		fs.push(ctx, End[*Field]())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = "canceled"
		fs.state.cancel()
	default:
		status = "error"
		fs.state.fail(err)
		fs.push(ctx, Fail[*Field](err))
	}

	// Unblock any consumer still draining the streaming part that was
	// open when the run ended. The closed channel reports the failure
	// (or cancellation) recorded above.
	if st.inner != nil {
		close(st.inner)
	}

	if d.metrics != nil {
		d.metrics.DecodeCompleted(time.Since(start), status)
	}
}

// scan drives the automaton over the whole source. It returns nil on a
// clean close, ctx.Err() when the run is torn down, or a *DecodeError.
func (d *Decoder) scan(ctx context.Context, src io.Reader, st *scanState, fs *FieldSeq) error {
	buf := bufpool.Get(readChunkSize)
	defer bufpool.Put(buf)
	buf = buf[:readChunkSize]

	for {
		n, rerr := src.Read(buf)
		for i := 0; i < n; i++ {
			done, err := d.step(ctx, st, fs, buf[i])
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		if rerr == io.EOF {
			return st.errorf("%w", ErrTruncated)
		}
		if rerr != nil {
			if errors.Is(rerr, context.Canceled) {
				return rerr
			}
			return st.errorf("read source: %w", rerr)
		}
	}
}

// step advances the automaton by one byte. It reports done=true when the
// closing boundary has been processed.
func (d *Decoder) step(ctx context.Context, st *scanState, fs *FieldSeq, b byte) (bool, error) {
	st.offset++

	sig, terr := st.tok.Next(b)

	// Feed the open content channel before acting on the tokenizer
	// signal, so a boundary that immediately follows a (possibly empty)
	// body closes the inner sequence before the part is finalized.
	if st.inner != nil {
		for _, take := range st.scan.AddByte(d.boundary.Delimiter(), b) {
			if take.Kind() == TakeChunk && d.metrics != nil {
				d.metrics.ContentBytes(len(take.Value()))
			}
			if !sendInner(ctx, st.inner, take) {
				return false, ctx.Err()
			}
		}
	}

	if terr != nil {
		return false, st.errorf("%w", terr)
	}

	switch sig {
	case SignalHeaders:
		st.part++
		if st.tok.Streaming() {
			inner := make(chan Take[[]byte], innerQueueCap)
			if seed := st.tok.Body(); len(seed) > 0 {
				if !sendInner(ctx, inner, Chunk(append([]byte(nil), seed...))) {
					return false, ctx.Err()
				}
			}
			st.tok.DiscardBody()
			field := &Field{
				kind:    KindStream,
				header:  *st.tok.Part(),
				content: &ContentSeq{ch: inner, run: fs.state},
			}
			// Emit the field before its content: the consumer drains
			// the content concurrently with the remaining scan.
			if !fs.push(ctx, Chunk(field)) {
				return false, ctx.Err()
			}
			if d.metrics != nil {
				d.metrics.FieldDecoded(KindStream.String())
			}
			st.inner = inner
		} else {
			st.buffered = true
		}

	case SignalEncapsulation, SignalClose:
		if st.buffered {
			field, err := materialize(st.tok)
			if err != nil {
				return false, st.errorf("%w", err)
			}
			if !fs.push(ctx, Chunk(field)) {
				return false, ctx.Err()
			}
			if d.metrics != nil {
				d.metrics.FieldDecoded(KindValue.String())
			}
		} else if st.inner != nil {
			// The terminal marker was already forwarded by the scanner
			// buffer on the byte that completed the delimiter.
			close(st.inner)
		}
		st.scan.Reset()
		st.inner = nil
		st.buffered = false
		if sig == SignalClose {
			return true, nil
		}
		st.tok.Reset()
	}

	return false, nil
}

func (st *scanState) errorf(format string, args ...any) error {
	return &DecodeError{
		Offset: st.offset,
		Part:   st.part,
		Err:    fmt.Errorf(format, args...),
	}
}

// materialize builds a simple field from the tokenizer's final tokens.
func materialize(tok Tokenizer) (*Field, error) {
	header := tok.Part()
	if header.Name == "" && header.Filename == "" {
		return nil, ErrMissingDisposition
	}
	return &Field{
		kind:   KindValue,
		header: *header,
		value:  append([]byte(nil), tok.Body()...),
	}, nil
}

func sendInner(ctx context.Context, ch chan Take[[]byte], t Take[[]byte]) bool {
	select {
	case ch <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// FieldSeq is the lazy sequence of decoded fields, in source order. It is
// single-pass: fields are consumed exactly once.
type FieldSeq struct {
	out    chan Take[*Field]
	cancel context.CancelFunc
	state  *runState

	done     bool
	terminal error
}

// push delivers a take to the consumer, racing against teardown.
func (fs *FieldSeq) push(ctx context.Context, t Take[*Field]) bool {
	select {
	case fs.out <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// Next returns the next field. It returns io.EOF after the last field
// (idempotently), or the failure that aborted the decode. Cancellation of
// ctx is returned as ctx.Err(), not as a decode error.
func (fs *FieldSeq) Next(ctx context.Context) (*Field, error) {
	if fs.done {
		return nil, fs.terminal
	}
	select {
	case t := <-fs.out:
		switch t.Kind() {
		case TakeChunk:
			return t.Value(), nil
		case TakeFail:
			fs.done = true
			fs.terminal = t.Err()
			fs.cancel()
			return nil, fs.terminal
		default:
			fs.done = true
			fs.terminal = io.EOF
			// The producer has exited; releasing the run context here
			// only frees its resources.
			fs.cancel()
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close abandons the sequence. The producer goroutine, including any
// blocked queue push, terminates promptly. Close is idempotent and safe
// after a natural drain.
func (fs *FieldSeq) Close() error {
	fs.state.cancel()
	fs.cancel()
	return nil
}

// All returns a range-over iterator over the remaining fields. Breaking
// out early closes the sequence. A decode failure is yielded as the final
// (nil, err) element.
func (fs *FieldSeq) All(ctx context.Context) iter.Seq2[*Field, error] {
	return func(yield func(*Field, error) bool) {
		defer fs.Close()
		for {
			field, err := fs.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(field, nil) {
				return
			}
		}
	}
}
