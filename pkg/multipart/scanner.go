package multipart

// DefaultBufferSize is the default initial capacity of a ScannerBuffer.
// Larger buffers mean fewer forced partial flushes for boundary-free
// content runs, at the cost of per-decode memory.
const DefaultBufferSize = 8192

// ScannerBuffer is an incremental accumulator that detects an occurrence
// of a delimiter at the tail of the accumulated bytes and emits completed
// content chunks.
//
// Bytes are added one at a time. Once at least len(delim) bytes are
// buffered, the tail is compared against the delimiter after every append:
//
//   - on a match, the bytes preceding the delimiter are emitted as a chunk
//     followed by a terminal marker, and the buffer resets;
//   - with no match and headroom left, the byte is simply retained;
//   - with no match and the buffer full, the front of the buffer is force
//     flushed as a chunk (no terminal marker) and only the trailing bytes
//     that could still be a delimiter prefix are kept.
//
// The forced flush bounds per-part memory to roughly the buffer capacity
// while still detecting a delimiter split across arbitrary input chunks.
// Capacity is monotonic: it grows (by doubling) only when the delimiter
// does not fit comfortably, and never shrinks across resets, so a buffer
// is reused allocation-free from part to part.
//
// A ScannerBuffer is owned by a single goroutine; it is not safe for
// concurrent use.
type ScannerBuffer struct {
	buf   []byte
	n     int
	emits [2]Take[[]byte]
}

// NewScannerBuffer creates a buffer with the given initial capacity.
// Sizes below a small floor are rounded up; DefaultBufferSize is used
// when capacity is zero or negative.
func NewScannerBuffer(capacity int) *ScannerBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	if capacity < 64 {
		capacity = 64
	}
	return &ScannerBuffer{buf: make([]byte, capacity)}
}

// Len returns the number of buffered bytes.
func (s *ScannerBuffer) Len() int { return s.n }

// Cap returns the current capacity of the backing array.
func (s *ScannerBuffer) Cap() int { return len(s.buf) }

// Reset discards buffered bytes. Capacity is retained.
func (s *ScannerBuffer) Reset() { s.n = 0 }

// AddByte appends b and scans the tail for delim.
//
// It returns zero, one, or two emissions: [Chunk, End] when the delimiter
// was matched (the chunk holds the content bytes preceding it), [Chunk]
// when the buffer was force flushed, nothing otherwise. Emitted chunk
// bytes are copies and safe to retain; the returned slice itself is only
// valid until the next call.
func (s *ScannerBuffer) AddByte(delim []byte, b byte) []Take[[]byte] {
	// The flush path needs room for a full delimiter plus slack; grow by
	// doubling until the delimiter fits. With the default capacity and
	// RFC-bounded boundaries this never triggers after construction.
	for s.n+1 > len(s.buf)-len(delim) && len(s.buf) < 2*(len(delim)+2) {
		grown := make([]byte, len(s.buf)*2)
		copy(grown, s.buf[:s.n])
		s.buf = grown
	}

	s.buf[s.n] = b
	s.n++

	if s.n < len(delim) {
		return nil
	}

	// Tail comparison, walking backward: mismatches on arbitrary content
	// are found on the first byte almost always.
	match := true
	for i := len(delim) - 1; i >= 0; i-- {
		if s.buf[s.n-len(delim)+i] != delim[i] {
			match = false
			break
		}
	}

	if match {
		content := append([]byte(nil), s.buf[:s.n-len(delim)]...)
		s.n = 0
		s.emits[0] = Chunk(content)
		s.emits[1] = End[[]byte]()
		return s.emits[:2]
	}

	if s.n >= len(s.buf)-2 {
		// Forced partial flush: everything except the longest possible
		// delimiter prefix at the tail is known content.
		keep := len(delim) - 1
		flushed := append([]byte(nil), s.buf[:s.n-keep]...)
		copy(s.buf, s.buf[s.n-keep:s.n])
		s.n = keep
		s.emits[0] = Chunk(flushed)
		return s.emits[:1]
	}

	return nil
}
