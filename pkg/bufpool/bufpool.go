// Package bufpool provides a tiered buffer pool for byte slices reused on
// the decode and upload hot paths.
//
// The pool has three size tiers matched to FormFlow's workloads:
//
//   - Read buffers (default 4KB): source read loops in the decoder
//   - Copy buffers (default 64KB): draining content sequences into sinks
//   - Part buffers (default 5MB): aggregating chunks into S3 upload parts
//
// Buffers larger than the part tier are allocated directly and not
// pooled, so occasional oversized requests do not pin memory.
//
// All operations are safe for concurrent use via sync.Pool.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default buffer size classes.
const (
	// DefaultReadSize matches the decoder's source read loop (4KB).
	DefaultReadSize = 4 << 10

	// DefaultCopySize is for content drain/copy loops (64KB).
	DefaultCopySize = 64 << 10

	// DefaultPartSize is the S3 minimum multipart part size (5MB).
	DefaultPartSize = 5 << 20
)

// Pool manages byte slice pools organized by size class. It selects the
// smallest class that fits a request and falls back to direct allocation
// for oversized requests.
type Pool struct {
	read     sync.Pool
	copy     sync.Pool
	part     sync.Pool
	readSize int
	copySize int
	partSize int
}

// Config holds size-class overrides for a custom pool. Zero values fall
// back to the defaults.
type Config struct {
	ReadSize int
	CopySize int
	PartSize int
}

// NewPool creates a buffer pool. A nil config uses the defaults.
func NewPool(cfg *Config) *Pool {
	p := &Pool{
		readSize: DefaultReadSize,
		copySize: DefaultCopySize,
		partSize: DefaultPartSize,
	}
	if cfg != nil {
		if cfg.ReadSize > 0 {
			p.readSize = cfg.ReadSize
		}
		if cfg.CopySize > 0 {
			p.copySize = cfg.CopySize
		}
		if cfg.PartSize > 0 {
			p.partSize = cfg.PartSize
		}
	}

	p.read.New = func() any {
		buf := make([]byte, p.readSize)
		return &buf
	}
	p.copy.New = func() any {
		buf := make([]byte, p.copySize)
		return &buf
	}
	p.part.New = func() any {
		buf := make([]byte, p.partSize)
		return &buf
	}
	return p
}

// Get returns a byte slice of exactly the requested length, backed by a
// pooled buffer whose capacity may be larger. The caller must return it
// with Put. Requests above the part tier are allocated directly and are
// not pooled.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.readSize:
		bufPtr = p.read.Get().(*[]byte)
	case size <= p.copySize:
		bufPtr = p.copy.Get().(*[]byte)
	case size <= p.partSize:
		bufPtr = p.part.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer obtained from Get to its pool. Buffers whose
// capacity does not match a size class (oversized direct allocations,
// resliced foreign buffers) are dropped for the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	switch cap(buf) {
	case p.readSize:
		full := buf[:cap(buf)]
		p.read.Put(&full)
	case p.copySize:
		full := buf[:cap(buf)]
		p.copy.Put(&full)
	case p.partSize:
		full := buf[:cap(buf)]
		p.part.Put(&full)
	}
}

// defaultPool serves the package-level Get and Put.
var defaultPool = NewPool(nil)

// Get returns a buffer from the default pool.
func Get(size int) []byte {
	return defaultPool.Get(size)
}

// Put returns a buffer to the default pool.
func Put(buf []byte) {
	defaultPool.Put(buf)
}
