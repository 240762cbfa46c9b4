package multipart

// TakeKind discriminates the three queue element variants.
type TakeKind uint8

const (
	// TakeEnd is the terminal marker: no more data will follow.
	// It is deliberately the zero value so that reads from a closed
	// channel decode as a terminal marker, which keeps terminal reads
	// idempotent.
	TakeEnd TakeKind = iota

	// TakeChunk carries a payload element.
	TakeChunk

	// TakeFail carries a failure that aborts the sequence.
	TakeFail
)

// Take is a single element of a producer/consumer queue: a payload chunk,
// the terminal marker, or a failure.
type Take[T any] struct {
	kind  TakeKind
	value T
	err   error
}

// Chunk wraps a payload element.
func Chunk[T any](v T) Take[T] {
	return Take[T]{kind: TakeChunk, value: v}
}

// End returns the terminal marker.
func End[T any]() Take[T] {
	return Take[T]{kind: TakeEnd}
}

// Fail wraps a failure.
func Fail[T any](err error) Take[T] {
	return Take[T]{kind: TakeFail, err: err}
}

// Kind returns the element variant.
func (t Take[T]) Kind() TakeKind { return t.kind }

// Value returns the payload. Only meaningful for TakeChunk elements.
func (t Take[T]) Value() T { return t.value }

// Err returns the failure. Only meaningful for TakeFail elements.
func (t Take[T]) Err() error { return t.err }
