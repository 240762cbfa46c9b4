package multipart

import (
	"errors"
	"fmt"
)

// Common errors returned by the decoder.
var (
	// ErrInvalidBoundary is returned when a boundary token violates
	// RFC 2046 §5.1.1 (empty, too long, or illegal characters).
	ErrInvalidBoundary = errors.New("invalid multipart boundary")

	// ErrMalformedHeader is returned when a part's header section cannot
	// be parsed (missing colon, oversized line, bad framing).
	ErrMalformedHeader = errors.New("malformed part header")

	// ErrMissingDisposition is returned when a part carries no usable
	// Content-Disposition name, which RFC 7578 requires for form data.
	ErrMissingDisposition = errors.New("missing content-disposition name")

	// ErrTruncated is returned when the source ends before the closing
	// boundary is seen.
	ErrTruncated = errors.New("multipart body truncated")

	// ErrValueTooLarge is returned when a non-streaming field's value
	// exceeds the configured limit.
	ErrValueTooLarge = errors.New("form value exceeds size limit")

	// ErrStreamConsumed is returned when a binary field's content is
	// read through more than one entry point (Reader after Next, or a
	// second drain). Content sequences are single-pass.
	ErrStreamConsumed = errors.New("field content already consumed")
)

// DecodeError reports a fatal decode failure with its position in the
// source. It wraps the underlying cause.
type DecodeError struct {
	// Offset is the byte offset in the source at which the failure was
	// detected.
	Offset int64

	// Part is the zero-based index of the part being scanned, or -1 if
	// the failure occurred before the first part.
	Part int

	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("multipart decode failed at offset %d (part %d): %v", e.Offset, e.Part, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
