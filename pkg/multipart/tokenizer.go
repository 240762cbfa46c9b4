package multipart

import (
	"fmt"
	"mime"
	"net/textproto"
	"strings"
)

// Signal is the phase signal a Tokenizer reports after each byte.
type Signal uint8

const (
	// SignalNone: still parsing; nothing of note happened on this byte.
	SignalNone Signal = iota

	// SignalHeaders: the current part's headers are complete and final;
	// the body phase starts with the next byte. The caller may now
	// inspect the part header and its streaming classification.
	SignalHeaders

	// SignalEncapsulation: the current part ended at an encapsulation
	// boundary; another part follows. Accumulated tokens are final.
	SignalEncapsulation

	// SignalClose: the current part ended at the closing boundary; the
	// form is complete. Accumulated tokens are final.
	SignalClose
)

// PartHeader is the parsed header section of one part.
type PartHeader struct {
	// Name is the Content-Disposition form field name.
	Name string

	// Filename is the Content-Disposition filename, if any.
	Filename string

	// ContentType is the declared media type, or "" when absent.
	ContentType string

	// Header holds all raw headers with canonicalized keys.
	Header textproto.MIMEHeader
}

// Tokenizer consumes the raw bytes of a multipart body one at a time and
// reports part structure: header completion, encapsulation boundaries,
// and the closing boundary.
//
// The decoder drives a Tokenizer strictly sequentially and calls Reset
// after every encapsulation boundary, returning it to a fresh per-part
// state. Implementations accumulate the current part's tokens: the parsed
// header, a streaming classification, and any body bytes captured so far
// (used to seed a freshly opened content channel, and to materialize
// non-streaming values at the part boundary).
type Tokenizer interface {
	// Next consumes one byte and reports the resulting phase signal.
	// A decode error aborts the whole decode.
	Next(b byte) (Signal, error)

	// Reset returns the tokenizer to a fresh per-part state, ready for
	// the header section of the next part.
	Reset()

	// Part returns the accumulated header of the current part. Valid
	// after SignalHeaders.
	Part() *PartHeader

	// Streaming classifies the current part: true when its content
	// should be exposed as a lazy byte sequence rather than
	// materialized. Valid after SignalHeaders.
	Streaming() bool

	// Body returns the body bytes captured so far for the current part.
	Body() []byte

	// DiscardBody stops body capture for the current part and drops
	// any bytes already captured. Used once a part starts streaming.
	DiscardBody()
}

// Tokenizer states.
const (
	statePreamble int8 = iota
	stateBoundaryPad
	stateBoundaryLF
	stateBoundaryDash
	stateHeaderLine
	stateBody
	stateDone
)

// maxHeaderLine bounds a single header line, matching the order of
// magnitude net/textproto tolerates.
const maxHeaderLine = 16 << 10

// partTokenizer is the default Tokenizer. It detects part framing with a
// ScannerBuffer over the encapsulation delimiter and parses headers line
// by line.
type partTokenizer struct {
	boundary Boundary
	state    int8
	started  bool // past the opening boundary

	line []byte
	part PartHeader

	bodyScan *ScannerBuffer
	body     []byte
	capture  bool
	maxBody  int64
}

// newPartTokenizer builds the default tokenizer. bufSize sizes the
// internal body scanner; maxBody bounds captured values (0 = unlimited).
func newPartTokenizer(boundary Boundary, bufSize int, maxBody int64) *partTokenizer {
	t := &partTokenizer{
		boundary: boundary,
		bodyScan: NewScannerBuffer(bufSize),
		maxBody:  maxBody,
	}
	t.reset(statePreamble)
	// Seed a virtual CRLF so an opening boundary at the very start of
	// the stream matches the full "\r\n--token" delimiter.
	t.bodyScan.AddByte(boundary.Delimiter(), '\r')
	t.bodyScan.AddByte(boundary.Delimiter(), '\n')
	return t
}

func (t *partTokenizer) reset(state int8) {
	t.state = state
	t.line = t.line[:0]
	t.part = PartHeader{Header: make(textproto.MIMEHeader)}
	t.bodyScan.Reset()
	t.body = nil
	t.capture = true
}

// Reset implements Tokenizer. The tokenizer is left expecting the header
// section of the next part.
func (t *partTokenizer) Reset() { t.reset(stateHeaderLine) }

func (t *partTokenizer) Part() *PartHeader { return &t.part }

func (t *partTokenizer) Body() []byte { return t.body }

func (t *partTokenizer) DiscardBody() {
	t.body = nil
	t.capture = false
}

// Streaming reports whether the part's content should stream: any part
// with a filename streams, as does any part declaring a content type
// outside text/* and application/x-www-form-urlencoded.
func (t *partTokenizer) Streaming() bool {
	if t.part.Filename != "" {
		return true
	}
	ct := t.part.ContentType
	if ct == "" || strings.HasPrefix(ct, "text/") || ct == "application/x-www-form-urlencoded" {
		return false
	}
	return true
}

func (t *partTokenizer) Next(b byte) (Signal, error) {
	switch t.state {
	case statePreamble, stateBody:
		delim := t.boundary.Delimiter()
		for _, take := range t.bodyScan.AddByte(delim, b) {
			switch take.Kind() {
			case TakeChunk:
				if t.state == stateBody && t.capture {
					t.body = append(t.body, take.Value()...)
					if t.maxBody > 0 && int64(len(t.body)) > t.maxBody {
						return SignalNone, fmt.Errorf("%w: %d bytes", ErrValueTooLarge, len(t.body))
					}
				}
			case TakeEnd:
				// Delimiter matched; what follows decides between an
				// encapsulation and the closing boundary.
				t.state = stateBoundaryPad
			}
		}
		return SignalNone, nil

	case stateBoundaryPad:
		switch b {
		case ' ', '\t':
			// Transport padding after the boundary token.
			return SignalNone, nil
		case '\r':
			t.state = stateBoundaryLF
			return SignalNone, nil
		case '-':
			t.state = stateBoundaryDash
			return SignalNone, nil
		}
		return SignalNone, fmt.Errorf("%w: unexpected byte %q after boundary", ErrMalformedHeader, b)

	case stateBoundaryLF:
		if b != '\n' {
			return SignalNone, fmt.Errorf("%w: expected LF after boundary CR", ErrMalformedHeader)
		}
		if !t.started {
			// Opening boundary: the first part's headers follow.
			t.started = true
			t.reset(stateHeaderLine)
			return SignalNone, nil
		}
		t.state = stateDone // caller resets before the next part's bytes
		return SignalEncapsulation, nil

	case stateBoundaryDash:
		if b != '-' {
			return SignalNone, fmt.Errorf("%w: expected closing dash", ErrMalformedHeader)
		}
		t.state = stateDone
		return SignalClose, nil

	case stateHeaderLine:
		if b == '\n' {
			n := len(t.line)
			if n == 0 || t.line[n-1] != '\r' {
				return SignalNone, fmt.Errorf("%w: header line not CRLF terminated", ErrMalformedHeader)
			}
			line := t.line[:n-1]
			if len(line) == 0 {
				// Blank line: headers are final, body begins.
				t.line = t.line[:0]
				t.state = stateBody
				return SignalHeaders, nil
			}
			if err := t.parseHeaderLine(line); err != nil {
				return SignalNone, err
			}
			t.line = t.line[:0]
			return SignalNone, nil
		}
		if len(t.line) >= maxHeaderLine {
			return SignalNone, fmt.Errorf("%w: header line exceeds %d bytes", ErrMalformedHeader, maxHeaderLine)
		}
		t.line = append(t.line, b)
		return SignalNone, nil
	}

	return SignalNone, fmt.Errorf("%w: byte after closing boundary", ErrMalformedHeader)
}

func (t *partTokenizer) parseHeaderLine(line []byte) error {
	idx := -1
	for i, c := range line {
		if c == ':' {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}
	key := textproto.CanonicalMIMEHeaderKey(string(line[:idx]))
	value := strings.TrimLeft(string(line[idx+1:]), " \t")
	t.part.Header.Add(key, value)

	switch key {
	case "Content-Disposition":
		media, params, err := mime.ParseMediaType(value)
		if err != nil || media != "form-data" {
			return fmt.Errorf("%w: content-disposition %q", ErrMalformedHeader, value)
		}
		t.part.Name = params["name"]
		t.part.Filename = params["filename"]
	case "Content-Type":
		media, _, err := mime.ParseMediaType(value)
		if err != nil {
			return fmt.Errorf("%w: content-type %q", ErrMalformedHeader, value)
		}
		t.part.ContentType = media
	}
	return nil
}
