package multipart

import (
	"fmt"
	"strings"
)

// Boundary is the immutable delimiter configuration for one decode run.
//
// It precomputes the three byte sequences the scanner needs:
//
//	Delimiter: "\r\n--" + token   (separates parts)
//	Opening:   "--" + token       (first line of the body)
//	Closing:   "--" + token + "--"
//
// Charset applies to non-streaming field values; it is informational (the
// decoder itself treats values as bytes) and defaults to "utf-8".
type Boundary struct {
	token     string
	charset   string
	delimiter []byte
	opening   []byte
	closing   []byte
}

// bcharsnospace per RFC 2046 §5.1.1, minus space (space is allowed except
// as the final character; we validate that separately).
const boundaryChars = "0123456789abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ'()+_,-./:=? "

// NewBoundary builds a Boundary from the boundary token of a
// "multipart/form-data; boundary=..." content type.
func NewBoundary(token string) (Boundary, error) {
	if len(token) == 0 || len(token) > 70 {
		return Boundary{}, fmt.Errorf("%w: length %d", ErrInvalidBoundary, len(token))
	}
	if strings.HasSuffix(token, " ") {
		return Boundary{}, fmt.Errorf("%w: trailing space", ErrInvalidBoundary)
	}
	for i := 0; i < len(token); i++ {
		if !strings.ContainsRune(boundaryChars, rune(token[i])) {
			return Boundary{}, fmt.Errorf("%w: byte %q", ErrInvalidBoundary, token[i])
		}
	}
	return Boundary{
		token:     token,
		charset:   "utf-8",
		delimiter: []byte("\r\n--" + token),
		opening:   []byte("--" + token),
		closing:   []byte("--" + token + "--"),
	}, nil
}

// WithCharset returns a copy of the boundary with the given value charset.
func (b Boundary) WithCharset(charset string) Boundary {
	b.charset = charset
	return b
}

// Token returns the raw boundary token.
func (b Boundary) Token() string { return b.token }

// Charset returns the declared value charset.
func (b Boundary) Charset() string { return b.charset }

// Delimiter returns the encapsulation delimiter ("\r\n--" + token).
func (b Boundary) Delimiter() []byte { return b.delimiter }

// Opening returns the opening boundary line ("--" + token).
func (b Boundary) Opening() []byte { return b.opening }

// Closing returns the closing boundary ("--" + token + "--").
func (b Boundary) Closing() []byte { return b.closing }
