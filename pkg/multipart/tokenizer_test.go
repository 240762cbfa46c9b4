package multipart

import (
	"errors"
	"strings"
	"testing"
)

func testBoundary(t *testing.T, token string) Boundary {
	t.Helper()
	b, err := NewBoundary(token)
	if err != nil {
		t.Fatalf("NewBoundary(%q): %v", token, err)
	}
	return b
}

// drive feeds input to the tokenizer and returns every non-None signal in
// order, stopping at the first error.
func drive(t *testing.T, tok Tokenizer, input string) ([]Signal, error) {
	t.Helper()
	var signals []Signal
	for i := 0; i < len(input); i++ {
		sig, err := tok.Next(input[i])
		if err != nil {
			return signals, err
		}
		if sig != SignalNone {
			signals = append(signals, sig)
		}
		if sig == SignalEncapsulation {
			tok.Reset()
		}
		if sig == SignalClose {
			break
		}
	}
	return signals, nil
}

func TestTokenizer_SinglePart(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	body := "--B\r\n" +
		"Content-Disposition: form-data; name=\"a\"\r\n" +
		"\r\n" +
		"hello\r\n" +
		"--B--"

	signals, err := drive(t, tok, body)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	want := []Signal{SignalHeaders, SignalClose}
	if len(signals) != len(want) {
		t.Fatalf("signals = %v, want %v", signals, want)
	}
	for i := range want {
		if signals[i] != want[i] {
			t.Fatalf("signals[%d] = %v, want %v", i, signals[i], want[i])
		}
	}
	if got := tok.Part().Name; got != "a" {
		t.Errorf("Name = %q, want %q", got, "a")
	}
	if got := string(tok.Body()); got != "hello" {
		t.Errorf("Body = %q, want %q", got, "hello")
	}
}

func TestTokenizer_TwoParts(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	body := "--B\r\n" +
		"Content-Disposition: form-data; name=\"first\"\r\n" +
		"\r\n" +
		"one\r\n" +
		"--B\r\n" +
		"Content-Disposition: form-data; name=\"second\"\r\n" +
		"\r\n" +
		"two\r\n" +
		"--B--"

	signals, err := drive(t, tok, body)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	want := []Signal{SignalHeaders, SignalEncapsulation, SignalHeaders, SignalClose}
	if len(signals) != len(want) {
		t.Fatalf("signals = %v, want %v", signals, want)
	}
	if got := tok.Part().Name; got != "second" {
		t.Errorf("final part Name = %q, want %q", got, "second")
	}
	if got := string(tok.Body()); got != "two" {
		t.Errorf("final Body = %q, want %q", got, "two")
	}
}

func TestTokenizer_Preamble(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	body := "this is a preamble, ignored by conforming parsers\r\n" +
		"--B\r\n" +
		"Content-Disposition: form-data; name=\"a\"\r\n" +
		"\r\n" +
		"v\r\n" +
		"--B--"

	signals, err := drive(t, tok, body)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if len(signals) != 2 || signals[0] != SignalHeaders || signals[1] != SignalClose {
		t.Fatalf("signals = %v, want [Headers Close]", signals)
	}
	if got := string(tok.Body()); got != "v" {
		t.Errorf("Body = %q, want %q (preamble must be discarded)", got, "v")
	}
}

func TestTokenizer_StreamingClassification(t *testing.T) {
	tests := []struct {
		name      string
		headers   string
		streaming bool
	}{
		{
			name:      "PlainValue",
			headers:   "Content-Disposition: form-data; name=\"a\"\r\n",
			streaming: false,
		},
		{
			name:      "TextContentType",
			headers:   "Content-Disposition: form-data; name=\"a\"\r\nContent-Type: text/plain\r\n",
			streaming: false,
		},
		{
			name:      "Filename",
			headers:   "Content-Disposition: form-data; name=\"f\"; filename=\"x.bin\"\r\n",
			streaming: true,
		},
		{
			name:      "OctetStream",
			headers:   "Content-Disposition: form-data; name=\"f\"\r\nContent-Type: application/octet-stream\r\n",
			streaming: true,
		},
		{
			name:      "UrlEncoded",
			headers:   "Content-Disposition: form-data; name=\"a\"\r\nContent-Type: application/x-www-form-urlencoded\r\n",
			streaming: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBoundary(t, "B")
			tok := newPartTokenizer(b, 0, 0)
			input := "--B\r\n" + tt.headers + "\r\n"
			if _, err := drive(t, tok, input); err != nil {
				t.Fatalf("drive: %v", err)
			}
			if got := tok.Streaming(); got != tt.streaming {
				t.Errorf("Streaming() = %v, want %v", got, tt.streaming)
			}
		})
	}
}

func TestTokenizer_MalformedHeader(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	_, err := drive(t, tok, "--B\r\nno colon here\r\n\r\n")
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("err = %v, want ErrMalformedHeader", err)
	}
}

func TestTokenizer_BareLFRejected(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	_, err := drive(t, tok, "--B\r\nContent-Disposition: form-data; name=\"a\"\n\r\n")
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("err = %v, want ErrMalformedHeader for bare LF", err)
	}
}

func TestTokenizer_HeaderLineTooLong(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	long := "X-Junk: " + strings.Repeat("a", maxHeaderLine+1)
	_, err := drive(t, tok, "--B\r\n"+long)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("err = %v, want ErrMalformedHeader for oversized line", err)
	}
}

func TestTokenizer_ValueTooLarge(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 8)

	input := "--B\r\n" +
		"Content-Disposition: form-data; name=\"a\"\r\n" +
		"\r\n" +
		strings.Repeat("v", 100000) + "\r\n--B--"
	_, err := drive(t, tok, input)
	if !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("err = %v, want ErrValueTooLarge", err)
	}
}

func TestTokenizer_DiscardBodyStopsCapture(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	input := "--B\r\n" +
		"Content-Disposition: form-data; name=\"f\"; filename=\"x\"\r\n" +
		"\r\n"
	if _, err := drive(t, tok, input); err != nil {
		t.Fatalf("drive: %v", err)
	}
	tok.DiscardBody()
	for _, c := range []byte("should not be captured") {
		if _, err := tok.Next(c); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(tok.Body()) != 0 {
		t.Errorf("Body() = %q after DiscardBody, want empty", tok.Body())
	}
}

func TestTokenizer_BoundaryPadding(t *testing.T) {
	b := testBoundary(t, "B")
	tok := newPartTokenizer(b, 0, 0)

	// Transport padding (spaces) between boundary token and CRLF.
	body := "--B  \r\n" +
		"Content-Disposition: form-data; name=\"a\"\r\n" +
		"\r\n" +
		"v\r\n" +
		"--B--"
	signals, err := drive(t, tok, body)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if len(signals) != 2 || signals[1] != SignalClose {
		t.Fatalf("signals = %v, want [Headers Close]", signals)
	}
}

func TestNewBoundary_Validation(t *testing.T) {
	if _, err := NewBoundary(""); !errors.Is(err, ErrInvalidBoundary) {
		t.Error("empty boundary accepted")
	}
	if _, err := NewBoundary(strings.Repeat("a", 71)); !errors.Is(err, ErrInvalidBoundary) {
		t.Error("71-char boundary accepted")
	}
	if _, err := NewBoundary("ends with space "); !errors.Is(err, ErrInvalidBoundary) {
		t.Error("trailing-space boundary accepted")
	}
	if _, err := NewBoundary("bad\x00byte"); !errors.Is(err, ErrInvalidBoundary) {
		t.Error("control byte accepted")
	}
	if _, err := NewBoundary("----WebKitFormBoundaryABC123"); err != nil {
		t.Errorf("typical browser boundary rejected: %v", err)
	}
}
