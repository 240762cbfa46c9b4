package multipart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testPart struct {
	headers []string
	body    []byte
}

func valuePart(name, value string) testPart {
	return testPart{
		headers: []string{fmt.Sprintf("Content-Disposition: form-data; name=%q", name)},
		body:    []byte(value),
	}
}

func filePart(name, filename string, body []byte) testPart {
	return testPart{
		headers: []string{
			fmt.Sprintf("Content-Disposition: form-data; name=%q; filename=%q", name, filename),
			"Content-Type: application/octet-stream",
		},
		body: body,
	}
}

// buildBody assembles a well-formed multipart/form-data body.
func buildBody(token string, parts ...testPart) []byte {
	var b bytes.Buffer
	for i, p := range parts {
		if i == 0 {
			b.WriteString("--" + token + "\r\n")
		} else {
			b.WriteString("\r\n--" + token + "\r\n")
		}
		for _, h := range p.headers {
			b.WriteString(h + "\r\n")
		}
		b.WriteString("\r\n")
		b.Write(p.body)
	}
	b.WriteString("\r\n--" + token + "--")
	return b.Bytes()
}

// chunkedReader yields at most chunk bytes per Read and counts consumed
// bytes, to exercise boundary splits and observe backpressure.
type chunkedReader struct {
	data  []byte
	pos   int
	chunk int
	read  atomic.Int64
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.chunk
	if n <= 0 || n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.pos {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	r.read.Add(int64(n))
	return n, nil
}

// testMetrics records decoder observations for assertions.
type testMetrics struct {
	mu        sync.Mutex
	fields    []string
	bytes     int
	completed chan string
}

func newTestMetrics() *testMetrics {
	return &testMetrics{completed: make(chan string, 1)}
}

func (m *testMetrics) DecodeStarted() {}

func (m *testMetrics) DecodeCompleted(_ time.Duration, status string) {
	m.completed <- status
}

func (m *testMetrics) FieldDecoded(kind string) {
	m.mu.Lock()
	m.fields = append(m.fields, kind)
	m.mu.Unlock()
}

func (m *testMetrics) ContentBytes(n int) {
	m.mu.Lock()
	m.bytes += n
	m.mu.Unlock()
}

func TestDecoder_SimpleAndBinaryScenario(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := buildBody("B",
		valuePart("a", "hello"),
		filePart("f", "x.bin", []byte{0, 1, 2, 3}),
	)

	seq := NewDecoder(b).Decode(ctx, bytes.NewReader(body))
	defer seq.Close()

	first, err := seq.Next(ctx)
	if err != nil {
		t.Fatalf("Next(1): %v", err)
	}
	if first.Kind() != KindValue || first.Name() != "a" || first.Value() != "hello" {
		t.Errorf("field 1 = %s %q=%q, want value a=hello", first.Kind(), first.Name(), first.Value())
	}

	second, err := seq.Next(ctx)
	if err != nil {
		t.Fatalf("Next(2): %v", err)
	}
	if second.Kind() != KindStream {
		t.Fatalf("field 2 kind = %s, want stream", second.Kind())
	}
	if second.Name() != "f" || second.Filename() != "x.bin" {
		t.Errorf("field 2 = %q/%q, want f/x.bin", second.Name(), second.Filename())
	}
	if second.ContentType() != "application/octet-stream" {
		t.Errorf("field 2 content type = %q", second.ContentType())
	}
	content, err := second.Bytes(ctx)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(content, []byte{0, 1, 2, 3}) {
		t.Errorf("content = %v, want [0 1 2 3]", content)
	}

	if _, err := seq.Next(ctx); err != io.EOF {
		t.Fatalf("Next(3) = %v, want io.EOF", err)
	}
	// Terminal reads are idempotent.
	if _, err := seq.Next(ctx); err != io.EOF {
		t.Fatalf("Next after EOF = %v, want io.EOF", err)
	}
}

func TestDecoder_OrderPreservation(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "order-test")

	const n = 20
	parts := make([]testPart, n)
	for i := range parts {
		parts[i] = valuePart(fmt.Sprintf("field%02d", i), fmt.Sprintf("value%02d", i))
	}
	body := buildBody("order-test", parts...)

	form, err := ReadForm(ctx, b, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	if form.Len() != n {
		t.Fatalf("Len() = %d, want %d", form.Len(), n)
	}
	for i, f := range form.Fields() {
		if want := fmt.Sprintf("field%02d", i); f.Name() != want {
			t.Errorf("field[%d].Name = %q, want %q", i, f.Name(), want)
		}
	}
}

func TestDecoder_ChunkSplitRobustness(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "----WebKitFormBoundaryABC123")

	// Binary content salted with CR/LF and boundary fragments so splits
	// land inside potential delimiter matches.
	binary := bytes.Repeat([]byte("\r\n--We\rbKit\n\r\n-"), 777)
	body := buildBody("----WebKitFormBoundaryABC123",
		valuePart("greeting", "hello world"),
		filePart("payload", "p.bin", binary),
		valuePart("trailer", "bye"),
	)

	for _, chunk := range []int{1, 2, 3, 7, 64, 1000, 4096, len(body)} {
		t.Run(fmt.Sprintf("chunk%d", chunk), func(t *testing.T) {
			src := &chunkedReader{data: body, chunk: chunk}
			form, err := ReadForm(ctx, b, src)
			if err != nil {
				t.Fatalf("ReadForm: %v", err)
			}
			if form.Len() != 3 {
				t.Fatalf("Len() = %d, want 3", form.Len())
			}
			if form.Value("greeting") != "hello world" {
				t.Errorf("greeting = %q", form.Value("greeting"))
			}
			got, err := form.Get("payload").Bytes(ctx)
			if err != nil {
				t.Fatalf("payload Bytes: %v", err)
			}
			if !bytes.Equal(got, binary) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(got), len(binary))
			}
			if form.Value("trailer") != "bye" {
				t.Errorf("trailer = %q", form.Value("trailer"))
			}
		})
	}
}

func TestDecoder_StreamingChunksConcatenate(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")

	content := make([]byte, 100000)
	for i := range content {
		content[i] = byte(i * 31)
	}
	body := buildBody("B", filePart("f", "big.bin", content))

	// A small scanner buffer forces many partial flushes.
	seq := NewDecoder(b, WithBufferSize(256)).Decode(ctx, bytes.NewReader(body))
	defer seq.Close()

	field, err := seq.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var got []byte
	chunks := 0
	for {
		chunk, err := field.Content().Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Content.Next: %v", err)
		}
		chunks++
		got = append(got, chunk...)
	}
	if chunks < 2 {
		t.Errorf("chunks = %d, want several (forced flushes)", chunks)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("reassembled %d bytes, want %d", len(got), len(content))
	}
	// The inner terminal marker is idempotent.
	if _, err := field.Content().Next(ctx); err != io.EOF {
		t.Errorf("Content.Next after EOF = %v, want io.EOF", err)
	}

	if _, err := seq.Next(ctx); err != io.EOF {
		t.Fatalf("outer Next = %v, want io.EOF", err)
	}
}

func TestDecoder_EmptyBinaryBody(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := buildBody("B", filePart("f", "empty.bin", nil))

	form, err := ReadForm(ctx, b, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	got, err := form.Get("f").Bytes(ctx)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("content = %v, want empty", got)
	}
}

func TestDecoder_CancellationStopsProducer(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	metrics := newTestMetrics()

	body := buildBody("B",
		valuePart("first", "1"),
		filePart("big", "big.bin", bytes.Repeat([]byte("z"), 1<<20)),
		valuePart("last", "3"),
	)

	seq := NewDecoder(b, WithBufferSize(256), WithMetrics(metrics)).
		Decode(ctx, bytes.NewReader(body))

	first, err := seq.Next(ctx)
	if err != nil || first.Name() != "first" {
		t.Fatalf("Next = %v, %v", first, err)
	}

	// Abandon without ever touching the binary field's content. The
	// producer is (or will be) blocked pushing into the inner queue and
	// must unwind promptly.
	seq.Close()

	select {
	case status := <-metrics.completed:
		if status != "canceled" {
			t.Errorf("status = %q, want canceled", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not terminate after Close")
	}
}

func TestDecoder_BackpressureStallsSource(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")

	body := buildBody("B", filePart("big", "big.bin", bytes.Repeat([]byte("z"), 1<<20)))
	src := &chunkedReader{data: body}

	seq := NewDecoder(b).Decode(ctx, src)
	defer seq.Close()

	// Consume nothing. The queues fill, the scanner blocks, and reading
	// from the source must stall far short of the full megabyte.
	time.Sleep(100 * time.Millisecond)
	if n := src.read.Load(); n > 200_000 {
		t.Errorf("source consumed %d bytes with no consumer, want bounded", n)
	}
}

func TestDecoder_Truncated(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := buildBody("B", valuePart("a", "hello"))
	truncated := body[:len(body)-4] // cut into the closing boundary

	_, err := ReadForm(ctx, b, bytes.NewReader(truncated))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatal("error is not a *DecodeError")
	}
}

func TestDecoder_SourceFailurePropagates(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := buildBody("B", valuePart("a", "hello"))

	boom := errors.New("connection reset")
	src := io.MultiReader(bytes.NewReader(body[:10]), &failingReader{err: boom})

	_, err := ReadForm(ctx, b, src)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped source error", err)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestDecoder_MalformedHeaderFailsDecode(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := []byte("--B\r\nnot a header\r\n\r\nx\r\n--B--")

	_, err := ReadForm(ctx, b, bytes.NewReader(body))
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("err = %v, want ErrMalformedHeader", err)
	}
}

func TestDecoder_MissingDisposition(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := buildBody("B", testPart{
		headers: []string{"Content-Type: text/plain"},
		body:    []byte("anonymous"),
	})

	_, err := ReadForm(ctx, b, bytes.NewReader(body))
	if !errors.Is(err, ErrMissingDisposition) {
		t.Fatalf("err = %v, want ErrMissingDisposition", err)
	}
}

func TestDecoder_FailureVisibleOnOpenContentSeq(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")

	// The binary part's body just stops: the source ends mid-stream.
	var body bytes.Buffer
	body.WriteString("--B\r\n")
	body.WriteString("Content-Disposition: form-data; name=\"f\"; filename=\"x\"\r\n")
	body.WriteString("Content-Type: application/octet-stream\r\n\r\n")
	body.WriteString("partial content")

	seq := NewDecoder(b).Decode(ctx, bytes.NewReader(body.Bytes()))
	defer seq.Close()

	field, err := seq.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	// The outer sequence reports the failure...
	if _, err := seq.Next(ctx); !errors.Is(err, ErrTruncated) {
		t.Fatalf("outer err = %v, want ErrTruncated", err)
	}

	// ...and so does the open inner sequence once its channel drains.
	for {
		_, err := field.Content().Next(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrTruncated) {
			return
		}
		t.Fatalf("inner err = %v, want ErrTruncated", err)
	}
}

func TestDecoder_MetricsObservations(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	metrics := newTestMetrics()

	content := bytes.Repeat([]byte("m"), 4096)
	body := buildBody("B", valuePart("a", "x"), filePart("f", "f.bin", content))

	if _, err := ReadForm(ctx, b, bytes.NewReader(body), WithMetrics(metrics)); err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	if status := <-metrics.completed; status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.fields) != 2 {
		t.Errorf("fields = %v, want 2 observations", metrics.fields)
	}
	if metrics.bytes != len(content) {
		t.Errorf("content bytes = %d, want %d", metrics.bytes, len(content))
	}
}

func TestDecoder_AllIterator(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := buildBody("B",
		valuePart("one", "1"),
		valuePart("two", "2"),
		valuePart("three", "3"),
	)

	seq := NewDecoder(b).Decode(ctx, bytes.NewReader(body))

	var names []string
	for field, err := range seq.All(ctx) {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		names = append(names, field.Name())
	}
	if got := strings.Join(names, ","); got != "one,two,three" {
		t.Errorf("names = %s", got)
	}
}

func TestDecoder_AllIteratorEarlyBreakCancels(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	metrics := newTestMetrics()
	body := buildBody("B",
		valuePart("one", "1"),
		filePart("big", "b.bin", bytes.Repeat([]byte("q"), 1<<20)),
		valuePart("three", "3"),
	)

	seq := NewDecoder(b, WithBufferSize(256), WithMetrics(metrics)).
		Decode(ctx, bytes.NewReader(body))

	for field, err := range seq.All(ctx) {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		if field.Name() == "one" {
			break
		}
	}

	select {
	case <-metrics.completed:
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not terminate after breaking out of All")
	}
}

func TestContentSeq_Reader(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	content := bytes.Repeat([]byte("abc123\r\n"), 1000)
	body := buildBody("B", filePart("f", "f.bin", content))

	seq := NewDecoder(b, WithBufferSize(128)).Decode(ctx, bytes.NewReader(body))
	defer seq.Close()

	field, err := seq.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	got, err := io.ReadAll(field.Content().Reader(ctx))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("read %d bytes, want %d", len(got), len(content))
	}
}
