package multipart

import (
	"bytes"
	"context"
	"testing"
)

func TestForm_DuplicateNames(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	body := buildBody("B",
		valuePart("tag", "red"),
		valuePart("tag", "green"),
		valuePart("other", "x"),
		valuePart("tag", "blue"),
	)

	form, err := ReadForm(ctx, b, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}

	if got := form.Value("tag"); got != "red" {
		t.Errorf("Value(tag) = %q, want first value %q", got, "red")
	}
	all := form.GetAll("tag")
	if len(all) != 3 {
		t.Fatalf("GetAll(tag) = %d fields, want 3", len(all))
	}
	for i, want := range []string{"red", "green", "blue"} {
		if all[i].Value() != want {
			t.Errorf("GetAll(tag)[%d] = %q, want %q", i, all[i].Value(), want)
		}
	}
	if form.Get("missing") != nil {
		t.Error("Get(missing) != nil")
	}
	if form.Value("missing") != "" {
		t.Error("Value(missing) != \"\"")
	}
}

func TestReadForm_MaterializesStreamingFields(t *testing.T) {
	ctx := context.Background()
	b := testBoundary(t, "B")
	content := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 5000)
	body := buildBody("B", filePart("blob", "blob.bin", content))

	form, err := ReadForm(ctx, b, bytes.NewReader(body), WithBufferSize(512))
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	field := form.Get("blob")
	if field == nil {
		t.Fatal("blob field missing")
	}
	if field.Kind() != KindStream {
		t.Errorf("Kind = %s, want stream", field.Kind())
	}
	got, err := field.Bytes(ctx)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("materialized %d bytes, want %d", len(got), len(content))
	}
}
