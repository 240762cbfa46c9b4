package multipart

import (
	"context"
	"io"
)

// Form is a fully materialized multipart form. Field order follows the
// source; names need not be unique.
type Form struct {
	fields []*Field
}

// Fields returns all fields in arrival order.
func (f *Form) Fields() []*Field { return f.fields }

// Len returns the number of fields.
func (f *Form) Len() int { return len(f.fields) }

// Get returns the first field with the given name, or nil.
func (f *Form) Get(name string) *Field {
	for _, field := range f.fields {
		if field.Name() == name {
			return field
		}
	}
	return nil
}

// GetAll returns every field with the given name, in order.
func (f *Form) GetAll(name string) []*Field {
	var out []*Field
	for _, field := range f.fields {
		if field.Name() == name {
			out = append(out, field)
		}
	}
	return out
}

// Value returns the first value for name, or "".
func (f *Form) Value(name string) string {
	if field := f.Get(name); field != nil {
		return field.Value()
	}
	return ""
}

// ReadForm decodes src completely, draining every streaming field's
// content into memory, and returns the collected form. It is the
// convenience path for callers that do not need streaming.
func ReadForm(ctx context.Context, boundary Boundary, src io.Reader, opts ...Option) (*Form, error) {
	seq := NewDecoder(boundary, opts...).Decode(ctx, src)
	defer seq.Close()

	form := &Form{}
	for {
		field, err := seq.Next(ctx)
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			return nil, err
		}
		// Drain before moving on: the producer will not emit the next
		// field while this one's content queue is still filling.
		if _, err := field.Bytes(ctx); err != nil {
			return nil, err
		}
		form.fields = append(form.fields, field)
	}
}
