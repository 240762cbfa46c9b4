package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/formflow/internal/logger"
	"github.com/marmos91/formflow/pkg/multipart"
	"github.com/marmos91/formflow/pkg/store"
)

// UploadHandler handles POST /upload.
//
// The request body is decoded as it arrives: simple fields are collected
// into the response manifest, binary fields are streamed chunk by chunk
// into the configured store. Nothing is spooled to disk or held in memory
// beyond the decoder's bounded buffers, so upload size is limited only by
// the store.
type UploadHandler struct {
	store      store.Store
	decOptions []multipart.Option
}

// NewUploadHandler creates a new upload handler. The decoder options are
// applied to every request's decoder (buffer size, value size limit,
// metrics).
func NewUploadHandler(st store.Store, opts ...multipart.Option) *UploadHandler {
	return &UploadHandler{store: st, decOptions: opts}
}

// UploadedFile describes one stored binary field in the response manifest.
type UploadedFile struct {
	Field       string `json:"field"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
}

// UploadResult is the manifest returned for a successful upload.
type UploadResult struct {
	Values map[string]string `json:"values"`
	Files  []UploadedFile    `json:"files"`
}

// Upload handles POST /upload.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	boundary, ok := h.requestBoundary(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	dec := multipart.NewDecoder(boundary, h.decOptions...)
	fields := dec.Decode(ctx, r.Body)
	defer fields.Close()

	result := UploadResult{
		Values: make(map[string]string),
		Files:  make([]UploadedFile, 0),
	}

	start := time.Now()
	var stored []string

	for {
		field, err := fields.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			h.cleanup(stored)
			writeDecodeError(w, err)
			return
		}

		switch field.Kind() {
		case multipart.KindValue:
			result.Values[field.Name()] = field.Value()

		case multipart.KindStream:
			key := store.NewKey(field.Name())
			size, err := h.store.Put(ctx, key, field.Content())
			if err != nil {
				h.cleanup(stored)
				writeDecodeError(w, err)
				return
			}
			stored = append(stored, key)
			result.Files = append(result.Files, UploadedFile{
				Field:       field.Name(),
				Filename:    field.Filename(),
				ContentType: field.ContentType(),
				Key:         key,
				Size:        size,
			})
		}
	}

	logger.Info("upload completed",
		logger.KeyParts, len(result.Values)+len(result.Files),
		logger.KeyDuration, time.Since(start).String(),
	)

	writeJSON(w, http.StatusCreated, okResponse(result))
}

// requestBoundary extracts and validates the multipart boundary from the
// request's Content-Type. Writes an error response and returns false when
// the request is not usable multipart/form-data.
func (h *UploadHandler) requestBoundary(w http.ResponseWriter, r *http.Request) (multipart.Boundary, bool) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid Content-Type header"))
		return multipart.Boundary{}, false
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse("expected multipart/form-data"))
		return multipart.Boundary{}, false
	}

	boundary, err := multipart.NewBoundary(params["boundary"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return multipart.Boundary{}, false
	}
	return boundary, true
}

// cleanup removes objects stored before a failed upload so a rejected
// request leaves nothing behind. Best effort; leftover objects are
// logged, not surfaced.
func (h *UploadHandler) cleanup(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, key := range keys {
		if err := h.store.Delete(ctx, key); err != nil {
			logger.Warn("failed to remove partial upload", logger.KeyKey, key, "error", err)
		}
	}
}

// writeDecodeError maps decode failures to HTTP status codes.
func writeDecodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, multipart.ErrMalformedHeader),
		errors.Is(err, multipart.ErrMissingDisposition),
		errors.Is(err, multipart.ErrTruncated),
		errors.Is(err, multipart.ErrInvalidBoundary):
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, multipart.ErrValueTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse("upload failed"))
	}
}
