package multipart

import "time"

// Metrics receives decoder observations. Implementations must be safe for
// concurrent use. A nil Metrics disables instrumentation.
//
// The interface lives here (consumer side) so the package has no metrics
// backend dependency; see pkg/metrics/prometheus for the Prometheus
// implementation.
type Metrics interface {
	// DecodeStarted is called when a decode run begins.
	DecodeStarted()

	// DecodeCompleted is called when a decode run ends.
	// Status is one of "ok", "error", "canceled".
	DecodeCompleted(duration time.Duration, status string)

	// FieldDecoded is called per emitted field with its kind
	// ("value" or "stream").
	FieldDecoded(kind string)

	// ContentBytes is called with the size of each content chunk
	// delivered to a streaming field.
	ContentBytes(n int)
}
