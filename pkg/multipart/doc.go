// Package multipart implements a streaming decoder for multipart/form-data
// bodies.
//
// Unlike mime/multipart, the decoder never buffers a whole body: fields are
// delivered one at a time in arrival order, and binary fields expose their
// content as a lazy, single-pass chunk sequence that is produced while the
// source is still being scanned. Memory use is bounded by the scanner buffer
// size and the (small, fixed) queue capacities.
//
// # Architecture
//
// A background goroutine runs a per-byte scan automaton over the source:
//
//	bytes → tokenizer (headers, part framing)
//	      → scanner buffer (boundary detection, content chunking)
//	      → bounded outer queue (fields) / bounded inner queue (chunks)
//
// Pushing into a full queue blocks the scanner. A slow consumer of either
// the field sequence or a binary field's content therefore stalls reading
// from the source. This is the backpressure mechanism: callers must either
// drain every opened content sequence or abandon the decode (Close or
// context cancellation), which unblocks and stops the producer.
//
// # Usage
//
//	boundary, err := multipart.NewBoundary(token)
//	seq := multipart.NewDecoder(boundary).Decode(ctx, body)
//	defer seq.Close()
//	for {
//		field, err := seq.Next(ctx)
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// ReadForm provides a convenience path that materializes the whole form.
package multipart
