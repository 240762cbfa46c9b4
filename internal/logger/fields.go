package logger

// Standard field keys for structured logging. Using these consistently
// keeps logs queryable across the gateway, the decoder, and the stores.
const (
	// Request handling
	KeyRequestID = "request_id" // HTTP request ID (chi middleware)
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // HTTP path
	KeyStatus    = "status"     // HTTP status code
	KeyClientIP  = "client_ip"  // Client IP address
	KeyDuration  = "duration"   // Operation duration

	// Form decoding
	KeyBoundary  = "boundary" // Multipart boundary token
	KeyField     = "field"    // Form field name
	KeyFieldKind = "kind"     // Field kind: value, stream
	KeyFilename  = "filename" // Uploaded filename
	KeyParts     = "parts"    // Number of decoded parts
	KeyBytes     = "bytes"    // Byte count

	// Upload sink
	KeyStore    = "store"     // Store backend: memory, badger, s3
	KeyKey      = "key"       // Object key in the store
	KeyUploadID = "upload_id" // Upload identifier
)
