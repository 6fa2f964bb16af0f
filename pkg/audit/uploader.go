package audit

import "io"

// Uploader archives serialized audit records to durable storage.
type Uploader interface {
	// Key is a unique identifier for the record.
	Upload(key string, body io.Reader) error
	GetDirectory() string
}
