package storage

import "fmt"

// UploadError reports a failed object upload.
type UploadError struct {
	// Key is the remote object key.
	Key string
	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int
	// Body is the response body returned by the store.
	Body string
	// Err is the transport or local error, if any.
	Err error
}

// Error implements error.
func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
	}

	return fmt.Sprintf("upload %s: status %d: %s", e.Key, e.StatusCode, e.Body)
}

// Unwrap returns the underlying error.
func (e *UploadError) Unwrap() error {
	return e.Err
}
