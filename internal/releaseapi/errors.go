package releaseapi

import (
	"errors"
	"fmt"

	"github.com/oshokin/release-pipeline/internal/domain/release"
)

// ErrNoReleases is returned by Latest when nothing has been published yet,
// and by ByVersion when the version is unknown.
var ErrNoReleases = errors.New("no releases found")

// FeedUnavailableError reports that the release feed could not be read.
// Callers treat it as "no release known".
type FeedUnavailableError struct {
	// StatusCode is the HTTP status, zero for transport or decode failures.
	StatusCode int
	Err        error
}

// Error implements error.
func (e *FeedUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("release feed unavailable: status %d", e.StatusCode)
	}

	return fmt.Sprintf("release feed unavailable: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *FeedUnavailableError) Unwrap() error {
	return e.Err
}

// RegistrationError reports that an uploaded artifact could not be recorded.
// It carries everything needed to register the orphaned object by hand.
type RegistrationError struct {
	Platform    release.Platform
	Version     string
	DownloadURL string
	StatusCode  int
	Body        string
	Err         error
}

// Error implements error.
func (e *RegistrationError) Error() string {
	cause := fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
	if e.Err != nil {
		cause = e.Err.Error()
	}

	return fmt.Sprintf("register %s %s (%s): %s", e.Platform, e.Version, e.DownloadURL, cause)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// StatusError reports an unexpected response from a management route.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
