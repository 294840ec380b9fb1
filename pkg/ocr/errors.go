package ocr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrModelNotFound is returned when a backend model file is missing.
	ErrModelNotFound = errors.New("ocr: model file not found")

	// ErrBackendUnavailable is returned when a backend cannot be initialized
	// on this host (library or language data missing).
	ErrBackendUnavailable = errors.New("ocr: backend unavailable")

	// ErrEmptyRegion is returned by backends handed an image with no pixels.
	ErrEmptyRegion = errors.New("ocr: empty region")
)

// BackendError wraps an error with backend context.
type BackendError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("ocr [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}
