package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found (or is not visible to the caller)
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates the caller identity is missing or invalid
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates the resource exists but belongs to another owner
	ForbiddenError struct {
		Message string
	}

	// UnsupportedMediaError indicates an operation that only applies to images
	UnsupportedMediaError struct {
		Message     string
		ContentType string
	}

	// UpstreamUnavailableError indicates the resize worker or blob store failed or timed out
	UpstreamUnavailableError struct {
		Message  string
		Upstream string // "resizer" or "blobstore"
		Err      error
	}

	// CorruptionError indicates a broken invariant detected at read time
	CorruptionError struct {
		Message    string
		ResourceID string
	}
)

// Error implementations
func (e *NotFoundError) Error() string         { return e.Message }
func (e *ValidationError) Error() string       { return e.Message }
func (e *UnauthorizedError) Error() string     { return e.Message }
func (e *ForbiddenError) Error() string        { return e.Message }
func (e *UnsupportedMediaError) Error() string { return e.Message }
func (e *CorruptionError) Error() string       { return e.Message }

func (e *UpstreamUnavailableError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int            { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int          { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int        { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int           { return http.StatusForbidden }
func (e *UnsupportedMediaError) StatusCode() int    { return http.StatusUnsupportedMediaType }
func (e *UpstreamUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }
func (e *CorruptionError) StatusCode() int          { return http.StatusInternalServerError }

// Is implementations so errors.Is matches the sentinels below
func (e *NotFoundError) Is(target error) bool            { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool          { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool        { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool           { return target == ErrForbidden }
func (e *UnsupportedMediaError) Is(target error) bool    { return target == ErrUnsupportedMedia }
func (e *UpstreamUnavailableError) Is(target error) bool { return target == ErrUpstreamUnavailable }
func (e *CorruptionError) Is(target error) bool          { return target == ErrCorruption }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already exists")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCorruption          = errors.New("data corruption")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // "folder" or "variant"
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StatusCode returns the HTTP status for err, walking the wrap chain.
// Unknown errors map to 500.
func StatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
