package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ValidationError represents a missing or malformed request parameter.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// MissingParam is a ValidationError for a query string parameter.
func MissingParam(name string) error {
	return &ValidationError{Message: fmt.Sprintf("Missing required parameter: %s", name)}
}

// MissingField is a ValidationError for a JSON body field.
func MissingField(name string) error {
	return &ValidationError{Message: fmt.Sprintf("Missing required field: %s", name)}
}

// AuthError indicates no API token could be resolved.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// TooLargeError indicates a request body over the accepted size.
type TooLargeError struct {
	Message string
}

func (e *TooLargeError) Error() string {
	return e.Message
}

// NotFoundError indicates an unmatched route.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Unknown endpoint: %s", e.Path)
}

type UpstreamKind int

const (
	UpstreamFailure UpstreamKind = iota
	UpstreamTimeout
	UpstreamUnavailable
)

func (k UpstreamKind) String() string {
	switch k {
	case UpstreamTimeout:
		return "timeout"
	case UpstreamUnavailable:
		return "unavailable"
	default:
		return "failure"
	}
}

// UpstreamError wraps a failure of the CLI or the Logseq API.
type UpstreamError struct {
	Kind    UpstreamKind
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Seconds renders a timeout for user-facing messages, e.g. "30 seconds".
func Seconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return fmt.Sprintf("%g seconds", d.Seconds())
}

// StatusFor maps an error onto the HTTP status used in the error envelope.
func StatusFor(err error) int {
	var (
		validation *ValidationError
		auth       *AuthError
		notFound   *NotFoundError
		tooLarge   *TooLargeError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &auth):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
