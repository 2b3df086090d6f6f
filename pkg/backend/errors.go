package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend call failures for retry decisions.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindTransient    ErrorKind = "transient"
	KindPermanent4xx ErrorKind = "permanent_4xx"
	KindPermanent5xx ErrorKind = "permanent_5xx"
	KindCircuitOpen  ErrorKind = "circuit_open"
)

// Error is a typed backend failure carrying the endpoint and status code.
type Error struct {
	Endpoint   string
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Endpoint, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Endpoint, e.Kind, e.Message)
}

// Retryable reports whether the failure is worth another attempt.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransient
}

// AsError extracts a typed backend error, or nil.
func AsError(err error) *Error {
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return backendErr
	}
	return nil
}
