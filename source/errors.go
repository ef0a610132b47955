package source

import (
	"context"
	"errors"
	"fmt"
)

// Backend failure kinds. Executors wrap them in *BackendError.
var (
	// ErrBackendUnavailable: the backend could not be reached in time
	// (connection refused, timeout, 5xx).
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendQueryRejected: the backend refused the native query
	// (syntax error, unknown field, 4xx).
	ErrBackendQueryRejected = errors.New("backend rejected query")

	// ErrBackendTransportError: any other failure while talking to the
	// backend or decoding its response.
	ErrBackendTransportError = errors.New("backend transport error")
)

// BackendError is a classified backend failure.
type BackendError struct {
	// Source is the backend name.
	Source string
	// Kind is one of the ErrBackend* sentinels.
	Kind error
	// Err is the underlying cause.
	Err error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError classifies err under kind.
func NewError(source string, kind, err error) *BackendError {
	return &BackendError{Source: source, Kind: kind, Err: err}
}

// Unavailable, Rejected and Transport are shorthands for NewError.
func Unavailable(source string, err error) error {
	return NewError(source, ErrBackendUnavailable, err)
}

func Rejected(source string, err error) error {
	return NewError(source, ErrBackendQueryRejected, err)
}

func Transport(source string, err error) error {
	return NewError(source, ErrBackendTransportError, err)
}

// KindOf returns the backend kind of err, ErrBackendUnavailable for context
// cancellation and deadline errors, and ErrBackendTransportError otherwise.
func KindOf(err error) error {
	for _, kind := range []error{ErrBackendUnavailable, ErrBackendQueryRejected, ErrBackendTransportError} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrBackendUnavailable
	}
	return ErrBackendTransportError
}

// KindName returns a short label for a backend kind, for logs and metrics.
func KindName(kind error) string {
	switch kind {
	case ErrBackendUnavailable:
		return "unavailable"
	case ErrBackendQueryRejected:
		return "rejected"
	case ErrBackendTransportError:
		return "transport"
	default:
		return "unknown"
	}
}

// Classify returns err as a *BackendError of source, keeping an existing
// classification.
func Classify(source string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return NewError(source, KindOf(err), err)
}
