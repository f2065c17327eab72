package diskworker

import (
	"errors"
	"fmt"
)

// Sentinel errors for disk worker operations.
var (
	// ErrNotFound indicates the requested file does not exist or could not be read.
	ErrNotFound = errors.New("asset not found")

	// ErrDecode indicates the file could not be decoded as an image.
	ErrDecode = errors.New("image decode failed")

	// ErrUnsupported indicates a command the worker does not implement.
	ErrUnsupported = errors.New("command not supported")

	// ErrIO indicates a write or filesystem failure.
	ErrIO = errors.New("disk i/o failed")

	// ErrWorkerStopped is returned when work is submitted after Stop.
	ErrWorkerStopped = errors.New("disk worker stopped")

	// ErrQueueFull is returned when a priority lane has no free slot.
	ErrQueueFull = errors.New("disk worker queue full")
)

// ErrorKind classifies an Error response.
type ErrorKind int

const (
	ErrorNotFound ErrorKind = iota
	ErrorDecode
	ErrorUnsupported
	ErrorIO
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNotFound:
		return "not_found"
	case ErrorDecode:
		return "decode"
	case ErrorUnsupported:
		return "unsupported"
	case ErrorIO:
		return "io"
	default:
		return "unknown"
	}
}

// sentinel maps a kind to its sentinel error.
func (k ErrorKind) sentinel() error {
	switch k {
	case ErrorNotFound:
		return ErrNotFound
	case ErrorDecode:
		return ErrDecode
	case ErrorUnsupported:
		return ErrUnsupported
	default:
		return ErrIO
	}
}

// kindOf classifies err by the sentinel it wraps.
func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrDecode):
		return ErrorDecode
	case errors.Is(err, ErrUnsupported):
		return ErrorUnsupported
	default:
		return ErrorIO
	}
}

// Err converts an Error response into a Go error wrapping the matching sentinel.
func (e Error) Err() error {
	return fmt.Errorf("%s: %s: %w", e.Path, e.Reason, e.Kind.sentinel())
}
