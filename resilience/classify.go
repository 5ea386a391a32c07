package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
)

// Class is the retry classification of a failure.
type Class int

const (
	// ClassPermanent means the failure will recur identically on retry.
	ClassPermanent Class = iota
	// ClassTransient means the failure may resolve with time and retry.
	ClassTransient
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "permanent"
	}
}

// ClassifierFunc overrides classification for a single call. A true result
// means retryable; the built-in rules are bypassed entirely.
type ClassifierFunc func(err error) bool

// Classify decides whether a failure is retryable.
//
// Rules, in order:
//   - explicit TransientError/RateLimitError wrappers are transient,
//     explicit PermanentError wrappers are permanent
//   - a fixed permanent set: invalid argument, permission denied,
//     missing file/key, parse and range errors
//   - a fixed transient set: deadlines, network timeouts, connection
//     failures, generic I/O interruptions
//   - anything unrecognized is permanent; never retry what you cannot
//     reason about
func Classify(err error) Class {
	var te *TransientError
	if errors.As(err, &te) {
		return ClassTransient
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return ClassTransient
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return ClassPermanent
	}

	if isPermanentKind(err) {
		return ClassPermanent
	}
	if isTransientKind(err) {
		return ClassTransient
	}
	return ClassPermanent
}

// Retryable reports whether err should trigger another attempt. A non-nil
// custom classifier is authoritative.
func Retryable(err error, custom ClassifierFunc) bool {
	if custom != nil {
		return custom(err)
	}
	return Classify(err) == ClassTransient
}

func isPermanentKind(err error) bool {
	switch {
	case errors.Is(err, os.ErrInvalid),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, strconv.ErrSyntax),
		errors.Is(err, strconv.ErrRange):
		return true
	}
	var ne *strconv.NumError
	return errors.As(err, &ne)
}

func isTransientKind(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EAGAIN),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, os.ErrDeadlineExceeded):
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
