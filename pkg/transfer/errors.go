package transfer

import (
	"errors"
	"fmt"
)

// Code classifies a transfer error independently of the transport that
// produced it. Transport implementations translate their own failure modes
// (HTTP status codes, connection errors) into a Code exactly once, at the
// boundary; everything above that boundary reasons only about codes.
type Code int

const (
	// CodeUnknown is used for errors that carry no classification.
	CodeUnknown Code = iota

	// CodeUnavailable indicates the backend was temporarily unreachable or
	// refused the request with an overload-style response.
	CodeUnavailable

	// CodeResourceExhausted indicates the backend applied rate limiting or
	// quota enforcement to the request.
	CodeResourceExhausted

	// CodeDeadlineExceeded indicates the request timed out in flight.
	CodeDeadlineExceeded

	// CodeInternal indicates the backend reported an internal failure.
	CodeInternal

	// CodeAborted indicates the operation was aborted because its state can
	// no longer be trusted, e.g. after a protocol violation.
	CodeAborted

	// CodeNotFound indicates the object, folder or session does not exist.
	CodeNotFound

	// CodeInvalidArgument indicates the request was malformed.
	CodeInvalidArgument

	// CodePermissionDenied indicates the caller lacks access rights.
	CodePermissionDenied

	// CodeFailedPrecondition indicates the request cannot be executed in the
	// current backend state.
	CodeFailedPrecondition
)

// String returns the name of the code.
func (c Code) String() string {
	switch c {
	case CodeUnavailable:
		return "unavailable"
	case CodeResourceExhausted:
		return "resource exhausted"
	case CodeDeadlineExceeded:
		return "deadline exceeded"
	case CodeInternal:
		return "internal"
	case CodeAborted:
		return "aborted"
	case CodeNotFound:
		return "not found"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodePermissionDenied:
		return "permission denied"
	case CodeFailedPrecondition:
		return "failed precondition"
	default:
		return "unknown"
	}
}

// Error is a transfer error with the context needed to report it upward:
// the classification code, the operation that failed and the underlying
// cause.
type Error struct {
	Code Code   // classification used by retry policies
	Op   string // operation that failed, e.g. "UploadChunk"
	Err  error  // underlying error, may be nil
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("transfer: %s: %s", e.Op, e.Code)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new transfer error.
func NewError(code Code, op string, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}

// Errorf creates a new transfer error from a format string.
func Errorf(code Code, op string, format string, args ...interface{}) error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the classification code from an error. Errors that do not
// carry a *Error anywhere in their chain report CodeUnknown.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeUnknown
}

// IsTransient reports whether an error is eligible for retry under the
// default classification: transient network and overload conditions plus
// backend-internal failures. Everything else, including unclassified
// errors, is treated as permanent.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeResourceExhausted, CodeDeadlineExceeded, CodeInternal:
		return true
	default:
		return false
	}
}

// IsNotFound checks if an error indicates a missing object or session.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsAborted checks if an error indicates an aborted transfer.
func IsAborted(err error) bool {
	return CodeOf(err) == CodeAborted
}

// IsPermissionDenied checks if an error indicates missing access rights.
func IsPermissionDenied(err error) bool {
	return CodeOf(err) == CodePermissionDenied
}
